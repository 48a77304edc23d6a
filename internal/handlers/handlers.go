package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"photodex/internal/jobs"
	"photodex/internal/logging"
)

// API serves the job-submission surface. Everything else the system does
// happens asynchronously behind these endpoints.
type API struct {
	runner    *jobs.Runner
	catalogID int64
	photoRoot string
	ready     func() error
}

// New returns an API submitting jobs against the given catalog.
// photoRoot is the default scan root.
func New(runner *jobs.Runner, catalogID int64, photoRoot string) *API {
	return &API{runner: runner, catalogID: catalogID, photoRoot: photoRoot}
}

// WithReadyCheck installs the readiness probe backing /readyz. A nil
// check means the endpoint only confirms the process is serving.
func (a *API) WithReadyCheck(check func() error) *API {
	a.ready = check
	return a
}

// Register attaches all routes to the router.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/api/scan", a.handleSubmitScan).Methods(http.MethodPost)
	r.HandleFunc("/api/scan/{id}", a.handleJobStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/import", a.handleSubmitImport).Methods(http.MethodPost)
	r.HandleFunc("/api/import/{id}", a.handleJobStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/photos/{guid}", a.handleDeletePhoto).Methods(http.MethodDelete)
	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.handleReadyz).Methods(http.MethodGet)
}

type scanRequest struct {
	Root string `json:"root,omitempty"`
}

type jobResponse struct {
	JobID string `json:"jobId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	root := req.Root
	if root == "" {
		root = a.photoRoot
	}

	id, err := a.runner.SubmitScan(r.Context(), a.catalogID, root)
	if err != nil {
		writeSubmitError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{JobID: id})
}

func (a *API) handleSubmitImport(w http.ResponseWriter, r *http.Request) {
	id, err := a.runner.SubmitImport(r.Context(), a.catalogID)
	if err != nil {
		writeSubmitError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{JobID: id})
}

func (a *API) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := a.runner.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown job id")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read job status")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	guid := mux.Vars(r)["guid"]
	id, err := a.runner.SubmitDelete(r.Context(), guid)
	if err != nil {
		writeSubmitError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{JobID: id})
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrCatalogBusy):
		writeError(w, http.StatusConflict, "catalog busy: a scan or import is already running")
	case errors.Is(err, jobs.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "job queue full")
	default:
		writeError(w, http.StatusInternalServerError, "failed to submit job")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
