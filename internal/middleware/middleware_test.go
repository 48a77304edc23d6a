package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"photodex/internal/metrics"
)

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/scan", "/api/scan"},
		{"/api\nfake line", "/api fake line"},
		{"/api\r\nfake", "/api  fake"},
		{"/api\x00null", "/apinull"},
		{"/api\x1b[31mred", "/api[31mred"},
		{"tab\tok", "tab\tok"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShouldSkip(t *testing.T) {
	cfg := DefaultLoggingConfig()
	cfg.SkipPaths = []string{"/static"}

	tests := []struct {
		path string
		want bool
	}{
		{"/healthz", true},
		{"/readyz", true},
		{"/static/app.css", true},
		{"/api/scan", false},
	}
	for _, tt := range tests {
		if got := shouldSkip(tt.path, cfg); got != tt.want {
			t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scan", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestMetricsLabelsRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/api/scan/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	template := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/scan/{id}", "200")
	raw := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/scan/abcd-1234", "200")
	templateBefore := testutil.ToFloat64(template)
	rawBefore := testutil.ToFloat64(raw)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scan/abcd-1234", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if got := testutil.ToFloat64(template) - templateBefore; got != 1 {
		t.Errorf("template series delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(raw) - rawBefore; got != 0 {
		t.Errorf("raw path series delta = %v, want 0", got)
	}
}

func TestMetricsPassesThrough(t *testing.T) {
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	// Skipped paths still reach the handler.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("skipped path status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}
