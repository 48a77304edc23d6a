package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"photodex/internal/database"
	"photodex/internal/importer"
	"photodex/internal/logging"
	"photodex/internal/media"
	"photodex/internal/metrics"
	"photodex/internal/scanner"
)

var (
	// ErrNotFound is returned for an unknown job or photo id.
	ErrNotFound = errors.New("jobs: not found")

	// ErrCatalogBusy is returned when a scan or import is submitted for a
	// catalog that already has one in flight. The submission is rejected,
	// not queued.
	ErrCatalogBusy = errors.New("jobs: catalog busy")

	// ErrQueueFull is returned when the job queue cannot accept more work.
	ErrQueueFull = errors.New("jobs: queue full")
)

const queueDepth = 256

// Roots are the filesystem locations jobs operate on.
type Roots struct {
	PhotoRoot  string
	ImportRoot string
	FailedRoot string
}

// Runner owns the asynchronous job lifecycle: submission, a bounded
// worker pool, status snapshots, and persistence of terminal states.
// It is the only writer of job status.
type Runner struct {
	db       *database.Database
	scanner  *scanner.Scanner
	importer *importer.Importer
	deriv    *media.Generator
	roots    Roots
	locks    *catalogLocks
	workers  int

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool

	queue chan *job
	wg    sync.WaitGroup
}

// NewRunner builds a Runner with the given worker count. Call Start to
// begin executing jobs.
func NewRunner(db *database.Database, sc *scanner.Scanner, im *importer.Importer, deriv *media.Generator, roots Roots, workers int) *Runner {
	return &Runner{
		db:       db,
		scanner:  sc,
		importer: im,
		deriv:    deriv,
		roots:    roots,
		locks:    newCatalogLocks(db),
		workers:  workers,
		jobs:     make(map[string]*job),
		queue:    make(chan *job, queueDepth),
	}
}

// Start launches the worker pool. Jobs run with ctx; cancelling it stops
// in-flight database and provider calls but jobs themselves run to
// completion.
func (r *Runner) Start(ctx context.Context) {
	logging.Info("Starting job runner with %d workers", r.workers)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
// Submissions arriving afterwards are rejected with ErrQueueFull.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.queue)
	r.wg.Wait()
	logging.Info("Job runner stopped")
}

// SubmitScan queues a scan of root into the catalog. A second scan or
// import on the same catalog fails immediately with ErrCatalogBusy.
func (r *Runner) SubmitScan(ctx context.Context, catalogID int64, root string) (string, error) {
	if !r.locks.TryAcquire(ctx, catalogID) {
		return "", ErrCatalogBusy
	}
	j := r.newJob(KindScan, func(ctx context.Context) (Counters, error) {
		res, err := r.scanner.Scan(ctx, catalogID, root)
		return Counters{Processed: res.Processed, Indexed: res.Indexed, Duplicates: res.Duplicates, Failed: res.Failed}, err
	})
	j.releaseLock = func() { r.locks.Release(context.Background(), catalogID) }
	return r.enqueue(ctx, j)
}

// SubmitImport queues an import draining the staging root into the
// library. Imports take the same per-catalog lock as scans.
func (r *Runner) SubmitImport(ctx context.Context, catalogID int64) (string, error) {
	if !r.locks.TryAcquire(ctx, catalogID) {
		return "", ErrCatalogBusy
	}
	j := r.newJob(KindImport, func(ctx context.Context) (Counters, error) {
		res, err := r.importer.Import(ctx, catalogID, r.roots.ImportRoot, r.roots.PhotoRoot, r.roots.FailedRoot)
		return Counters{Processed: res.Processed, Indexed: res.Moved, Duplicates: res.Duplicates, Failed: res.Failed}, err
	})
	j.releaseLock = func() { r.locks.Release(context.Background(), catalogID) }
	return r.enqueue(ctx, j)
}

// SubmitDelete queues removal of one photo: its record and derivatives.
// The original file on disk is left untouched.
func (r *Runner) SubmitDelete(ctx context.Context, guid string) (string, error) {
	j := r.newJob(KindDelete, func(ctx context.Context) (Counters, error) {
		if _, err := r.db.GetPhotoByGUID(ctx, guid); err != nil {
			if errors.Is(err, database.ErrNoRow) {
				return Counters{}, fmt.Errorf("photo %s: %w", guid, ErrNotFound)
			}
			return Counters{}, err
		}
		if err := r.deriv.Remove(guid); err != nil {
			return Counters{}, err
		}
		if err := r.db.DeletePhoto(ctx, guid); err != nil {
			return Counters{}, err
		}
		return Counters{Processed: 1}, nil
	})
	return r.enqueue(ctx, j)
}

// Status returns a point-in-time snapshot of a job. Jobs from an earlier
// process lifetime are served from their persisted record; an unknown id
// returns ErrNotFound.
func (r *Runner) Status(ctx context.Context, id string) (Snapshot, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()
	if ok {
		return j.snapshot(), nil
	}

	rec, err := r.db.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNoRow) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	return snapshotFromRecord(rec), nil
}

func snapshotFromRecord(rec *database.JobRecord) Snapshot {
	return Snapshot{
		ID:          rec.ID,
		Kind:        Kind(rec.Kind),
		Status:      Status(rec.Status),
		Error:       rec.Error,
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
		Counters: Counters{
			Processed:  rec.Processed,
			Indexed:    rec.Indexed,
			Duplicates: rec.Duplicates,
			Failed:     rec.Failed,
		},
	}
}

func (r *Runner) newJob(kind Kind, run func(context.Context) (Counters, error)) *job {
	return &job{
		id:        uuid.NewString(),
		kind:      kind,
		status:    StatusPending,
		createdAt: time.Now(),
		run:       run,
	}
}

// enqueue registers the job and hands it to the pool. Submission never
// blocks: a full or stopped queue rejects the job. The send happens under
// the mutex so it cannot race with Stop closing the channel.
func (r *Runner) enqueue(ctx context.Context, j *job) (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if j.releaseLock != nil {
			j.releaseLock()
		}
		return "", ErrQueueFull
	}
	select {
	case r.queue <- j:
		r.jobs[j.id] = j
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		if j.releaseLock != nil {
			j.releaseLock()
		}
		return "", ErrQueueFull
	}

	metrics.JobsSubmittedTotal.WithLabelValues(string(j.kind)).Inc()
	r.persist(ctx, j)
	logging.Info("Submitted %s job %s", j.kind, j.id)
	return j.id, nil
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for j := range r.queue {
		r.execute(ctx, j)
	}
}

// execute runs one job through its lifecycle. The catalog lock is
// released on every exit path, panics included.
func (r *Runner) execute(ctx context.Context, j *job) {
	if err := j.transition(StatusRunning); err != nil {
		logging.Error("Job %s: %v", j.id, err)
		return
	}
	r.persist(ctx, j)
	metrics.JobsRunning.Inc()
	start := time.Now()

	var (
		counters Counters
		runErr   error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				runErr = fmt.Errorf("job panicked: %v", p)
			}
		}()
		counters, runErr = j.run(ctx)
	}()

	j.finish(counters, runErr)

	metrics.JobsRunning.Dec()
	metrics.JobDuration.WithLabelValues(string(j.kind)).Observe(time.Since(start).Seconds())
	status := "completed"
	if runErr != nil {
		status = "error"
		logging.Warn("Job %s (%s) failed: %v", j.id, j.kind, runErr)
	} else {
		logging.Info("Job %s (%s) completed in %v", j.id, j.kind, time.Since(start))
	}
	metrics.JobsFinishedTotal.WithLabelValues(string(j.kind), status).Inc()

	r.persist(ctx, j)
}

func (r *Runner) persist(ctx context.Context, j *job) {
	if err := r.db.UpsertJob(ctx, j.record()); err != nil {
		logging.Warn("Failed to persist job %s: %v", j.id, err)
	}
}
