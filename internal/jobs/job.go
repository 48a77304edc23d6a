package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"photodex/internal/database"
)

// Kind identifies what a job does.
type Kind string

const (
	KindScan   Kind = "scan"
	KindImport Kind = "import"
	KindDelete Kind = "delete"
)

// Status is a job's lifecycle state. Transitions only move forward:
// pending to running to one of the terminal states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Counters are the per-file tallies a job accumulates.
type Counters struct {
	Processed  int `json:"processed"`
	Indexed    int `json:"indexed"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// Snapshot is a point-in-time copy of a job, safe to read after the job
// has moved on.
type Snapshot struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
	Counters    Counters  `json:"counters"`
}

// job is the runner's mutable record. All access goes through the mutex;
// the runner is the only writer.
type job struct {
	mu sync.Mutex

	id        string
	kind      Kind
	status    Status
	err       string
	createdAt time.Time
	doneAt    time.Time
	counters  Counters

	run func(context.Context) (Counters, error)

	// releaseLock is non-nil while the job holds its catalog lock.
	releaseLock func()
}

// snapshot copies the job state under the lock.
func (j *job) snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:          j.id,
		Kind:        j.kind,
		Status:      j.status,
		Error:       j.err,
		CreatedAt:   j.createdAt,
		CompletedAt: j.doneAt,
		Counters:    j.counters,
	}
}

// transition advances the job's status. Backward moves and transitions
// out of a terminal state are rejected.
func (j *job) transition(to Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	from := j.status
	valid := (from == StatusPending && to == StatusRunning) ||
		(from == StatusRunning && to.terminal())
	if !valid {
		return fmt.Errorf("invalid job transition %s -> %s", from, to)
	}
	j.status = to
	if to.terminal() {
		j.doneAt = time.Now()
	}
	return nil
}

// finish records the terminal outcome and releases the catalog lock.
func (j *job) finish(counters Counters, runErr error) {
	status := StatusCompleted
	errMsg := ""
	if runErr != nil {
		status = StatusError
		errMsg = runErr.Error()
	}

	j.mu.Lock()
	j.counters = counters
	j.err = errMsg
	j.mu.Unlock()

	// transition takes the lock itself.
	_ = j.transition(status)

	j.mu.Lock()
	release := j.releaseLock
	j.releaseLock = nil
	j.mu.Unlock()
	if release != nil {
		release()
	}
}

// record converts the job to its persisted form.
func (j *job) record() *database.JobRecord {
	s := j.snapshot()
	return &database.JobRecord{
		ID:          s.ID,
		Kind:        string(s.Kind),
		Status:      string(s.Status),
		Error:       s.Error,
		CreatedAt:   s.CreatedAt,
		CompletedAt: s.CompletedAt,
		Processed:   s.Counters.Processed,
		Indexed:     s.Counters.Indexed,
		Duplicates:  s.Counters.Duplicates,
		Failed:      s.Counters.Failed,
	}
}
