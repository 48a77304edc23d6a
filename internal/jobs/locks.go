package jobs

import (
	"context"
	"sync"

	"photodex/internal/database"
	"photodex/internal/logging"
)

// catalogLocks provides per-catalog mutual exclusion for scan and import
// jobs. The in-process map is authoritative; the catalogs table's
// updating flag is mirrored for external visibility only.
type catalogLocks struct {
	mu   sync.Mutex
	held map[int64]bool
	db   *database.Database
}

func newCatalogLocks(db *database.Database) *catalogLocks {
	return &catalogLocks{held: make(map[int64]bool), db: db}
}

// TryAcquire takes the lock for a catalog if it is free. It never
// blocks; a held lock returns false.
func (l *catalogLocks) TryAcquire(ctx context.Context, catalogID int64) bool {
	l.mu.Lock()
	if l.held[catalogID] {
		l.mu.Unlock()
		return false
	}
	l.held[catalogID] = true
	l.mu.Unlock()

	if err := l.db.SetCatalogUpdating(ctx, catalogID, true); err != nil {
		logging.Warn("Failed to mirror catalog %d lock to database: %v", catalogID, err)
	}
	return true
}

// Release frees a catalog's lock. Releasing a free lock is a no-op.
func (l *catalogLocks) Release(ctx context.Context, catalogID int64) {
	l.mu.Lock()
	delete(l.held, catalogID)
	l.mu.Unlock()

	if err := l.db.SetCatalogUpdating(ctx, catalogID, false); err != nil {
		logging.Warn("Failed to mirror catalog %d unlock to database: %v", catalogID, err)
	}
}
