package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	memerrors "github.com/memctx/memctx/internal/errors"
)

// migrationLock guards the one-time-per-database migration run with a
// cross-process file lock, so two memctx processes racing to open the same
// fresh project (e.g. the CLI and an MCP server launched together) cannot
// both run migrations against the same file at once. SQLite's own locking
// serializes individual statements but not the multi-step migration
// sequence.
type migrationLock struct {
	fl *flock.Flock
}

// newMigrationLock returns a lock scoped to the project's data directory.
// An empty dbPath (in-memory databases, used by tests) has no lock file and
// its Acquire/Release are no-ops.
func newMigrationLock(dbPath string) *migrationLock {
	if dbPath == "" {
		return &migrationLock{}
	}
	lockPath := filepath.Join(filepath.Dir(dbPath), ".migrate.lock")
	return &migrationLock{fl: flock.New(lockPath)}
}

// Acquire blocks until the lock is held. Safe to call on the no-op lock.
func (l *migrationLock) Acquire() error {
	if l.fl == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return memerrors.Wrap(memerrors.Fatal, "storage.migrationLock.Acquire", fmt.Errorf("create lock dir: %w", err))
	}
	if err := l.fl.Lock(); err != nil {
		return memerrors.Wrap(memerrors.Fatal, "storage.migrationLock.Acquire", err)
	}
	return nil
}

// Release drops the lock. Safe to call on the no-op lock or an unlocked one.
func (l *migrationLock) Release() error {
	if l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
