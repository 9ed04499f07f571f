// Package projectctx is the context manager (C9): a process-global cache
// of per-project storage handles and in-memory indexes, so that every MCP
// tool call can hand over just a project path and get back an
// already-initialized ProjectContext without re-opening the database or
// rebuilding the TF-IDF index on every call.
//
// The shape follows the teacher's session manager
// (internal/session/manager.go) -- a small struct owning lifecycle verbs
// over a disk-backed resource -- generalized from disk-backed sessions
// keyed by name to in-memory contexts keyed by normalized project path,
// with the single-mutex-per-resource locking style of the teacher's
// internal/index/coordinator.go.
package projectctx

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/memctx/memctx/internal/codeindex"
	"github.com/memctx/memctx/internal/memory"
	"github.com/memctx/memctx/internal/rules"
	"github.com/memctx/memctx/internal/storage"
)

// ProjectContext bundles everything one project needs: its storage handle,
// its memory manager (C6), its rules engine (C7), and its code indexer
// (C8). The context manager owns the lifetime of all four together.
type ProjectContext struct {
	ProjectPath string
	Storage     *storage.Store
	Memory      *memory.Manager
	Rules       *rules.Engine
	CodeIndex   *codeindex.Indexer

	mu           sync.Mutex
	lastAccessed time.Time
	initialized  bool
}

// Touch stamps last_accessed to now under the context's own cheap mutex,
// the fast path get_context takes when the context already exists.
func (pc *ProjectContext) Touch() {
	pc.mu.Lock()
	pc.lastAccessed = time.Now()
	pc.mu.Unlock()
}

// LastAccessed reports the last time Touch ran.
func (pc *ProjectContext) LastAccessed() time.Time {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.lastAccessed
}

// Close releases the context's storage handle. Called only by the
// manager's eviction path, which has already removed the context from the
// live map so no other caller can observe a closed *ProjectContext.
func (pc *ProjectContext) Close() error {
	return pc.Storage.Close()
}

// normalizeProjectPath resolves symlinks and makes the path absolute, so
// that "./foo", "/abs/foo", and a symlinked alias of the same directory all
// map to the same map key.
func normalizeProjectPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Project directory may not exist yet on first touch (e.g. a
		// freshly created repo); fall back to the absolute, unresolved
		// path rather than failing the whole lookup.
		return abs, nil
	}
	return resolved, nil
}

// dataDirName is the project-local directory holding the SQLite database
// and export artifacts, a dotted-directory convention scoped to the
// project instead of the home dir.
const dataDirName = ".memctx"

// DataDir returns the per-project storage directory for projectPath.
func DataDir(projectPath string) string {
	return filepath.Join(projectPath, dataDirName)
}

// DBPath returns the SQLite database path for projectPath.
func DBPath(projectPath string) string {
	return filepath.Join(DataDir(projectPath), "memctx.db")
}
