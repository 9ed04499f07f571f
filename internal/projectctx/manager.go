package projectctx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/memctx/memctx/internal/codeindex"
	"github.com/memctx/memctx/internal/config"
	"github.com/memctx/memctx/internal/embedder"
	"github.com/memctx/memctx/internal/memory"
	"github.com/memctx/memctx/internal/rules"
	"github.com/memctx/memctx/internal/storage"
	"github.com/memctx/memctx/internal/tfidf"
	"github.com/memctx/memctx/internal/vectorstore"
)

// Manager is the process-global cache of ProjectContexts. One Manager is
// constructed per server process; every MCP tool handler goes through it
// to reach a project's storage and in-memory indexes.
//
// Concurrency contract, per the teacher's single-mutex-per-resource style
// generalized to a double-checked-locking init path: one outer mutex
// guards the live-context cache and a sibling map of per-project init
// locks. Get's fast path (context already initialized) only touches the
// found context's own cheap mutex via Touch; the slow path (first touch
// for a project) acquires that project's own init lock so concurrent
// callers for *different* projects never block one another during a slow
// open-and-migrate.
type Manager struct {
	cfg *config.Config

	outer     sync.Mutex
	contexts  *lru.Cache[string, *ProjectContext]
	initLocks map[string]*sync.Mutex
}

// NewManager builds an empty context manager over cfg. cfg.ProjectContext
// bounds the live-context cache; cfg's other sections seed each newly
// constructed ProjectContext's storage, search, embedding, and indexing
// settings. The cache's own eviction callback closes a project's storage
// handle the moment the LRU cap pushes it out.
func NewManager(cfg *config.Config) *Manager {
	maxCtx := cfg.ProjectContext.MaxProjectContexts
	if maxCtx <= 0 {
		maxCtx = 10
	}

	m := &Manager{
		cfg:       cfg,
		initLocks: make(map[string]*sync.Mutex),
	}
	contexts, _ := lru.NewWithEvict[string, *ProjectContext](maxCtx, func(key string, pc *ProjectContext) {
		m.closeEvicted(key, pc)
	})
	m.contexts = contexts
	return m
}

// closeEvicted runs under the LRU cache's own internal lock (it is the
// eviction callback), so it must not reacquire m.outer.
func (m *Manager) closeEvicted(key string, pc *ProjectContext) {
	delete(m.initLocks, key)
	if err := pc.Close(); err != nil {
		slog.Warn("project_context_close_failed", slog.String("project_path", key), slog.String("error", err.Error()))
	} else {
		slog.Info("project_context_evicted", slog.String("project_path", key))
	}
}

// Get returns the ProjectContext for path, normalizing it first,
// constructing and migrating storage on first touch. Exactly one
// initialization runs per project across concurrent callers.
func (m *Manager) Get(ctx context.Context, path string) (*ProjectContext, error) {
	const op = "projectctx.Get"

	key, err := normalizeProjectPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if pc, ok := m.lookup(key); ok {
		pc.Touch()
		return pc, nil
	}

	// Slow path: obtain (or create) this project's init lock, then release
	// the outer lock so other projects aren't blocked on this one's init.
	m.outer.Lock()
	lock, ok := m.initLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.initLocks[key] = lock
	}
	m.outer.Unlock()

	lock.Lock()
	defer lock.Unlock()

	// Re-check under the per-project lock (double-checked locking): another
	// goroutine may have finished initializing while we waited for it.
	if pc, ok := m.lookup(key); ok {
		pc.Touch()
		return pc, nil
	}

	pc, err := m.initContext(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m.outer.Lock()
	m.contexts.Add(key, pc)
	m.outer.Unlock()

	pc.Touch()
	return pc, nil
}

func (m *Manager) lookup(key string) (*ProjectContext, bool) {
	m.outer.Lock()
	defer m.outer.Unlock()
	pc, ok := m.contexts.Get(key)
	if !ok || !pc.initialized {
		return nil, false
	}
	return pc, true
}

// initContext constructs storage plus the C6/C7/C8 managers for one
// project, running migrations (idempotent, so safe even if another
// process already ran them) and building each in-memory index once.
func (m *Manager) initContext(ctx context.Context, projectPath string) (*ProjectContext, error) {
	store, err := storage.Open(ctx, DBPath(projectPath), m.cfg.Storage.BusyTimeoutMS)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	emb, err := embedder.New(embedder.Config{
		Provider:   m.cfg.Embedding.Provider,
		Model:      m.cfg.Embedding.Model,
		Dim:        m.cfg.Embedding.Dim,
		OllamaHost: m.cfg.Embedding.OllamaHost,
		CacheSize:  m.cfg.Embedding.CacheSize,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	vectors := vectorstore.New(m.cfg.Embedding.Dim)

	codeIdx := codeindex.NewIndexer(store, vectors, emb, projectPath, m.cfg.Index.Languages,
		m.cfg.Index.ParseTreeCacheMaxSize, m.cfg.Index.Workers)

	memMgr := memory.NewManager(store, tfidf.New(), vectors, emb, codeIdx, projectPath, m.cfg.Search)
	if err := memMgr.RebuildIndex(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build memory index: %w", err)
	}

	ruleEngine, err := rules.NewEngine(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build rules engine: %w", err)
	}

	pc := &ProjectContext{
		ProjectPath: projectPath,
		Storage:     store,
		Memory:      memMgr,
		Rules:       ruleEngine,
		CodeIndex:   codeIdx,
		initialized: true,
	}
	slog.Info("project_context_initialized", slog.String("project_path", projectPath))
	return pc, nil
}

// EvictStale runs the TTL pass: idle contexts beyond context_ttl_seconds
// are dropped regardless of recency. The LRU pass runs implicitly on every
// Get, since the underlying cache evicts its oldest entry the instant a
// new one pushes it past max_project_contexts; EvictStale only needs to
// handle the case the LRU pass can't, a project nobody has revisited.
// Safe to call on a cadence or on demand.
func (m *Manager) EvictStale(ctx context.Context) {
	ttl := time.Duration(m.cfg.ProjectContext.ContextTTLSeconds) * time.Second

	m.outer.Lock()
	var stale []string
	for _, key := range m.contexts.Keys() {
		pc, ok := m.contexts.Peek(key)
		if ok && time.Since(pc.LastAccessed()) > ttl {
			stale = append(stale, key)
		}
	}
	m.outer.Unlock()

	for _, key := range stale {
		m.evictKey(ctx, key)
	}
}

// evictKey removes one project from the live cache, triggering the
// eviction callback that closes its storage handle.
func (m *Manager) evictKey(_ context.Context, key string) {
	m.outer.Lock()
	m.contexts.Remove(key)
	m.outer.Unlock()
}

// Len reports the number of live contexts, for tests and health checks.
func (m *Manager) Len() int {
	m.outer.Lock()
	defer m.outer.Unlock()
	return m.contexts.Len()
}

// EvictAll drops every live context, closing each one's storage handle.
// Called on server shutdown so no project's SQLite file is left open.
func (m *Manager) EvictAll() {
	m.outer.Lock()
	keys := m.contexts.Keys()
	m.outer.Unlock()

	for _, key := range keys {
		m.evictKey(context.Background(), key)
	}
}
