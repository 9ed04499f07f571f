// Package memory is the manager component (C6): it owns the lifecycle of
// recorded project knowledge, fanning each write out to the lexical index
// (C3), the vector store (C2), and the code-entity auto-linker (C8), and
// answering recall/search reads through the hybrid pipeline (C5).
//
// The shape here follows the teacher's session manager
// (internal/session/manager.go): a small struct wrapping storage plus a
// handful of lifecycle verbs, rather than a generic repository interface.
package memory

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/memctx/memctx/internal/config"
	"github.com/memctx/memctx/internal/embedder"
	"github.com/memctx/memctx/internal/hybrid"
	"github.com/memctx/memctx/internal/storage"
	"github.com/memctx/memctx/internal/tfidf"
	"github.com/memctx/memctx/internal/vectorstore"
)

// maxContentLength bounds a single memory's content; 50,001 bytes is the
// spec's documented boundary for a Validation error.
const maxContentLength = 50000

// EntityResolver is the subset of the code indexer (C8) the manager needs
// for auto-linking. Defined here, implemented there, to avoid a C6->C8
// import cycle (C8 will eventually depend on C4/C2, not on C6).
type EntityResolver interface {
	FindEntity(ctx context.Context, projectPath, name string) (*storage.CodeEntity, error)
}

// Manager is the memory lifecycle owner for one project.
type Manager struct {
	Store        *storage.Store
	TFIDF        *tfidf.Index
	Vectors      *vectorstore.Store
	Embedder     embedder.Embedder
	Resolver     EntityResolver
	ProjectPath  string
	Config       config.SearchConfig

	indexBuiltAt time.Time
}

// NewManager wires a manager over an already-open store, TF-IDF index, and
// vector store for one project. Resolver may be nil until C8 has indexed
// the project; auto-linking is then skipped rather than failing remember.
func NewManager(store *storage.Store, idx *tfidf.Index, vectors *vectorstore.Store, emb embedder.Embedder, resolver EntityResolver, projectPath string, cfg config.SearchConfig) *Manager {
	return &Manager{
		Store:       store,
		TFIDF:       idx,
		Vectors:     vectors,
		Embedder:    emb,
		Resolver:    resolver,
		ProjectPath: projectPath,
		Config:      cfg,
	}
}

func (m *Manager) searcher() *hybrid.Searcher {
	return &hybrid.Searcher{
		Store:    m.Store,
		TFIDF:    m.TFIDF,
		Vectors:  m.Vectors,
		Embedder: m.Embedder,
		Config:   m.Config,
	}
}

func validCategory(c storage.Category) bool {
	switch c {
	case storage.CategoryDecision, storage.CategoryPattern, storage.CategoryWarning, storage.CategoryLearning:
		return true
	default:
		return false
	}
}

// backtickSymbol matches a `symbol.like.this` delimited by backticks, used
// both by tag-free auto-linking and by check_rules-adjacent parsing.
var backtickSymbol = regexp.MustCompile("`([^`\\s]+)`")

// extractBacktickSymbols returns the distinct backtick-delimited tokens in
// text, in first-seen order.
func extractBacktickSymbols(text string) []string {
	matches := backtickSymbol.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		sym := m[1]
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

func normalizeContent(content string) string {
	fields := strings.Fields(strings.ToLower(content))
	return strings.Join(fields, " ")
}

func boolPtr(b bool) *bool { return &b }
