package codeindex

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/memctx/memctx/internal/embedder"
	"github.com/memctx/memctx/internal/storage"
	"github.com/memctx/memctx/internal/vectorstore"
)

// Indexer owns one project's AST indexing: parsing, entity extraction,
// embedding of entity signatures/docstrings, and incremental reindex via
// FileHash comparison.
type Indexer struct {
	Store    *storage.Store
	Vectors  *vectorstore.Store
	Embedder embedder.Embedder
	Registry *Registry
	Cache    *ParseCache

	ProjectPath string
	Languages   []string
	Workers     int
}

// NewIndexer builds an indexer with the default language registry and a
// parse cache of the given capacity.
func NewIndexer(store *storage.Store, vectors *vectorstore.Store, emb embedder.Embedder, projectPath string, languages []string, cacheCapacity, workers int) *Indexer {
	if workers <= 0 {
		workers = 4
	}
	return &Indexer{
		Store:       store,
		Vectors:     vectors,
		Embedder:    emb,
		Registry:    DefaultRegistry(),
		Cache:       NewParseCache(cacheCapacity),
		ProjectPath: projectPath,
		Languages:   languages,
		Workers:     workers,
	}
}

// IndexResult summarizes one index_project run.
type IndexResult struct {
	FilesScanned int
	FilesParsed  int
	FilesSkipped int
	EntityCount  int
}

// IndexProject enumerates matching files, parses those whose content hash
// changed since the last run, extracts entities, embeds entities with a
// non-empty signature/docstring, and upserts everything into C1/C2.
// Files are parsed concurrently up to Workers; DB writes are serialized
// through writeMu so storage never sees interleaved transactions.
func (idx *Indexer) IndexProject(ctx context.Context, patterns []string) (*IndexResult, error) {
	files, err := enumerateFiles(idx.ProjectPath, idx.Registry, idx.Languages)
	if err != nil {
		return nil, err
	}
	if len(patterns) > 0 {
		files = filterByPatterns(files, patterns)
	}

	result := &IndexResult{FilesScanned: len(files)}
	var writeMu sync.Mutex
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.Workers)

	for _, relPath := range files {
		relPath := relPath
		g.Go(func() error {
			parsed, entityCount, err := idx.indexFile(gctx, relPath, &writeMu)
			if err != nil {
				slog.Warn("codeindex_file_failed", "file", relPath, "error", err)
				return nil
			}
			mu.Lock()
			if parsed {
				result.FilesParsed++
				result.EntityCount += entityCount
			} else {
				result.FilesSkipped++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// indexFile handles one file: hash check, parse, extract, embed, write.
// Returns parsed=false when the file's content hash is unchanged.
func (idx *Indexer) indexFile(ctx context.Context, relPath string, writeMu *sync.Mutex) (parsed bool, entityCount int, err error) {
	absPath := filepath.Join(idx.ProjectPath, relPath)
	source, err := os.ReadFile(absPath)
	if err != nil {
		return false, 0, err
	}
	contentHash := hashContent(source)

	existingHash, found, err := idx.Store.GetFileHash(ctx, idx.ProjectPath, relPath)
	if err != nil {
		return false, 0, err
	}
	if found && existingHash == contentHash {
		return false, 0, nil
	}

	cfg, ok := idx.Registry.ByExtension(filepath.Ext(relPath))
	if !ok {
		return false, 0, nil
	}

	tree, cached := idx.Cache.Get(absPath, contentHash)
	if !cached {
		parser := NewParser()
		defer parser.Close()
		tree, err = parser.Parse(ctx, source, cfg.Name)
		if err != nil {
			return false, 0, err
		}
		idx.Cache.Put(absPath, contentHash, tree)
	}

	entities := ExtractEntities(tree, idx.ProjectPath, relPath, cfg)

	for _, e := range entities {
		embedText := strings.TrimSpace(e.Signature + " " + e.Docstring)
		if embedText == "" || idx.Embedder == nil {
			continue
		}
		vec, embedErr := idx.Embedder.Encode(ctx, embedText)
		if embedErr != nil {
			slog.Warn("codeindex_embed_failed", "entity", e.QualifiedName, "error", embedErr)
			continue
		}
		if vec == nil {
			continue
		}
		if upsertErr := idx.Vectors.CodeEntities.Upsert(e.ID, vec, vectorstore.Payload{
			FilePath: e.FilePath,
		}); upsertErr != nil {
			slog.Warn("codeindex_vector_upsert_failed", "entity", e.QualifiedName, "error", upsertErr)
		}
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	err = idx.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := storage.UpsertCodeEntities(ctx, tx, idx.ProjectPath, relPath, entities); err != nil {
			return err
		}
		return storage.UpsertFileHash(ctx, tx, &storage.FileHash{
			ProjectPath: idx.ProjectPath,
			FilePath:    relPath,
			ContentHash: contentHash,
		})
	})
	if err != nil {
		return false, 0, err
	}

	return true, len(entities), nil
}

func hashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func filterByPatterns(files, patterns []string) []string {
	var out []string
	for _, f := range files {
		for _, p := range patterns {
			if ok, _ := filepath.Match(p, f); ok {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
