package memory

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	memerrors "github.com/memctx/memctx/internal/errors"
	"github.com/memctx/memctx/internal/hybrid"
	"github.com/memctx/memctx/internal/storage"
	"github.com/memctx/memctx/internal/vectorstore"
)

// RememberInput is the caller-supplied payload for Remember.
type RememberInput struct {
	Category  storage.Category
	Content   string
	Rationale string
	Tags      []string
	FilePath  string
	Context   map[string]string
}

// RememberResult is a recorded memory plus the code references auto-linked
// from backtick-delimited symbols in its content.
type RememberResult struct {
	Memory *storage.Memory
	Refs   []*storage.MemoryCodeRef
}

// Remember validates, tags, embeds, indexes, and auto-links a new memory,
// per the six-step procedure: validate, infer tags, resolve paths, write +
// embed + index, auto-link, commit.
func (m *Manager) Remember(ctx context.Context, in RememberInput) (*RememberResult, error) {
	const op = "memory.Remember"

	if !validCategory(in.Category) {
		return nil, memerrors.Validationf(op, "unknown category %q", in.Category)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, memerrors.Validationf(op, "content must not be empty")
	}
	if len(content) > maxContentLength {
		return nil, memerrors.Validationf(op, "content exceeds %d characters", maxContentLength)
	}

	tags := inferTags(in.Category, content, in.Tags)

	absPath, relPath := m.resolvePaths(in.FilePath)

	mem := &storage.Memory{
		Category:         in.Category,
		Content:          content,
		Rationale:        in.Rationale,
		Context:          in.Context,
		Tags:             tags,
		FilePathAbsolute: absPath,
		FilePathRelative: relPath,
	}

	var refs []*storage.MemoryCodeRef

	err := m.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := storage.InsertMemory(ctx, tx, mem); err != nil {
			return err
		}

		if vec, err := m.embed(ctx, content); err != nil {
			slog.Warn("memory_remember_embed_failed", "error", err)
		} else if vec != nil {
			if err := m.Vectors.Memories.Upsert(hybrid.FormatMemoryID(mem.ID), vec, toPayload(mem)); err != nil {
				slog.Warn("memory_remember_vector_upsert_failed", "error", err)
			} else {
				mem.VectorEmbeddingRef = hybrid.FormatMemoryID(mem.ID)
				if err := storage.UpdateMemory(ctx, tx, mem); err != nil {
					return err
				}
			}
		}

		m.TFIDF.Add(hybrid.FormatMemoryID(mem.ID), content, tags)

		linkedRefs, err := m.autoLink(ctx, tx, mem)
		if err != nil {
			return err
		}
		refs = linkedRefs

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &RememberResult{Memory: mem, Refs: refs}, nil
}

// autoLink extracts backtick-delimited symbols from a memory's content and
// links each one that resolves to a code entity in this project.
func (m *Manager) autoLink(ctx context.Context, tx *sql.Tx, mem *storage.Memory) ([]*storage.MemoryCodeRef, error) {
	if m.Resolver == nil {
		return nil, nil
	}

	symbols := extractBacktickSymbols(mem.Content)
	if len(symbols) == 0 {
		return nil, nil
	}

	var refs []*storage.MemoryCodeRef
	for _, sym := range symbols {
		entity, err := m.Resolver.FindEntity(ctx, m.ProjectPath, sym)
		if err != nil {
			if memerrors.GetKind(err) == memerrors.NotFound {
				continue
			}
			return nil, err
		}
		if entity == nil {
			continue
		}

		ref := &storage.MemoryCodeRef{
			MemoryID:     mem.ID,
			CodeEntityID: entity.ID,
			EntityType:   entity.EntityType,
			EntityName:   entity.Name,
			FilePath:     entity.FilePath,
			LineNumber:   entity.LineStart,
			Relationship: storage.RelAbout,
		}
		if err := storage.InsertMemoryCodeRef(ctx, tx, ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// embed runs C4 if configured; a nil Embedder or a graceful-degradation
// (nil, nil) result both mean "no vector", never an error for the caller.
func (m *Manager) embed(ctx context.Context, text string) ([]float32, error) {
	if m.Embedder == nil {
		return nil, nil
	}
	return m.Embedder.Encode(ctx, text)
}

func toPayload(mem *storage.Memory) vectorstore.Payload {
	return vectorstore.Payload{
		Category:    string(mem.Category),
		Tags:        mem.Tags,
		FilePath:    mem.FilePathRelative,
		Worked:      mem.Worked,
		IsPermanent: mem.IsPermanent,
	}
}

// resolvePaths computes the absolute and project-relative form of a
// caller-supplied file path. A path outside the project root is kept
// absolute-only; ProjectPath empty disables relativization entirely.
func (m *Manager) resolvePaths(path string) (abs, rel string) {
	if path == "" {
		return "", ""
	}
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else if m.ProjectPath != "" {
		abs = filepath.Clean(filepath.Join(m.ProjectPath, path))
	} else {
		return "", filepath.Clean(path)
	}

	if m.ProjectPath == "" {
		return abs, ""
	}
	if r, err := filepath.Rel(m.ProjectPath, abs); err == nil && !strings.HasPrefix(r, "..") {
		rel = r
	}
	return abs, rel
}

// Recall runs the full §4.5 hybrid pipeline (decay + diversity + pagination).
func (m *Manager) Recall(ctx context.Context, query string, f hybrid.Filter) (*hybrid.Bundle, error) {
	return m.searcher().Recall(ctx, query, f)
}

// Search is the flat variant: no decay, no diversity cap.
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]hybrid.Result, error) {
	return m.searcher().Search(ctx, query, limit)
}

// RecordOutcome stamps a memory's outcome/worked fields, bumps updated_at,
// and re-upserts its vector payload so filters see the new worked value.
func (m *Manager) RecordOutcome(ctx context.Context, id int64, outcome string, worked bool) (*storage.Memory, error) {
	var mem *storage.Memory

	err := m.Store.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := m.Store.GetMemory(ctx, id)
		if err != nil {
			return err
		}
		existing.Outcome = outcome
		existing.Worked = boolPtr(worked)
		if err := storage.UpdateMemory(ctx, tx, existing); err != nil {
			return err
		}
		mem = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	if mem.HasEmbedding() {
		if vec, err := m.embed(ctx, mem.Content); err == nil && vec != nil {
			if err := m.Vectors.Memories.Upsert(mem.VectorEmbeddingRef, vec, toPayload(mem)); err != nil {
				slog.Warn("memory_record_outcome_vector_upsert_failed", "error", err)
			}
		}
	}

	return mem, nil
}

// Pin sets the pinned flag; pinning also sets is_permanent (per spec),
// unpinning leaves is_permanent untouched since a memory may be made
// permanent independently of being pinned.
func (m *Manager) Pin(ctx context.Context, id int64, pinned bool) (*storage.Memory, error) {
	return m.setFlag(ctx, id, func(mem *storage.Memory) {
		mem.Pinned = pinned
		if pinned {
			mem.IsPermanent = true
		}
	})
}

// Archive sets or clears the archived flag.
func (m *Manager) Archive(ctx context.Context, id int64, archived bool) (*storage.Memory, error) {
	return m.setFlag(ctx, id, func(mem *storage.Memory) {
		mem.Archived = archived
	})
}

func (m *Manager) setFlag(ctx context.Context, id int64, mutate func(*storage.Memory)) (*storage.Memory, error) {
	var mem *storage.Memory
	err := m.Store.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := m.Store.GetMemory(ctx, id)
		if err != nil {
			return err
		}
		mutate(existing)
		if err := storage.UpdateMemory(ctx, tx, existing); err != nil {
			return err
		}
		mem = existing
		return nil
	})
	return mem, err
}

// PruneResult reports what Prune did or would do.
type PruneResult struct {
	Count   int
	Samples []*storage.Memory
	DryRun  bool
}

// Prune deletes (or, if dryRun, reports) memories matching the prune
// predicate: category in categories, created before cutoff, never pinned,
// never permanent, no recorded outcome, not archived.
func (m *Manager) Prune(ctx context.Context, olderThanDays int, categories []storage.Category, dryRun bool) (*PruneResult, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	candidates, err := m.Store.ListMemories(ctx, storage.MemoryFilter{
		Categories:      categories,
		IncludeArchived: true,
		Until:           &cutoff,
	})
	if err != nil {
		return nil, err
	}

	var matched []*storage.Memory
	for _, mem := range candidates {
		if mem.IsPermanent || mem.Pinned || mem.Archived {
			continue
		}
		if mem.Outcome != "" {
			continue
		}
		if !mem.CreatedAt.Before(cutoff) {
			continue
		}
		matched = append(matched, mem)
	}

	result := &PruneResult{Count: len(matched), DryRun: dryRun}
	for i, mem := range matched {
		if i >= 5 {
			break
		}
		result.Samples = append(result.Samples, mem)
	}

	if dryRun {
		return result, nil
	}

	for _, mem := range matched {
		if err := m.Store.WithTx(ctx, func(tx *sql.Tx) error {
			return storage.DeleteMemory(ctx, tx, mem.ID)
		}); err != nil {
			return nil, err
		}
		m.TFIDF.Delete(hybrid.FormatMemoryID(mem.ID))
		if mem.HasEmbedding() {
			m.Vectors.Memories.Delete(mem.VectorEmbeddingRef)
		}
	}

	return result, nil
}

// RebuildIndex forces a full C3 reload from C1 and stamps index_built_at.
func (m *Manager) RebuildIndex(ctx context.Context) error {
	memories, err := m.Store.ListMemories(ctx, storage.MemoryFilter{IncludeArchived: true})
	if err != nil {
		return err
	}

	m.TFIDF.Clear()
	for _, mem := range memories {
		m.TFIDF.Add(hybrid.FormatMemoryID(mem.ID), mem.Content, mem.Tags)
	}

	m.indexBuiltAt = time.Now()
	return nil
}

// IndexBuiltAt reports when RebuildIndex last ran, the freshness marker C9
// compares against storage's max(updated_at) to decide whether to rebuild.
func (m *Manager) IndexBuiltAt() time.Time {
	return m.indexBuiltAt
}
