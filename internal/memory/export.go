package memory

import (
	"context"
	"database/sql"
	"encoding/base64"

	memerrors "github.com/memctx/memctx/internal/errors"
	"github.com/memctx/memctx/internal/hybrid"
	"github.com/memctx/memctx/internal/storage"
)

// ExportedMemory is one memory in the neutral export payload. Embeddings
// transit as base64-encoded float32 bytes when IncludeEmbeddings is set.
type ExportedMemory struct {
	Category         storage.Category  `json:"category"`
	Content          string            `json:"content"`
	Rationale        string            `json:"rationale,omitempty"`
	Context          map[string]string `json:"context,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	FilePathRelative string            `json:"file_path_relative,omitempty"`
	IsPermanent      bool              `json:"is_permanent"`
	Pinned           bool              `json:"pinned"`
	Archived         bool              `json:"archived"`
	Outcome          string            `json:"outcome,omitempty"`
	Worked           *bool             `json:"worked,omitempty"`
	Embedding        string            `json:"embedding,omitempty"`
}

// ExportedRule is one rule in the neutral export payload.
type ExportedRule struct {
	Trigger         string   `json:"trigger"`
	TriggerKeywords []string `json:"trigger_keywords,omitempty"`
	MustDo          []string `json:"must_do,omitempty"`
	MustNot         []string `json:"must_not,omitempty"`
	AskFirst        []string `json:"ask_first,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Priority        int      `json:"priority"`
	Enabled         bool     `json:"enabled"`
}

// ExportData is the full neutral export/import payload.
type ExportData struct {
	Memories []ExportedMemory `json:"memories"`
	Rules    []ExportedRule   `json:"rules"`
}

// Export streams every memory and rule in the project as a neutral,
// storage-independent structure. includeEmbeddings attaches each memory's
// live vector (if any) as base64-encoded float32 bytes.
func (m *Manager) Export(ctx context.Context, includeEmbeddings bool) (*ExportData, error) {
	memories, err := m.Store.ListMemories(ctx, storage.MemoryFilter{IncludeArchived: true})
	if err != nil {
		return nil, err
	}
	rules, err := m.Store.ListRules(ctx, false)
	if err != nil {
		return nil, err
	}

	data := &ExportData{
		Memories: make([]ExportedMemory, 0, len(memories)),
		Rules:    make([]ExportedRule, 0, len(rules)),
	}

	for _, mem := range memories {
		em := ExportedMemory{
			Category:         mem.Category,
			Content:          mem.Content,
			Rationale:        mem.Rationale,
			Context:          mem.Context,
			Tags:             mem.Tags,
			FilePathRelative: mem.FilePathRelative,
			IsPermanent:      mem.IsPermanent,
			Pinned:           mem.Pinned,
			Archived:         mem.Archived,
			Outcome:          mem.Outcome,
			Worked:           mem.Worked,
		}
		if includeEmbeddings && mem.HasEmbedding() {
			if vec, err := m.Vectors.Memories.VectorFor(mem.VectorEmbeddingRef); err == nil {
				em.Embedding = base64.StdEncoding.EncodeToString(float32sToBytes(vec))
			}
		}
		data.Memories = append(data.Memories, em)
	}

	for _, r := range rules {
		data.Rules = append(data.Rules, ExportedRule{
			Trigger:         r.Trigger,
			TriggerKeywords: r.TriggerKeywords,
			MustDo:          r.MustDo,
			MustNot:         r.MustNot,
			AskFirst:        r.AskFirst,
			Warnings:        r.Warnings,
			Priority:        r.Priority,
			Enabled:         r.Enabled,
		})
	}

	return data, nil
}

// ImportResult reports how many rows an import created.
type ImportResult struct {
	MemoriesImported int
	RulesImported    int
}

// Import loads an export payload. merge=true appends to existing data;
// merge=false clears every memory and rule in the project first.
func (m *Manager) Import(ctx context.Context, data *ExportData, merge bool) (*ImportResult, error) {
	const op = "memory.Import"
	if data == nil {
		return nil, memerrors.Validationf(op, "import data must not be nil")
	}

	if !merge {
		if err := m.clearAll(ctx); err != nil {
			return nil, err
		}
	}

	result := &ImportResult{}

	for _, em := range data.Memories {
		mem := &storage.Memory{
			Category:         em.Category,
			Content:          em.Content,
			Rationale:        em.Rationale,
			Context:          em.Context,
			Tags:             em.Tags,
			FilePathRelative: em.FilePathRelative,
			IsPermanent:      em.IsPermanent,
			Pinned:           em.Pinned,
			Archived:         em.Archived,
			Outcome:          em.Outcome,
			Worked:           em.Worked,
		}

		if err := m.Store.WithTx(ctx, func(tx *sql.Tx) error {
			return storage.InsertMemory(ctx, tx, mem)
		}); err != nil {
			return nil, err
		}
		m.TFIDF.Add(hybrid.FormatMemoryID(mem.ID), mem.Content, mem.Tags)

		if em.Embedding != "" {
			if raw, err := base64.StdEncoding.DecodeString(em.Embedding); err == nil {
				vec := bytesToFloat32s(raw)
				if len(vec) == m.Vectors.Memories.Dim() {
					if err := m.Vectors.Memories.Upsert(hybrid.FormatMemoryID(mem.ID), vec, toPayload(mem)); err == nil {
						mem.VectorEmbeddingRef = hybrid.FormatMemoryID(mem.ID)
						_ = m.Store.WithTx(ctx, func(tx *sql.Tx) error {
							return storage.UpdateMemory(ctx, tx, mem)
						})
					}
				}
			}
		}

		result.MemoriesImported++
	}

	for _, er := range data.Rules {
		rule := &storage.Rule{
			Trigger:         er.Trigger,
			TriggerKeywords: er.TriggerKeywords,
			MustDo:          er.MustDo,
			MustNot:         er.MustNot,
			AskFirst:        er.AskFirst,
			Warnings:        er.Warnings,
			Priority:        er.Priority,
			Enabled:         er.Enabled,
		}
		if err := m.Store.WithTx(ctx, func(tx *sql.Tx) error {
			return storage.InsertRule(ctx, tx, rule)
		}); err != nil {
			return nil, err
		}
		result.RulesImported++
	}

	return result, nil
}

func (m *Manager) clearAll(ctx context.Context) error {
	memories, err := m.Store.ListMemories(ctx, storage.MemoryFilter{IncludeArchived: true})
	if err != nil {
		return err
	}
	for _, mem := range memories {
		if err := m.Store.WithTx(ctx, func(tx *sql.Tx) error {
			return storage.DeleteMemory(ctx, tx, mem.ID)
		}); err != nil {
			return err
		}
		m.TFIDF.Delete(hybrid.FormatMemoryID(mem.ID))
		if mem.HasEmbedding() {
			m.Vectors.Memories.Delete(mem.VectorEmbeddingRef)
		}
	}
	if err := m.Store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM rules`)
		return err
	}); err != nil {
		return err
	}
	m.TFIDF.Clear()
	return nil
}
