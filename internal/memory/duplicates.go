package memory

import (
	"context"
	"database/sql"
	"sort"

	"github.com/memctx/memctx/internal/hybrid"
	"github.com/memctx/memctx/internal/storage"
)

// DuplicateGroup is a set of memories that collapsed to the same
// (category, normalized_content, file_path) key.
type DuplicateGroup struct {
	Keeper   *storage.Memory
	Absorbed []*storage.Memory
}

// CleanupResult reports what CleanupDuplicates did or would do.
type CleanupResult struct {
	Groups []DuplicateGroup
	DryRun bool
}

type dupKey struct {
	category string
	content  string
	filePath string
}

// CleanupDuplicates groups memories by (category, normalized content,
// file_path); within each group of size > 1 it keeps the newest, absorbs
// any outcome the duplicates recorded into the keeper, and deletes the
// rest. dryRun reports the groups without mutating storage.
func (m *Manager) CleanupDuplicates(ctx context.Context, dryRun bool) (*CleanupResult, error) {
	all, err := m.Store.ListMemories(ctx, storage.MemoryFilter{IncludeArchived: true})
	if err != nil {
		return nil, err
	}

	grouped := make(map[dupKey][]*storage.Memory)
	for _, mem := range all {
		key := dupKey{
			category: string(mem.Category),
			content:  normalizeContent(mem.Content),
			filePath: mem.FilePathRelative,
		}
		grouped[key] = append(grouped[key], mem)
	}

	var result CleanupResult
	result.DryRun = dryRun

	for _, members := range grouped {
		if len(members) < 2 {
			continue
		}

		sort.Slice(members, func(i, j int) bool {
			return members[i].CreatedAt.After(members[j].CreatedAt)
		})
		keeper := members[0]
		absorbed := members[1:]

		if keeper.Outcome == "" {
			for _, other := range absorbed {
				if other.Outcome != "" {
					keeper.Outcome = other.Outcome
					keeper.Worked = other.Worked
					break
				}
			}
		}

		result.Groups = append(result.Groups, DuplicateGroup{Keeper: keeper, Absorbed: absorbed})

		if dryRun {
			continue
		}

		if err := m.Store.WithTx(ctx, func(tx *sql.Tx) error {
			return storage.UpdateMemory(ctx, tx, keeper)
		}); err != nil {
			return nil, err
		}

		for _, other := range absorbed {
			if err := m.Store.WithTx(ctx, func(tx *sql.Tx) error {
				return storage.DeleteMemory(ctx, tx, other.ID)
			}); err != nil {
				return nil, err
			}
			m.TFIDF.Delete(hybrid.FormatMemoryID(other.ID))
			if other.HasEmbedding() {
				m.Vectors.Memories.Delete(other.VectorEmbeddingRef)
			}
		}
	}

	return &result, nil
}
