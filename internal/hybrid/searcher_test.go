package hybrid

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memctx/memctx/internal/config"
	"github.com/memctx/memctx/internal/storage"
	"github.com/memctx/memctx/internal/tfidf"
	"github.com/memctx/memctx/internal/vectorstore"
)

func newTestSearcher(t *testing.T) (*Searcher, *storage.Store, *tfidf.Index) {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(ctx, "", 5000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	idx := tfidf.New()
	vectors := vectorstore.New(4)

	cfg := config.NewConfig().Search

	return &Searcher{
		Store:   store,
		TFIDF:   idx,
		Vectors: vectors,
		Config:  cfg,
	}, store, idx
}

func insertMemory(t *testing.T, store *storage.Store, idx *tfidf.Index, content string, tags []string, createdAt time.Time) *storage.Memory {
	t.Helper()
	ctx := context.Background()

	m := &storage.Memory{
		Category:  storage.CategoryPattern,
		Content:   content,
		Tags:      tags,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		return storage.InsertMemory(ctx, tx, m)
	})
	require.NoError(t, err)

	idx.Add(formatMemoryID(m.ID), content, tags)
	return m
}

func TestRecall_RanksByLexicalScore(t *testing.T) {
	s, store, idx := newTestSearcher(t)
	defer store.Close()

	a := insertMemory(t, store, idx, "switched to connection pooling for the database driver", nil, time.Now())
	insertMemory(t, store, idx, "renamed the onboarding button label", nil, time.Now())

	bundle, err := s.Recall(context.Background(), "connection pooling database", Filter{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.Results)
	require.Equal(t, a.ID, bundle.Results[0].Memory.ID)
}

func TestRecall_AppliesCategoryFilter(t *testing.T) {
	s, store, idx := newTestSearcher(t)
	defer store.Close()

	now := time.Now()
	insertMemory(t, store, idx, "retry with exponential backoff on timeouts", nil, now)

	bundle, err := s.Recall(context.Background(), "retry backoff timeouts", Filter{
		Categories: []storage.Category{storage.CategoryWarning},
		Limit:      10,
	})
	require.NoError(t, err)
	require.Empty(t, bundle.Results)
}

func TestRecall_ExcludesArchivedByDefault(t *testing.T) {
	s, store, idx := newTestSearcher(t)
	defer store.Close()
	ctx := context.Background()

	m := insertMemory(t, store, idx, "feature flag rollout strategy for the new checkout flow", nil, time.Now())
	m.Archived = true
	require.NoError(t, store.WithTx(ctx, func(tx *sql.Tx) error {
		return storage.UpdateMemory(ctx, tx, m)
	}))

	bundle, err := s.Recall(ctx, "feature flag rollout checkout", Filter{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, bundle.Results)
}

func TestRecall_OldMemoryDecaysBelowPinnedOne(t *testing.T) {
	s, store, idx := newTestSearcher(t)
	defer store.Close()

	old := time.Now().AddDate(0, 0, -120)
	stale := insertMemory(t, store, idx, "legacy caching strategy for the gateway layer", nil, old)

	pinned := insertMemory(t, store, idx, "legacy caching strategy for the gateway layer exactly", nil, old)
	pinned.Pinned = true
	pinned.IsPermanent = true
	require.NoError(t, store.WithTx(context.Background(), func(tx *sql.Tx) error {
		return storage.UpdateMemory(context.Background(), tx, pinned)
	}))

	bundle, err := s.Recall(context.Background(), "legacy caching strategy gateway layer", Filter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, bundle.Results, 2)

	var staleScore, pinnedScore float64
	for _, r := range bundle.Results {
		if r.Memory.ID == stale.ID {
			staleScore = r.Score
		}
		if r.Memory.ID == pinned.ID {
			pinnedScore = r.Score
		}
	}
	require.Greater(t, pinnedScore, staleScore)
}

func TestRecall_PaginatesWithHasMore(t *testing.T) {
	s, store, idx := newTestSearcher(t)
	defer store.Close()

	for i := 0; i < 5; i++ {
		insertMemory(t, store, idx, "rate limiting middleware configuration notes", nil, time.Now())
	}

	bundle, err := s.Recall(context.Background(), "rate limiting middleware", Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, bundle.Results, 2)
	require.Equal(t, 5, bundle.Total)
	require.True(t, bundle.HasMore)
}

func TestSearch_FlatHasNoDecayOrDiversityCap(t *testing.T) {
	s, store, idx := newTestSearcher(t)
	defer store.Close()

	for i := 0; i < 4; i++ {
		m := insertMemory(t, store, idx, "shared worker pool saturation under load", nil, time.Now())
		m.FilePathRelative = "internal/worker/pool.go"
		require.NoError(t, store.WithTx(context.Background(), func(tx *sql.Tx) error {
			return storage.UpdateMemory(context.Background(), tx, m)
		}))
	}

	results, err := s.Search(context.Background(), "shared worker pool saturation", 10)
	require.NoError(t, err)
	require.Len(t, results, 4)
}

func TestRecall_FallsBackToFTSWhenCorpusExceedsMax(t *testing.T) {
	s, store, idx := newTestSearcher(t)
	defer store.Close()

	insertMemory(t, store, idx, "circuit breaker trips after five consecutive failures", nil, time.Now())
	insertMemory(t, store, idx, "totally unrelated note about the release calendar", nil, time.Now())

	s.Config.TFIDFMaxCorpus = 1 // idx.Size() == 2 > 1, forces Lane F

	bundle, err := s.Recall(context.Background(), "circuit breaker failures", Filter{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.Results)
}

func TestRecall_EmptyQueryAcrossEmptyIndexReturnsEmptyBundle(t *testing.T) {
	s, _, _ := newTestSearcher(t)
	bundle, err := s.Recall(context.Background(), "nothing indexed yet", Filter{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, bundle.Results)
	require.False(t, bundle.HasMore)
}
