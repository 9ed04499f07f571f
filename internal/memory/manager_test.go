package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memctx/memctx/internal/config"
	"github.com/memctx/memctx/internal/hybrid"
	"github.com/memctx/memctx/internal/storage"
	"github.com/memctx/memctx/internal/tfidf"
	"github.com/memctx/memctx/internal/vectorstore"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(ctx, "", 5000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	idx := tfidf.New()
	vectors := vectorstore.New(4)

	return NewManager(store, idx, vectors, nil, nil, "/project", config.NewConfig().Search)
}

func TestRemember_ValidatesCategory(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Remember(context.Background(), RememberInput{Category: "nonsense", Content: "hello"})
	require.Error(t, err)
}

func TestRemember_RejectsEmptyContent(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Remember(context.Background(), RememberInput{Category: storage.CategoryDecision, Content: "   "})
	require.Error(t, err)
}

func TestRemember_InfersTagsAndPersists(t *testing.T) {
	m := newTestManager(t)
	res, err := m.Remember(context.Background(), RememberInput{
		Category: storage.CategoryLearning,
		Content:  "Fixed the login bug by adding retry",
	})
	require.NoError(t, err)
	require.Contains(t, res.Memory.Tags, "bugfix")
	require.Equal(t, 1, m.TFIDF.Size())
}

func TestRemember_UnionsCallerTagsWithoutDuplication(t *testing.T) {
	m := newTestManager(t)
	res, err := m.Remember(context.Background(), RememberInput{
		Category: storage.CategoryDecision,
		Content:  "Use PostgreSQL for the database layer",
		Tags:     []string{"database"},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"database"}, res.Memory.Tags)
}

func TestRemember_ResolvesRelativeFilePath(t *testing.T) {
	m := newTestManager(t)
	res, err := m.Remember(context.Background(), RememberInput{
		Category: storage.CategoryPattern,
		Content:  "Retry wrapper for flaky network calls",
		FilePath: "internal/net/retry.go",
	})
	require.NoError(t, err)
	require.Equal(t, "internal/net/retry.go", res.Memory.FilePathRelative)
	require.Equal(t, "/project/internal/net/retry.go", res.Memory.FilePathAbsolute)
}

func TestRecall_FindsRememberedMemory(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Remember(context.Background(), RememberInput{
		Category: storage.CategoryDecision,
		Content:  "Use PostgreSQL for the database layer",
		Tags:     []string{"database"},
	})
	require.NoError(t, err)

	bundle, err := m.Recall(context.Background(), "PostgreSQL", hybrid.Filter{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.Results)
}

func TestRecordOutcome_UpdatesFields(t *testing.T) {
	m := newTestManager(t)
	res, err := m.Remember(context.Background(), RememberInput{
		Category: storage.CategoryDecision,
		Content:  "Switched to connection pooling",
	})
	require.NoError(t, err)

	updated, err := m.RecordOutcome(context.Background(), res.Memory.ID, "shipped", true)
	require.NoError(t, err)
	require.Equal(t, "shipped", updated.Outcome)
	require.NotNil(t, updated.Worked)
	require.True(t, *updated.Worked)
}

func TestPin_SetsIsPermanent(t *testing.T) {
	m := newTestManager(t)
	res, err := m.Remember(context.Background(), RememberInput{Category: storage.CategoryDecision, Content: "pin me"})
	require.NoError(t, err)

	pinned, err := m.Pin(context.Background(), res.Memory.ID, true)
	require.NoError(t, err)
	require.True(t, pinned.Pinned)
	require.True(t, pinned.IsPermanent)
}

func TestArchive_ExcludesFromDefaultListing(t *testing.T) {
	m := newTestManager(t)
	res, err := m.Remember(context.Background(), RememberInput{Category: storage.CategoryDecision, Content: "archive me please"})
	require.NoError(t, err)

	_, err = m.Archive(context.Background(), res.Memory.ID, true)
	require.NoError(t, err)

	bundle, err := m.Recall(context.Background(), "archive me please", hybrid.Filter{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, bundle.Results)
}

func TestPrune_DryRunDoesNotDelete(t *testing.T) {
	m := newTestManager(t)
	res, err := m.Remember(context.Background(), RememberInput{Category: storage.CategoryWarning, Content: "old warning about flaky test"})
	require.NoError(t, err)
	res.Memory.CreatedAt = res.Memory.CreatedAt.AddDate(0, 0, -100)

	result, err := m.Prune(context.Background(), 30, []storage.Category{storage.CategoryWarning}, true)
	require.NoError(t, err)
	require.True(t, result.DryRun)

	_, err = m.Store.GetMemory(context.Background(), res.Memory.ID)
	require.NoError(t, err)
}

func TestPrune_SkipsPinnedAndOutcomeMemories(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	pinned, err := m.Remember(ctx, RememberInput{Category: storage.CategoryWarning, Content: "pinned warning"})
	require.NoError(t, err)
	_, err = m.Pin(ctx, pinned.Memory.ID, true)
	require.NoError(t, err)

	withOutcome, err := m.Remember(ctx, RememberInput{Category: storage.CategoryWarning, Content: "resolved warning"})
	require.NoError(t, err)
	_, err = m.RecordOutcome(ctx, withOutcome.Memory.ID, "fixed", true)
	require.NoError(t, err)

	result, err := m.Prune(ctx, -1, []storage.Category{storage.CategoryWarning}, true)
	require.NoError(t, err)
	require.Equal(t, 0, result.Count)
}

func TestRebuildIndex_ReloadsFromStorage(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Remember(context.Background(), RememberInput{Category: storage.CategoryDecision, Content: "one memory here"})
	require.NoError(t, err)

	m.TFIDF.Clear()
	require.Equal(t, 0, m.TFIDF.Size())

	require.NoError(t, m.RebuildIndex(context.Background()))
	require.Equal(t, 1, m.TFIDF.Size())
	require.False(t, m.IndexBuiltAt().IsZero())
}
