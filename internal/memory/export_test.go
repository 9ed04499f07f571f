package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memctx/memctx/internal/config"
	"github.com/memctx/memctx/internal/storage"
	"github.com/memctx/memctx/internal/tfidf"
	"github.com/memctx/memctx/internal/vectorstore"
)

func TestExportImport_RoundTripsMemoriesAndRules(t *testing.T) {
	src := newTestManager(t)
	ctx := context.Background()

	_, err := src.Remember(ctx, RememberInput{
		Category: storage.CategoryDecision,
		Content:  "Use PostgreSQL for the database layer",
		Tags:     []string{"database"},
	})
	require.NoError(t, err)

	data, err := src.Export(ctx, false)
	require.NoError(t, err)
	require.Len(t, data.Memories, 1)

	dstStore, err := storage.Open(ctx, "", 5000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dstStore.Close() })
	dst := NewManager(dstStore, tfidf.New(), vectorstore.New(4), nil, nil, "/other-project", config.NewConfig().Search)

	result, err := dst.Import(ctx, data, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.MemoriesImported)

	imported, err := dst.Store.ListMemories(ctx, storage.MemoryFilter{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, imported, 1)
	require.Equal(t, data.Memories[0].Category, imported[0].Category)
	require.Equal(t, data.Memories[0].Content, imported[0].Content)
	require.ElementsMatch(t, data.Memories[0].Tags, imported[0].Tags)
}

func TestImport_MergeFalseClearsExistingData(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Remember(ctx, RememberInput{Category: storage.CategoryDecision, Content: "will be wiped"})
	require.NoError(t, err)

	data := &ExportData{Memories: []ExportedMemory{
		{Category: storage.CategoryLearning, Content: "replacement memory"},
	}}

	_, err = m.Import(ctx, data, false)
	require.NoError(t, err)

	all, err := m.Store.ListMemories(ctx, storage.MemoryFilter{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "replacement memory", all[0].Content)
}

func TestImport_RejectsNilData(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Import(context.Background(), nil, true)
	require.Error(t, err)
}
