package codeindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memctx/memctx/internal/embedder"
	memerrors "github.com/memctx/memctx/internal/errors"
	"github.com/memctx/memctx/internal/storage"
	"github.com/memctx/memctx/internal/vectorstore"
)

func newTestIndexer(t *testing.T, projectPath string) *Indexer {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(ctx, "", 5000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewIndexer(store, vectorstore.New(8), embedder.NewStaticEmbedder(8), projectPath, nil, 50, 2)
}

func TestIndexProject_ExtractsEntitiesAndSkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(goSource), 0o644))

	idx := newTestIndexer(t, dir)
	ctx := context.Background()

	result, err := idx.IndexProject(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesScanned)
	require.Equal(t, 1, result.FilesParsed)
	require.Greater(t, result.EntityCount, 0)

	second, err := idx.IndexProject(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, second.FilesSkipped)
	require.Equal(t, 0, second.FilesParsed)
}

func TestIndexProject_SkipsExcludedDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "ignored.go"), []byte(goSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(goSource), 0o644))

	idx := newTestIndexer(t, dir)
	result, err := idx.IndexProject(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesScanned)
}

func TestFindEntity_ResolvesByNameAfterIndexing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(goSource), 0o644))

	idx := newTestIndexer(t, dir)
	ctx := context.Background()
	_, err := idx.IndexProject(ctx, nil)
	require.NoError(t, err)

	entity, err := idx.FindEntity(ctx, dir, "Greet")
	require.NoError(t, err)
	require.Equal(t, "Greet", entity.Name)
}

func TestFindEntity_NotFoundReturnsNotFoundKind(t *testing.T) {
	dir := t.TempDir()
	idx := newTestIndexer(t, dir)
	_, err := idx.FindEntity(context.Background(), dir, "NoSuchSymbol")
	require.Error(t, err)
	require.Equal(t, memerrors.NotFound, memerrors.GetKind(err))
}

func TestAnalyzeImpact_ReturnsEntityAndLinkedMemories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(goSource), 0o644))

	idx := newTestIndexer(t, dir)
	ctx := context.Background()
	_, err := idx.IndexProject(ctx, nil)
	require.NoError(t, err)

	impact, err := idx.AnalyzeImpact(ctx, "Greet", dir)
	require.NoError(t, err)
	require.Equal(t, "Greet", impact.Entity.Name)
	require.Empty(t, impact.Refs)
}
