package projectctx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memctx/memctx/internal/storage"
)

func TestEnsureMemoryFresh_RebuildsWhenStoreHasOutOfBandWrite(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(testConfig())
	ctx := context.Background()

	pc, err := mgr.Get(ctx, dir)
	require.NoError(t, err)
	builtAt := pc.Memory.IndexBuiltAt()

	// Simulate another process writing directly to the shared database,
	// bypassing this process's in-memory TF-IDF index.
	err = pc.Storage.WithTx(ctx, func(tx *sql.Tx) error {
		return storage.InsertMemory(ctx, tx, &storage.Memory{
			Category: storage.CategoryLearning,
			Content:  "written out of band",
		})
	})
	require.NoError(t, err)

	require.NoError(t, pc.EnsureMemoryFresh(ctx))
	require.True(t, pc.Memory.IndexBuiltAt().After(builtAt))
}

func TestEnsureMemoryFresh_NoOpWhenNothingChanged(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(testConfig())
	ctx := context.Background()

	pc, err := mgr.Get(ctx, dir)
	require.NoError(t, err)
	builtAt := pc.Memory.IndexBuiltAt()

	require.NoError(t, pc.EnsureMemoryFresh(ctx))
	require.Equal(t, builtAt, pc.Memory.IndexBuiltAt())
}

func TestEnsureRulesFresh_RebuildsWhenStoreHasOutOfBandWrite(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(testConfig())
	ctx := context.Background()

	pc, err := mgr.Get(ctx, dir)
	require.NoError(t, err)
	builtAt := pc.Rules.IndexBuiltAt()

	err = pc.Storage.WithTx(ctx, func(tx *sql.Tx) error {
		return storage.InsertRule(ctx, tx, &storage.Rule{Trigger: "out of band rule"})
	})
	require.NoError(t, err)

	require.NoError(t, pc.EnsureRulesFresh(ctx))
	require.True(t, pc.Rules.IndexBuiltAt().After(builtAt))
}
