package projectctx

import "context"

// EnsureMemoryFresh compares the memory manager's in-memory index_built_at
// against the store's max(updated_at) over memories, rebuilding the TF-IDF
// index if an out-of-band writer (another process sharing the same
// project database) has written since. Callers invoke this before recall
// so at worst one call sees a stale result before the rebuild.
func (pc *ProjectContext) EnsureMemoryFresh(ctx context.Context) error {
	newest, err := pc.Storage.MaxMemoryUpdatedAt(ctx)
	if err != nil {
		return err
	}
	if newest.After(pc.Memory.IndexBuiltAt()) {
		return pc.Memory.RebuildIndex(ctx)
	}
	return nil
}

// EnsureRulesFresh is EnsureMemoryFresh's equivalent for the rules trigger
// index, compared against max(created_at) over rules. Callers invoke this
// before check_rules.
func (pc *ProjectContext) EnsureRulesFresh(ctx context.Context) error {
	newest, err := pc.Storage.MaxRuleCreatedAt(ctx)
	if err != nil {
		return err
	}
	if newest.After(pc.Rules.IndexBuiltAt()) {
		return pc.Rules.Reload(ctx)
	}
	return nil
}
