package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/output"
	"github.com/memctx/memctx/internal/projectctx"
	"github.com/memctx/memctx/pkg/version"
)

// staleAfter mirrors mcptools' health() threshold: more than a day since
// the last index run is reported stale.
const staleAfter = 24 * time.Hour

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report engine version, memory/rule/entity counts, and index freshness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd.Context(), cmd)
		},
	}
}

func runHealth(ctx context.Context, cmd *cobra.Command) error {
	root, cfg, err := resolveProject()
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())

	manager := projectctx.NewManager(cfg)
	defer manager.EvictAll()

	pc, err := manager.Get(ctx, root)
	if err != nil {
		return err
	}

	out.Statusf("", "version: %s", version.Version)
	out.Statusf("", "project: %s", root)

	memCounts, err := pc.Storage.CountMemoriesByCategory(ctx)
	if err != nil {
		return err
	}
	for category, count := range memCounts {
		out.Statusf("", "memories[%s]: %d", category, count)
	}

	ruleList, err := pc.Rules.ListRules(ctx, false)
	if err != nil {
		return err
	}
	out.Statusf("", "rules: %d", len(ruleList))

	entityCounts, err := pc.Storage.CountEntitiesByType(ctx, root)
	if err != nil {
		return err
	}
	for entityType, count := range entityCounts {
		out.Statusf("", "entities[%s]: %d", entityType, count)
	}

	lastIndexed, err := pc.Storage.MaxEntityIndexedAt(ctx, root)
	if err != nil {
		return err
	}
	if lastIndexed.IsZero() {
		out.Warning("never indexed")
	} else {
		stale := time.Since(lastIndexed) > staleAfter
		out.Statusf("", "last_indexed: %s (stale=%v)", lastIndexed.Format(time.RFC3339), stale)
	}

	stats := pc.CodeIndex.Cache.Stats()
	out.Statusf("", "parse_cache: hits=%d misses=%d size=%d", stats.Hits, stats.Misses, stats.Size)
	out.Statusf("", "active_contexts: %d", manager.Len())

	w := cfg.Search.HybridVectorWeight
	switch {
	case w == 0:
		out.Warning("hybrid_vector_weight=0.0: lexical only")
	case w == 1:
		out.Warning("hybrid_vector_weight=1.0: vector only")
	}
	if cfg.Embedding.Provider == "static" {
		out.Warningf("embedding.provider=%q: semantic search degraded to a deterministic stand-in", cfg.Embedding.Provider)
	}

	return nil
}
