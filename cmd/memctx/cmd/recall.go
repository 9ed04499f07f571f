package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/hybrid"
	"github.com/memctx/memctx/internal/output"
	"github.com/memctx/memctx/internal/projectctx"
)

func newRecallCmd() *cobra.Command {
	var limit int
	var tags []string

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Search memories with decay, diversity, and tag filters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecall(cmd.Context(), cmd, args[0], limit, tags)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "restrict to memories with any of these tags")

	return cmd
}

func runRecall(ctx context.Context, cmd *cobra.Command, query string, limit int, tags []string) error {
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
	if err := pc.EnsureMemoryFresh(ctx); err != nil {
		return err
	}

	bundle, err := pc.Memory.Recall(ctx, query, hybrid.Filter{TagsAny: tags, Limit: limit})
	if err != nil {
		out.Errorf("recall failed: %v", err)
		return err
	}

	for _, r := range bundle.Results {
		out.Status("", fmt.Sprintf("[#%d %s score=%.3f] %s", r.Memory.ID, r.Memory.Category, r.Score, r.Memory.Content))
	}
	out.Statusf("", "%d of %d total", len(bundle.Results), bundle.Total)
	return nil
}
