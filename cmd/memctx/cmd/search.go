package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/output"
	"github.com/memctx/memctx/internal/projectctx"
)

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Flat keyword search over recorded memories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, limit int) error {
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

	results, err := pc.Memory.Search(ctx, query, limit)
	if err != nil {
		out.Errorf("search failed: %v", err)
		return err
	}

	for _, r := range results {
		out.Status("", fmt.Sprintf("[#%d %s score=%.3f] %s", r.Memory.ID, r.Memory.Category, r.Score, r.Memory.Content))
	}
	out.Statusf("", "%d results", len(results))
	return nil
}
