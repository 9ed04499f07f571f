package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/memory"
	"github.com/memctx/memctx/internal/output"
	"github.com/memctx/memctx/internal/projectctx"
	"github.com/memctx/memctx/internal/storage"
)

func newRememberCmd() *cobra.Command {
	var category, rationale, filePath string
	var tags []string

	cmd := &cobra.Command{
		Use:   "remember <content>",
		Short: "Record a decision, pattern, warning, or learning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemember(cmd.Context(), cmd, args[0], category, rationale, filePath, tags)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "decision", "decision, pattern, warning, or learning")
	cmd.Flags().StringVarP(&rationale, "rationale", "r", "", "why this is true")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "file this memory concerns")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "tags, repeatable")

	return cmd
}

func runRemember(ctx context.Context, cmd *cobra.Command, content, category, rationale, filePath string, tags []string) error {
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

	result, err := pc.Memory.Remember(ctx, memory.RememberInput{
		Category:  storage.Category(category),
		Content:   content,
		Rationale: rationale,
		Tags:      tags,
		FilePath:  filePath,
	})
	if err != nil {
		out.Errorf("remember failed: %v", err)
		return err
	}

	out.Successf("remembered #%d", result.Memory.ID)
	if len(result.Refs) > 0 {
		out.Statusf("", "linked to %d code entit(y/ies)", len(result.Refs))
	}
	return nil
}
