package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/output"
	"github.com/memctx/memctx/internal/projectctx"
)

func newIndexCmd() *cobra.Command {
	var patterns []string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Parse the project's source tree into code entities",
		Long: `Index parses the project tree with tree-sitter, extracting and
embedding code entities. Safe to rerun: unchanged files are skipped via
content hashing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, patterns)
		},
	}

	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "glob patterns to restrict indexing to (default: all supported languages)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, patterns []string) error {
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

	result, err := pc.CodeIndex.IndexProject(ctx, patterns)
	if err != nil {
		out.Errorf("index failed: %v", err)
		return err
	}

	out.Successf("scanned %d files, parsed %d, skipped %d, %d entities",
		result.FilesScanned, result.FilesParsed, result.FilesSkipped, result.EntityCount)
	return nil
}
