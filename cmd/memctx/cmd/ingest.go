package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/ingest"
	"github.com/memctx/memctx/internal/memory"
	"github.com/memctx/memctx/internal/output"
	"github.com/memctx/memctx/internal/projectctx"
	"github.com/memctx/memctx/internal/storage"
)

func newIngestCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "ingest <url>",
		Short: "Fetch an external document and remember each chunk",
		Long: `Ingest fetches a document over HTTP, honoring the project's
max_content_size/max_chunks/allowed_url_schemes/ingest_timeout guards, and
records each resulting chunk as a learning memory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args[0], category)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "learning", "category to record each chunk under")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, url, category string) error {
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

	fetcher := ingest.New(cfg.Ingest)
	defer fetcher.Close()

	doc, err := fetcher.Fetch(ctx, url)
	if err != nil {
		out.Errorf("ingest failed: %v", err)
		return err
	}
	if doc.Truncated {
		out.Warningf("document truncated at max_content_size=%d", cfg.Ingest.MaxContentSize)
	}

	remembered := 0
	for _, c := range doc.Chunks {
		content := fmt.Sprintf("from %s: %s", url, c.Content)
		if _, err := pc.Memory.Remember(ctx, memory.RememberInput{
			Category: storage.Category(category),
			Content:  content,
			Tags:     []string{"ingested"},
		}); err != nil {
			out.Warningf("chunk remember failed: %v", err)
			continue
		}
		remembered++
	}

	out.Successf("ingested %s: %d/%d chunks remembered", url, remembered, len(doc.Chunks))
	return nil
}
