package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/mcptools"
	"github.com/memctx/memctx/internal/projectctx"
	"github.com/memctx/memctx/internal/watch"
	"github.com/memctx/memctx/internal/watcher"
)

// evictionInterval is how often the stale-context sweep runs. Independent
// of any one project's context_ttl_seconds since the manager is shared
// across every project a client touches.
const evictionInterval = 5 * time.Minute

func newServeCmd() *cobra.Command {
	var watchProject bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Serve exposes every memctx tool (remember, recall, search, index_project,
rules, health, ...) over the Model Context Protocol's stdio transport.
Each tool call carries its own project_path, so one server process can
serve every project a client opens.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), watchProject)
		},
	}

	cmd.Flags().BoolVar(&watchProject, "watch", false, "watch --project's tree and reindex incrementally as files change")

	return cmd
}

func runServe(ctx context.Context, watchProject bool) error {
	_, cfg, err := resolveProject()
	if err != nil {
		return err
	}

	manager := projectctx.NewManager(cfg)
	defer manager.EvictAll()

	server := mcptools.NewServer(manager, cfg)
	defer server.Close()

	go evictionLoop(ctx, manager)

	if watchProject {
		root := projectFlag
		if root == "" {
			root, _, err = resolveProject()
			if err != nil {
				return err
			}
		}
		proj, err := watch.NewProject(manager, root, watcher.DefaultOptions())
		if err != nil {
			slog.Warn("watch_setup_failed", slog.String("error", err.Error()))
		} else {
			go func() {
				if err := proj.Start(ctx); err != nil {
					slog.Warn("watch_stopped", slog.String("error", err.Error()))
				}
			}()
		}
	}

	slog.Info("memctx_serve_starting")
	return server.Serve(ctx, "stdio")
}

func evictionLoop(ctx context.Context, manager *projectctx.Manager) {
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			manager.EvictStale(ctx)
		}
	}
}
