package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		level   string
		grep    string
		follow  bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail memctx's own structured log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var pattern *regexp.Regexp
			if grep != "" {
				re, err := regexp.Compile(grep)
				if err != nil {
					return fmt.Errorf("compile --grep pattern: %w", err)
				}
				pattern = re
			}

			viewer := logging.NewViewer(logging.ViewerConfig{
				Level:   level,
				Pattern: pattern,
				NoColor: noColor,
			}, cmd.OutOrStdout())

			path := logging.DefaultLogPath()

			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return fmt.Errorf("tail log: %w", err)
			}
			viewer.Print(entries)

			if !follow {
				return nil
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return followLog(ctx, viewer, path)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of trailing lines to show")
	cmd.Flags().StringVar(&level, "level", "", "minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringVar(&grep, "grep", "", "only show lines matching this regexp")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep watching for new entries")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable level coloring")

	return cmd
}

func followLog(ctx context.Context, viewer *logging.Viewer, path string) error {
	entries := make(chan logging.LogEntry, 16)
	done := make(chan error, 1)
	go func() { done <- viewer.Follow(ctx, path, entries) }()

	for {
		select {
		case entry := <-entries:
			viewer.Print([]logging.LogEntry{entry})
		case err := <-done:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
