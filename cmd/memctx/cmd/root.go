// Package cmd provides the CLI commands for memctx.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/config"
	"github.com/memctx/memctx/internal/logging"
	"github.com/memctx/memctx/pkg/version"
)

var (
	projectFlag string
	debugMode   bool
	loggingDone func()
)

// NewRootCmd builds the root command for the memctx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memctx",
		Short: "Per-project knowledge memory engine for AI coding assistants",
		Long: `memctx records and retrieves structured development memories
(decisions, patterns, warnings, learnings) and rules, linked to code
entities, searchable via hybrid TF-IDF/vector/FTS retrieval.

Run 'memctx serve' to expose it over stdio MCP to an AI coding assistant,
or use the remember/recall/search/index/rules/health subcommands directly.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("memctx version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&projectFlag, "project", "", "project root (default: discovered from cwd)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.memctx/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRememberCmd())
	cmd.AddCommand(newRecallCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newRulesCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingDone = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingDone != nil {
		loggingDone()
		loggingDone = nil
	}
	return nil
}

// resolveProject finds the project root from --project or the cwd, then
// loads its layered configuration.
func resolveProject() (string, *config.Config, error) {
	dir := projectFlag
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", nil, fmt.Errorf("getwd: %w", err)
		}
		dir = cwd
	}

	root, err := config.FindProjectRoot(dir)
	if err != nil {
		return "", nil, fmt.Errorf("find project root: %w", err)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return "", nil, fmt.Errorf("abs path: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, fmt.Errorf("load config: %w", err)
	}

	return root, cfg, nil
}
