package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/config"
	"github.com/memctx/memctx/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the user-level memctx configuration",
	}

	cmd.AddCommand(newConfigBackupCmd())
	cmd.AddCommand(newConfigBackupsCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the user config file before editing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			path, err := config.BackupUserConfig()
			if err != nil {
				return err
			}
			if path == "" {
				out.Status("", "no user config file to back up")
				return nil
			}
			out.Successf("backed up user config to %s", path)
			return nil
		},
	}
}

func newConfigBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List user config backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				out.Status("", "no backups found")
				return nil
			}
			for _, b := range backups {
				out.Status("", b)
			}
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-path>",
		Short: "Restore the user config from a backup, backing up the current one first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			if err := config.RestoreUserConfig(args[0]); err != nil {
				return fmt.Errorf("restore config: %w", err)
			}
			out.Successf("restored user config from %s", args[0])
			return nil
		},
	}
}
