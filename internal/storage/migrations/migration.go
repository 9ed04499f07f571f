// Package migrations applies memctx's SQLite schema in strictly ordered,
// idempotent, append-only steps. One file per version, mirroring the
// v1_*.go/v2_*.go convention: each migration records its own version in
// schema_version and never re-runs once applied.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration is one schema version step.
type Migration interface {
	Version() int
	Description() string
	Apply(ctx context.Context, tx *sql.Tx) error
}

// All returns every migration in ascending version order. New versions are
// appended here, never inserted or renumbered.
func All() []Migration {
	return []Migration{
		&MigrationV1{},
	}
}

// Run applies every migration whose version is not yet recorded in
// schema_version, each inside its own transaction, in ascending order.
func Run(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("bootstrap schema_version: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("read schema_version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range All() {
		if applied[m.Version()] {
			continue
		}

		slog.Info("storage_migration_apply",
			slog.Int("version", m.Version()),
			slog.String("description", m.Description()))

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration v%d: begin: %w", m.Version(), err)
		}

		if err := m.Apply(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d (%s): %w", m.Version(), m.Description(), err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, datetime('now'))`,
			m.Version(), m.Description()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d: record version: %w", m.Version(), err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration v%d: commit: %w", m.Version(), err)
		}
	}

	return nil
}
