package migrations

import (
	"context"
	"database/sql"
)

// MigrationV1 creates the base schema: memories (+ FTS5 shadow table, kept
// in sync from Go by storage's InsertMemory/UpdateMemory/DeleteMemory; no
// triggers), rules, code entities, memory-code refs, and file hashes.
type MigrationV1 struct{}

func (m *MigrationV1) Version() int { return 1 }

func (m *MigrationV1) Description() string { return "base schema" }

func (m *MigrationV1) Apply(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE memories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			rationale TEXT NOT NULL DEFAULT '',
			context TEXT NOT NULL DEFAULT '{}',
			tags TEXT NOT NULL DEFAULT '[]',
			keywords TEXT NOT NULL DEFAULT '[]',
			file_path_absolute TEXT NOT NULL DEFAULT '',
			file_path_relative TEXT NOT NULL DEFAULT '',
			is_permanent INTEGER NOT NULL DEFAULT 0,
			pinned INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL DEFAULT '',
			worked INTEGER,
			vector_embedding_ref TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT 'private',
			origin_id TEXT NOT NULL DEFAULT '',
			origin_user TEXT NOT NULL DEFAULT '',
			synced_at TEXT,
			sync_hash TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_memories_category ON memories(category)`,
		`CREATE INDEX idx_memories_archived ON memories(archived)`,
		`CREATE INDEX idx_memories_file_path ON memories(file_path_relative)`,
		`CREATE INDEX idx_memories_created_at ON memories(created_at)`,

		// External-content FTS5 table over the columns the spec requires
		// ranked full-text search on: content, rationale, tags.
		`CREATE VIRTUAL TABLE fts_memories USING fts5(
			content, rationale, tags,
			content='memories', content_rowid='id',
			tokenize='unicode61'
		)`,

		`CREATE TABLE rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trigger TEXT NOT NULL,
			trigger_keywords TEXT NOT NULL DEFAULT '[]',
			must_do TEXT NOT NULL DEFAULT '[]',
			must_not TEXT NOT NULL DEFAULT '[]',
			ask_first TEXT NOT NULL DEFAULT '[]',
			warnings TEXT NOT NULL DEFAULT '[]',
			priority INTEGER NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_rules_enabled ON rules(enabled)`,

		`CREATE TABLE code_entities (
			id TEXT PRIMARY KEY,
			project_path TEXT NOT NULL,
			file_path TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			name TEXT NOT NULL,
			qualified_name TEXT NOT NULL DEFAULT '',
			line_start INTEGER NOT NULL DEFAULT 0,
			line_end INTEGER NOT NULL DEFAULT 0,
			signature TEXT NOT NULL DEFAULT '',
			docstring TEXT NOT NULL DEFAULT '',
			imports TEXT NOT NULL DEFAULT '[]',
			calls TEXT NOT NULL DEFAULT '[]',
			called_by TEXT NOT NULL DEFAULT '[]',
			inherits TEXT NOT NULL DEFAULT '[]',
			indexed_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_entities_project_file ON code_entities(project_path, file_path)`,
		`CREATE INDEX idx_entities_qualified_name ON code_entities(qualified_name)`,
		`CREATE INDEX idx_entities_name ON code_entities(name)`,

		`CREATE TABLE memory_code_refs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			memory_id INTEGER NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			code_entity_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			line_number INTEGER NOT NULL DEFAULT 0,
			relationship TEXT NOT NULL DEFAULT 'about'
		)`,
		`CREATE INDEX idx_refs_memory ON memory_code_refs(memory_id)`,
		`CREATE INDEX idx_refs_entity ON memory_code_refs(code_entity_id)`,

		`CREATE TABLE file_hashes (
			project_path TEXT NOT NULL,
			file_path TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			indexed_at TEXT NOT NULL,
			PRIMARY KEY (project_path, file_path)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
