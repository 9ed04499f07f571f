package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	memerrors "github.com/memctx/memctx/internal/errors"
	"github.com/memctx/memctx/internal/storage/migrations"
)

// Store is the single-writer SQLite-backed persistence layer for one
// project. It is safe for concurrent use: reads run concurrently, writes
// serialize behind the database's own single-connection pool.
type Store struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	busyMS    int
	closed    bool
}

// Open opens (creating if necessary) the SQLite database at path in WAL
// mode with the given busy-timeout, then runs all pending migrations.
// An empty path opens a private in-memory database, used by tests.
func Open(ctx context.Context, path string, busyTimeoutMS int) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, memerrors.Wrap(memerrors.Fatal, "storage.Open", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.Fatal, "storage.Open", err)
	}

	// Single writer: avoids SQLITE_BUSY storms under concurrent project
	// contexts sharing one *Store. modernc.org/sqlite has no native pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if busyTimeoutMS <= 0 {
		busyTimeoutMS = 30000
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, memerrors.Wrap(memerrors.Fatal, "storage.Open", err)
		}
	}

	s := &Store{db: db, path: path, busyMS: busyTimeoutMS}

	lock := newMigrationLock(path)
	if err := lock.Acquire(); err != nil {
		_ = db.Close()
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	if err := migrations.Run(ctx, db); err != nil {
		LogMigrationError("storage.Open", err)
		_ = db.Close()
		return nil, memerrors.Wrap(memerrors.Fatal, "storage.Open", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// DB returns the underlying *sql.DB for components (FTS, migrations) that
// need direct access within this package's trust boundary.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn inside a single transaction; fn's error triggers rollback,
// success commits. Callers must route every multi-row write through this
// so a failure never leaves partial state.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return memerrors.New(memerrors.Fatal, "storage.WithTx", "store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.WithTx", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.WithTx", err)
	}

	return nil
}

func tagsToJSON(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(tags)
	return string(data)
}

func tagsFromJSON(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	_ = json.Unmarshal([]byte(s), &tags)
	return tags
}

func mapToJSON(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func mapFromJSON(s string) map[string]string {
	if s == "" {
		return nil
	}
	var m map[string]string
	_ = json.Unmarshal([]byte(s), &m)
	return m
}

// InsertMemory inserts a new memory row and fts_memories shadow row inside
// the supplied transaction, stamping created_at/updated_at to now.
func InsertMemory(ctx context.Context, tx *sql.Tx, m *Memory) error {
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	res, err := tx.ExecContext(ctx, `
		INSERT INTO memories (
			category, content, rationale, context, tags, keywords,
			file_path_absolute, file_path_relative, is_permanent, pinned,
			archived, outcome, worked, vector_embedding_ref, visibility,
			origin_id, origin_user, synced_at, sync_hash, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		string(m.Category), m.Content, m.Rationale, mapToJSON(m.Context),
		tagsToJSON(m.Tags), tagsToJSON(m.Keywords), m.FilePathAbsolute,
		m.FilePathRelative, m.IsPermanent, m.Pinned, m.Archived, m.Outcome,
		workedToNullable(m.Worked), m.VectorEmbeddingRef, string(m.Visibility),
		m.OriginID, m.OriginUser, nullableTime(m.SyncedAt), m.SyncHash,
		m.CreatedAt.Format(time.RFC3339Nano), m.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.InsertMemory", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.InsertMemory", err)
	}
	m.ID = id

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fts_memories(rowid, content, rationale, tags) VALUES (?,?,?,?)`,
		m.ID, m.Content, m.Rationale, strings.Join(m.Tags, " ")); err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.InsertMemory", err)
	}

	return nil
}

func workedToNullable(w *bool) any {
	if w == nil {
		return nil
	}
	return *w
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

// UpdateMemory replaces all mutable fields of an existing memory and
// refreshes the FTS shadow row. updated_at is bumped to now (never allowed
// to move backward).
func UpdateMemory(ctx context.Context, tx *sql.Tx, m *Memory) error {
	now := time.Now().UTC()
	if now.Before(m.UpdatedAt) {
		now = m.UpdatedAt
	}
	m.UpdatedAt = now

	_, err := tx.ExecContext(ctx, `
		UPDATE memories SET
			category=?, content=?, rationale=?, context=?, tags=?, keywords=?,
			file_path_absolute=?, file_path_relative=?, is_permanent=?, pinned=?,
			archived=?, outcome=?, worked=?, vector_embedding_ref=?, visibility=?,
			origin_id=?, origin_user=?, synced_at=?, sync_hash=?, updated_at=?
		WHERE id=?`,
		string(m.Category), m.Content, m.Rationale, mapToJSON(m.Context),
		tagsToJSON(m.Tags), tagsToJSON(m.Keywords), m.FilePathAbsolute,
		m.FilePathRelative, m.IsPermanent, m.Pinned, m.Archived, m.Outcome,
		workedToNullable(m.Worked), m.VectorEmbeddingRef, string(m.Visibility),
		m.OriginID, m.OriginUser, nullableTime(m.SyncedAt), m.SyncHash,
		m.UpdatedAt.Format(time.RFC3339Nano), m.ID)
	if err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.UpdateMemory", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_memories WHERE rowid=?`, m.ID); err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.UpdateMemory", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fts_memories(rowid, content, rationale, tags) VALUES (?,?,?,?)`,
		m.ID, m.Content, m.Rationale, strings.Join(m.Tags, " ")); err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.UpdateMemory", err)
	}

	return nil
}

// DeleteMemory removes a memory and its FTS shadow row and refs (cascade).
func DeleteMemory(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_memories WHERE rowid=?`, id); err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.DeleteMemory", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_code_refs WHERE memory_id=?`, id); err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.DeleteMemory", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id=?`, id); err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.DeleteMemory", err)
	}
	return nil
}

// GetMemory fetches a single memory by id.
func (s *Store) GetMemory(ctx context.Context, id int64) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, memorySelectColumns+` WHERE id=?`, id)
	m, err := scanMemory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, memerrors.NotFoundf("storage.GetMemory", "memory %d not found", id)
		}
		return nil, memerrors.Wrap(memerrors.Transient, "storage.GetMemory", err)
	}
	return m, nil
}

const memorySelectColumns = `
	SELECT id, category, content, rationale, context, tags, keywords,
		file_path_absolute, file_path_relative, is_permanent, pinned,
		archived, outcome, worked, vector_embedding_ref, visibility,
		origin_id, origin_user, synced_at, sync_hash, created_at, updated_at
	FROM memories`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var contextJSON, tagsJSON, keywordsJSON string
	var worked sql.NullBool
	var syncedAt sql.NullString
	var createdAt, updatedAt string
	var category, visibility string

	err := row.Scan(&m.ID, &category, &m.Content, &m.Rationale, &contextJSON,
		&tagsJSON, &keywordsJSON, &m.FilePathAbsolute, &m.FilePathRelative,
		&m.IsPermanent, &m.Pinned, &m.Archived, &m.Outcome, &worked,
		&m.VectorEmbeddingRef, &visibility, &m.OriginID, &m.OriginUser,
		&syncedAt, &m.SyncHash, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.Category = Category(category)
	m.Visibility = Visibility(visibility)
	m.Context = mapFromJSON(contextJSON)
	m.Tags = tagsFromJSON(tagsJSON)
	m.Keywords = tagsFromJSON(keywordsJSON)
	if worked.Valid {
		w := worked.Bool
		m.Worked = &w
	}
	if syncedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, syncedAt.String); err == nil {
			m.SyncedAt = &t
		}
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &m, nil
}

// ListMemories runs the one broad filtered query operation the spec names:
// select memories filtered by id-set, category-set, tag intersection, file-path,
// archived=false (unless IncludeArchived). Results are not scored or
// ranked here; that is C5/C6's job once rows are materialized.
func (s *Store) ListMemories(ctx context.Context, f MemoryFilter) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := memorySelectColumns + ` WHERE 1=1`
	var args []any

	if len(f.IDs) > 0 {
		placeholders := make([]string, len(f.IDs))
		for i, id := range f.IDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += fmt.Sprintf(" AND id IN (%s)", strings.Join(placeholders, ","))
	}

	if len(f.Categories) > 0 {
		placeholders := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			placeholders[i] = "?"
			args = append(args, string(c))
		}
		query += fmt.Sprintf(" AND category IN (%s)", strings.Join(placeholders, ","))
	}

	if f.FilePath != "" {
		query += " AND (file_path_relative = ? OR file_path_absolute = ?)"
		args = append(args, f.FilePath, f.FilePath)
	}

	if !f.IncludeArchived {
		query += " AND archived = 0"
	}

	if f.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, f.Since.Format(time.RFC3339Nano))
	}
	if f.Until != nil {
		query += " AND created_at <= ?"
		args = append(args, f.Until.Format(time.RFC3339Nano))
	}

	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.Transient, "storage.ListMemories", err)
	}
	defer rows.Close()

	var result []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, memerrors.Wrap(memerrors.Transient, "storage.ListMemories", err)
		}
		if len(f.TagsAny) > 0 && !tagsIntersect(m.Tags, f.TagsAny) {
			continue
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func tagsIntersect(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[strings.ToLower(t)] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[strings.ToLower(w)]; ok {
			return true
		}
	}
	return false
}

// SearchFTS runs the SQL full-text fallback lane (Lane F): a BM25-ranked
// query over content, rationale, and tags.
func (s *Store) SearchFTS(ctx context.Context, query string, limit int) ([]FTSResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, bm25(fts_memories) AS score
		FROM fts_memories
		WHERE fts_memories MATCH ?
		ORDER BY score ASC
		LIMIT ?`, ftsMatchQuery(query), limit)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.Transient, "storage.SearchFTS", err)
	}
	defer rows.Close()

	var results []FTSResult
	for rows.Next() {
		var r FTSResult
		if err := rows.Scan(&r.MemoryID, &r.RawScore); err != nil {
			return nil, memerrors.Wrap(memerrors.Transient, "storage.SearchFTS", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// FTSResult is one row from the Lane F fallback query. RawScore is the
// FTS5 bm25() value (lower is better, typically negative); callers
// normalize before fusing with other lanes.
type FTSResult struct {
	MemoryID int64
	RawScore float64
}

// ftsMatchQuery escapes an arbitrary query string for FTS5 MATCH by
// quoting each token, so punctuation in recalled content cannot be
// interpreted as FTS5 query syntax.
func ftsMatchQuery(q string) string {
	fields := strings.Fields(q)
	for i, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		fields[i] = `"` + f + `"`
	}
	return strings.Join(fields, " ")
}

// InsertRule inserts a new rule row.
func InsertRule(ctx context.Context, tx *sql.Tx, r *Rule) error {
	r.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO rules (trigger, trigger_keywords, must_do, must_not,
			ask_first, warnings, priority, enabled, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		r.Trigger, tagsToJSON(r.TriggerKeywords), tagsToJSON(r.MustDo),
		tagsToJSON(r.MustNot), tagsToJSON(r.AskFirst), tagsToJSON(r.Warnings),
		r.Priority, r.Enabled, r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.InsertRule", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.InsertRule", err)
	}
	r.ID = id
	return nil
}

// ListRules returns all rules, optionally filtering to enabled-only.
func (s *Store) ListRules(ctx context.Context, enabledOnly bool) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, trigger, trigger_keywords, must_do, must_not,
		ask_first, warnings, priority, enabled, created_at FROM rules`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY priority DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.Transient, "storage.ListRules", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		var r Rule
		var triggerKeywords, mustDo, mustNot, askFirst, warnings, createdAt string
		if err := rows.Scan(&r.ID, &r.Trigger, &triggerKeywords, &mustDo,
			&mustNot, &askFirst, &warnings, &r.Priority, &r.Enabled, &createdAt); err != nil {
			return nil, memerrors.Wrap(memerrors.Transient, "storage.ListRules", err)
		}
		r.TriggerKeywords = tagsFromJSON(triggerKeywords)
		r.MustDo = tagsFromJSON(mustDo)
		r.MustNot = tagsFromJSON(mustNot)
		r.AskFirst = tagsFromJSON(askFirst)
		r.Warnings = tagsFromJSON(warnings)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

// UpsertCodeEntities replaces a file's code entities atomically
// (delete-then-insert per file), as required by incremental reindexing.
func UpsertCodeEntities(ctx context.Context, tx *sql.Tx, projectPath, filePath string, entities []*CodeEntity) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM code_entities WHERE project_path=? AND file_path=?`,
		projectPath, filePath); err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.UpsertCodeEntities", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range entities {
		e.IndexedAt, _ = time.Parse(time.RFC3339Nano, now)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO code_entities (id, project_path, file_path, entity_type,
				name, qualified_name, line_start, line_end, signature, docstring,
				imports, calls, called_by, inherits, indexed_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				file_path=excluded.file_path, line_start=excluded.line_start,
				line_end=excluded.line_end, signature=excluded.signature,
				docstring=excluded.docstring, imports=excluded.imports,
				calls=excluded.calls, called_by=excluded.called_by,
				inherits=excluded.inherits, indexed_at=excluded.indexed_at`,
			e.ID, projectPath, e.FilePath, string(e.EntityType), e.Name,
			e.QualifiedName, e.LineStart, e.LineEnd, e.Signature, e.Docstring,
			tagsToJSON(e.Imports), tagsToJSON(e.Calls), tagsToJSON(e.CalledBy),
			tagsToJSON(e.Inherits), now); err != nil {
			return memerrors.Wrap(memerrors.Transient, "storage.UpsertCodeEntities", err)
		}
	}
	return nil
}

// DeleteProjectEntities removes all code entities for a project (full reindex).
func DeleteProjectEntities(ctx context.Context, tx *sql.Tx, projectPath string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM code_entities WHERE project_path=?`, projectPath); err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.DeleteProjectEntities", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_hashes WHERE project_path=?`, projectPath); err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.DeleteProjectEntities", err)
	}
	return nil
}

// FindEntitiesByName returns entities in a project matching name exactly or
// by qualified-name suffix, sorted so shorter qualified names sort first
// (the deterministic ambiguity tie-break C8 requires).
func (s *Store) FindEntitiesByName(ctx context.Context, projectPath, name string) ([]*CodeEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_path, file_path, entity_type, name, qualified_name,
			line_start, line_end, signature, docstring, imports, calls,
			called_by, inherits, indexed_at
		FROM code_entities
		WHERE project_path = ? AND (qualified_name LIKE '%' || ? OR name = ?)`,
		projectPath, name, name)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.Transient, "storage.FindEntitiesByName", err)
	}
	defer rows.Close()

	var entities []*CodeEntity
	for rows.Next() {
		e, err := scanCodeEntity(rows)
		if err != nil {
			return nil, memerrors.Wrap(memerrors.Transient, "storage.FindEntitiesByName", err)
		}
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		return len(entities[i].QualifiedName) < len(entities[j].QualifiedName)
	})
	return entities, rows.Err()
}

// GetEntity fetches a single code entity by its stable ID.
func (s *Store) GetEntity(ctx context.Context, id string) (*CodeEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_path, file_path, entity_type, name, qualified_name,
			line_start, line_end, signature, docstring, imports, calls,
			called_by, inherits, indexed_at
		FROM code_entities WHERE id=?`, id)
	e, err := scanCodeEntity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, memerrors.NotFoundf("storage.GetEntity", "entity %s not found", id)
		}
		return nil, memerrors.Wrap(memerrors.Transient, "storage.GetEntity", err)
	}
	return e, nil
}

func scanCodeEntity(row rowScanner) (*CodeEntity, error) {
	var e CodeEntity
	var entityType, importsJSON, callsJSON, calledByJSON, inheritsJSON, indexedAt string
	if err := row.Scan(&e.ID, &e.ProjectPath, &e.FilePath, &entityType, &e.Name,
		&e.QualifiedName, &e.LineStart, &e.LineEnd, &e.Signature, &e.Docstring,
		&importsJSON, &callsJSON, &calledByJSON, &inheritsJSON, &indexedAt); err != nil {
		return nil, err
	}
	e.EntityType = EntityType(entityType)
	e.Imports = tagsFromJSON(importsJSON)
	e.Calls = tagsFromJSON(callsJSON)
	e.CalledBy = tagsFromJSON(calledByJSON)
	e.Inherits = tagsFromJSON(inheritsJSON)
	e.IndexedAt, _ = time.Parse(time.RFC3339Nano, indexedAt)
	return &e, nil
}

// InsertMemoryCodeRef links a memory to a code entity, snapshotting entity
// metadata so the ref stays meaningful if the entity is later reindexed.
func InsertMemoryCodeRef(ctx context.Context, tx *sql.Tx, ref *MemoryCodeRef) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO memory_code_refs (memory_id, code_entity_id, entity_type,
			entity_name, file_path, line_number, relationship)
		VALUES (?,?,?,?,?,?,?)`,
		ref.MemoryID, ref.CodeEntityID, string(ref.EntityType), ref.EntityName,
		ref.FilePath, ref.LineNumber, string(ref.Relationship))
	if err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.InsertMemoryCodeRef", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.InsertMemoryCodeRef", err)
	}
	ref.ID = id
	return nil
}

// ListRefsForEntity returns every memory linked to a code entity id, used
// by analyze_impact.
func (s *Store) ListRefsForEntity(ctx context.Context, entityID string) ([]*MemoryCodeRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, memory_id, code_entity_id, entity_type, entity_name,
			file_path, line_number, relationship
		FROM memory_code_refs WHERE code_entity_id=?`, entityID)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.Transient, "storage.ListRefsForEntity", err)
	}
	defer rows.Close()

	var refs []*MemoryCodeRef
	for rows.Next() {
		var r MemoryCodeRef
		var entityType, relationship string
		if err := rows.Scan(&r.ID, &r.MemoryID, &r.CodeEntityID, &entityType,
			&r.EntityName, &r.FilePath, &r.LineNumber, &relationship); err != nil {
			return nil, memerrors.Wrap(memerrors.Transient, "storage.ListRefsForEntity", err)
		}
		r.EntityType = EntityType(entityType)
		r.Relationship = RefRelationship(relationship)
		refs = append(refs, &r)
	}
	return refs, rows.Err()
}

// GetFileHash returns the stored content hash for a file, if indexed.
func (s *Store) GetFileHash(ctx context.Context, projectPath, filePath string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM file_hashes WHERE project_path=? AND file_path=?`,
		projectPath, filePath).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, memerrors.Wrap(memerrors.Transient, "storage.GetFileHash", err)
	}
	return hash, true, nil
}

// UpsertFileHash records the content hash used for incremental indexing.
func UpsertFileHash(ctx context.Context, tx *sql.Tx, fh *FileHash) error {
	fh.IndexedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO file_hashes (project_path, file_path, content_hash, indexed_at)
		VALUES (?,?,?,?)
		ON CONFLICT(project_path, file_path) DO UPDATE SET
			content_hash=excluded.content_hash, indexed_at=excluded.indexed_at`,
		fh.ProjectPath, fh.FilePath, fh.ContentHash, fh.IndexedAt.Format(time.RFC3339Nano))
	if err != nil {
		return memerrors.Wrap(memerrors.Transient, "storage.UpsertFileHash", err)
	}
	return nil
}

// MaxMemoryUpdatedAt returns the most recent memories.updated_at across the
// project, the freshness marker C9 compares against the memory manager's
// in-memory index_built_at to decide whether an out-of-band writer has
// invalidated the cached TF-IDF index.
func (s *Store) MaxMemoryUpdatedAt(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM memories`).Scan(&raw)
	if err != nil {
		return time.Time{}, memerrors.Wrap(memerrors.Transient, "storage.MaxMemoryUpdatedAt", err)
	}
	return parseMaxTimestamp(raw)
}

// MaxRuleCreatedAt returns the most recent rules.created_at across the
// project, the equivalent freshness marker for the rules trigger index.
func (s *Store) MaxRuleCreatedAt(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM rules`).Scan(&raw)
	if err != nil {
		return time.Time{}, memerrors.Wrap(memerrors.Transient, "storage.MaxRuleCreatedAt", err)
	}
	return parseMaxTimestamp(raw)
}

// CountMemoriesByCategory returns the non-archived memory count per
// category, for health()'s per-category counts.
func (s *Store) CountMemoriesByCategory(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM memories WHERE archived = 0 GROUP BY category`)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.Transient, "storage.CountMemoriesByCategory", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, memerrors.Wrap(memerrors.Transient, "storage.CountMemoriesByCategory", err)
		}
		counts[category] = count
	}
	return counts, rows.Err()
}

// CountEntitiesByType returns the code entity count per entity_type for one
// project, for health()'s entity counts by type.
func (s *Store) CountEntitiesByType(ctx context.Context, projectPath string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, COUNT(*) FROM code_entities WHERE project_path = ? GROUP BY entity_type`,
		projectPath)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.Transient, "storage.CountEntitiesByType", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, memerrors.Wrap(memerrors.Transient, "storage.CountEntitiesByType", err)
		}
		counts[entityType] = count
	}
	return counts, rows.Err()
}

// MaxEntityIndexedAt returns the most recent code_entities.indexed_at for
// one project, health()'s last-indexed timestamp.
func (s *Store) MaxEntityIndexedAt(ctx context.Context, projectPath string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(indexed_at) FROM code_entities WHERE project_path = ?`, projectPath).Scan(&raw)
	if err != nil {
		return time.Time{}, memerrors.Wrap(memerrors.Transient, "storage.MaxEntityIndexedAt", err)
	}
	return parseMaxTimestamp(raw)
}

func parseMaxTimestamp(raw sql.NullString) (time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}, memerrors.Wrap(memerrors.Transient, "storage.parseMaxTimestamp", err)
	}
	return t, nil
}

// LogMigrationError is a convenience used by C10 callers to record a
// migration failure via slog before returning it to the caller, matching
// the teacher's practice of logging at the boundary where context is richest.
func LogMigrationError(op string, err error) {
	slog.Error("storage_migration_failed", slog.String("op", op), slog.String("error", err.Error()))
}
