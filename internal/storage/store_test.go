package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "", 5000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RunsMigrations(t *testing.T) {
	s := openTestStore(t)

	var version int
	err := s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestInsertMemory_AssignsIDAndTimestamps(t *testing.T) {
	s := openTestStore(t)

	m := &Memory{
		Category: CategoryDecision,
		Content:  "use SQLite WAL mode for concurrent readers",
		Tags:     []string{"storage", "sqlite"},
	}

	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return InsertMemory(context.Background(), tx, m)
	})
	require.NoError(t, err)

	assert.NotZero(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())
	assert.Equal(t, m.CreatedAt, m.UpdatedAt)

	got, err := s.GetMemory(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Content, got.Content)
	assert.Equal(t, []string{"storage", "sqlite"}, got.Tags)
}

func TestGetMemory_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetMemory(context.Background(), 999)
	assert.Error(t, err)
}

func TestUpdateMemory_NeverMovesUpdatedAtBackward(t *testing.T) {
	s := openTestStore(t)

	m := &Memory{Category: CategoryPattern, Content: "repository pattern for data access"}
	require.NoError(t, s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return InsertMemory(context.Background(), tx, m)
	}))

	original := m.UpdatedAt
	m.Content = "repository pattern for data access layer"

	require.NoError(t, s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return UpdateMemory(context.Background(), tx, m)
	}))

	assert.False(t, m.UpdatedAt.Before(original))

	got, err := s.GetMemory(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "repository pattern for data access layer", got.Content)
}

func TestDeleteMemory_RemovesRowAndFTSShadow(t *testing.T) {
	s := openTestStore(t)

	m := &Memory{Category: CategoryWarning, Content: "avoid global mutable state"}
	require.NoError(t, s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return InsertMemory(context.Background(), tx, m)
	}))

	require.NoError(t, s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return DeleteMemory(context.Background(), tx, m.ID)
	}))

	_, err := s.GetMemory(context.Background(), m.ID)
	assert.Error(t, err)

	results, err := s.SearchFTS(context.Background(), "mutable", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListMemories_FiltersByCategoryAndArchived(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	archived := &Memory{Category: CategoryDecision, Content: "old decision", Archived: true}
	active := &Memory{Category: CategoryDecision, Content: "current decision"}
	other := &Memory{Category: CategoryWarning, Content: "a warning"}

	for _, m := range []*Memory{archived, active, other} {
		require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
			return InsertMemory(ctx, tx, m)
		}))
	}

	results, err := s.ListMemories(ctx, MemoryFilter{Categories: []Category{CategoryDecision}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "current decision", results[0].Content)

	withArchived, err := s.ListMemories(ctx, MemoryFilter{Categories: []Category{CategoryDecision}, IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, withArchived, 2)
}

func TestListMemories_FiltersByTagIntersection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tagged := &Memory{Category: CategoryPattern, Content: "caching layer", Tags: []string{"perf", "cache"}}
	untagged := &Memory{Category: CategoryPattern, Content: "naming convention"}

	for _, m := range []*Memory{tagged, untagged} {
		require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
			return InsertMemory(ctx, tx, m)
		}))
	}

	results, err := s.ListMemories(ctx, MemoryFilter{TagsAny: []string{"perf"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "caching layer", results[0].Content)
}

func TestSearchFTS_RanksByBM25(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	docs := []*Memory{
		{Category: CategoryLearning, Content: "connection pooling reduces latency under load"},
		{Category: CategoryLearning, Content: "database connection pooling and connection reuse patterns"},
		{Category: CategoryLearning, Content: "unrelated content about file watchers"},
	}
	for _, m := range docs {
		require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
			return InsertMemory(ctx, tx, m)
		}))
	}

	results, err := s.SearchFTS(ctx, "connection pooling", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestInsertRule_AndListRules(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := &Rule{
		Trigger:  "editing authentication code",
		MustDo:   []string{"run the security test suite"},
		Priority: 10,
		Enabled:  true,
	}
	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return InsertRule(ctx, tx, r)
	}))

	rules, err := s.ListRules(ctx, true)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "editing authentication code", rules[0].Trigger)
	assert.Equal(t, []string{"run the security test suite"}, rules[0].MustDo)
}

func TestUpsertCodeEntities_DeleteThenInsertPerFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entities := []*CodeEntity{
		{ID: "abc123", EntityType: EntityFunction, Name: "Save", QualifiedName: "pkg.Save"},
	}
	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return UpsertCodeEntities(ctx, tx, "proj", "pkg/file.go", entities)
	}))

	got, err := s.GetEntity(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Save", got.Name)

	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return UpsertCodeEntities(ctx, tx, "proj", "pkg/file.go", nil)
	}))

	_, err = s.GetEntity(ctx, "abc123")
	assert.Error(t, err)
}

func TestFindEntitiesByName_ShorterQualifiedNameSortsFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entities := []*CodeEntity{
		{ID: "a", EntityType: EntityMethod, Name: "Save", QualifiedName: "pkg.inner.deep.Save"},
		{ID: "b", EntityType: EntityFunction, Name: "Save", QualifiedName: "pkg.Save"},
	}
	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return UpsertCodeEntities(ctx, tx, "proj", "pkg/file.go", entities)
	}))

	matches, err := s.FindEntitiesByName(ctx, "proj", "Save")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "pkg.Save", matches[0].QualifiedName)
}

func TestMemoryCodeRef_InsertAndListForEntity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := &Memory{Category: CategoryDecision, Content: "refactored `Save` to batch writes"}
	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return InsertMemory(ctx, tx, m)
	}))

	ref := &MemoryCodeRef{
		MemoryID:     m.ID,
		CodeEntityID: "abc123",
		EntityType:   EntityFunction,
		EntityName:   "Save",
		Relationship: RelAbout,
	}
	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return InsertMemoryCodeRef(ctx, tx, ref)
	}))

	refs, err := s.ListRefsForEntity(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, m.ID, refs[0].MemoryID)
}

func TestFileHash_UpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetFileHash(ctx, "proj", "main.go")
	require.NoError(t, err)
	assert.False(t, ok)

	fh := &FileHash{ProjectPath: "proj", FilePath: "main.go", ContentHash: "deadbeef"}
	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return UpsertFileHash(ctx, tx, fh)
	}))

	hash, ok, err := s.GetFileHash(ctx, "proj", "main.go")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "deadbeef", hash)

	fh2 := &FileHash{ProjectPath: "proj", FilePath: "main.go", ContentHash: "cafebabe"}
	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return UpsertFileHash(ctx, tx, fh2)
	}))

	hash, ok, err = s.GetFileHash(ctx, "proj", "main.go")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cafebabe", hash)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		m := &Memory{Category: CategoryDecision, Content: "should not persist"}
		if err := InsertMemory(ctx, tx, m); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.Error(t, err)

	results, err := s.ListMemories(ctx, MemoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
