package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsert_RejectsWrongDimension(t *testing.T) {
	s := New(4)
	err := s.Memories.Upsert("a", []float32{1, 2, 3}, Payload{})
	assert.Error(t, err)
}

func TestUpsertAndSearch_FindsNearestNeighbor(t *testing.T) {
	s := New(3)

	require.NoError(t, s.Memories.Upsert("near", []float32{1, 0, 0}, Payload{Category: "decision"}))
	require.NoError(t, s.Memories.Upsert("far", []float32{0, 1, 0}, Payload{Category: "decision"}))

	results, err := s.Memories.Search([]float32{1, 0, 0}, 1, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 0.01)
}

func TestSearch_AppliesCategoryFilter(t *testing.T) {
	s := New(2)

	require.NoError(t, s.Memories.Upsert("a", []float32{1, 0}, Payload{Category: "decision"}))
	require.NoError(t, s.Memories.Upsert("b", []float32{1, 0}, Payload{Category: "warning"}))

	results, err := s.Memories.Search([]float32{1, 0}, 5, Filter{Categories: []string{"warning"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestSearch_AppliesTagFilter(t *testing.T) {
	s := New(2)

	require.NoError(t, s.Memories.Upsert("a", []float32{1, 0}, Payload{Tags: []string{"perf"}}))
	require.NoError(t, s.Memories.Upsert("b", []float32{1, 0}, Payload{Tags: []string{"security"}}))

	results, err := s.Memories.Search([]float32{1, 0}, 5, Filter{TagsAny: []string{"security"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestDelete_OrphansMapping(t *testing.T) {
	s := New(2)

	require.NoError(t, s.Memories.Upsert("a", []float32{1, 0}, Payload{}))
	assert.True(t, s.Memories.Contains("a"))
	assert.Equal(t, 1, s.Memories.Count())

	s.Memories.Delete("a")
	assert.False(t, s.Memories.Contains("a"))
	assert.Equal(t, 0, s.Memories.Count())

	results, err := s.Memories.Search([]float32{1, 0}, 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpsert_ReplacesExistingID(t *testing.T) {
	s := New(2)

	require.NoError(t, s.Memories.Upsert("a", []float32{1, 0}, Payload{Category: "decision"}))
	require.NoError(t, s.Memories.Upsert("a", []float32{0, 1}, Payload{Category: "warning"}))

	assert.Equal(t, 1, s.Memories.Count())

	results, err := s.Memories.Search([]float32{0, 1}, 5, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestCollection_LooksUpByName(t *testing.T) {
	s := New(2)

	c, err := s.Collection("memories")
	require.NoError(t, err)
	assert.Same(t, s.Memories, c)

	c, err = s.Collection("code_entities")
	require.NoError(t, err)
	assert.Same(t, s.CodeEntities, c)

	_, err = s.Collection("unknown")
	assert.Error(t, err)
}

func TestSearch_EmptyCollectionReturnsNoResults(t *testing.T) {
	s := New(2)
	results, err := s.Memories.Search([]float32{1, 0}, 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
