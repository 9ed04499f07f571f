package tfidf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_FindsMatchingDocumentAboveThreshold(t *testing.T) {
	idx := New()
	idx.Add("1", "switched to connection pooling for the database driver", nil)
	idx.Add("2", "renamed the login button to sign in", nil)

	results := idx.Query("connection pooling database", 5, 0.1)
	require.NotEmpty(t, results)
	assert.Equal(t, "1", results[0].ID)
}

func TestQuery_FiltersBelowThreshold(t *testing.T) {
	idx := New()
	idx.Add("1", "completely unrelated content about bananas", nil)

	results := idx.Query("database migration rollback", 5, 0.5)
	assert.Empty(t, results)
}

func TestQuery_RespectsTopK(t *testing.T) {
	idx := New()
	idx.Add("1", "retry with backoff on transient errors", nil)
	idx.Add("2", "retry with backoff on timeout errors", nil)
	idx.Add("3", "retry with backoff on connection errors", nil)

	results := idx.Query("retry backoff errors", 2, 0.0)
	assert.Len(t, results, 2)
}

func TestAdd_TagsBoostTermFrequency(t *testing.T) {
	idx := New()
	idx.Add("tagged", "short note", []string{"performance"})
	idx.Add("untagged", "short note about performance work in general across the system", nil)

	results := idx.Query("performance", 5, 0.0)
	require.Len(t, results, 2)
	assert.Equal(t, "tagged", results[0].ID)
}

func TestAdd_ReplacingDocumentUpdatesDocumentFrequency(t *testing.T) {
	idx := New()
	idx.Add("1", "caching layer for the api gateway", nil)
	idx.Add("1", "completely different content now", nil)

	results := idx.Query("caching layer gateway", 5, 0.1)
	assert.Empty(t, results)

	results = idx.Query("completely different content", 5, 0.1)
	assert.Len(t, results, 1)
}

func TestDelete_RemovesDocumentFromResults(t *testing.T) {
	idx := New()
	idx.Add("1", "feature flag rollout strategy", nil)

	idx.Delete("1")
	results := idx.Query("feature flag rollout", 5, 0.0)
	assert.Empty(t, results)
}

func TestSize_ReflectsIndexedDocumentCount(t *testing.T) {
	idx := New()
	assert.Equal(t, 0, idx.Size())

	idx.Add("1", "one", nil)
	idx.Add("2", "two", nil)
	assert.Equal(t, 2, idx.Size())

	idx.Delete("1")
	assert.Equal(t, 1, idx.Size())
}

func TestClear_EmptiesIndex(t *testing.T) {
	idx := New()
	idx.Add("1", "some content here", nil)
	idx.Clear()

	assert.Equal(t, 0, idx.Size())
	assert.Empty(t, idx.Query("some content", 5, 0.0))
}

func TestQuery_EmptyQueryReturnsNoResults(t *testing.T) {
	idx := New()
	idx.Add("1", "some content", nil)
	assert.Empty(t, idx.Query("", 5, 0.0))
}

func TestQuery_TiesBreakByIDAscending(t *testing.T) {
	idx := New()
	idx.Add("b", "identical duplicate content", nil)
	idx.Add("a", "identical duplicate content", nil)

	results := idx.Query("identical duplicate content", 5, 0.0)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
}
