package codeindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCache_MissThenHit(t *testing.T) {
	c := NewParseCache(10)
	tree := &Tree{Root: &Node{Type: "source_file"}}

	_, ok := c.Get("/a.go", "hash1")
	require.False(t, ok)

	c.Put("/a.go", "hash1", tree)
	got, ok := c.Get("/a.go", "hash1")
	require.True(t, ok)
	require.Same(t, tree, got)

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, 1, stats.Size)
}

func TestParseCache_ContentHashChangeIsAMiss(t *testing.T) {
	c := NewParseCache(10)
	c.Put("/a.go", "hash1", &Tree{})

	_, ok := c.Get("/a.go", "hash2")
	require.False(t, ok)
}

func TestParseCache_EvictsOldestOverCapacity(t *testing.T) {
	c := NewParseCache(1)
	c.Put("/a.go", "h1", &Tree{})
	c.Put("/b.go", "h2", &Tree{})

	_, ok := c.Get("/a.go", "h1")
	require.False(t, ok, "a.go should have been evicted once capacity 1 was exceeded")

	require.Equal(t, 1, c.Stats().Size)
}
