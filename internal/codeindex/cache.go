package codeindex

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheEntry pairs a parsed tree with the content hash it was parsed from,
// so a cache hit can be invalidated on content change without reparsing.
type cacheEntry struct {
	contentHash string
	tree        *Tree
}

// ParseCache is an LRU cache of parsed trees keyed by absolute file path,
// grounded on the teacher's internal/embed.CachedEmbedder LRU usage, with
// hit/miss/size counters exposed the way the teacher's telemetry package
// exposes other counters.
type ParseCache struct {
	mu     sync.Mutex
	lru    *lru.Cache[string, cacheEntry]
	hits   int64
	misses int64
}

// NewParseCache builds a cache with the given capacity (0 falls back to 200,
// matching parse_tree_cache_maxsize's default).
func NewParseCache(capacity int) *ParseCache {
	if capacity <= 0 {
		capacity = 200
	}
	c, _ := lru.New[string, cacheEntry](capacity)
	return &ParseCache{lru: c}
}

// Get returns the cached tree for path if its content hash still matches.
func (c *ParseCache) Get(path, contentHash string) (*Tree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(path)
	if !ok || entry.contentHash != contentHash {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.tree, true
}

// Put stores a freshly parsed tree under its content hash.
func (c *ParseCache) Put(path, contentHash string, tree *Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(path, cacheEntry{contentHash: contentHash, tree: tree})
}

// Stats is the hits/misses/size snapshot the spec requires the cache expose.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// Stats returns the current hit/miss/size counters.
func (c *ParseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: c.lru.Len()}
}
