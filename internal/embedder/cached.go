package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU cache keyed on text+model,
// so repeated remember/search calls over the same content skip the
// provider round trip.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with an LRU cache of the given size.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(h[:])
}

// Encode returns the cached vector if present, otherwise delegates and
// caches the result (skipping cache writes for a nil, graceful-degradation
// result so a transient provider outage doesn't poison the cache).
func (c *CachedEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		c.cache.Add(key, vec)
	}
	return vec, nil
}

// Dimensions passes through to the inner embedder.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelName passes through to the inner embedder.
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Available passes through to the inner embedder.
func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Inner returns the wrapped embedder.
func (c *CachedEmbedder) Inner() Embedder { return c.inner }
