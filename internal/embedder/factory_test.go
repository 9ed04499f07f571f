package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToStaticProvider(t *testing.T) {
	e, err := New(Config{Dim: 64, CacheSize: 10})
	require.NoError(t, err)

	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	_, ok = cached.Inner().(*StaticEmbedder)
	assert.True(t, ok)
}

func TestNew_SelectsOllamaProvider(t *testing.T) {
	e, err := New(Config{Provider: "ollama", Dim: 384, Model: "all-MiniLM-L6-v2", CacheSize: 10})
	require.NoError(t, err)

	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	_, ok = cached.Inner().(*OllamaEmbedder)
	assert.True(t, ok)
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "unknown"})
	assert.Error(t, err)
}
