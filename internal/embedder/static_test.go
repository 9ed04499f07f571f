package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_ReturnsConfiguredDimension(t *testing.T) {
	e := NewStaticEmbedder(384)
	vec, err := e.Encode(context.Background(), "connection pooling for the database driver")
	require.NoError(t, err)
	assert.Len(t, vec, 384)
}

func TestStaticEmbedder_EmptyTextReturnsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(16)
	vec, err := e.Encode(context.Background(), "   ")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Equal(t, float32(0), v)
	}
}

func TestStaticEmbedder_IsDeterministic(t *testing.T) {
	e := NewStaticEmbedder(128)
	a, err := e.Encode(context.Background(), "retry with exponential backoff")
	require.NoError(t, err)
	b, err := e.Encode(context.Background(), "retry with exponential backoff")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStaticEmbedder_SimilarTextIsMoreSimilarThanUnrelated(t *testing.T) {
	e := NewStaticEmbedder(256)
	ctx := context.Background()

	a, _ := e.Encode(ctx, "the database connection pool was exhausted under load")
	b, _ := e.Encode(ctx, "database connection pool exhaustion under heavy load")
	c, _ := e.Encode(ctx, "renamed the onboarding button copy")

	assert.Greater(t, cosine(a, b), cosine(a, c))
}

func TestStaticEmbedder_AlwaysAvailable(t *testing.T) {
	e := NewStaticEmbedder(8)
	assert.True(t, e.Available(context.Background()))
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
