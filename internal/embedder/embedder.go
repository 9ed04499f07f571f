// Package embedder is the embedding provider (C4): a pure function from
// text to a fixed-dimension vector. Providers may fail to produce a vector
// (network down, circuit open) — callers must degrade gracefully rather
// than treat a missing embedding as fatal, since C1/C3 remain usable
// without it.
package embedder

import (
	"context"
	"math"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Encode returns the embedding for text, or (nil, nil) if no
	// embedding could be produced (provider unavailable). A non-nil
	// error indicates the caller should stop, not retry with a
	// different provider.
	Encode(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed output dimension.
	Dimensions() int

	// ModelName identifies the model/provider, used as part of the
	// cache key and recorded for diagnostics.
	ModelName() string

	// Available reports whether the provider is currently usable.
	Available(ctx context.Context) bool
}

func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	mag := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}
