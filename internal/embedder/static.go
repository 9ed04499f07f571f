package embedder

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"
)

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder is a deterministic, dependency-free hash+n-gram
// embedder. It never fails and never degrades, so it is always
// available as the last resort when no real embedding model is
// reachable; quality is far below a learned model.
type StaticEmbedder struct {
	dim int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder builds a static embedder at the given dimension.
func NewStaticEmbedder(dim int) *StaticEmbedder {
	return &StaticEmbedder{dim: dim}
}

// Encode always succeeds; empty input yields the zero vector.
func (e *StaticEmbedder) Encode(_ context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dim), nil
	}
	return normalize(e.vector(trimmed)), nil
}

func (e *StaticEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dim)

	for _, tok := range tokenize(text) {
		vec[hashToIndex(tok, e.dim)] += tokenWeight
	}

	normalized := normalizeForNgrams(text)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vec[hashToIndex(ngram, e.dim)] += ngramWeight
	}

	return vec
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCamelAndSnake(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCamelAndSnake(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// Dimensions returns the configured output dimension.
func (e *StaticEmbedder) Dimensions() int { return e.dim }

// ModelName identifies this provider.
func (e *StaticEmbedder) ModelName() string { return "static" }

// Available is always true.
func (e *StaticEmbedder) Available(_ context.Context) bool { return true }
