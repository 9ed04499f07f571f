package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	memerrors "github.com/memctx/memctx/internal/errors"
)

const (
	defaultOllamaHost = "http://localhost:11434"
	ollamaTimeout     = 30 * time.Second
)

// OllamaConfig configures the Ollama embedding provider.
type OllamaConfig struct {
	Host  string
	Model string
	Dim   int
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaEmbedder calls Ollama's /api/embed endpoint over HTTP, with a
// circuit breaker and bounded retry guarding against a down or
// overloaded server.
type OllamaEmbedder struct {
	client  *http.Client
	host    string
	model   string
	dim     int
	breaker *memerrors.CircuitBreaker
	retry   memerrors.RetryConfig
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder constructs a provider against an Ollama server.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	host := cfg.Host
	if host == "" {
		host = defaultOllamaHost
	}

	return &OllamaEmbedder{
		client:  &http.Client{Timeout: ollamaTimeout},
		host:    host,
		model:   cfg.Model,
		dim:     cfg.Dim,
		breaker: memerrors.NewCircuitBreaker("embedder.ollama"),
		retry: memerrors.RetryConfig{
			MaxRetries:   2,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}

// Encode returns (nil, nil) when the circuit is open or the request fails
// after retries, so hybrid search degrades to its other lanes instead of
// failing the whole operation.
func (e *OllamaEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	if !e.breaker.Allow() {
		slog.Warn("embedder_ollama_circuit_open")
		return nil, nil
	}

	var vec []float32
	err := memerrors.Retry(ctx, e.retry, func() error {
		v, err := e.embedOnce(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		e.breaker.RecordFailure()
		slog.Warn("embedder_ollama_failed", "error", err)
		return nil, nil
	}

	e.breaker.RecordSuccess()
	return vec, nil
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("ollama returned %s: %s", resp.Status, string(data))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings")
	}

	raw := parsed.Embeddings[0]
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return normalize(vec), nil
}

// Dimensions returns the configured output dimension.
func (e *OllamaEmbedder) Dimensions() int { return e.dim }

// ModelName returns the configured model identifier.
func (e *OllamaEmbedder) ModelName() string { return e.model }

// Available reports whether the circuit breaker currently allows requests
// and the server responds to a lightweight tag listing.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if !e.breaker.Allow() {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
