package embedder

import (
	"fmt"
)

// Config selects and configures a provider, mirroring
// config.EmbeddingConfig's fields.
type Config struct {
	Provider   string // "ollama" or "static"; empty means static
	Model      string
	Dim        int
	OllamaHost string
	CacheSize  int
}

// New builds the configured provider wrapped in an LRU cache. Unlike the
// original multi-platform selection (MLX vs. Ollama vs. static, each with
// its own fallback chain), memctx has exactly two real providers, Ollama
// and static, chosen by cfg.Provider alone — selection is explicit, not
// autodetected, so a misconfigured host fails loudly via Available rather
// than silently downgrading query quality.
func New(cfg Config) (Embedder, error) {
	var inner Embedder

	switch cfg.Provider {
	case "", "static":
		inner = NewStaticEmbedder(cfg.Dim)
	case "ollama":
		inner = NewOllamaEmbedder(OllamaConfig{
			Host:  cfg.OllamaHost,
			Model: cfg.Model,
			Dim:   cfg.Dim,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
