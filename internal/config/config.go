package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete memctx configuration. It mirrors the config
// surface documented for the context manager, hybrid search, embedding
// provider, code indexer, and document ingestion.
type Config struct {
	Version        int                  `yaml:"version" json:"version"`
	ProjectContext ProjectContextConfig `yaml:"project_context" json:"project_context"`
	Search         SearchConfig         `yaml:"search" json:"search"`
	Embedding      EmbeddingConfig      `yaml:"embedding" json:"embedding"`
	Index          IndexConfig          `yaml:"index" json:"index"`
	Ingest         IngestConfig         `yaml:"ingest" json:"ingest"`
	Storage        StorageConfig        `yaml:"storage" json:"storage"`
	Server         ServerConfig         `yaml:"server" json:"server"`
}

// ProjectContextConfig tunes the C9 project-context cache.
type ProjectContextConfig struct {
	// MaxProjectContexts is the LRU cap on live project contexts.
	MaxProjectContexts int `yaml:"max_project_contexts" json:"max_project_contexts"`
	// ContextTTLSeconds is the idle TTL before a context is evicted.
	ContextTTLSeconds int `yaml:"context_ttl_seconds" json:"context_ttl_seconds"`
}

// SearchConfig tunes the C5 hybrid-fusion pipeline.
type SearchConfig struct {
	// HybridVectorWeight is w_v in score = (1-w_v)*L + w_v*V.
	HybridVectorWeight float64 `yaml:"hybrid_vector_weight" json:"hybrid_vector_weight"`
	// DiversityMaxPerFile caps per-file results after fusion (0 disables).
	DiversityMaxPerFile int `yaml:"search_diversity_max_per_file" json:"search_diversity_max_per_file"`
	// DefaultLimit is the recall/search result count when the caller omits one.
	DefaultLimit int `yaml:"search_default_limit" json:"search_default_limit"`
	// TFIDFThreshold is Lane L's score cutoff.
	TFIDFThreshold float64 `yaml:"search_tfidf_threshold" json:"search_tfidf_threshold"`
	// VectorThreshold is Lane V's score cutoff.
	VectorThreshold float64 `yaml:"search_vector_threshold" json:"search_vector_threshold"`
	// HalfLifeDays maps category to decay half-life in days; a missing
	// category falls back to DefaultHalfLifeDays.
	HalfLifeDays map[string]int `yaml:"half_life_days" json:"half_life_days"`
	// DefaultHalfLifeDays is used for categories absent from HalfLifeDays.
	DefaultHalfLifeDays int `yaml:"default_half_life_days" json:"default_half_life_days"`
	// OutcomeBoost is the multiplier applied when worked=true (e.g. 0.10 -> +10%).
	OutcomeBoost float64 `yaml:"outcome_boost" json:"outcome_boost"`
	// OutcomePenalty is the multiplier applied when worked=false (e.g. 0.20 -> -20%).
	OutcomePenalty float64 `yaml:"outcome_penalty" json:"outcome_penalty"`
	// TagBoostFactor is loaded and merged but not read by C3, whose tag
	// boost comes from the tfidf.TagBoostFactor package variable.
	TagBoostFactor float64 `yaml:"tag_boost_factor" json:"tag_boost_factor"`
	// FTSBackend is validated as "sqlite" (default) or "bleve" but not read
	// by search: Lane F always queries the SQLite FTS5 table.
	FTSBackend string `yaml:"fts_backend" json:"fts_backend"`
	// TFIDFMaxCorpus bounds how many documents C3 will hold before C5
	// prefers Lane F (FTS) and skips the O(N·L) TF-IDF rebuild/query cost.
	TFIDFMaxCorpus int `yaml:"search_tfidf_max_corpus" json:"search_tfidf_max_corpus"`
}

// EmbeddingConfig configures the C4 embedding provider.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: "ollama" or "static".
	// Empty selects static.
	Provider string `yaml:"provider" json:"provider"`
	// Model is the identifier passed to the provider.
	Model string `yaml:"embedding_model" json:"embedding_model"`
	// Dim must match the configured vector-store collection dimension.
	Dim int `yaml:"embedding_dim" json:"embedding_dim"`
	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// CacheSize bounds the LRU embedding cache entry count.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// IndexConfig configures the C8 code indexer.
type IndexConfig struct {
	// Languages restricts indexing to this list; empty means all supported.
	Languages []string `yaml:"index_languages" json:"index_languages"`
	// ParseTreeCacheMaxSize bounds the LRU parse-tree cache.
	ParseTreeCacheMaxSize int `yaml:"parse_tree_cache_maxsize" json:"parse_tree_cache_maxsize"`
	// Workers bounds the worker-pool concurrency for file parsing.
	Workers int `yaml:"index_workers" json:"index_workers"`
}

// IngestConfig guards document ingestion (C11 supplement).
type IngestConfig struct {
	// MaxContentSize is the byte-size guard; content beyond this is truncated.
	MaxContentSize int `yaml:"max_content_size" json:"max_content_size"`
	// MaxChunks bounds the number of chunks produced from one document.
	MaxChunks int `yaml:"max_chunks" json:"max_chunks"`
	// TimeoutSeconds bounds how long a fetch+ingest may take.
	TimeoutSeconds int `yaml:"ingest_timeout" json:"ingest_timeout"`
	// AllowedURLSchemes restricts fetchable URL schemes.
	AllowedURLSchemes []string `yaml:"allowed_url_schemes" json:"allowed_url_schemes"`
	// ChunkMaxTokens bounds how large one ingested chunk may grow before the
	// markdown splitter breaks it up.
	ChunkMaxTokens int `yaml:"chunk_max_tokens" json:"chunk_max_tokens"`
	// ChunkOverlapTokens is passed to the markdown chunker as OverlapTokens;
	// the chunker stores it but does not repeat text across split chunks.
	ChunkOverlapTokens int `yaml:"chunk_overlap_tokens" json:"chunk_overlap_tokens"`
}

// StorageConfig configures the C1 SQLite-backed store.
type StorageConfig struct {
	// BusyTimeoutMS bounds how long a writer waits on lock contention.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// ServerConfig configures the MCP server transport and logging.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with the documented defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		ProjectContext: ProjectContextConfig{
			MaxProjectContexts: 10,
			ContextTTLSeconds:  3600,
		},
		Search: SearchConfig{
			HybridVectorWeight: 0.3,
			DiversityMaxPerFile: 3,
			DefaultLimit:        20,
			TFIDFThreshold:      0.1,
			VectorThreshold:     0.3,
			HalfLifeDays: map[string]int{
				"decision": 30,
				"pattern":  30,
				"warning":  30,
				"learning": 30,
			},
			DefaultHalfLifeDays: 30,
			OutcomeBoost:        0.10,
			OutcomePenalty:      0.20,
			TagBoostFactor:      3.0,
			FTSBackend:          "sqlite",
			TFIDFMaxCorpus:      5000,
		},
		Embedding: EmbeddingConfig{
			Provider:   "",
			Model:      "all-MiniLM-L6-v2",
			Dim:        384,
			OllamaHost: "",
			CacheSize:  1000,
		},
		Index: IndexConfig{
			Languages:             nil,
			ParseTreeCacheMaxSize: 200,
			Workers:                4,
		},
		Ingest: IngestConfig{
			MaxContentSize:     1_000_000,
			MaxChunks:          50,
			TimeoutSeconds:     30,
			AllowedURLSchemes:  []string{"http", "https"},
			ChunkMaxTokens:     512,
			ChunkOverlapTokens: 64,
		},
		Storage: StorageConfig{
			BusyTimeoutMS: 30000,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "memctx", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "memctx", "config.yaml")
	}
	return filepath.Join(home, ".config", "memctx", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration for the project rooted at dir, applying in order
// of increasing precedence: hardcoded defaults, user/global config
// (~/.config/memctx/config.yaml), project config (.memctx.yaml), then
// MEMCTX_* environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .memctx.yaml or .memctx.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".memctx.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".memctx.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.ProjectContext.MaxProjectContexts != 0 {
		c.ProjectContext.MaxProjectContexts = other.ProjectContext.MaxProjectContexts
	}
	if other.ProjectContext.ContextTTLSeconds != 0 {
		c.ProjectContext.ContextTTLSeconds = other.ProjectContext.ContextTTLSeconds
	}

	if other.Search.HybridVectorWeight != 0 {
		c.Search.HybridVectorWeight = other.Search.HybridVectorWeight
	}
	if other.Search.DiversityMaxPerFile != 0 {
		c.Search.DiversityMaxPerFile = other.Search.DiversityMaxPerFile
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.TFIDFThreshold != 0 {
		c.Search.TFIDFThreshold = other.Search.TFIDFThreshold
	}
	if other.Search.VectorThreshold != 0 {
		c.Search.VectorThreshold = other.Search.VectorThreshold
	}
	if len(other.Search.HalfLifeDays) > 0 {
		for k, v := range other.Search.HalfLifeDays {
			c.Search.HalfLifeDays[k] = v
		}
	}
	if other.Search.DefaultHalfLifeDays != 0 {
		c.Search.DefaultHalfLifeDays = other.Search.DefaultHalfLifeDays
	}
	if other.Search.OutcomeBoost != 0 {
		c.Search.OutcomeBoost = other.Search.OutcomeBoost
	}
	if other.Search.OutcomePenalty != 0 {
		c.Search.OutcomePenalty = other.Search.OutcomePenalty
	}
	if other.Search.TagBoostFactor != 0 {
		c.Search.TagBoostFactor = other.Search.TagBoostFactor
	}
	if other.Search.FTSBackend != "" {
		c.Search.FTSBackend = other.Search.FTSBackend
	}
	if other.Search.TFIDFMaxCorpus != 0 {
		c.Search.TFIDFMaxCorpus = other.Search.TFIDFMaxCorpus
	}

	if other.Embedding.Provider != "" {
		c.Embedding.Provider = other.Embedding.Provider
	}
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.Dim != 0 {
		c.Embedding.Dim = other.Embedding.Dim
	}
	if other.Embedding.OllamaHost != "" {
		c.Embedding.OllamaHost = other.Embedding.OllamaHost
	}
	if other.Embedding.CacheSize != 0 {
		c.Embedding.CacheSize = other.Embedding.CacheSize
	}

	if len(other.Index.Languages) > 0 {
		c.Index.Languages = other.Index.Languages
	}
	if other.Index.ParseTreeCacheMaxSize != 0 {
		c.Index.ParseTreeCacheMaxSize = other.Index.ParseTreeCacheMaxSize
	}
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}

	if other.Ingest.MaxContentSize != 0 {
		c.Ingest.MaxContentSize = other.Ingest.MaxContentSize
	}
	if other.Ingest.MaxChunks != 0 {
		c.Ingest.MaxChunks = other.Ingest.MaxChunks
	}
	if other.Ingest.TimeoutSeconds != 0 {
		c.Ingest.TimeoutSeconds = other.Ingest.TimeoutSeconds
	}
	if len(other.Ingest.AllowedURLSchemes) > 0 {
		c.Ingest.AllowedURLSchemes = other.Ingest.AllowedURLSchemes
	}
	if other.Ingest.ChunkMaxTokens != 0 {
		c.Ingest.ChunkMaxTokens = other.Ingest.ChunkMaxTokens
	}
	if other.Ingest.ChunkOverlapTokens != 0 {
		c.Ingest.ChunkOverlapTokens = other.Ingest.ChunkOverlapTokens
	}

	if other.Storage.BusyTimeoutMS != 0 {
		c.Storage.BusyTimeoutMS = other.Storage.BusyTimeoutMS
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies MEMCTX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEMCTX_HYBRID_VECTOR_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.HybridVectorWeight = w
		}
	}
	if v := os.Getenv("MEMCTX_SEARCH_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("MEMCTX_SEARCH_DIVERSITY_MAX_PER_FILE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Search.DiversityMaxPerFile = n
		}
	}
	if v := os.Getenv("MEMCTX_FTS_BACKEND"); v != "" {
		c.Search.FTSBackend = v
	}

	if v := os.Getenv("MEMCTX_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("MEMCTX_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("MEMCTX_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.Dim = n
		}
	}
	if v := os.Getenv("MEMCTX_OLLAMA_HOST"); v != "" {
		c.Embedding.OllamaHost = v
	}

	if v := os.Getenv("MEMCTX_MAX_PROJECT_CONTEXTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ProjectContext.MaxProjectContexts = n
		}
	}
	if v := os.Getenv("MEMCTX_CONTEXT_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.ProjectContext.ContextTTLSeconds = n
		}
	}

	if v := os.Getenv("MEMCTX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("MEMCTX_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// parseFloat64 parses a string to float64.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// FindProjectRoot finds the project root by walking up from startDir
// looking for a .git directory or a .memctx.yaml/.yml file.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".memctx.yaml")) ||
			fileExists(filepath.Join(currentDir, ".memctx.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.HybridVectorWeight < 0 || c.Search.HybridVectorWeight > 1 {
		return fmt.Errorf("hybrid_vector_weight must be between 0 and 1, got %f", c.Search.HybridVectorWeight)
	}
	if c.Search.TFIDFThreshold < 0 || c.Search.TFIDFThreshold > 1 {
		return fmt.Errorf("search_tfidf_threshold must be between 0 and 1, got %f", c.Search.TFIDFThreshold)
	}
	if c.Search.VectorThreshold < 0 || c.Search.VectorThreshold > 1 {
		return fmt.Errorf("search_vector_threshold must be between 0 and 1, got %f", c.Search.VectorThreshold)
	}
	if c.Search.DiversityMaxPerFile < 0 {
		return fmt.Errorf("search_diversity_max_per_file must be non-negative, got %d", c.Search.DiversityMaxPerFile)
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search_default_limit must be >= 1, got %d", c.Search.DefaultLimit)
	}
	if c.Search.TFIDFMaxCorpus < 0 {
		return fmt.Errorf("search_tfidf_max_corpus must be non-negative, got %d", c.Search.TFIDFMaxCorpus)
	}

	validBackends := map[string]bool{"sqlite": true, "bleve": true}
	if !validBackends[strings.ToLower(c.Search.FTSBackend)] {
		return fmt.Errorf("search.fts_backend must be 'sqlite' or 'bleve', got %s", c.Search.FTSBackend)
	}

	if c.Embedding.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embedding.Provider)] {
			return fmt.Errorf("embedding.provider must be 'ollama', 'static', or empty (static), got %s", c.Embedding.Provider)
		}
	}
	if c.Embedding.Dim <= 0 {
		return fmt.Errorf("embedding_dim must be positive, got %d", c.Embedding.Dim)
	}

	if c.ProjectContext.MaxProjectContexts < 1 {
		return fmt.Errorf("max_project_contexts must be >= 1, got %d", c.ProjectContext.MaxProjectContexts)
	}
	if c.ProjectContext.ContextTTLSeconds < 0 {
		return fmt.Errorf("context_ttl_seconds must be non-negative, got %d", c.ProjectContext.ContextTTLSeconds)
	}

	if c.Ingest.MaxContentSize < 0 {
		return fmt.Errorf("max_content_size must be non-negative, got %d", c.Ingest.MaxContentSize)
	}
	if c.Ingest.MaxChunks < 0 {
		return fmt.Errorf("max_chunks must be non-negative, got %d", c.Ingest.MaxChunks)
	}
	if len(c.Ingest.AllowedURLSchemes) == 0 {
		return fmt.Errorf("allowed_url_schemes must not be empty")
	}
	if c.Ingest.ChunkMaxTokens < 0 {
		return fmt.Errorf("chunk_max_tokens must be non-negative, got %d", c.Ingest.ChunkMaxTokens)
	}
	if c.Ingest.ChunkOverlapTokens < 0 {
		return fmt.Errorf("chunk_overlap_tokens must be non-negative, got %d", c.Ingest.ChunkOverlapTokens)
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	sumCheck := c.Search.OutcomeBoost + c.Search.OutcomePenalty
	if math.IsNaN(sumCheck) || math.IsInf(sumCheck, 0) {
		return fmt.Errorf("outcome_boost/outcome_penalty must be finite numbers")
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// HalfLifeFor returns the decay half-life in days for category, falling
// back to DefaultHalfLifeDays when no per-category override is set.
func (s SearchConfig) HalfLifeFor(category string) int {
	if d, ok := s.HalfLifeDays[category]; ok && d > 0 {
		return d
	}
	return s.DefaultHalfLifeDays
}
