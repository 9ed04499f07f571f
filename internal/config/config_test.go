package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 10, cfg.ProjectContext.MaxProjectContexts)
	assert.Equal(t, 3600, cfg.ProjectContext.ContextTTLSeconds)
	assert.Equal(t, 0.3, cfg.Search.HybridVectorWeight)
	assert.Equal(t, 3, cfg.Search.DiversityMaxPerFile)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 0.1, cfg.Search.TFIDFThreshold)
	assert.Equal(t, 0.3, cfg.Search.VectorThreshold)
	assert.Equal(t, 30, cfg.Search.HalfLifeFor("decision"))
	assert.Equal(t, 30, cfg.Search.HalfLifeFor("nonexistent-category"))
	assert.Equal(t, "sqlite", cfg.Search.FTSBackend)
	assert.Equal(t, "all-MiniLM-L6-v2", cfg.Embedding.Model)
	assert.Equal(t, 384, cfg.Embedding.Dim)
	assert.Equal(t, 200, cfg.Index.ParseTreeCacheMaxSize)
	assert.Empty(t, cfg.Index.Languages)
	assert.Equal(t, 1_000_000, cfg.Ingest.MaxContentSize)
	assert.Equal(t, 50, cfg.Ingest.MaxChunks)
	assert.Equal(t, 30, cfg.Ingest.TimeoutSeconds)
	assert.Equal(t, []string{"http", "https"}, cfg.Ingest.AllowedURLSchemes)
	assert.Equal(t, 512, cfg.Ingest.ChunkMaxTokens)
	assert.Equal(t, 64, cfg.Ingest.ChunkOverlapTokens)
	assert.Equal(t, 30000, cfg.Storage.BusyTimeoutMS)
	assert.Equal(t, "stdio", cfg.Server.Transport)

	require.NoError(t, cfg.Validate())
}

func TestLoad_NoProjectFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Search.HybridVectorWeight)
}

func TestLoad_ProjectYAML_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	yamlContent := `
search:
  hybrid_vector_weight: 0.5
  search_default_limit: 50
embedding:
  embedding_model: custom-model
  embedding_dim: 768
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".memctx.yaml"), []byte(yamlContent), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Search.HybridVectorWeight)
	assert.Equal(t, 50, cfg.Search.DefaultLimit)
	assert.Equal(t, "custom-model", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dim)
	// Unset fields keep the default.
	assert.Equal(t, 3, cfg.Search.DiversityMaxPerFile)
}

func TestLoad_YMLExtension_IsAlsoRecognized(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	yamlContent := `
search:
  search_default_limit: 42
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".memctx.yml"), []byte(yamlContent), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Search.DefaultLimit)
}

func TestLoad_EnvOverridesProjectFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	yamlContent := `
search:
  hybrid_vector_weight: 0.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".memctx.yaml"), []byte(yamlContent), 0644))
	t.Setenv("MEMCTX_HYBRID_VECTOR_WEIGHT", "0.8")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Search.HybridVectorWeight)
}

func TestApplyEnvOverrides_AllRecognizedVars(t *testing.T) {
	cfg := NewConfig()

	t.Setenv("MEMCTX_HYBRID_VECTOR_WEIGHT", "0.6")
	t.Setenv("MEMCTX_SEARCH_DEFAULT_LIMIT", "15")
	t.Setenv("MEMCTX_SEARCH_DIVERSITY_MAX_PER_FILE", "5")
	t.Setenv("MEMCTX_FTS_BACKEND", "bleve")
	t.Setenv("MEMCTX_EMBEDDING_PROVIDER", "ollama")
	t.Setenv("MEMCTX_EMBEDDING_MODEL", "nomic-embed-text")
	t.Setenv("MEMCTX_EMBEDDING_DIM", "512")
	t.Setenv("MEMCTX_OLLAMA_HOST", "http://localhost:11434")
	t.Setenv("MEMCTX_MAX_PROJECT_CONTEXTS", "20")
	t.Setenv("MEMCTX_CONTEXT_TTL_SECONDS", "7200")
	t.Setenv("MEMCTX_LOG_LEVEL", "debug")

	cfg.applyEnvOverrides()

	assert.Equal(t, 0.6, cfg.Search.HybridVectorWeight)
	assert.Equal(t, 15, cfg.Search.DefaultLimit)
	assert.Equal(t, 5, cfg.Search.DiversityMaxPerFile)
	assert.Equal(t, "bleve", cfg.Search.FTSBackend)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 512, cfg.Embedding.Dim)
	assert.Equal(t, "http://localhost:11434", cfg.Embedding.OllamaHost)
	assert.Equal(t, 20, cfg.ProjectContext.MaxProjectContexts)
	assert.Equal(t, 7200, cfg.ProjectContext.ContextTTLSeconds)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestApplyEnvOverrides_InvalidValuesAreIgnored(t *testing.T) {
	cfg := NewConfig()

	t.Setenv("MEMCTX_HYBRID_VECTOR_WEIGHT", "not-a-float")
	t.Setenv("MEMCTX_SEARCH_DEFAULT_LIMIT", "-5")
	t.Setenv("MEMCTX_MAX_PROJECT_CONTEXTS", "0")

	cfg.applyEnvOverrides()

	assert.Equal(t, 0.3, cfg.Search.HybridVectorWeight)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 10, cfg.ProjectContext.MaxProjectContexts)
}

func TestValidate_RejectsOutOfRangeWeights(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.HybridVectorWeight = 1.5
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Search.HybridVectorWeight = -0.1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsInvalidFTSBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.FTSBackend = "elasticsearch"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsInvalidEmbeddingProvider(t *testing.T) {
	cfg := NewConfig()
	cfg.Embedding.Provider = "openai"
	assert.Error(t, cfg.Validate())
}

func TestValidate_EmptyEmbeddingProviderIsAllowed(t *testing.T) {
	cfg := NewConfig()
	cfg.Embedding.Provider = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsZeroMaxProjectContexts(t *testing.T) {
	cfg := NewConfig()
	cfg.ProjectContext.MaxProjectContexts = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyAllowedURLSchemes(t *testing.T) {
	cfg := NewConfig()
	cfg.Ingest.AllowedURLSchemes = nil
	assert.Error(t, cfg.Validate())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := NewConfig()
	cfg.Search.HybridVectorWeight = 0.42
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, 0.42, loaded.Search.HybridVectorWeight)
}

func TestFindProjectRoot_FindsGitDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	nested := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindProjectRoot_FindsMemctxConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".memctx.yaml"), []byte("version: 1\n"), 0644))
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindProjectRoot_NoMarkerReturnsStartDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "x", "y")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, nested, root)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	assert.Equal(t, "/tmp/xdg-test/memctx/config.yaml", GetUserConfigPath())
}

func TestUserConfigExists_FalseWhenAbsent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "does-not-exist"))
	assert.False(t, UserConfigExists())
}

func TestHalfLifeFor_FallsBackToDefault(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.DefaultHalfLifeDays = 45
	delete(cfg.Search.HalfLifeDays, "warning")

	assert.Equal(t, 45, cfg.Search.HalfLifeFor("warning"))
	assert.Equal(t, 30, cfg.Search.HalfLifeFor("decision"))
}
