package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_JSONMarshaling_RoundTrips(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.HybridVectorWeight = 0.55

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 0.55, decoded.Search.HybridVectorWeight)
}

func TestLoad_MalformedYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".memctx.yaml"), []byte("search: [this is not valid: yaml"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_ValidationFailureSurfaces(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	yamlContent := `
search:
  hybrid_vector_weight: 2.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".memctx.yaml"), []byte(yamlContent), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestMergeWith_ZeroValuesDoNotOverwrite(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.HybridVectorWeight = 0.7

	var empty Config
	cfg.mergeWith(&empty)

	assert.Equal(t, 0.7, cfg.Search.HybridVectorWeight)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
}

func TestMergeWith_HalfLifeDaysMergesPerCategory(t *testing.T) {
	cfg := NewConfig()

	override := &Config{
		Search: SearchConfig{
			HalfLifeDays: map[string]int{"warning": 7},
		},
	}
	cfg.mergeWith(override)

	assert.Equal(t, 7, cfg.Search.HalfLifeFor("warning"))
	assert.Equal(t, 30, cfg.Search.HalfLifeFor("decision"))
}

func TestValidate_BoundaryWeightsAreAccepted(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.HybridVectorWeight = 0
	assert.NoError(t, cfg.Validate())

	cfg.Search.HybridVectorWeight = 1
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ZeroDiversityCapIsAllowed(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.DiversityMaxPerFile = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ZeroContextTTLAccepted(t *testing.T) {
	cfg := NewConfig()
	cfg.ProjectContext.ContextTTLSeconds = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidate_NegativeMaxChunksRejected(t *testing.T) {
	cfg := NewConfig()
	cfg.Ingest.MaxChunks = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnsupportedTransport(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.Transport = "http"
	assert.Error(t, cfg.Validate())
}

func TestFindProjectRoot_PrefersGitOverConfigAtSameLevel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".memctx.yaml"), []byte("version: 1\n"), 0644))

	root, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindProjectRoot_StopsAtFirstAncestorMarker(t *testing.T) {
	outer := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(outer, ".git"), 0755))

	inner := filepath.Join(outer, "inner")
	require.NoError(t, os.Mkdir(inner, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(inner, ".memctx.yaml"), []byte("version: 1\n"), 0644))

	nested := filepath.Join(inner, "deep", "deeper")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, inner, root)
}
