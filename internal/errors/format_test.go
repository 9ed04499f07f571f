package errors

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_BasicError(t *testing.T) {
	err := New(NotFound, "memory.Recall", "memory 'config' not found")

	result := FormatForUser(err)

	assert.Contains(t, result, "memory 'config' not found")
	assert.Contains(t, result, "[not_found]")
}

func TestFormatForUser_WithSuggestion(t *testing.T) {
	err := New(DependencyUnavailable, "embedder.Embed", "ollama is not running").
		WithSuggestion("start ollama with 'ollama serve' or configure a static embedder")

	result := FormatForUser(err)

	assert.Contains(t, result, "Suggestion:")
	assert.Contains(t, result, "ollama serve")
}

func TestFormatForUser_StandardError(t *testing.T) {
	err := errors.New("something went wrong")

	result := FormatForUser(err)

	assert.Contains(t, result, "something went wrong")
}

func TestFormatForUser_NilError(t *testing.T) {
	assert.Empty(t, FormatForUser(nil))
}

func TestFormatJSON_BasicError(t *testing.T) {
	err := New(NotFound, "memory.Recall", "memory not found").
		WithDetail("path", "/foo/bar.txt").
		WithSuggestion("check the memory id")

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, string(NotFound), result["kind"])
	assert.Equal(t, "memory not found", result["message"])
	assert.Equal(t, "check the memory id", result["suggestion"])

	details, ok := result["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/foo/bar.txt", details["path"])
}

func TestFormatJSON_StandardError(t *testing.T) {
	err := errors.New("generic error")

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, string(Fatal), result["kind"])
	assert.Equal(t, "generic error", result["message"])
}

func TestFormatJSON_NilError(t *testing.T) {
	data, err := FormatJSON(nil)
	assert.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(string(data)))
}

func TestFormatJSON_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(Fatal, "storage.Open", cause)

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, "underlying error", result["cause"])
}

func TestFormatForCLI_IncludesKind(t *testing.T) {
	err := New(Fatal, "storage.Open", "index is corrupted").
		WithSuggestion("run 'memctx index rebuild --force' to rebuild")

	result := FormatForCLI(err)

	assert.Contains(t, result, "index is corrupted")
	assert.Contains(t, result, "fatal")
}

func TestFormatForCLI_ShortFormat(t *testing.T) {
	err := New(NotFound, "memory.Recall", "memory not found")

	result := FormatForCLI(err)

	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.LessOrEqual(t, len(lines), 5, "Should be concise")
}
