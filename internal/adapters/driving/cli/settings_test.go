package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/core/domain"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty key", input: "", expected: "****"},
		{name: "Exactly 8 chars", input: "12345678", expected: "****"},
		{name: "Long key", input: "sk-1234567890abcdef", expected: "sk-1...cdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskAPIKey(tt.input))
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "Empty input returns default", input: "", expected: 1},
		{name: "Valid choice", input: "3", expected: 3},
		{name: "Out of range returns default", input: "9", expected: 1},
		{name: "Not a number returns default", input: "two", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseChoice(tt.input, 5, 1))
		})
	}
}

func TestSettingsShow(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings")

	require.NoError(t, err)
	assert.Contains(t, out, "[Chunker]")
	assert.Contains(t, out, "[Embedding]")
	assert.Contains(t, out, "[Retrieval]")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShow_Invalid(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.validateErr = domain.ErrEmbeddingUnavailable

	out, err := executeCommand("settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: embedding service unavailable")
}

func TestSettingsValidate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		_, cleanup := setupTestServices()
		defer cleanup()

		out, err := executeCommand("settings", "validate")

		require.NoError(t, err)
		assert.Contains(t, out, "Pinging embedding provider... OK")
	})

	t.Run("ping fails", func(t *testing.T) {
		ts, cleanup := setupTestServices()
		defer cleanup()
		ts.settings.pingErr = domain.ErrEmbeddingUnavailable

		_, err := executeCommand("settings", "validate")

		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}

func TestSettingsEmbedding(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	providers := domain.AllEmbeddingProviders()
	choice := 0
	for i, p := range providers {
		if p == domain.AIProviderOllama {
			choice = i + 1
		}
	}
	require.NotZero(t, choice)

	out, err := executeCommandWithInput(
		string(rune('0'+choice))+"\nall-minilm\n",
		"settings", "embedding",
	)

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, ts.settings.setProvider)
	assert.Equal(t, "all-minilm", ts.settings.setModel)
	assert.Empty(t, ts.settings.setKey)
	assert.Contains(t, out, "Validating configuration... OK")
}
