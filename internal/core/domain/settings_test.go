package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultAppSettings_Valid tests that defaults pass validation
func TestDefaultAppSettings_Valid(t *testing.T) {
	s := DefaultAppSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, AIProviderHash, s.Embedding.Provider)
	assert.Equal(t, IndexKindHNSW, s.Index.Kind)
	assert.Equal(t, PartialPolicyPartial, s.Corpus.PartialPolicy)
	assert.Equal(t, 4, s.Retrieval.OverFetch)
	assert.Equal(t, 5, s.Retrieval.DefaultK)
}

// TestChunkerSettings_Validate tests chunker configuration rules
func TestChunkerSettings_Validate(t *testing.T) {
	base := DefaultAppSettings().Chunker

	tests := []struct {
		name   string
		modify func(c *ChunkerSettings)
		ok     bool
	}{
		{name: "defaults", modify: func(c *ChunkerSettings) {}, ok: true},
		{name: "zero overlap", modify: func(c *ChunkerSettings) { c.Overlap = 0 }, ok: true},
		{name: "overlap equals size", modify: func(c *ChunkerSettings) { c.Overlap = c.Size }},
		{name: "overlap exceeds size", modify: func(c *ChunkerSettings) { c.Overlap = c.Size + 1 }},
		{name: "negative overlap", modify: func(c *ChunkerSettings) { c.Overlap = -1 }},
		{name: "zero size", modify: func(c *ChunkerSettings) { c.Size = 0; c.Overlap = 0 }},
		{name: "unknown unit", modify: func(c *ChunkerSettings) { c.Unit = "token" }},
		{name: "no boundaries", modify: func(c *ChunkerSettings) { c.Boundaries = nil }},
		{name: "unknown boundary", modify: func(c *ChunkerSettings) { c.Boundaries = []Boundary{"line"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			c.Boundaries = append([]Boundary(nil), base.Boundaries...)
			tt.modify(&c)

			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

// TestBoundary_Strength tests boundary ordering
func TestBoundary_Strength(t *testing.T) {
	assert.Greater(t, BoundaryParagraph.Strength(), BoundarySentence.Strength())
	assert.Greater(t, BoundarySentence.Strength(), BoundaryWord.Strength())
	assert.Greater(t, BoundaryWord.Strength(), BoundaryHard.Strength())
}

// TestAIProvider tests provider helpers
func TestAIProvider(t *testing.T) {
	tests := []struct {
		provider AIProvider
		valid    bool
		apiKey   bool
		local    bool
	}{
		{AIProviderHash, true, false, true},
		{AIProviderOllama, true, false, true},
		{AIProviderOpenAI, true, true, false},
		{AIProvider("anthropic"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.provider.IsValid())
			assert.Equal(t, tt.apiKey, tt.provider.RequiresAPIKey())
			assert.Equal(t, tt.local, tt.provider.IsLocal())
		})
	}
	assert.Equal(t, unknownDescription, AIProvider("x").Description())
}

// TestEmbeddingSettings_IsConfigured tests provider readiness
func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.True(t, EmbeddingSettings{Provider: AIProviderHash}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}.IsConfigured())
	assert.False(t, EmbeddingSettings{}.IsConfigured())
}

// TestAppSettings_ValidateJoinsErrors tests that every invalid section is reported
func TestAppSettings_ValidateJoinsErrors(t *testing.T) {
	s := DefaultAppSettings()
	s.Index.Kind = "annoy"
	s.Retrieval.OverFetch = 0
	s.Corpus.PartialPolicy = "maybe"

	err := s.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "annoy")
	assert.Contains(t, err.Error(), "over-fetch")
	assert.Contains(t, err.Error(), "maybe")
}

// TestEmbeddingDimensions_DefaultModels tests that every default model has a known size
func TestEmbeddingDimensions_DefaultModels(t *testing.T) {
	dims := EmbeddingDimensions()
	for provider, model := range DefaultEmbeddingModels() {
		_, ok := dims[model]
		assert.True(t, ok, "default model for %s has no dimension entry", provider)
	}
}

// TestPipelineConfig_GetProcessorConfig tests processor config lookup
func TestPipelineConfig_GetProcessorConfig(t *testing.T) {
	var empty PipelineConfig
	assert.Nil(t, empty.GetProcessorConfig("sections"))

	cfg := PipelineConfig{ProcessorConfigs: map[string]map[string]any{"sections": {"max_depth": 2}}}
	assert.Equal(t, 2, cfg.GetProcessorConfig("sections")["max_depth"])
}
