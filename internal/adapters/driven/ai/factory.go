// Package ai provides factory functions for creating embedding services and
// the vector indexes that hold their output.
package ai

import (
	"context"
	"fmt"
	"time"

	hashembed "github.com/custodia-labs/passage/internal/adapters/driven/embedding/hash"
	ollamaembed "github.com/custodia-labs/passage/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/passage/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/passage/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/passage/internal/adapters/driven/vector/hnsw"
	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of embedding and index initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	VectorIndex      driven.VectorIndex
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.VectorIndex != nil {
		r.VectorIndex.Close()
	}
}

// Initialise creates and validates the embedding service, then creates the
// vector index. Unless dimensions are configured explicitly the index adopts
// the size of the first vector it receives.
func Initialise(ctx context.Context, settings domain.AppSettings) (*InitResult, error) {
	svc, err := CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		return nil, err
	}

	idx, err := CreateVectorIndex(settings.Index, settings.Embedding.Dimensions)
	if err != nil {
		svc.Close()
		return nil, err
	}
	return &InitResult{EmbeddingService: svc, VectorIndex: idx}, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: no embedding provider configured. Set [embedding] in config.toml",
			domain.ErrEmbeddingUnavailable)
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Check [embedding] in config.toml",
			domain.ErrEmbeddingUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Check [embedding] in config.toml",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbeddingService(ctx, settings)
	if err != nil {
		return err
	}
	return svc.Close()
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderHash:
		return createHashEmbedding(settings), nil

	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	default:
		return nil, fmt.Errorf("%w: embedding provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateVectorIndex creates the index selected by settings. A zero
// dimension lets the index adopt the size of the first vector it stores.
func CreateVectorIndex(settings domain.IndexSettings, dimension int) (driven.VectorIndex, error) {
	if dimension < 0 {
		return nil, fmt.Errorf("%w: negative dimension %d", domain.ErrVectorIndexUnavailable, dimension)
	}

	switch settings.Kind {
	case domain.IndexKindHNSW:
		idx, err := hnsw.New(hnsw.ConfigFromSettings(settings, dimension))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
		}
		return idx, nil

	case domain.IndexKindFlat:
		return flat.New(dimension), nil

	default:
		return nil, fmt.Errorf("%w: %w: index kind %q",
			domain.ErrVectorIndexUnavailable, domain.ErrUnsupportedType, settings.Kind)
	}
}

// dimensionsFor prefers an explicit setting over the known model size.
func dimensionsFor(settings *domain.EmbeddingSettings) int {
	if settings.Dimensions > 0 {
		return settings.Dimensions
	}
	return domain.EmbeddingDimensions()[settings.Model]
}

// createHashEmbedding creates the offline feature-hashing embedding service.
func createHashEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	return hashembed.NewEmbeddingService(hashembed.Config{
		Model:      settings.Model,
		Dimensions: dimensionsFor(settings),
	})
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Timeout:    settings.Timeout,
		Dimensions: dimensionsFor(settings),
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Timeout:    settings.Timeout,
		Dimensions: settings.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}
