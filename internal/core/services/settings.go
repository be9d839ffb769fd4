package services

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
	"github.com/custodia-labs/passage/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// EnvOpenAIAPIKey is read when no API key is configured for OpenAI.
//
//nolint:gosec // G101: environment variable name, not a credential.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkUnit       = "chunker.unit"
	keyChunkSize       = "chunker.size"
	keyChunkOverlap    = "chunker.overlap"
	keyChunkBoundaries = "chunker.boundaries"

	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDims        = "embedding.dimensions"
	keyEmbedBatchSize   = "embedding.batch_size"
	keyEmbedConcurrency = "embedding.max_concurrency"
	keyEmbedTimeout     = "embedding.timeout"
	keyEmbedAttempts    = "embedding.max_attempts"
	keyEmbedBackoff     = "embedding.initial_backoff"
	keyEmbedMaxBackoff  = "embedding.max_backoff"
	keyEmbedRateLimit   = "embedding.rate_limit"

	keyIndexKind         = "index.kind"
	keyIndexM            = "index.m"
	keyIndexEfConstruct  = "index.ef_construction"
	keyIndexEfSearch     = "index.ef_search"
	keyIndexSeed         = "index.seed"
	keyIndexCompactRatio = "index.compact_ratio"

	keyCorpusPolicy          = "corpus.partial_policy"
	keyCorpusWorkers         = "corpus.ingest_workers"
	keyCorpusVerifyInterval  = "corpus.verify_interval"
	keyCorpusCompactInterval = "corpus.compact_interval"

	keyRetrieveDefaultK  = "retrieval.default_k"
	keyRetrieveMaxK      = "retrieval.max_k"
	keyRetrieveOverFetch = "retrieval.over_fetch"
	keyRetrieveFloor     = "retrieval.score_floor"
	keyRetrievePerDoc    = "retrieval.max_per_document"
	keyRetrieveDedupe    = "retrieval.dedupe_threshold"
	keyRetrieveTimeout   = "retrieval.timeout"
	keyRetrievePolicy    = "retrieval.timeout_policy"

	keyPipelineProcessors = "pipeline.processors"
)

// EmbeddingValidator checks an embedding configuration against the live service.
type EmbeddingValidator func(ctx context.Context, settings *domain.EmbeddingSettings) error

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	validator   EmbeddingValidator
}

// NewSettingsService creates a new settings service. The validator may be nil.
func NewSettingsService(configStore driven.ConfigStore, validator EmbeddingValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		validator:   validator,
	}
}

// Get retrieves current application settings. Unset keys take their
// defaults; the result is not validated.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Chunker: domain.ChunkerSettings{
			Unit:       domain.ChunkUnit(s.getString(keyChunkUnit, string(d.Chunker.Unit))),
			Size:       s.getInt(keyChunkSize, d.Chunker.Size),
			Overlap:    s.getIntOrZero(keyChunkOverlap, d.Chunker.Overlap),
			Boundaries: s.getBoundaries(d.Chunker.Boundaries),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:       s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			BaseURL:        s.configStore.GetString(keyEmbedBaseURL), // No default - adapters know their endpoint
			APIKey:         s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:     s.getInt(keyEmbedDims, d.Embedding.Dimensions),
			BatchSize:      s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			MaxConcurrency: s.getInt(keyEmbedConcurrency, d.Embedding.MaxConcurrency),
			Timeout:        s.getDuration(keyEmbedTimeout, d.Embedding.Timeout),
			MaxAttempts:    s.getInt(keyEmbedAttempts, d.Embedding.MaxAttempts),
			InitialBackoff: s.getDuration(keyEmbedBackoff, d.Embedding.InitialBackoff),
			MaxBackoff:     s.getDuration(keyEmbedMaxBackoff, d.Embedding.MaxBackoff),
			RateLimit:      s.getFloat(keyEmbedRateLimit, d.Embedding.RateLimit),
		},
		Index: domain.IndexSettings{
			Kind:           domain.IndexKind(s.getString(keyIndexKind, string(d.Index.Kind))),
			M:              s.getInt(keyIndexM, d.Index.M),
			EfConstruction: s.getInt(keyIndexEfConstruct, d.Index.EfConstruction),
			EfSearch:       s.getInt(keyIndexEfSearch, d.Index.EfSearch),
			Seed:           uint64(s.getInt(keyIndexSeed, int(d.Index.Seed))),
			CompactRatio:   s.getFloat(keyIndexCompactRatio, d.Index.CompactRatio),
		},
		Corpus: domain.CorpusSettings{
			PartialPolicy:   domain.PartialPolicy(s.getString(keyCorpusPolicy, string(d.Corpus.PartialPolicy))),
			IngestWorkers:   s.getInt(keyCorpusWorkers, d.Corpus.IngestWorkers),
			VerifyInterval:  s.getDuration(keyCorpusVerifyInterval, d.Corpus.VerifyInterval),
			CompactInterval: s.getDuration(keyCorpusCompactInterval, d.Corpus.CompactInterval),
		},
		Retrieval: domain.RetrievalSettings{
			DefaultK:        s.getInt(keyRetrieveDefaultK, d.Retrieval.DefaultK),
			MaxK:            s.getInt(keyRetrieveMaxK, d.Retrieval.MaxK),
			OverFetch:       s.getInt(keyRetrieveOverFetch, d.Retrieval.OverFetch),
			ScoreFloor:      s.getFloat(keyRetrieveFloor, d.Retrieval.ScoreFloor),
			MaxPerDocument:  s.getInt(keyRetrievePerDoc, d.Retrieval.MaxPerDocument),
			DedupeThreshold: s.getFloat(keyRetrieveDedupe, d.Retrieval.DedupeThreshold),
			Timeout:         s.getDuration(keyRetrieveTimeout, d.Retrieval.Timeout),
			TimeoutPolicy:   domain.TimeoutPolicy(s.getString(keyRetrievePolicy, string(d.Retrieval.TimeoutPolicy))),
		},
	}

	// Model default follows the provider
	settings.Embedding.Model = s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[settings.Embedding.Provider])

	if settings.Embedding.Provider == domain.AIProviderOpenAI && settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = os.Getenv(EnvOpenAIAPIKey)
	}

	return settings, nil
}

// Save persists application settings. API keys are only written when set.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyChunkUnit, settings.Chunker.Unit.String()},
		{keyChunkSize, settings.Chunker.Size},
		{keyChunkOverlap, settings.Chunker.Overlap},
		{keyChunkBoundaries, boundaryStrings(settings.Chunker.Boundaries)},

		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedConcurrency, settings.Embedding.MaxConcurrency},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keyEmbedAttempts, settings.Embedding.MaxAttempts},
		{keyEmbedBackoff, settings.Embedding.InitialBackoff.String()},
		{keyEmbedMaxBackoff, settings.Embedding.MaxBackoff.String()},
		{keyEmbedRateLimit, settings.Embedding.RateLimit},

		{keyIndexKind, settings.Index.Kind.String()},
		{keyIndexM, settings.Index.M},
		{keyIndexEfConstruct, settings.Index.EfConstruction},
		{keyIndexEfSearch, settings.Index.EfSearch},
		{keyIndexSeed, int(settings.Index.Seed)},
		{keyIndexCompactRatio, settings.Index.CompactRatio},

		{keyCorpusPolicy, settings.Corpus.PartialPolicy.String()},
		{keyCorpusWorkers, settings.Corpus.IngestWorkers},
		{keyCorpusVerifyInterval, settings.Corpus.VerifyInterval.String()},
		{keyCorpusCompactInterval, settings.Corpus.CompactInterval.String()},

		{keyRetrieveDefaultK, settings.Retrieval.DefaultK},
		{keyRetrieveMaxK, settings.Retrieval.MaxK},
		{keyRetrieveOverFetch, settings.Retrieval.OverFetch},
		{keyRetrieveFloor, settings.Retrieval.ScoreFloor},
		{keyRetrievePerDoc, settings.Retrieval.MaxPerDocument},
		{keyRetrieveDedupe, settings.Retrieval.DedupeThreshold},
		{keyRetrieveTimeout, settings.Retrieval.Timeout.String()},
		{keyRetrievePolicy, string(settings.Retrieval.TimeoutPolicy)},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
// An empty model selects the provider's default model.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" && os.Getenv(EnvOpenAIAPIKey) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	changed := settings.Embedding.Provider != provider
	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if def, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = def
	}

	// A provider switch invalidates endpoint and size
	if changed {
		settings.Embedding.BaseURL = ""
		settings.Embedding.Dimensions = 0
	}
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q requires an API key (set %s)",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider, EnvOpenAIAPIKey)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig(ctx context.Context) error {
	if s.validator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.validator(ctx, &settings.Embedding)
}

// GetPipelineConfig returns the post-processor pipeline configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetPipelineConfig() domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig()

	if _, exists := s.configStore.Get(keyPipelineProcessors); exists {
		cfg.Processors = s.configStore.GetStringSlice(keyPipelineProcessors)
	}

	for _, name := range cfg.Processors {
		prefix := "pipeline." + name + "."
		if pc := s.loadProcessorConfig(prefix); len(pc) > 0 {
			if cfg.ProcessorConfigs == nil {
				cfg.ProcessorConfigs = make(map[string]map[string]any)
			}
			cfg.ProcessorConfigs[name] = pc
		}
	}

	return cfg
}

// loadProcessorConfig loads config keys with a given prefix into a map.
func (s *SettingsService) loadProcessorConfig(prefix string) map[string]any {
	cfg := make(map[string]any)

	knownKeys := []string{"max_level"}
	for _, key := range knownKeys {
		if val, exists := s.configStore.Get(prefix + key); exists {
			cfg[key] = val
		}
	}

	return cfg
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntOrZero is getInt for keys where 0 is a meaningful value.
func (s *SettingsService) getIntOrZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetDuration(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBoundaries(defaultVal []domain.Boundary) []domain.Boundary {
	vals := s.configStore.GetStringSlice(keyChunkBoundaries)
	if len(vals) == 0 {
		return defaultVal
	}
	out := make([]domain.Boundary, len(vals))
	for i, v := range vals {
		out[i] = domain.Boundary(v)
	}
	return out
}

func boundaryStrings(bs []domain.Boundary) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}
