package domain

import (
	"errors"
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// ChunkUnit is the unit chunk size and overlap are measured in.
type ChunkUnit string

// Available chunk units.
const (
	// ChunkUnitGrapheme counts user-perceived characters.
	ChunkUnitGrapheme ChunkUnit = "grapheme"

	// ChunkUnitWord counts whitespace-separated words.
	ChunkUnitWord ChunkUnit = "word"

	// ChunkUnitSentence counts sentences.
	ChunkUnitSentence ChunkUnit = "sentence"
)

// IsValid returns true if the unit is recognised.
func (u ChunkUnit) IsValid() bool {
	switch u {
	case ChunkUnitGrapheme, ChunkUnitWord, ChunkUnitSentence:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (u ChunkUnit) String() string {
	return string(u)
}

// Boundary is a place the chunker prefers to cut at.
type Boundary string

// Available boundaries, strongest first.
const (
	BoundaryParagraph Boundary = "paragraph"
	BoundarySentence  Boundary = "sentence"
	BoundaryWord      Boundary = "word"
	BoundaryHard      Boundary = "hard"
)

// IsValid returns true if the boundary is recognised.
func (b Boundary) IsValid() bool {
	switch b {
	case BoundaryParagraph, BoundarySentence, BoundaryWord, BoundaryHard:
		return true
	default:
		return false
	}
}

// Strength orders boundaries; a cut of strength s also satisfies every
// boundary of lower strength.
func (b Boundary) Strength() int {
	switch b {
	case BoundaryParagraph:
		return 3
	case BoundarySentence:
		return 2
	case BoundaryWord:
		return 1
	default:
		return 0
	}
}

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or a compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderHash is the built-in offline feature-hashing embedder.
	AIProviderHash AIProvider = "hash"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderHash:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs without a network call.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHash
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderHash:
		return "Feature hashing (offline)"
	default:
		return unknownDescription
	}
}

// IndexKind selects the vector index implementation.
type IndexKind string

// Available index kinds.
const (
	// IndexKindHNSW is the approximate graph index with exact re-ranking.
	IndexKindHNSW IndexKind = "hnsw"

	// IndexKindFlat scores every entry exactly.
	IndexKindFlat IndexKind = "flat"
)

// IsValid returns true if the index kind is recognised.
func (k IndexKind) IsValid() bool {
	return k == IndexKindHNSW || k == IndexKindFlat
}

// String returns the string representation.
func (k IndexKind) String() string {
	return string(k)
}

// ChunkerSettings holds chunking configuration.
type ChunkerSettings struct {
	// Unit is what Size and Overlap count.
	Unit ChunkUnit

	// Size is the window size in units.
	Size int

	// Overlap is how many units consecutive chunks share. Must be < Size.
	Overlap int

	// Boundaries is the cut preference list, most preferred first.
	Boundaries []Boundary
}

// Validate checks the chunker configuration.
func (c ChunkerSettings) Validate() error {
	if !c.Unit.IsValid() {
		return fmt.Errorf("%w: unknown chunk unit %q", ErrInvalidInput, c.Unit)
	}
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidInput, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidInput, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than size %d", ErrInvalidInput, c.Overlap, c.Size)
	}
	if len(c.Boundaries) == 0 {
		return fmt.Errorf("%w: boundary preference list is empty", ErrInvalidInput)
	}
	for _, b := range c.Boundaries {
		if !b.IsValid() {
			return fmt.Errorf("%w: unknown boundary %q", ErrInvalidInput, b)
		}
	}
	return nil
}

// EmbeddingSettings holds embedding provider and call-policy configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the expected vector size. 0 adopts the model's size.
	Dimensions int

	// BatchSize is the maximum number of texts per model call.
	BatchSize int

	// MaxConcurrency bounds in-flight batch calls per ingestion.
	MaxConcurrency int

	// Timeout bounds a single model call.
	Timeout time.Duration

	// MaxAttempts bounds retries of a transient failure, first call included.
	MaxAttempts int

	// InitialBackoff and MaxBackoff shape the exponential backoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// RateLimit caps model calls per second. 0 disables throttling.
	RateLimit float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// Validate checks the call policy.
func (e EmbeddingSettings) Validate() error {
	if !e.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidInput, e.Provider)
	}
	if e.Dimensions < 0 {
		return fmt.Errorf("%w: embedding dimensions must not be negative", ErrInvalidInput)
	}
	if e.BatchSize <= 0 || e.MaxConcurrency <= 0 || e.MaxAttempts <= 0 {
		return fmt.Errorf("%w: embedding batch size, concurrency and attempts must be positive", ErrInvalidInput)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("%w: embedding timeout must be positive", ErrInvalidInput)
	}
	if e.RateLimit < 0 {
		return fmt.Errorf("%w: embedding rate limit must not be negative", ErrInvalidInput)
	}
	return nil
}

// IndexSettings holds vector index configuration.
type IndexSettings struct {
	// Kind selects the implementation.
	Kind IndexKind

	// M is the HNSW neighbour count per layer (2*M on layer 0).
	M int

	// EfConstruction is the HNSW build-time candidate list size.
	EfConstruction int

	// EfSearch is the minimum HNSW query-time candidate list size.
	EfSearch int

	// Seed fixes HNSW level assignment so builds are reproducible.
	Seed uint64

	// CompactRatio triggers a graph rebuild once tombstones exceed this
	// fraction of nodes. 0 disables automatic compaction.
	CompactRatio float64
}

// Validate checks the index configuration.
func (s IndexSettings) Validate() error {
	if !s.Kind.IsValid() {
		return fmt.Errorf("%w: unknown index kind %q", ErrInvalidInput, s.Kind)
	}
	if s.Kind == IndexKindHNSW && (s.M < 2 || s.EfConstruction <= 0 || s.EfSearch <= 0) {
		return fmt.Errorf("%w: hnsw needs m >= 2 and positive ef values", ErrInvalidInput)
	}
	if s.CompactRatio < 0 || s.CompactRatio >= 1 {
		return fmt.Errorf("%w: compact ratio must be in [0, 1)", ErrInvalidInput)
	}
	return nil
}

// CorpusSettings holds ingestion and maintenance configuration.
type CorpusSettings struct {
	// PartialPolicy decides whether partly embedded documents are indexed.
	PartialPolicy PartialPolicy

	// IngestWorkers bounds concurrent document ingestions.
	IngestWorkers int

	// VerifyInterval runs a periodic consistency check. 0 disables it.
	VerifyInterval time.Duration

	// CompactInterval runs periodic index compaction. 0 disables it.
	CompactInterval time.Duration
}

// Validate checks the corpus configuration.
func (s CorpusSettings) Validate() error {
	if !s.PartialPolicy.IsValid() {
		return fmt.Errorf("%w: unknown partial policy %q", ErrInvalidInput, s.PartialPolicy)
	}
	if s.IngestWorkers <= 0 {
		return fmt.Errorf("%w: ingest workers must be positive", ErrInvalidInput)
	}
	if s.VerifyInterval < 0 || s.CompactInterval < 0 {
		return fmt.Errorf("%w: maintenance intervals must not be negative", ErrInvalidInput)
	}
	return nil
}

// RetrievalSettings holds query defaults.
type RetrievalSettings struct {
	// DefaultK is used when a query does not set K.
	DefaultK int

	// MaxK caps K.
	MaxK int

	// OverFetch multiplies K for candidate generation before filtering.
	OverFetch int

	// ScoreFloor is the default minimum similarity.
	ScoreFloor float64

	// MaxPerDocument is the default per-document cap. 0 means no cap.
	MaxPerDocument int

	// DedupeThreshold is the default near-duplicate threshold. 0 disables it.
	DedupeThreshold float64

	// Timeout bounds a query.
	Timeout time.Duration

	// TimeoutPolicy decides what a timed-out query returns.
	TimeoutPolicy TimeoutPolicy
}

// Validate checks the retrieval configuration.
func (s RetrievalSettings) Validate() error {
	if s.DefaultK <= 0 || s.MaxK < s.DefaultK {
		return fmt.Errorf("%w: need 0 < default k <= max k", ErrInvalidInput)
	}
	if s.OverFetch < 1 {
		return fmt.Errorf("%w: over-fetch factor must be at least 1", ErrInvalidInput)
	}
	if s.ScoreFloor < -1 || s.ScoreFloor > 1 {
		return fmt.Errorf("%w: score floor must be in [-1, 1]", ErrInvalidInput)
	}
	if s.MaxPerDocument < 0 {
		return fmt.Errorf("%w: max per document must not be negative", ErrInvalidInput)
	}
	if s.DedupeThreshold < 0 || s.DedupeThreshold > 1 {
		return fmt.Errorf("%w: dedupe threshold must be in [0, 1]", ErrInvalidInput)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: query timeout must be positive", ErrInvalidInput)
	}
	if !s.TimeoutPolicy.IsValid() {
		return fmt.Errorf("%w: unknown timeout policy %q", ErrInvalidInput, s.TimeoutPolicy)
	}
	return nil
}

// AppSettings holds all application settings.
type AppSettings struct {
	Chunker   ChunkerSettings
	Embedding EmbeddingSettings
	Index     IndexSettings
	Corpus    CorpusSettings
	Retrieval RetrievalSettings
}

// Validate checks every section and joins the failures.
func (s AppSettings) Validate() error {
	return errors.Join(
		s.Chunker.Validate(),
		s.Embedding.Validate(),
		s.Index.Validate(),
		s.Corpus.Validate(),
		s.Retrieval.Validate(),
	)
}

// DefaultBoundaries is the default cut preference list.
func DefaultBoundaries() []Boundary {
	return []Boundary{BoundaryParagraph, BoundarySentence, BoundaryWord, BoundaryHard}
}

// DefaultAppSettings returns settings with sensible defaults.
// The offline hash embedder is selected so the engine works without
// any model service configured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunker: ChunkerSettings{
			Unit:       ChunkUnitGrapheme,
			Size:       1000,
			Overlap:    200,
			Boundaries: DefaultBoundaries(),
		},
		Embedding: EmbeddingSettings{
			Provider:       AIProviderHash,
			Model:          DefaultEmbeddingModels()[AIProviderHash],
			Dimensions:     0,
			BatchSize:      32,
			MaxConcurrency: 4,
			Timeout:        30 * time.Second,
			MaxAttempts:    4,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		},
		Index: IndexSettings{
			Kind:           IndexKindHNSW,
			M:              16,
			EfConstruction: 200,
			EfSearch:       64,
			Seed:           1,
			CompactRatio:   0.25,
		},
		Corpus: CorpusSettings{
			PartialPolicy: PartialPolicyPartial,
			IngestWorkers: 4,
		},
		Retrieval: RetrievalSettings{
			DefaultK:      5,
			MaxK:          20,
			OverFetch:     4,
			Timeout:       10 * time.Second,
			TimeoutPolicy: TimeoutPolicyPartial,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderHash,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderHash:   "hash-384",
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"hash-384": 384,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds chunk post-processor pipeline configuration.
// Processors run in order after the chunker; configuration is map based
// so new processors can be added without changing this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: []string{"sections"},
	}
}
