// Package hash provides an offline embedding service based on feature hashing.
//
// Each word is lowercased and hashed into one of Dimensions buckets with a
// second hash choosing the sign. The bag of signed counts is normalised to
// unit length. Texts that share words land close together, which is enough
// for tests, demos and air-gapped use without a model server.
package hash

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "hash-384"
	DefaultDimensions = 384
)

// Config holds configuration for the hash embedding service.
type Config struct {
	// Model is reported by ModelName (default: hash-384).
	Model string

	// Dimensions is the number of hash buckets (default: 384).
	Dimensions int
}

// EmbeddingService embeds text by feature hashing. It is safe for
// concurrent use and never fails transiently.
type EmbeddingService struct {
	model      string
	dimensions int
}

// NewEmbeddingService creates a new hash embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{model: cfg.Model, dimensions: cfg.Dimensions}
}

// Embed returns the unit-length hashed bag of words for text.
// Text without any letters or digits has no features and is rejected.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc := make([]float64, s.dimensions)
	features := 0
	for _, token := range Tokens(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()

		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		acc[sum%uint64(s.dimensions)] += sign
		features++
	}
	if features == 0 {
		return nil, fmt.Errorf("hash: %w: text has no word features", domain.ErrInvalidInput)
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	if norm == 0 {
		// Every feature cancelled out.
		return nil, fmt.Errorf("hash: %w", domain.ErrZeroVector)
	}
	norm = math.Sqrt(norm)

	out := make([]float32, s.dimensions)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// EmbedBatch embeds each text independently. Failed items are reported
// through a *domain.BatchError with nil slots.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	failures := make(map[int]error)
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := s.Embed(ctx, text)
		if err != nil {
			failures[i] = err
			continue
		}
		out[i] = v
	}
	if err := domain.NewBatchError(failures); err != nil {
		return out, err
	}
	return out, nil
}

// Tokens splits text into lowercased words using Unicode word boundaries,
// dropping segments with no letters or digits.
func Tokens(text string) []string {
	var tokens []string
	state := -1
	for len(text) > 0 {
		var word string
		word, text, state = uniseg.FirstWordInString(text, state)
		if strings.IndexFunc(word, isWordRune) < 0 {
			continue
		}
		tokens = append(tokens, strings.ToLower(word))
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the configured model label.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
