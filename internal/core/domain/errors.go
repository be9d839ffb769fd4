package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed input or configuration.
	// It is never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates a vector whose length differs from the index.
	// It wraps ErrInvalidInput.
	ErrDimensionMismatch = fmt.Errorf("%w: vector dimension mismatch", ErrInvalidInput)

	// ErrZeroVector indicates a vector that cannot be normalised.
	// It wraps ErrInvalidInput.
	ErrZeroVector = fmt.Errorf("%w: zero-length vector", ErrInvalidInput)

	// ErrUnsupportedType indicates an unknown provider, index or processor type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrTransientInference indicates a retryable model failure
	// (timeout, rate limit, 5xx).
	ErrTransientInference = errors.New("transient inference failure")

	// ErrIndexCorruption indicates an index invariant was violated,
	// e.g. an entry that no longer resolves to a live chunk.
	// Callers recover by rebuilding the index from the corpus.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrQueryTimeout indicates a query ran past its deadline.
	ErrQueryTimeout = errors.New("query timeout")

	// ErrIncompleteGeneration indicates an all-or-nothing ingestion
	// where at least one chunk failed.
	ErrIncompleteGeneration = errors.New("incomplete generation")

	// ErrIndexClosed indicates the index was used after Close.
	ErrIndexClosed = errors.New("index closed")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index could not be
	// built from the configured settings.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrSkipped marks a file that was deliberately not imported.
	ErrSkipped = errors.New("skipped")
)

// BatchError reports per-item failures from a batched model call.
// Items not present in Failures succeeded.
type BatchError struct {
	Failures map[int]error
}

// NewBatchError returns nil when failures is empty.
func NewBatchError(failures map[int]error) error {
	if len(failures) == 0 {
		return nil
	}
	return &BatchError{Failures: failures}
}

func (e *BatchError) Error() string {
	idx := make([]int, 0, len(e.Failures))
	for i := range e.Failures {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("item %d: %v", i, e.Failures[i]))
	}
	return fmt.Sprintf("%d of batch failed: %s", len(idx), strings.Join(parts, "; "))
}

// Unwrap exposes the item errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		out = append(out, err)
	}
	return out
}
