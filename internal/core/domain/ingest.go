package domain

import (
	"context"
	"errors"
)

// FailureCode classifies why a chunk could not be indexed.
type FailureCode string

// Failure codes reported per chunk.
const (
	// FailureTransient means retries against the model were exhausted.
	FailureTransient FailureCode = "transient"

	// FailureInvalid means the model returned an unusable vector,
	// e.g. the wrong dimension or a zero vector.
	FailureInvalid FailureCode = "invalid"

	// FailureRejected means the model refused the input outright.
	FailureRejected FailureCode = "rejected"

	// FailureCancelled means ingestion was cancelled before the chunk was embedded.
	FailureCancelled FailureCode = "cancelled"
)

// ClassifyFailure maps an embedding error to a failure code.
func ClassifyFailure(err error) FailureCode {
	switch {
	case errors.Is(err, context.Canceled):
		return FailureCancelled
	case errors.Is(err, ErrTransientInference), errors.Is(err, context.DeadlineExceeded):
		return FailureTransient
	case errors.Is(err, ErrInvalidInput):
		return FailureInvalid
	default:
		return FailureRejected
	}
}

// ChunkFailure reports a chunk that was not indexed.
type ChunkFailure struct {
	Ordinal int
	Code    FailureCode
	Reason  string
}

// IngestResult summarises one ingestion.
type IngestResult struct {
	DocumentID string
	Generation uint64

	// ChunksTotal is the number of chunks the document was split into.
	ChunksTotal int

	// ChunksIndexed is the number of chunks now searchable.
	ChunksIndexed int

	// Failures lists chunks that could not be embedded, by ordinal.
	Failures []ChunkFailure

	// Replaced is true when an earlier generation was swapped out.
	Replaced bool
}

// FailedOrdinals returns the ordinals of failed chunks in order.
func (r *IngestResult) FailedOrdinals() []int {
	out := make([]int, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.Ordinal)
	}
	return out
}

// PartialPolicy decides what happens when some chunks fail to embed.
type PartialPolicy string

// Available partial-success policies.
const (
	// PartialPolicyPartial indexes the chunks that succeeded and reports the rest.
	PartialPolicyPartial PartialPolicy = "partial"

	// PartialPolicyAllOrNothing rejects the whole generation if any chunk fails,
	// leaving the previous generation in place.
	PartialPolicyAllOrNothing PartialPolicy = "all_or_nothing"
)

// IsValid returns true if the policy is recognised.
func (p PartialPolicy) IsValid() bool {
	return p == PartialPolicyPartial || p == PartialPolicyAllOrNothing
}

// String returns the string representation.
func (p PartialPolicy) String() string {
	return string(p)
}

// ImportOptions overrides what a normaliser derives from a file.
// Empty fields keep the derived value.
type ImportOptions struct {
	ID       string
	Title    string
	Revision string
}
