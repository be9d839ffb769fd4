package domain

import "time"

// RetrieveOptions configures a retrieval query.
// Zero values fall back to the configured retrieval defaults.
type RetrieveOptions struct {
	// K is the maximum number of passages.
	K int

	// ScoreFloor drops passages whose cosine similarity is below it.
	// nil uses the configured floor.
	ScoreFloor *float64

	// MaxPerDocument caps passages taken from one document. 0 means no
	// cap, nil uses the configured cap.
	MaxPerDocument *int

	// DedupeThreshold drops a passage whose similarity to an already
	// accepted passage exceeds it. 0 disables near-duplicate collapse, nil
	// uses the configured threshold.
	DedupeThreshold *float64

	// Timeout bounds the query. 0 uses the configured default.
	Timeout time.Duration
}

// Passage is a single ranked retrieval hit with citation metadata.
type Passage struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Title, Origin and Revision are copied from the owning document.
	Title    string
	Origin   string
	Revision string

	// Score is the cosine similarity in [-1, 1].
	Score float64

	// Seq is the index insertion sequence of the chunk.
	Seq uint64
}

// RetrievalResult is the ordered answer to a query.
type RetrievalResult struct {
	Query    string
	Passages []Passage

	// Partial is set when the query timed out and the passages are the
	// best found before the deadline.
	Partial bool
}

// TimeoutPolicy decides what a query returns when its deadline passes.
type TimeoutPolicy string

// Available query timeout policies.
const (
	// TimeoutPolicyPartial returns the candidates scored so far.
	TimeoutPolicyPartial TimeoutPolicy = "partial"

	// TimeoutPolicyError fails the query with ErrQueryTimeout.
	TimeoutPolicyError TimeoutPolicy = "error"
)

// IsValid returns true if the policy is recognised.
func (p TimeoutPolicy) IsValid() bool {
	return p == TimeoutPolicyPartial || p == TimeoutPolicyError
}

// CorpusStats describes the current corpus and index.
type CorpusStats struct {
	Documents    int
	Chunks       int
	IndexEntries int
	FailedChunks int
	Tombstones   int
	Dimension    int
	LastSeq      uint64
	IndexKind    string
}

// Ptr returns a pointer to v, for setting optional fields.
func Ptr[T any](v T) *T {
	return &v
}
