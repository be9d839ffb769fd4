package driven

import "context"

// VectorIndex stores unit-normalised vectors keyed by chunk ID and answers
// nearest-neighbour queries by cosine similarity.
//
// Implementations serialise mutations against each other and make every
// mutation appear atomic to concurrent Search calls. Entries are
// normalised on insertion; zero vectors and vectors whose length differs
// from Dimension are rejected with domain.ErrInvalidInput.
type VectorIndex interface {
	// Apply deletes then upserts in one atomic step. Validation happens
	// before anything changes, so on error the index is untouched.
	// The returned entries carry the stored vector and assigned Seq.
	Apply(ctx context.Context, m Mutation) ([]IndexEntry, error)

	// Upsert inserts or replaces entries. Replacing an existing chunk ID
	// keeps exactly one entry for it and assigns a new Seq.
	Upsert(ctx context.Context, entries []IndexEntry) ([]IndexEntry, error)

	// Delete removes entries. Unknown IDs are ignored.
	Delete(ctx context.Context, chunkIDs []string) error

	// Search returns at most k hits with Similarity >= floor, ordered by
	// similarity descending then Seq ascending. If ctx expires mid-search
	// the hits ranked so far are returned together with ctx.Err().
	Search(ctx context.Context, query []float32, k int, floor float64) ([]VectorHit, error)

	// Get returns the entry stored for a chunk ID.
	Get(chunkID string) (IndexEntry, bool)

	// Entries returns every live entry in Seq order.
	Entries() []IndexEntry

	// Len returns the number of live entries.
	Len() int

	// Dimension returns the fixed vector size, or 0 before the first insert.
	Dimension() int

	// LastSeq returns the highest Seq ever assigned.
	LastSeq() uint64

	// Stats reports structural counters.
	Stats() IndexStats

	// Compact rebuilds internal structures to drop deleted entries.
	Compact(ctx context.Context) error

	// Reset removes every entry. Seq numbering continues.
	Reset()

	// Close releases resources. Later calls fail with domain.ErrIndexClosed.
	Close() error
}

// IndexEntry pairs a vector with its chunk back-reference.
type IndexEntry struct {
	ChunkID    string
	DocumentID string
	Ordinal    int
	Vector     []float32

	// Seq is the insertion sequence number. Leave 0 to have the index
	// assign the next one; a preset Seq must exceed LastSeq.
	Seq uint64
}

// Mutation is a batch of deletes and upserts applied atomically.
type Mutation struct {
	Delete []string
	Upsert []IndexEntry
}

// IsEmpty reports whether the mutation changes nothing.
func (m Mutation) IsEmpty() bool {
	return len(m.Delete) == 0 && len(m.Upsert) == 0
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	ChunkID    string
	DocumentID string
	Ordinal    int

	// Similarity is the exact cosine similarity in [-1, 1].
	Similarity float64

	Seq uint64
}

// IndexStats reports index internals.
type IndexStats struct {
	Kind       string
	Live       int
	Tombstones int
	Dimension  int
	LastSeq    uint64
	MaxLevel   int
}
