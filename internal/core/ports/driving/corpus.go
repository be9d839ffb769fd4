package driving

import (
	"context"

	"github.com/custodia-labs/passage/internal/core/domain"
)

// CorpusService owns the document-to-chunk mapping and is the only writer
// of the vector index.
type CorpusService interface {
	// Ingest chunks, embeds and indexes a document, atomically replacing
	// any previous generation with the same ID.
	Ingest(ctx context.Context, doc *domain.Document) (*domain.IngestResult, error)

	// IngestMany ingests documents on a bounded worker pool. Results are in
	// input order; a document that failed outright has a zero result and
	// its error is included in the joined error.
	IngestMany(ctx context.Context, docs []*domain.Document) ([]domain.IngestResult, error)

	// Delete removes a document and its index entries and reports whether
	// it existed. Unknown IDs succeed with false.
	Delete(ctx context.Context, documentID string) (bool, error)

	// GetDocument returns the current generation. domain.ErrNotFound when absent.
	GetDocument(ctx context.Context, documentID string) (*domain.DocumentRecord, error)

	// ListDocuments returns a summary per document ordered by ID.
	ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error)

	// Purge removes every document.
	Purge(ctx context.Context) error

	// Load replaces the in-memory corpus with the persisted snapshot and
	// rebuilds the index from stored vectors without re-embedding.
	Load(ctx context.Context) error

	// Search runs a vector query and resolves every hit to its chunk and
	// document under one consistent view. If ctx expires mid-search the
	// passages found so far are returned with the context error.
	Search(ctx context.Context, query []float32, k int, floor float64) ([]domain.Passage, error)

	// Verify checks the corpus and index invariants.
	// Returns an error wrapping domain.ErrIndexCorruption on violation.
	Verify(ctx context.Context) error

	// Rebuild recreates the index from the corpus mapping.
	Rebuild(ctx context.Context) error

	// Compact drops deleted entries from the index structure.
	Compact(ctx context.Context) error

	// Stats reports corpus and index counters.
	Stats(ctx context.Context) (domain.CorpusStats, error)
}

// RetrievalService answers queries against the corpus.
type RetrievalService interface {
	// Retrieve returns the passages most similar to the query.
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) (*domain.RetrievalResult, error)
}
