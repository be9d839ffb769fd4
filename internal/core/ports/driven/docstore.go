package driven

import (
	"context"

	"github.com/custodia-labs/passage/internal/core/domain"
)

// DocumentStore persists the corpus: documents, their chunks, chunk
// vectors and insertion sequence numbers. A loaded snapshot is enough to
// rebuild the vector index without re-embedding.
type DocumentStore interface {
	// SaveRecord replaces the stored generation of a document, chunks
	// included, in a single transaction.
	SaveRecord(ctx context.Context, rec *domain.DocumentRecord) error

	// GetRecord retrieves a document generation by ID.
	// Returns domain.ErrNotFound when absent.
	GetRecord(ctx context.Context, id string) (*domain.DocumentRecord, error)

	// DeleteDocument removes a document and its chunks.
	// Deleting an unknown ID is not an error.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns a summary of every stored document ordered by ID.
	ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error)

	// LoadAll returns every stored generation ordered by document ID.
	LoadAll(ctx context.Context) ([]domain.DocumentRecord, error)

	// Purge removes every document.
	Purge(ctx context.Context) error

	// Close releases resources.
	Close() error
}
