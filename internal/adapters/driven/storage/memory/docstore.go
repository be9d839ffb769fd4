package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Records are copied on the way in and out so callers cannot alias
// stored state.
type DocumentStore struct {
	mu      sync.RWMutex
	records map[string]domain.DocumentRecord
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		records: make(map[string]domain.DocumentRecord),
	}
}

// SaveRecord stores or replaces a document generation.
func (s *DocumentStore) SaveRecord(_ context.Context, rec *domain.DocumentRecord) error {
	if rec == nil || rec.Document.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Document.ID] = clone(rec)
	return nil
}

// GetRecord retrieves a document generation by ID.
func (s *DocumentStore) GetRecord(_ context.Context, id string) (*domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := clone(&rec)
	return &out, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// ListDocuments returns a summary of every document ordered by ID.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.DocumentSummary, 0, len(s.records))
	for id := range s.records {
		rec := s.records[id]
		result = append(result, rec.Summary())
	}
	slices.SortFunc(result, func(a, b domain.DocumentSummary) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

// LoadAll returns every stored generation ordered by document ID.
func (s *DocumentStore) LoadAll(_ context.Context) ([]domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.DocumentRecord, 0, len(s.records))
	for id := range s.records {
		rec := s.records[id]
		result = append(result, clone(&rec))
	}
	slices.SortFunc(result, func(a, b domain.DocumentRecord) int { return cmp.Compare(a.Document.ID, b.Document.ID) })
	return result, nil
}

// Purge removes every document.
func (s *DocumentStore) Purge(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.DocumentRecord)
	return nil
}

// Close is a no-op.
func (s *DocumentStore) Close() error {
	return nil
}

func clone(rec *domain.DocumentRecord) domain.DocumentRecord {
	out := *rec
	out.Document.Metadata = maps.Clone(rec.Document.Metadata)
	out.Chunks = make([]domain.Chunk, len(rec.Chunks))
	for i := range rec.Chunks {
		c := rec.Chunks[i]
		c.Embedding = slices.Clone(c.Embedding)
		c.Metadata = maps.Clone(c.Metadata)
		out.Chunks[i] = c
	}
	out.Failures = slices.Clone(rec.Failures)
	return out
}
