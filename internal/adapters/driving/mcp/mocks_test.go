package mcp

import (
	"context"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	result *domain.RetrievalResult
	err    error

	gotQuery string
	gotOpts  domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	query string,
	opts domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	m.gotQuery, m.gotOpts = query, opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.RetrievalResult{Query: query}, nil
	}
	return m.result, nil
}

// mockCorpusService is a mock implementation of driving.CorpusService.
// Methods the server never calls panic through the nil embedded interface.
type mockCorpusService struct {
	driving.CorpusService

	records   map[string]*domain.DocumentRecord
	ingestErr error
	listErr   error

	ingested []*domain.Document
	deleted  []string
}

func newMockCorpus(records ...*domain.DocumentRecord) *mockCorpusService {
	m := &mockCorpusService{records: make(map[string]*domain.DocumentRecord)}
	for _, r := range records {
		m.records[r.Document.ID] = r
	}
	return m
}

func (m *mockCorpusService) Ingest(_ context.Context, doc *domain.Document) (*domain.IngestResult, error) {
	m.ingested = append(m.ingested, doc)
	if m.ingestErr != nil {
		return nil, m.ingestErr
	}
	_, replaced := m.records[doc.ID]
	m.records[doc.ID] = &domain.DocumentRecord{Document: *doc, Generation: 1}
	return &domain.IngestResult{
		DocumentID:    doc.ID,
		Generation:    1,
		ChunksTotal:   3,
		ChunksIndexed: 2,
		Failures:      []domain.ChunkFailure{{Ordinal: 2, Code: domain.FailureTransient, Reason: "retries exhausted"}},
		Replaced:      replaced,
	}, nil
}

func (m *mockCorpusService) Delete(_ context.Context, id string) (bool, error) {
	m.deleted = append(m.deleted, id)
	_, existed := m.records[id]
	delete(m.records, id)
	return existed, nil
}

func (m *mockCorpusService) GetDocument(_ context.Context, id string) (*domain.DocumentRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (m *mockCorpusService) ListDocuments(_ context.Context) ([]domain.DocumentSummary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.DocumentSummary, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Summary())
	}
	return out, nil
}

func (m *mockCorpusService) Stats(context.Context) (domain.CorpusStats, error) {
	if m.listErr != nil {
		return domain.CorpusStats{}, m.listErr
	}
	chunks := 0
	for _, r := range m.records {
		chunks += len(r.Chunks)
	}
	return domain.CorpusStats{Documents: len(m.records), Chunks: chunks, IndexKind: "flat"}, nil
}
