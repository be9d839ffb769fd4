package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/core/domain"
)

func TestServer_handleIngestDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests and reports failures", func(t *testing.T) {
		corpus := newMockCorpus()
		s := newTestServer(t, &mockRetrievalService{}, corpus)

		_, out, err := s.handleIngestDocument(ctx, nil, IngestDocumentInput{
			Identity: "doc-1",
			Text:     "The cat sat. The dog ran.",
			Title:    "Pets",
			Origin:   "/notes/pets.txt",
			Revision: "r1",
		})

		require.NoError(t, err)
		assert.Equal(t, "doc-1", out.DocumentID)
		assert.Equal(t, uint64(1), out.Generation)
		assert.Equal(t, 3, out.ChunksTotal)
		assert.Equal(t, 2, out.ChunksIndexed)
		assert.False(t, out.Replaced)
		require.Len(t, out.Failures, 1)
		assert.Equal(t, FailureOutput{Ordinal: 2, Code: "transient", Reason: "retries exhausted"}, out.Failures[0])

		require.Len(t, corpus.ingested, 1)
		doc := corpus.ingested[0]
		assert.Equal(t, "doc-1", doc.ID)
		assert.Equal(t, "Pets", doc.Title)
		assert.Equal(t, "/notes/pets.txt", doc.Origin)
		assert.Equal(t, "r1", doc.Revision)
		assert.Equal(t, "The cat sat. The dog ran.", doc.Content)
	})

	t.Run("reports replacement", func(t *testing.T) {
		corpus := newMockCorpus(&domain.DocumentRecord{Document: domain.Document{ID: "doc-1"}})
		s := newTestServer(t, &mockRetrievalService{}, corpus)

		_, out, err := s.handleIngestDocument(ctx, nil, IngestDocumentInput{Identity: "doc-1", Text: "new"})

		require.NoError(t, err)
		assert.True(t, out.Replaced)
	})

	t.Run("propagates corpus errors", func(t *testing.T) {
		corpus := newMockCorpus()
		corpus.ingestErr = domain.ErrInvalidInput
		s := newTestServer(t, &mockRetrievalService{}, corpus)

		_, _, err := s.handleIngestDocument(ctx, nil, IngestDocumentInput{Identity: "doc-1"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns passages with citations", func(t *testing.T) {
		retrieval := &mockRetrievalService{result: &domain.RetrievalResult{
			Query: "cat",
			Passages: []domain.Passage{
				{
					Chunk: domain.Chunk{
						DocumentID: "doc-1",
						Ordinal:    3,
						Start:      40,
						End:        52,
						Content:    "The cat sat.",
						Metadata:   map[string]any{"section": "Pets"},
					},
					Title:    "Notes",
					Origin:   "/notes.md",
					Revision: "r2",
					Score:    0.87,
				},
				{
					Chunk: domain.Chunk{DocumentID: "doc-2", Ordinal: 0, Content: "Cats purr."},
					Score: 0.5,
				},
			},
			Partial: true,
		}}
		s := newTestServer(t, retrieval, newMockCorpus())

		_, out, err := s.handleRetrieve(ctx, nil, RetrieveInput{
			Query:          "cat",
			K:              2,
			ScoreFloor:     domain.Ptr(0.3),
			MaxPerDocument: domain.Ptr(1),
		})

		require.NoError(t, err)
		assert.Equal(t, 2, out.Count)
		assert.True(t, out.Partial)
		assert.Equal(t, PassageOutput{
			Text:         "The cat sat.",
			DocumentID:   "doc-1",
			ChunkOrdinal: 3,
			Citation:     "doc-1#3",
			Score:        0.87,
			Title:        "Notes",
			Origin:       "/notes.md",
			Revision:     "r2",
			Section:      "Pets",
			Start:        40,
			End:          52,
		}, out.Results[0])
		assert.Equal(t, "doc-2#0", out.Results[1].Citation)
		assert.Empty(t, out.Results[1].Section)

		assert.Equal(t, "cat", retrieval.gotQuery)
		assert.Equal(t, domain.RetrieveOptions{K: 2, ScoreFloor: domain.Ptr(0.3), MaxPerDocument: domain.Ptr(1)}, retrieval.gotOpts)
	})

	t.Run("explicit zero differs from omitted", func(t *testing.T) {
		tests := []struct {
			name string
			args string
			want domain.RetrieveOptions
		}{
			{"omitted", `{"query":"cat"}`, domain.RetrieveOptions{}},
			{
				"zero",
				`{"query":"cat","score_floor":0,"max_per_document":0}`,
				domain.RetrieveOptions{ScoreFloor: domain.Ptr(0.0), MaxPerDocument: domain.Ptr(0)},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				retrieval := &mockRetrievalService{}
				s := newTestServer(t, retrieval, newMockCorpus())

				var input RetrieveInput
				require.NoError(t, json.Unmarshal([]byte(tt.args), &input))
				_, _, err := s.handleRetrieve(ctx, nil, input)

				require.NoError(t, err)
				assert.Equal(t, tt.want, retrieval.gotOpts)
			})
		}
	})

	t.Run("empty corpus returns empty results", func(t *testing.T) {
		s := newTestServer(t, &mockRetrievalService{}, newMockCorpus())

		_, out, err := s.handleRetrieve(ctx, nil, RetrieveInput{Query: "anything"})

		require.NoError(t, err)
		assert.Zero(t, out.Count)
		assert.NotNil(t, out.Results)
	})

	t.Run("propagates retrieval errors", func(t *testing.T) {
		s := newTestServer(t, &mockRetrievalService{err: domain.ErrQueryTimeout}, newMockCorpus())

		_, _, err := s.handleRetrieve(ctx, nil, RetrieveInput{Query: "cat"})

		assert.ErrorIs(t, err, domain.ErrQueryTimeout)
	})
}

func TestServer_handleDeleteDocument(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		records     []*domain.DocumentRecord
		identity    string
		wantDeleted bool
		wantErr     error
	}{
		{
			name:        "existing document",
			records:     []*domain.DocumentRecord{{Document: domain.Document{ID: "doc-1"}}},
			identity:    "doc-1",
			wantDeleted: true,
		},
		{
			name:     "unknown document succeeds",
			identity: "missing",
		},
		{
			name:    "empty identity",
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corpus := newMockCorpus(tt.records...)
			s := newTestServer(t, &mockRetrievalService{}, corpus)

			_, out, err := s.handleDeleteDocument(ctx, nil, DeleteDocumentInput{Identity: tt.identity})

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Empty(t, corpus.deleted)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.identity, out.DocumentID)
			assert.Equal(t, tt.wantDeleted, out.Deleted)
			assert.Equal(t, []string{tt.identity}, corpus.deleted)
		})
	}
}
