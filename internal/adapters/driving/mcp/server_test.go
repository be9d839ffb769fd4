package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/core/domain"
)

func newTestServer(t *testing.T, retrieval *mockRetrievalService, corpus *mockCorpusService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Retrieval: retrieval, Corpus: corpus})
	require.NoError(t, err)
	return server
}

func TestNewServer(t *testing.T) {
	t.Run("missing retrieval service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{Corpus: newMockCorpus()})
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("missing corpus service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingCorpusService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		assert.NotNil(t, newTestServer(t, &mockRetrievalService{}, newMockCorpus()))
	})
}

func TestServer_HandlerServesMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("passage_corpus_documents 0\n"))
	})
	server, err := NewServer(&Ports{
		Retrieval: &mockRetrievalService{},
		Corpus:    newMockCorpus(),
		Metrics:   metrics,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "passage_corpus_documents"))
}

func TestServer_Health(t *testing.T) {
	record := &domain.DocumentRecord{
		Document: domain.Document{ID: "doc-1"},
		Chunks:   []domain.Chunk{{Ordinal: 0}, {Ordinal: 1}},
	}

	tests := []struct {
		name       string
		listErr    error
		wantCode   int
		wantStatus string
		wantDocs   int
		wantChunks int
	}{
		{"ok", nil, http.StatusOK, "ok", 1, 2},
		{"store down", errors.New("store offline"), http.StatusServiceUnavailable, "unavailable", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corpus := newMockCorpus(record)
			corpus.listErr = tt.listErr
			server := newTestServer(t, &mockRetrievalService{}, corpus)

			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantDocs, body.Documents)
			assert.Equal(t, tt.wantChunks, body.Chunks)
			if tt.listErr != nil {
				assert.Equal(t, "store offline", body.Error)
			}
		})
	}
}

func TestServer_MetricsAbsentWithoutHandler(t *testing.T) {
	server := newTestServer(t, &mockRetrievalService{}, newMockCorpus())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.NotContains(t, rec.Body.String(), "passage_corpus_documents")
}

func TestServer_RunHTTPStopsOnCancel(t *testing.T) {
	server := newTestServer(t, &mockRetrievalService{}, newMockCorpus())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.RunHTTP(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)
}

// connect runs the server over an in-memory transport and returns a client session.
func connect(t *testing.T, server *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func TestServer_ProtocolRoundTrip(t *testing.T) {
	retrieval := &mockRetrievalService{result: &domain.RetrievalResult{
		Passages: []domain.Passage{{
			Chunk: domain.Chunk{DocumentID: "doc-1", Ordinal: 0, Content: "The cat sat. "},
			Score: 0.9,
		}},
	}}
	session := connect(t, newTestServer(t, retrieval, newMockCorpus()))
	ctx := context.Background()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, len(tools.Tools))
	for i, tool := range tools.Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{"ingest_document", "retrieve", "delete_document"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "retrieve",
		Arguments: map[string]any{"query": "What did the cat do?", "k": 2},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "doc-1#0")
	assert.Equal(t, 2, retrieval.gotOpts.K)
}
