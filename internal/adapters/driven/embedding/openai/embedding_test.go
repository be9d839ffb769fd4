package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/core/domain"
)

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

func newTestService(t *testing.T, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewEmbeddingService(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	return svc
}

func writeEmbeddings(w http.ResponseWriter, data []embeddingData) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  DefaultModel,
	})
}

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc, err := NewEmbeddingService(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 1536, svc.Dimensions())

	svc, err = NewEmbeddingService(Config{APIKey: "sk-test", Model: "text-embedding-3-large", Dimensions: 256})
	require.NoError(t, err)
	assert.Equal(t, 256, svc.Dimensions())
	assert.True(t, svc.shortened)
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"a", "b"}, body.Input)
		assert.Equal(t, DefaultModel, body.Model)

		writeEmbeddings(w, []embeddingData{
			{Object: "embedding", Embedding: []float32{0, 1}, Index: 1},
			{Object: "embedding", Embedding: []float32{1, 0}, Index: 0},
		})
	})

	got, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, got)
}

func TestEmbedBatch_MissingSlotIsItemFailure(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEmbeddings(w, []embeddingData{
			{Object: "embedding", Embedding: []float32{1, 0}, Index: 0},
		})
	})

	got, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)

	var batchErr *domain.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Len(t, batchErr.Failures, 1)
	assert.Contains(t, batchErr.Failures, 1)
	assert.Equal(t, []float32{1, 0}, got[0])
	assert.Nil(t, got[1])
}

func TestEmbedBatch_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrTransientInference},
		{"server error", http.StatusBadGateway, domain.ErrTransientInference},
		{"bad request", http.StatusBadRequest, domain.ErrInvalidInput},
		{"unauthorised", http.StatusUnauthorized, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
			})

			_, err := svc.EmbedBatch(context.Background(), []string{"a"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEmbed_SingleText(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEmbeddings(w, []embeddingData{{Object: "embedding", Embedding: []float32{0.6, 0.8}, Index: 0}})
	})

	got, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, got)
}

func TestEmbedBatch_Empty(t *testing.T) {
	svc, err := NewEmbeddingService(Config{APIKey: "sk-test"})
	require.NoError(t, err)

	got, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClassify_Cancelled(t *testing.T) {
	err := classify(context.Canceled)
	assert.False(t, errors.Is(err, domain.ErrTransientInference))

	err = classify(context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrTransientInference)
}
