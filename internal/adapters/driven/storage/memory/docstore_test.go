package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/core/domain"
)

func testRecord(id string, generation uint64) *domain.DocumentRecord {
	now := time.Now()
	return &domain.DocumentRecord{
		Document: domain.Document{
			ID:        id,
			Title:     "Test Document",
			Origin:    "/path/to/" + id + ".txt",
			Content:   "Hello world.",
			Metadata:  map[string]any{"author": "Jane"},
			CreatedAt: now,
			UpdatedAt: now,
		},
		Generation: generation,
		Chunks: []domain.Chunk{
			{ID: id + "-c0", DocumentID: id, Ordinal: 0, Start: 0, End: 6, Content: "Hello ", Embedding: []float32{1, 0}, Seq: 1},
			{ID: id + "-c1", DocumentID: id, Ordinal: 1, Start: 6, End: 12, Content: "world."},
		},
		Failures: []domain.ChunkFailure{{Ordinal: 1, Code: domain.FailureTransient, Reason: "busy"}},
	}
}

func TestNewDocumentStore(t *testing.T) {
	store := NewDocumentStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.records)
}

func TestDocumentStore_SaveRecord_Success(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, testRecord("doc-1", 1)))

	saved, err := store.GetRecord(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", saved.Document.ID)
	assert.Equal(t, "Test Document", saved.Document.Title)
	assert.Equal(t, "Jane", saved.Document.Metadata["author"])
	assert.Equal(t, uint64(1), saved.Generation)
	require.Len(t, saved.Chunks, 2)
	assert.Equal(t, []float32{1, 0}, saved.Chunks[0].Embedding)
	assert.Equal(t, uint64(1), saved.Chunks[0].Seq)
	assert.Len(t, saved.Failures, 1)
}

func TestDocumentStore_SaveRecord_Replaces(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, testRecord("doc-1", 1)))
	rec := testRecord("doc-1", 2)
	rec.Chunks = rec.Chunks[:1]
	require.NoError(t, store.SaveRecord(ctx, rec))

	saved, err := store.GetRecord(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), saved.Generation)
	assert.Len(t, saved.Chunks, 1)
}

func TestDocumentStore_SaveRecord_Invalid(t *testing.T) {
	store := NewDocumentStore()

	assert.ErrorIs(t, store.SaveRecord(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.SaveRecord(context.Background(), &domain.DocumentRecord{}), domain.ErrInvalidInput)
}

func TestDocumentStore_CopiesOnWriteAndRead(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	rec := testRecord("doc-1", 1)
	require.NoError(t, store.SaveRecord(ctx, rec))
	rec.Chunks[0].Embedding[0] = 42
	rec.Document.Metadata["author"] = "Mallory"

	got, err := store.GetRecord(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, float32(1), got.Chunks[0].Embedding[0])
	assert.Equal(t, "Jane", got.Document.Metadata["author"])

	got.Chunks[0].Content = "changed"
	again, err := store.GetRecord(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello ", again.Chunks[0].Content)
}

func TestDocumentStore_GetRecord_NotFound(t *testing.T) {
	store := NewDocumentStore()

	_, err := store.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_DeleteDocument(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, testRecord("doc-1", 1)))
	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))
	require.NoError(t, store.DeleteDocument(ctx, "unknown"))

	_, err := store.GetRecord(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListAndLoadAll_Ordered(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.SaveRecord(ctx, testRecord(id, 1)))
	}

	list, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "c", list[2].ID)
	assert.Equal(t, 2, list[0].Chunks)
	assert.Equal(t, 1, list[0].Failed)

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Document.ID)
	assert.Equal(t, "c", all[2].Document.ID)
}

func TestDocumentStore_Purge(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, testRecord("doc-1", 1)))
	require.NoError(t, store.Purge(ctx))

	list, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, store.Close())
}

func TestDocumentStore_ConcurrentAccess(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := string(rune('a' + i))
			_ = store.SaveRecord(ctx, testRecord(id, 1))
			_, _ = store.GetRecord(ctx, id)
			_, _ = store.LoadAll(ctx)
		}()
	}
	wg.Wait()

	list, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 10)
}
