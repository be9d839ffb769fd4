package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/passage/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, dir
}

func testRecord(id string, generation uint64, seqStart uint64) *domain.DocumentRecord {
	now := time.Date(2026, 5, 1, 9, 30, 0, 123, time.UTC)
	content := "The cat sat. The cat slept."
	return &domain.DocumentRecord{
		Document: domain.Document{
			ID:        id,
			Title:     "Cats " + id,
			Origin:    "/docs/" + id + ".txt",
			Revision:  "r1",
			Content:   content,
			Metadata:  map[string]any{"mime_type": "text/plain"},
			CreatedAt: now,
			UpdatedAt: now.Add(time.Minute),
		},
		Generation: generation,
		Chunks: []domain.Chunk{
			{
				ID: id + "-c0", DocumentID: id, Ordinal: 0, Start: 0, End: 13,
				Content: "The cat sat. ", Embedding: []float32{0.6, 0.8}, Seq: seqStart,
				Metadata: map[string]any{"section": "Intro"},
			},
			{
				ID: id + "-c1", DocumentID: id, Ordinal: 1, Start: 13, End: 27,
				Content: "The cat slept.",
			},
		},
		Failures: []domain.ChunkFailure{{Ordinal: 1, Code: domain.FailureTransient, Reason: "timeout"}},
	}
}

// ==================== Store Creation ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, dir := setupTestStore(t)

	assert.Equal(t, filepath.Join(dir, DBName), store.Path())
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveRecord(ctx, testRecord("doc-1", 1, 1)))
	require.NoError(t, store.Close())

	// migrations must not re-run against an existing schema
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	rec, err := store.GetRecord(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Generation)
}

func TestMigrations_Embedded(t *testing.T) {
	data, err := migrations.FS.ReadFile("001_corpus.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS chunks")
}

// ==================== Records ====================

func TestStore_SaveAndGetRecord(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	want := testRecord("doc-1", 3, 10)
	require.NoError(t, store.SaveRecord(ctx, want))

	got, err := store.GetRecord(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_SaveRecordReplacesGeneration(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, testRecord("doc-1", 1, 1)))

	next := testRecord("doc-1", 2, 5)
	next.Chunks = next.Chunks[:1]
	next.Chunks[0].ID = "doc-1-new"
	next.Failures = nil
	require.NoError(t, store.SaveRecord(ctx, next))

	got, err := store.GetRecord(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Generation)
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, "doc-1-new", got.Chunks[0].ID)
	assert.Equal(t, uint64(5), got.Chunks[0].Seq)
	assert.Nil(t, got.Failures)
}

func TestStore_SaveRecordInvalid(t *testing.T) {
	store, _ := setupTestStore(t)

	assert.ErrorIs(t, store.SaveRecord(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.SaveRecord(context.Background(), &domain.DocumentRecord{}), domain.ErrInvalidInput)
}

func TestStore_SaveRecordRollsBack(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, testRecord("doc-1", 1, 1)))

	// duplicate ordinals violate the unique constraint half way through
	bad := testRecord("doc-1", 2, 7)
	bad.Chunks[1].Ordinal = 0
	require.Error(t, store.SaveRecord(ctx, bad))

	got, err := store.GetRecord(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Generation)
	assert.Len(t, got.Chunks, 2)
}

func TestStore_GetRecordNotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_DeleteDocument(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, testRecord("doc-1", 1, 1)))
	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	_, err := store.GetRecord(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// chunks went with the document
	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n))
	assert.Zero(t, n)

	assert.NoError(t, store.DeleteDocument(ctx, "unknown"))
}

func TestStore_ListDocuments(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, testRecord("b", 2, 3)))
	require.NoError(t, store.SaveRecord(ctx, testRecord("a", 1, 1)))

	list, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	want := testRecord("a", 1, 1).Summary()
	assert.Equal(t, want, list[0])
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, 2, list[1].Chunks)
	assert.Equal(t, 1, list[1].Failed)
}

func TestStore_LoadAll(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	empty, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.SaveRecord(ctx, testRecord("b", 1, 3)))
	require.NoError(t, store.SaveRecord(ctx, testRecord("a", 1, 1)))

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, *testRecord("a", 1, 1), all[0])
	assert.Equal(t, *testRecord("b", 1, 3), all[1])
}

func TestStore_Purge(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, testRecord("a", 1, 1)))
	require.NoError(t, store.SaveRecord(ctx, testRecord("b", 1, 3)))
	require.NoError(t, store.Purge(ctx))

	list, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// ==================== Helpers ====================

func TestFloat32Blob(t *testing.T) {
	vec := []float32{0, 1, -0.5, 3.25}
	assert.Equal(t, vec, bytesToFloat32Slice(float32SliceToBytes(vec)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestTimeText(t *testing.T) {
	assert.Empty(t, formatTime(time.Time{}))

	zero, err := parseTime("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}
