package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/passage/internal/adapters/driven/vector/hnsw"
	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/postprocessors/chunker"
)

func newSQLiteCorpus(t *testing.T, dir string, svc *vocabEmbedding) (*Corpus, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	chunk, err := chunker.New(chunker.WithUnit(domain.ChunkUnitSentence), chunker.WithChunkSize(1), chunker.WithOverlap(0))
	require.NoError(t, err)

	idx, err := hnsw.New(hnsw.Config{M: 4, EfConstruction: 16, EfSearch: 16, Seed: 1})
	require.NoError(t, err)

	c := NewCorpus(chunk, NewEmbedder(svc, testEmbeddingSettings()), idx, store, domain.CorpusSettings{})
	require.NoError(t, c.Load(context.Background()))
	return c, store
}

func TestCorpus_SQLiteSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, store := newSQLiteCorpus(t, dir, newVocabEmbedding())
	_, err := first.Ingest(ctx, &domain.Document{ID: "doc-1", Title: "Cats", Content: catText})
	require.NoError(t, err)
	_, err = first.Ingest(ctx, &domain.Document{ID: "doc-2", Content: "Dogs bark."})
	require.NoError(t, err)
	_, err = first.Delete(ctx, "doc-2")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	svc := newVocabEmbedding()
	second, _ := newSQLiteCorpus(t, dir, svc)

	assert.Zero(t, svc.batchCalls, "vectors come from the store")
	require.NoError(t, second.Verify(ctx))

	stats, err := second.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 3, stats.IndexEntries)

	rec, err := second.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Cats", rec.Document.Title)
	content, err := domain.ReconstructContent(rec.Chunks)
	require.NoError(t, err)
	assert.Equal(t, catText, content)

	// a re-ingest after restart keeps sequence numbers increasing
	res, err := second.Ingest(ctx, &domain.Document{ID: "doc-3", Content: "The cat sat."})
	require.NoError(t, err)
	fresh, err := second.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	for _, c := range rec.Chunks {
		assert.Less(t, c.Seq, fresh.Chunks[0].Seq)
	}
}
