// Package vectortest holds behaviour tests shared by every
// driven.VectorIndex implementation.
package vectortest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/passage/internal/adapters/driven/vector"
	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Factory creates an empty index that adopts the first vector's dimension.
type Factory func(t *testing.T) driven.VectorIndex

// Entry is a shorthand constructor for test entries.
func Entry(chunkID, docID string, ordinal int, v ...float32) driven.IndexEntry {
	return driven.IndexEntry{ChunkID: chunkID, DocumentID: docID, Ordinal: ordinal, Vector: v}
}

// Run exercises the VectorIndex contract.
func Run(t *testing.T, newIndex Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("upsert stores unit vectors", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("c1", "d1", 0, 3, 4)})
		require.NoError(t, err)

		got, ok := idx.Get("c1")
		require.True(t, ok)
		assert.True(t, vector.IsUnit(got.Vector))
		assert.InDelta(t, 0.6, got.Vector[0], 1e-6)
		assert.InDelta(t, 0.8, got.Vector[1], 1e-6)
		assert.Equal(t, 2, idx.Dimension())
	})

	t.Run("upsert same id twice keeps one entry", func(t *testing.T) {
		idx := newIndex(t)
		first, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("c1", "d1", 0, 1, 0)})
		require.NoError(t, err)
		second, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("c1", "d1", 0, 0, 1)})
		require.NoError(t, err)

		assert.Equal(t, 1, idx.Len())
		assert.Greater(t, second[0].Seq, first[0].Seq)

		got, ok := idx.Get("c1")
		require.True(t, ok)
		assert.InDelta(t, 1.0, got.Vector[1], 1e-6)

		hits, err := idx.Search(ctx, []float32{0, 1}, 10, -1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c1", hits[0].ChunkID)
	})

	t.Run("duplicate ids in one batch keep the last", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Upsert(ctx, []driven.IndexEntry{
			Entry("c1", "d1", 0, 1, 0),
			Entry("c1", "d1", 0, 0, 1),
		})
		require.NoError(t, err)

		assert.Equal(t, 1, idx.Len())
		got, _ := idx.Get("c1")
		assert.InDelta(t, 1.0, got.Vector[1], 1e-6)
	})

	t.Run("sequence numbers strictly increase", func(t *testing.T) {
		idx := newIndex(t)
		out, err := idx.Upsert(ctx, []driven.IndexEntry{
			Entry("a", "d", 0, 1, 0),
			Entry("b", "d", 1, 0, 1),
			Entry("c", "d", 2, 1, 1),
		})
		require.NoError(t, err)
		require.Len(t, out, 3)
		for i := 1; i < len(out); i++ {
			assert.Greater(t, out[i].Seq, out[i-1].Seq)
		}
		assert.Equal(t, out[2].Seq, idx.LastSeq())

		entries := idx.Entries()
		require.Len(t, entries, 3)
		assert.Equal(t, []string{"a", "b", "c"}, chunkIDs(entries))
	})

	t.Run("preset sequence must exceed last", func(t *testing.T) {
		idx := newIndex(t)
		e := Entry("a", "d", 0, 1, 0)
		e.Seq = 10
		out, err := idx.Upsert(ctx, []driven.IndexEntry{e})
		require.NoError(t, err)
		assert.Equal(t, uint64(10), out[0].Seq)

		stale := Entry("b", "d", 1, 0, 1)
		stale.Seq = 10
		_, err = idx.Upsert(ctx, []driven.IndexEntry{stale})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Equal(t, 1, idx.Len())
	})

	t.Run("delete unknown id is a no-op", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Delete(ctx, []string{"missing"}))

		_, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("c1", "d1", 0, 1, 0)})
		require.NoError(t, err)
		require.NoError(t, idx.Delete(ctx, []string{"missing", "c1", "c1"}))
		assert.Equal(t, 0, idx.Len())
	})

	t.Run("dimension mismatch leaves index untouched", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("c1", "d1", 0, 1, 0)})
		require.NoError(t, err)
		lastSeq := idx.LastSeq()

		_, err = idx.Apply(ctx, driven.Mutation{
			Delete: []string{"c1"},
			Upsert: []driven.IndexEntry{
				Entry("c2", "d1", 1, 0, 1),
				Entry("c3", "d1", 2, 1, 0, 0),
			},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		assert.Equal(t, 1, idx.Len())
		_, ok := idx.Get("c1")
		assert.True(t, ok)
		assert.Equal(t, lastSeq, idx.LastSeq())

		_, err = idx.Search(ctx, []float32{1, 0, 0}, 1, -1)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("zero vector rejected", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("c1", "d1", 0, 0, 0)})
		assert.ErrorIs(t, err, domain.ErrZeroVector)
		assert.Equal(t, 0, idx.Len())
	})

	t.Run("search respects k and floor", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Upsert(ctx, []driven.IndexEntry{
			Entry("near", "d", 0, 1, 0.1),
			Entry("mid", "d", 1, 1, 1),
			Entry("far", "d", 2, -1, 0),
		})
		require.NoError(t, err)

		hits, err := idx.Search(ctx, []float32{1, 0}, 2, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"near", "mid"}, hitIDs(hits))

		hits, err = idx.Search(ctx, []float32{1, 0}, 10, 0.5)
		require.NoError(t, err)
		assert.Equal(t, []string{"near", "mid"}, hitIDs(hits))
		for _, h := range hits {
			assert.GreaterOrEqual(t, h.Similarity, 0.5)
			assert.LessOrEqual(t, h.Similarity, 1.0)
		}

		hits, err = idx.Search(ctx, []float32{1, 0}, 0, -1)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("equal scores break ties by lower sequence", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("second", "d", 1, 0, 2)})
		require.NoError(t, err)
		_, err = idx.Upsert(ctx, []driven.IndexEntry{Entry("third", "d", 2, 0, 1)})
		require.NoError(t, err)
		_, err = idx.Upsert(ctx, []driven.IndexEntry{Entry("first", "d", 0, 1, 0)})
		require.NoError(t, err)

		for range 5 {
			hits, err := idx.Search(ctx, []float32{0, 1}, 3, -1)
			require.NoError(t, err)
			assert.Equal(t, []string{"second", "third", "first"}, hitIDs(hits))
		}
	})

	t.Run("apply swaps atomically for readers", func(t *testing.T) {
		idx := newIndex(t)
		gen := func(n int) []driven.IndexEntry {
			out := make([]driven.IndexEntry, 3)
			for i := range out {
				out[i] = Entry(fmt.Sprintf("g%d-c%d", n, i), "doc", i, 1, float32(i+1))
			}
			return out
		}
		_, err := idx.Upsert(ctx, gen(0))
		require.NoError(t, err)

		var wg sync.WaitGroup
		stop := make(chan struct{})
		errs := make(chan string, 100)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					hits, err := idx.Search(ctx, []float32{1, 1}, 10, -1)
					if err != nil {
						errs <- err.Error()
						return
					}
					if len(hits) != 3 {
						errs <- fmt.Sprintf("saw %d entries", len(hits))
						return
					}
					prefix := strings.SplitN(hits[0].ChunkID, "-", 2)[0]
					for _, h := range hits {
						if !strings.HasPrefix(h.ChunkID, prefix+"-") {
							errs <- "saw mixed generations"
							return
						}
					}
				}
			}()
		}

		prev := gen(0)
		for n := 1; n <= 50; n++ {
			next := gen(n)
			_, err := idx.Apply(ctx, driven.Mutation{Delete: chunkIDs(prev), Upsert: next})
			require.NoError(t, err)
			prev = next
		}
		close(stop)
		wg.Wait()
		close(errs)
		for msg := range errs {
			t.Error(msg)
		}
		assert.Equal(t, 3, idx.Len())
	})

	t.Run("cancelled context surfaces error", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("c1", "d1", 0, 1, 0)})
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = idx.Search(cctx, []float32{1, 0}, 1, -1)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("reset keeps sequence numbering", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("c1", "d1", 0, 1, 0)})
		require.NoError(t, err)
		last := idx.LastSeq()

		idx.Reset()
		assert.Equal(t, 0, idx.Len())
		assert.Equal(t, last, idx.LastSeq())

		out, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("c1", "d1", 0, 1, 0, 0)})
		require.NoError(t, err)
		assert.Greater(t, out[0].Seq, last)
		assert.Equal(t, 3, idx.Dimension())
	})

	t.Run("closed index rejects calls", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Close())

		_, err := idx.Upsert(ctx, []driven.IndexEntry{Entry("c1", "d1", 0, 1, 0)})
		assert.ErrorIs(t, err, domain.ErrIndexClosed)
		_, err = idx.Search(ctx, []float32{1, 0}, 1, -1)
		assert.ErrorIs(t, err, domain.ErrIndexClosed)
	})
}

func chunkIDs(entries []driven.IndexEntry) []string {
	out := make([]string, len(entries))
	for i := range entries {
		out[i] = entries[i].ChunkID
	}
	return out
}

func hitIDs(hits []driven.VectorHit) []string {
	out := make([]string, len(hits))
	for i := range hits {
		out[i] = hits[i].ChunkID
	}
	return out
}
