// Package flat provides an exhaustive vector index that scores every
// entry exactly. It implements the driven.VectorIndex interface and is
// the reference the HNSW index is tested against.
package flat

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/passage/internal/adapters/driven/vector"
	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// checkEvery is how many entries are scored between context checks.
const checkEvery = 256

// Index keeps entries in Seq order and scans them all on search.
type Index struct {
	mu       sync.RWMutex
	dim      int
	fixedDim bool
	entries  []driven.IndexEntry
	pos      map[string]int
	lastSeq  uint64
	closed   bool
}

// New creates an empty index. A dimension of 0 adopts the size of the
// first inserted vector.
func New(dimension int) *Index {
	return &Index{
		dim:      dimension,
		fixedDim: dimension > 0,
		pos:      make(map[string]int),
	}
}

// Apply deletes then upserts atomically.
func (idx *Index) Apply(_ context.Context, m driven.Mutation) ([]driven.IndexEntry, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil, domain.ErrIndexClosed
	}

	p, err := vector.Prepare(m.Upsert, idx.dim, idx.lastSeq)
	if err != nil {
		return nil, err
	}

	drop := make(map[string]struct{}, len(m.Delete)+len(p.Entries))
	for _, id := range m.Delete {
		drop[id] = struct{}{}
	}
	latest := make(map[string]int, len(p.Entries))
	for i := range p.Entries {
		drop[p.Entries[i].ChunkID] = struct{}{}
		latest[p.Entries[i].ChunkID] = i
	}

	kept := make([]driven.IndexEntry, 0, len(idx.entries)+len(p.Entries))
	for i := range idx.entries {
		if _, ok := drop[idx.entries[i].ChunkID]; !ok {
			kept = append(kept, idx.entries[i])
		}
	}
	// a later entry in the same batch replaces an earlier one
	for i := range p.Entries {
		if latest[p.Entries[i].ChunkID] == i {
			kept = append(kept, p.Entries[i])
		}
	}

	idx.entries = kept
	idx.pos = make(map[string]int, len(kept))
	for i := range kept {
		idx.pos[kept[i].ChunkID] = i
	}
	idx.dim = p.Dimension
	idx.lastSeq = p.LastSeq

	return p.Entries, nil
}

// Upsert inserts or replaces entries.
func (idx *Index) Upsert(ctx context.Context, entries []driven.IndexEntry) ([]driven.IndexEntry, error) {
	return idx.Apply(ctx, driven.Mutation{Upsert: entries})
}

// Delete removes entries. Unknown IDs are ignored.
func (idx *Index) Delete(ctx context.Context, chunkIDs []string) error {
	_, err := idx.Apply(ctx, driven.Mutation{Delete: chunkIDs})
	return err
}

// Search scores every entry exactly.
func (idx *Index) Search(ctx context.Context, query []float32, k int, floor float64) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, domain.ErrIndexClosed
	}
	if k <= 0 || len(idx.entries) == 0 {
		return []driven.VectorHit{}, nil
	}

	q, err := vector.PrepareQuery(query, idx.dim)
	if err != nil {
		return nil, err
	}

	hits := make([]driven.VectorHit, 0, len(idx.entries))
	for i := range idx.entries {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return vector.Rank(hits, k, floor), err
			}
		}
		e := &idx.entries[i]
		hits = append(hits, vector.HitFor(e, vector.Cosine(q, e.Vector)))
	}

	return vector.Rank(hits, k, floor), nil
}

// Get returns the entry stored for a chunk ID.
func (idx *Index) Get(chunkID string) (driven.IndexEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	i, ok := idx.pos[chunkID]
	if !ok {
		return driven.IndexEntry{}, false
	}
	return idx.entries[i], true
}

// Entries returns every entry in Seq order.
func (idx *Index) Entries() []driven.IndexEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return slices.Clone(idx.entries)
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entries)
}

// Dimension returns the vector size.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.dim
}

// LastSeq returns the highest Seq ever assigned.
func (idx *Index) LastSeq() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastSeq
}

// Stats reports index counters.
func (idx *Index) Stats() driven.IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return driven.IndexStats{
		Kind:      string(domain.IndexKindFlat),
		Live:      len(idx.entries),
		Dimension: idx.dim,
		LastSeq:   idx.lastSeq,
	}
}

// Compact is a no-op; deletes are applied eagerly.
func (idx *Index) Compact(context.Context) error {
	return nil
}

// Reset removes every entry.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = nil
	idx.pos = make(map[string]int)
	if !idx.fixedDim {
		idx.dim = 0
	}
}

// Close releases resources.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.closed = true
	idx.entries = nil
	idx.pos = nil
	return nil
}
