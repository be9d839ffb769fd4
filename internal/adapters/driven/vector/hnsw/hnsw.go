package hnsw

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/custodia-labs/passage/internal/adapters/driven/vector"
	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const (
	// maxLevelCap bounds the number of layers.
	maxLevelCap = 16

	// checkEvery is how many expansions happen between context checks.
	checkEvery = 64

	none int32 = -1
)

// Config controls graph construction and search.
type Config struct {
	// Dimension fixes the vector size. 0 adopts the first vector's size.
	Dimension int

	// M is the neighbour count per node on upper layers; layer 0 keeps 2*M.
	M int

	// EfConstruction is the candidate list size while inserting.
	EfConstruction int

	// EfSearch is the minimum candidate list size while searching.
	EfSearch int

	// Seed fixes level assignment.
	Seed uint64

	// CompactRatio rebuilds the graph once tombstones exceed this share
	// of nodes. 0 disables automatic compaction.
	CompactRatio float64
}

// DefaultConfig returns a config suited to corpora of up to a few hundred
// thousand chunks.
func DefaultConfig() Config {
	return Config{
		M:              16,
		EfConstruction: 200,
		EfSearch:       64,
		Seed:           1,
		CompactRatio:   0.25,
	}
}

// ConfigFromSettings maps index settings onto a Config.
func ConfigFromSettings(s domain.IndexSettings, dimension int) Config {
	return Config{
		Dimension:      dimension,
		M:              s.M,
		EfConstruction: s.EfConstruction,
		EfSearch:       s.EfSearch,
		Seed:           s.Seed,
		CompactRatio:   s.CompactRatio,
	}
}

type node struct {
	entry   driven.IndexEntry
	level   int
	links   [][]int32
	deleted bool
}

// Index is an HNSW graph over unit vectors scored by inner product.
type Index struct {
	mu  sync.RWMutex
	cfg Config

	dim       int
	nodes     []node
	byID      map[string]int32
	entry     int32
	maxLevel  int
	live      int
	deleted   int
	lastSeq   uint64
	rng       *rand.Rand
	levelMult float64
	closed    bool
}

// New creates an empty index.
func New(cfg Config) (*Index, error) {
	if cfg.M < 2 {
		return nil, errors.New("hnsw: m must be at least 2")
	}
	if cfg.EfConstruction <= 0 || cfg.EfSearch <= 0 {
		return nil, errors.New("hnsw: ef values must be positive")
	}
	if cfg.Dimension < 0 {
		return nil, errors.New("hnsw: dimension must not be negative")
	}
	if cfg.CompactRatio < 0 || cfg.CompactRatio >= 1 {
		return nil, errors.New("hnsw: compact ratio must be in [0, 1)")
	}

	idx := &Index{
		cfg:       cfg,
		dim:       cfg.Dimension,
		levelMult: 1 / math.Log(float64(cfg.M)),
	}
	idx.resetGraph()
	return idx, nil
}

func (idx *Index) resetGraph() {
	idx.nodes = nil
	idx.byID = make(map[string]int32)
	idx.entry = none
	idx.maxLevel = 0
	idx.live = 0
	idx.deleted = 0
	idx.rng = rand.New(rand.NewPCG(idx.cfg.Seed, idx.cfg.Seed^0x9e3779b97f4a7c15))
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

	for _, id := range m.Delete {
		idx.remove(id)
	}
	idx.dim = p.Dimension
	idx.lastSeq = p.LastSeq
	for i := range p.Entries {
		idx.remove(p.Entries[i].ChunkID)
		idx.insert(p.Entries[i])
	}

	if idx.needsCompaction() {
		idx.rebuild()
	}
	return p.Entries, nil
}

// Upsert inserts or replaces entries.
func (idx *Index) Upsert(ctx context.Context, entries []driven.IndexEntry) ([]driven.IndexEntry, error) {
	return idx.Apply(ctx, driven.Mutation{Upsert: entries})
}

// Delete tombstones entries. Unknown IDs are ignored.
func (idx *Index) Delete(ctx context.Context, chunkIDs []string) error {
	_, err := idx.Apply(ctx, driven.Mutation{Delete: chunkIDs})
	return err
}

// Search walks the graph for candidates and re-ranks them exactly.
func (idx *Index) Search(ctx context.Context, query []float32, k int, floor float64) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, domain.ErrIndexClosed
	}
	if k <= 0 || idx.live == 0 {
		return []driven.VectorHit{}, nil
	}

	q, err := vector.PrepareQuery(query, idx.dim)
	if err != nil {
		return nil, err
	}

	ef := max(idx.cfg.EfSearch, k)
	if idx.live <= ef {
		return idx.exact(ctx, q, k, floor)
	}
	if idx.deleted > 0 {
		ef += ef*idx.deleted/len(idx.nodes) + 1
	}

	ep := idx.entry
	for l := idx.maxLevel; l > 0; l-- {
		ep = idx.greedy(q, ep, l)
	}
	cands, searchErr := idx.searchLayer(ctx, q, ep, ef, 0)

	hits := make([]driven.VectorHit, 0, len(cands))
	for _, c := range cands {
		n := &idx.nodes[c.id]
		if n.deleted {
			continue
		}
		hits = append(hits, vector.HitFor(&n.entry, vector.Cosine(q, n.entry.Vector)))
	}
	return vector.Rank(hits, k, floor), searchErr
}

// exact scores every live node. Used when the graph is no larger than
// the candidate list would be.
func (idx *Index) exact(ctx context.Context, q []float32, k int, floor float64) ([]driven.VectorHit, error) {
	hits := make([]driven.VectorHit, 0, idx.live)
	for i := range idx.nodes {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return vector.Rank(hits, k, floor), err
			}
		}
		n := &idx.nodes[i]
		if n.deleted {
			continue
		}
		hits = append(hits, vector.HitFor(&n.entry, vector.Cosine(q, n.entry.Vector)))
	}
	return vector.Rank(hits, k, floor), nil
}

// Get returns the live entry for a chunk ID.
func (idx *Index) Get(chunkID string) (driven.IndexEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	h, ok := idx.byID[chunkID]
	if !ok {
		return driven.IndexEntry{}, false
	}
	return idx.nodes[h].entry, true
}

// Entries returns every live entry in Seq order.
func (idx *Index) Entries() []driven.IndexEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.liveEntries()
}

func (idx *Index) liveEntries() []driven.IndexEntry {
	out := make([]driven.IndexEntry, 0, idx.live)
	for i := range idx.nodes {
		if !idx.nodes[i].deleted {
			out = append(out, idx.nodes[i].entry)
		}
	}
	return out
}

// Len returns the number of live entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.live
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

// Stats reports graph counters.
func (idx *Index) Stats() driven.IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return driven.IndexStats{
		Kind:       string(domain.IndexKindHNSW),
		Live:       idx.live,
		Tombstones: idx.deleted,
		Dimension:  idx.dim,
		LastSeq:    idx.lastSeq,
		MaxLevel:   idx.maxLevel,
	}
}

// Compact rebuilds the graph from live entries.
func (idx *Index) Compact(_ context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return domain.ErrIndexClosed
	}
	if idx.deleted > 0 {
		idx.rebuild()
	}
	return nil
}

// Reset removes every entry. Seq numbering continues.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.resetGraph()
	idx.dim = idx.cfg.Dimension
}

// Close releases the graph.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.closed = true
	idx.nodes = nil
	idx.byID = nil
	return nil
}

func (idx *Index) needsCompaction() bool {
	if idx.cfg.CompactRatio == 0 || idx.deleted == 0 {
		return false
	}
	return float64(idx.deleted) > idx.cfg.CompactRatio*float64(len(idx.nodes))
}

// rebuild reinserts live entries in Seq order with a freshly seeded
// level generator, so equal contents always give an equal graph.
func (idx *Index) rebuild() {
	live := idx.liveEntries()
	idx.resetGraph()
	for i := range live {
		idx.insert(live[i])
	}
}

func (idx *Index) remove(chunkID string) {
	h, ok := idx.byID[chunkID]
	if !ok {
		return
	}
	idx.nodes[h].deleted = true
	delete(idx.byID, chunkID)
	idx.live--
	idx.deleted++
}

func (idx *Index) randomLevel() int {
	l := int(math.Floor(-math.Log(1-idx.rng.Float64()) * idx.levelMult))
	return min(l, maxLevelCap)
}

func (idx *Index) maxConn(level int) int {
	if level == 0 {
		return 2 * idx.cfg.M
	}
	return idx.cfg.M
}

func (idx *Index) insert(e driven.IndexEntry) {
	h := int32(len(idx.nodes))
	level := idx.randomLevel()
	idx.nodes = append(idx.nodes, node{
		entry: e,
		level: level,
		links: make([][]int32, level+1),
	})
	idx.byID[e.ChunkID] = h
	idx.live++

	if idx.entry == none {
		idx.entry = h
		idx.maxLevel = level
		return
	}

	q := e.Vector
	ep := idx.entry
	for l := idx.maxLevel; l > level; l-- {
		ep = idx.greedy(q, ep, l)
	}

	for l := min(level, idx.maxLevel); l >= 0; l-- {
		cands, _ := idx.searchLayer(context.Background(), q, ep, idx.cfg.EfConstruction, l)
		neighbours := cands
		if len(neighbours) > idx.maxConn(l) {
			neighbours = neighbours[:idx.maxConn(l)]
		}

		links := make([]int32, 0, len(neighbours))
		for _, nb := range neighbours {
			links = append(links, nb.id)
		}
		idx.nodes[h].links[l] = links
		for _, nb := range neighbours {
			idx.link(nb.id, h, l)
		}
		ep = cands[0].id
	}

	if level > idx.maxLevel {
		idx.maxLevel = level
		idx.entry = h
	}
}

// link adds a back edge, pruning the neighbour list to its closest members.
func (idx *Index) link(from, to int32, level int) {
	links := append(idx.nodes[from].links[level], to)
	limit := idx.maxConn(level)
	if len(links) > limit {
		base := idx.nodes[from].entry.Vector
		ranked := make([]scored, len(links))
		for i, id := range links {
			ranked[i] = scored{id: id, score: vector.Dot32(base, idx.nodes[id].entry.Vector)}
		}
		slices.SortFunc(ranked, compareScored)
		links = links[:0]
		for _, r := range ranked[:limit] {
			links = append(links, r.id)
		}
	}
	idx.nodes[from].links[level] = links
}

// greedy walks one layer towards q and returns the closest node found.
func (idx *Index) greedy(q []float32, ep int32, level int) int32 {
	cur := ep
	best := vector.Dot32(q, idx.nodes[cur].entry.Vector)
	for changed := true; changed; {
		changed = false
		for _, nb := range idx.nodes[cur].links[level] {
			if s := vector.Dot32(q, idx.nodes[nb].entry.Vector); s > best {
				best, cur, changed = s, nb, true
			}
		}
	}
	return cur
}

// searchLayer is the HNSW beam search on one layer. It returns up to ef
// nodes, closest first. If ctx expires it returns what it has so far.
func (idx *Index) searchLayer(ctx context.Context, q []float32, ep int32, ef, level int) ([]scored, error) {
	visited := map[int32]struct{}{ep: {}}
	start := scored{id: ep, score: vector.Dot32(q, idx.nodes[ep].entry.Vector)}
	cands := &nearHeap{start}
	found := &farHeap{start}

	var err error
	for steps := 0; cands.Len() > 0; steps++ {
		if steps%checkEvery == 0 {
			if err = ctx.Err(); err != nil {
				break
			}
		}

		c := heap.Pop(cands).(scored)
		if found.Len() >= ef && closer((*found)[0], c) {
			break
		}

		for _, nb := range idx.nodes[c.id].links[level] {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}

			s := scored{id: nb, score: vector.Dot32(q, idx.nodes[nb].entry.Vector)}
			if found.Len() < ef || closer(s, (*found)[0]) {
				heap.Push(cands, s)
				heap.Push(found, s)
				if found.Len() > ef {
					heap.Pop(found)
				}
			}
		}
	}

	out := []scored(*found)
	slices.SortFunc(out, compareScored)
	return out, err
}

func compareScored(a, b scored) int {
	switch {
	case closer(a, b):
		return -1
	case closer(b, a):
		return 1
	default:
		return 0
	}
}
