package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
	"github.com/custodia-labs/passage/internal/core/ports/driving"
	"github.com/custodia-labs/passage/internal/logger"
	"github.com/custodia-labs/passage/internal/metrics"
)

// Ensure Corpus implements the interface.
var _ driving.CorpusService = (*Corpus)(nil)

// unitTolerance is how far a stored vector's norm may drift from 1.
const unitTolerance = 1e-3

type chunkLoc struct {
	documentID string
	pos        int
}

// Corpus owns the document-to-chunk mapping and is the only writer of
// the vector index.
//
// Ingestions of different documents run in parallel up to the commit.
// The commit swaps one document's generation in the record map, the
// store and the index while holding the write side of gate; searches hold
// the read side, so they see a document either entirely before or
// entirely after a swap.
type Corpus struct {
	chunker  driven.PostProcessor
	pipeline driven.PostProcessorPipeline
	embedder *Embedder
	index    driven.VectorIndex
	store    driven.DocumentStore
	settings domain.CorpusSettings
	metrics  *metrics.Metrics
	now      func() time.Time

	// keys serialises ingest and delete of the same document ID.
	keys keyLock

	gate    sync.RWMutex
	records map[string]*domain.DocumentRecord
	chunks  map[string]chunkLoc
}

// NewCorpus creates a corpus service. The store is optional; without it
// the corpus lives in memory only.
func NewCorpus(
	chunker driven.PostProcessor,
	embedder *Embedder,
	index driven.VectorIndex,
	store driven.DocumentStore,
	settings domain.CorpusSettings,
) *Corpus {
	if !settings.PartialPolicy.IsValid() {
		settings.PartialPolicy = domain.PartialPolicyPartial
	}
	if settings.IngestWorkers <= 0 {
		settings.IngestWorkers = domain.DefaultAppSettings().Corpus.IngestWorkers
	}
	return &Corpus{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		store:    store,
		settings: settings,
		now:      time.Now,
		records:  make(map[string]*domain.DocumentRecord),
		chunks:   make(map[string]chunkLoc),
	}
}

// SetPipeline sets the chunk post-processor pipeline run after the chunker.
func (c *Corpus) SetPipeline(p driven.PostProcessorPipeline) {
	c.pipeline = p
}

// SetMetrics attaches corpus metrics.
func (c *Corpus) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Ingest chunks, embeds and indexes a document, replacing its previous
// generation in one step. Chunks whose embedding failed are kept in the
// record and reported; under the all-or-nothing policy any failure leaves
// the previous generation in place and returns domain.ErrIncompleteGeneration.
func (c *Corpus) Ingest(ctx context.Context, doc *domain.Document) (*domain.IngestResult, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger.Section("Ingest")
	logger.Debug("Document %q: %d bytes", doc.ID, len(doc.Content))

	unlock := c.keys.Lock(doc.ID)
	defer unlock()

	chunks, err := c.split(ctx, doc)
	if err != nil {
		c.metrics.ObserveIngest(metrics.OutcomeError, 0, 0, time.Since(start))
		return nil, fmt.Errorf("chunk document %s: %w", doc.ID, err)
	}
	logger.Debug("Chunks: %d", len(chunks))

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	outcomes := c.embedder.EmbedMany(ctx, texts)
	if err := ctx.Err(); err != nil {
		c.metrics.ObserveIngest(metrics.OutcomeError, 0, 0, time.Since(start))
		return nil, fmt.Errorf("embed document %s: %w", doc.ID, err)
	}

	var failures []domain.ChunkFailure
	for i, o := range outcomes {
		if o.Err != nil {
			failures = append(failures, chunkFailure(i, o.Err))
			continue
		}
		chunks[i].Embedding = o.Vector
	}

	// Everything is ready; finish the swap even if the caller goes away now.
	res, err := c.commit(context.WithoutCancel(ctx), doc, chunks, failures)

	switch {
	case errors.Is(err, domain.ErrIncompleteGeneration):
		c.metrics.ObserveIngest(metrics.OutcomeRejected, 0, len(res.Failures), time.Since(start))
		logger.Warn("Document %q rejected: %d of %d chunks failed", doc.ID, len(res.Failures), res.ChunksTotal)
	case err != nil:
		c.metrics.ObserveIngest(metrics.OutcomeError, 0, 0, time.Since(start))
	case len(res.Failures) > 0:
		c.metrics.ObserveIngest(metrics.OutcomePartial, res.ChunksIndexed, len(res.Failures), time.Since(start))
		logger.Warn("Document %q indexed %d of %d chunks, failed ordinals %v",
			doc.ID, res.ChunksIndexed, res.ChunksTotal, res.FailedOrdinals())
	default:
		c.metrics.ObserveIngest(metrics.OutcomeOK, res.ChunksIndexed, 0, time.Since(start))
		logger.Info("Document %q generation %d: %d chunks indexed", doc.ID, res.Generation, res.ChunksIndexed)
	}
	return res, err
}

// split runs the chunker and the post-processor pipeline.
func (c *Corpus) split(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	chunks, err := c.chunker.Process(ctx, doc, nil)
	if err != nil {
		return nil, err
	}
	if c.pipeline != nil {
		chunks, err = c.pipeline.Process(ctx, doc, chunks)
		if err != nil {
			return nil, err
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %s produced no chunks", domain.ErrInvalidInput, doc.ID)
	}
	return chunks, nil
}

// commit persists the new generation and swaps it into the index and the
// record map under the write gate. The store is written first so a crash
// between the two steps is repaired by Load; if the index rejects the
// mutation the stored previous generation is restored.
func (c *Corpus) commit(
	ctx context.Context, doc *domain.Document, chunks []domain.Chunk, failures []domain.ChunkFailure,
) (*domain.IngestResult, error) {
	c.gate.Lock()
	defer c.gate.Unlock()

	prev := c.records[doc.ID]

	if dim := c.index.Dimension(); dim > 0 {
		for i := range chunks {
			if chunks[i].Embedded() && len(chunks[i].Embedding) != dim {
				err := fmt.Errorf("got %d want %d: %w", len(chunks[i].Embedding), dim, domain.ErrDimensionMismatch)
				failures = append(failures, chunkFailure(i, err))
				chunks[i].Embedding = nil
			}
		}
		sort.Slice(failures, func(a, b int) bool { return failures[a].Ordinal < failures[b].Ordinal })
	}

	res := &domain.IngestResult{
		DocumentID:  doc.ID,
		ChunksTotal: len(chunks),
		Failures:    failures,
	}
	if prev != nil {
		res.Generation = prev.Generation
	}

	if len(failures) > 0 && c.settings.PartialPolicy == domain.PartialPolicyAllOrNothing {
		return res, fmt.Errorf("document %s: %d of %d chunks failed: %w",
			doc.ID, len(failures), len(chunks), domain.ErrIncompleteGeneration)
	}

	stored := *doc
	stored.Metadata = maps.Clone(doc.Metadata)
	stored.UpdatedAt = c.now()
	switch {
	case prev != nil:
		stored.CreatedAt = prev.Document.CreatedAt
	case stored.CreatedAt.IsZero():
		stored.CreatedAt = stored.UpdatedAt
	}

	var m driven.Mutation
	if prev != nil {
		for i := range prev.Chunks {
			if prev.Chunks[i].Embedded() {
				m.Delete = append(m.Delete, prev.Chunks[i].ID)
			}
		}
	}
	// The gate makes this the only writer, so the next sequence numbers
	// are known before the index assigns them.
	seq := c.index.LastSeq()
	for i := range chunks {
		if !chunks[i].Embedded() {
			continue
		}
		seq++
		chunks[i].Seq = seq
		m.Upsert = append(m.Upsert, entryFor(&chunks[i]))
	}

	rec := &domain.DocumentRecord{
		Document:   stored,
		Generation: res.Generation + 1,
		Chunks:     chunks,
		Failures:   failures,
	}

	if c.store != nil {
		if err := c.store.SaveRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("save document %s: %w", doc.ID, err)
		}
	}
	if _, err := c.index.Apply(ctx, m); err != nil {
		c.restore(ctx, doc.ID, prev)
		return nil, fmt.Errorf("index document %s: %w", doc.ID, err)
	}

	c.swap(doc.ID, rec)
	c.updateGauges()

	res.Generation = rec.Generation
	res.ChunksIndexed = rec.IndexedChunks()
	res.Replaced = prev != nil
	return res, nil
}

// restore puts the previous generation back into the store.
func (c *Corpus) restore(ctx context.Context, id string, prev *domain.DocumentRecord) {
	if c.store == nil {
		return
	}
	var err error
	if prev != nil {
		err = c.store.SaveRecord(ctx, prev)
	} else {
		err = c.store.DeleteDocument(ctx, id)
	}
	if err != nil {
		logger.Error("Failed to restore document %q in store: %v", id, err)
	}
}

// swap replaces the in-memory generation of a document. rec nil removes it.
// Callers hold the write gate.
func (c *Corpus) swap(id string, rec *domain.DocumentRecord) {
	if prev := c.records[id]; prev != nil {
		for i := range prev.Chunks {
			delete(c.chunks, prev.Chunks[i].ID)
		}
	}
	if rec == nil {
		delete(c.records, id)
		return
	}
	c.records[id] = rec
	for i := range rec.Chunks {
		c.chunks[rec.Chunks[i].ID] = chunkLoc{documentID: id, pos: i}
	}
}

// IngestMany ingests documents on a bounded worker pool.
func (c *Corpus) IngestMany(ctx context.Context, docs []*domain.Document) ([]domain.IngestResult, error) {
	results := make([]domain.IngestResult, len(docs))
	errs := make([]error, len(docs))

	var g errgroup.Group
	g.SetLimit(c.settings.IngestWorkers)
	for i, doc := range docs {
		g.Go(func() error {
			res, err := c.Ingest(ctx, doc)
			if res != nil {
				results[i] = *res
			}
			if err != nil {
				errs[i] = fmt.Errorf("document %d: %w", i, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Delete removes a document and its index entries and reports whether it
// existed. The check and the removal happen under the document's writer
// lock. Unknown IDs succeed with false.
func (c *Corpus) Delete(ctx context.Context, documentID string) (bool, error) {
	unlock := c.keys.Lock(documentID)
	defer unlock()

	c.gate.Lock()
	defer c.gate.Unlock()

	prev := c.records[documentID]
	if prev == nil {
		return false, nil
	}

	if c.store != nil {
		if err := c.store.DeleteDocument(ctx, documentID); err != nil {
			return false, fmt.Errorf("delete document %s: %w", documentID, err)
		}
	}

	ids := make([]string, 0, len(prev.Chunks))
	for i := range prev.Chunks {
		if prev.Chunks[i].Embedded() {
			ids = append(ids, prev.Chunks[i].ID)
		}
	}
	if err := c.index.Delete(ctx, ids); err != nil {
		return false, fmt.Errorf("unindex document %s: %w", documentID, err)
	}

	c.swap(documentID, nil)
	c.updateGauges()
	logger.Info("Document %q deleted", documentID)
	return true, nil
}

// GetDocument returns a copy of the current generation.
func (c *Corpus) GetDocument(_ context.Context, documentID string) (*domain.DocumentRecord, error) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	rec := c.records[documentID]
	if rec == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// ListDocuments returns a summary per document ordered by ID.
func (c *Corpus) ListDocuments(_ context.Context) ([]domain.DocumentSummary, error) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	out := make([]domain.DocumentSummary, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec.Summary())
	}
	slices.SortFunc(out, func(a, b domain.DocumentSummary) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Purge removes every document from the store, the index and memory.
func (c *Corpus) Purge(ctx context.Context) error {
	c.gate.Lock()
	defer c.gate.Unlock()

	if c.store != nil {
		if err := c.store.Purge(ctx); err != nil {
			return fmt.Errorf("purge store: %w", err)
		}
	}
	c.index.Reset()
	c.records = make(map[string]*domain.DocumentRecord)
	c.chunks = make(map[string]chunkLoc)
	c.updateGauges()
	logger.Info("Corpus purged")
	return nil
}

// Load replaces the in-memory corpus with the stored snapshot.
func (c *Corpus) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	recs, err := c.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	c.gate.Lock()
	defer c.gate.Unlock()

	c.records = make(map[string]*domain.DocumentRecord, len(recs))
	c.chunks = make(map[string]chunkLoc)
	for i := range recs {
		c.swap(recs[i].Document.ID, &recs[i])
	}
	if err := c.reindex(ctx); err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	c.metrics.IncRebuild("load")
	c.updateGauges()
	logger.Info("Loaded %d documents, %d index entries", len(c.records), c.index.Len())
	return nil
}

// Rebuild recreates the index from the corpus mapping.
func (c *Corpus) Rebuild(ctx context.Context) error {
	c.gate.Lock()
	defer c.gate.Unlock()

	if err := c.reindex(ctx); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	c.metrics.IncRebuild("rebuild")
	c.updateGauges()
	logger.Info("Index rebuilt: %d entries", c.index.Len())
	return nil
}

// reindex empties the index and inserts every embedded chunk in Seq order.
// Stored sequence numbers are kept when the index can accept them, which
// is the case for a fresh index. Otherwise new ones are assigned in the
// same relative order and written back, so tie-breaks do not change.
// Callers hold the write gate.
func (c *Corpus) reindex(ctx context.Context) error {
	type ref struct {
		rec *domain.DocumentRecord
		pos int
	}
	var refs []ref
	for _, rec := range c.records {
		for i := range rec.Chunks {
			if rec.Chunks[i].Embedded() {
				refs = append(refs, ref{rec, i})
			}
		}
	}
	slices.SortFunc(refs, func(a, b ref) int {
		return cmp.Compare(a.rec.Chunks[a.pos].Seq, b.rec.Chunks[b.pos].Seq)
	})

	c.index.Reset()

	keep := true
	last := c.index.LastSeq()
	for _, r := range refs {
		s := r.rec.Chunks[r.pos].Seq
		if s <= last {
			keep = false
			break
		}
		last = s
	}

	entries := make([]driven.IndexEntry, len(refs))
	for i, r := range refs {
		entries[i] = entryFor(&r.rec.Chunks[r.pos])
		if !keep {
			entries[i].Seq = 0
		}
	}
	applied, err := c.index.Upsert(ctx, entries)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexCorruption, err)
	}
	if keep {
		return nil
	}

	changed := make(map[string]*domain.DocumentRecord)
	for i, r := range refs {
		r.rec.Chunks[r.pos].Seq = applied[i].Seq
		changed[r.rec.Document.ID] = r.rec
	}
	if c.store == nil {
		return nil
	}
	for id, rec := range changed {
		if err := c.store.SaveRecord(ctx, rec); err != nil {
			return fmt.Errorf("save sequence numbers of %s: %w", id, err)
		}
	}
	return nil
}

// Verify checks that the index and the corpus mapping agree: every index
// entry resolves to a live embedded chunk with the same Seq, every
// embedded chunk is indexed, stored vectors have unit norm, sequence
// numbers strictly increase and every document's chunks reconstruct its
// content. Violations are joined into one error wrapping
// domain.ErrIndexCorruption.
func (c *Corpus) Verify(ctx context.Context) error {
	c.gate.RLock()
	defer c.gate.RUnlock()

	var problems []error
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf("%w: "+format, append([]any{domain.ErrIndexCorruption}, args...)...))
	}

	var prevSeq uint64
	for _, e := range c.index.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ch, ok := c.lookup(e.ChunkID)
		switch {
		case !ok:
			report("dangling index entry %s", e.ChunkID)
		case !ch.Embedded():
			report("index entry %s belongs to a failed chunk", e.ChunkID)
		case ch.Seq != e.Seq:
			report("index entry %s has seq %d, corpus has %d", e.ChunkID, e.Seq, ch.Seq)
		}
		if n := norm(e.Vector); math.Abs(n-1) > unitTolerance {
			report("index entry %s has norm %.4f", e.ChunkID, n)
		}
		if e.Seq <= prevSeq {
			report("index entry %s seq %d not above %d", e.ChunkID, e.Seq, prevSeq)
		}
		prevSeq = e.Seq
	}

	embedded := 0
	for id, rec := range c.records {
		for i := range rec.Chunks {
			ch := &rec.Chunks[i]
			if ch.DocumentID != id {
				report("chunk %s of %s claims document %s", ch.ID, id, ch.DocumentID)
			}
			if !ch.Embedded() {
				continue
			}
			embedded++
			if _, ok := c.index.Get(ch.ID); !ok {
				report("chunk %s missing from index", ch.Ref())
			}
		}
		text, err := domain.ReconstructContent(rec.Chunks)
		if err != nil {
			report("document %s: %v", id, err)
		} else if text != rec.Document.Content {
			report("document %s chunks do not reconstruct its content", id)
		}
	}
	if n := c.index.Len(); n != embedded {
		report("index holds %d entries, corpus has %d embedded chunks", n, embedded)
	}

	return errors.Join(problems...)
}

// Compact drops deleted entries from the index structure.
func (c *Corpus) Compact(ctx context.Context) error {
	if err := c.index.Compact(ctx); err != nil {
		return fmt.Errorf("compact index: %w", err)
	}
	c.metrics.IncRebuild("compact")

	c.gate.RLock()
	c.updateGauges()
	c.gate.RUnlock()
	return nil
}

// Stats reports corpus and index counters.
func (c *Corpus) Stats(_ context.Context) (domain.CorpusStats, error) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	st := c.index.Stats()
	out := domain.CorpusStats{
		Documents:    len(c.records),
		IndexEntries: st.Live,
		Tombstones:   st.Tombstones,
		Dimension:    st.Dimension,
		LastSeq:      st.LastSeq,
		IndexKind:    st.Kind,
	}
	for _, rec := range c.records {
		out.Chunks += len(rec.Chunks)
		out.FailedChunks += len(rec.Failures)
	}
	return out, nil
}

// Search queries the index and resolves hits under the read gate.
// A hit that does not resolve to a chunk is reported as corruption.
func (c *Corpus) Search(ctx context.Context, query []float32, k int, floor float64) ([]domain.Passage, error) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	hits, searchErr := c.index.Search(ctx, query, k, floor)
	passages := make([]domain.Passage, 0, len(hits))
	for _, h := range hits {
		loc, ok := c.chunks[h.ChunkID]
		if !ok {
			return nil, fmt.Errorf("%w: hit %s does not resolve to a chunk", domain.ErrIndexCorruption, h.ChunkID)
		}
		rec := c.records[loc.documentID]
		passages = append(passages, domain.Passage{
			Chunk:    rec.Chunks[loc.pos],
			Title:    rec.Document.Title,
			Origin:   rec.Document.Origin,
			Revision: rec.Document.Revision,
			Score:    h.Similarity,
			Seq:      h.Seq,
		})
	}
	return passages, searchErr
}

// lookup resolves a chunk ID. Callers hold the gate.
func (c *Corpus) lookup(chunkID string) (*domain.Chunk, bool) {
	loc, ok := c.chunks[chunkID]
	if !ok {
		return nil, false
	}
	rec := c.records[loc.documentID]
	if rec == nil || loc.pos >= len(rec.Chunks) {
		return nil, false
	}
	return &rec.Chunks[loc.pos], true
}

// updateGauges refreshes corpus metrics. Callers hold the gate.
func (c *Corpus) updateGauges() {
	if c.metrics == nil {
		return
	}
	st := c.index.Stats()
	c.metrics.SetCorpusSize(len(c.records), st.Live, st.Tombstones)
}

func chunkFailure(ordinal int, err error) domain.ChunkFailure {
	return domain.ChunkFailure{
		Ordinal: ordinal,
		Code:    domain.ClassifyFailure(err),
		Reason:  err.Error(),
	}
}

func entryFor(ch *domain.Chunk) driven.IndexEntry {
	return driven.IndexEntry{
		ChunkID:    ch.ID,
		DocumentID: ch.DocumentID,
		Ordinal:    ch.Ordinal,
		Vector:     ch.Embedding,
		Seq:        ch.Seq,
	}
}

func cloneRecord(r *domain.DocumentRecord) *domain.DocumentRecord {
	out := *r
	out.Document.Metadata = maps.Clone(r.Document.Metadata)
	out.Chunks = slices.Clone(r.Chunks)
	out.Failures = slices.Clone(r.Failures)
	return &out
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
