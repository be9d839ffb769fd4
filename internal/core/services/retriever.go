package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driving"
	"github.com/custodia-labs/passage/internal/logger"
	"github.com/custodia-labs/passage/internal/metrics"
)

// Ensure Retriever implements the interface.
var _ driving.RetrievalService = (*Retriever)(nil)

// Retriever embeds queries and ranks passages from the corpus.
type Retriever struct {
	embedder *Embedder
	corpus   driving.CorpusService
	settings domain.RetrievalSettings
	metrics  *metrics.Metrics
}

// NewRetriever creates a retrieval service. Unset fields of settings fall
// back to the defaults of domain.DefaultAppSettings.
func NewRetriever(embedder *Embedder, corpus driving.CorpusService, settings domain.RetrievalSettings) *Retriever {
	def := domain.DefaultAppSettings().Retrieval
	if settings.DefaultK <= 0 {
		settings.DefaultK = def.DefaultK
	}
	if settings.MaxK < settings.DefaultK {
		settings.MaxK = max(def.MaxK, settings.DefaultK)
	}
	if settings.OverFetch < 1 {
		settings.OverFetch = def.OverFetch
	}
	if settings.Timeout <= 0 {
		settings.Timeout = def.Timeout
	}
	if !settings.TimeoutPolicy.IsValid() {
		settings.TimeoutPolicy = def.TimeoutPolicy
	}
	return &Retriever{
		embedder: embedder,
		corpus:   corpus,
		settings: settings,
	}
}

// SetMetrics attaches query metrics.
func (r *Retriever) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Retrieve returns up to K passages ordered by similarity descending,
// ties broken by insertion sequence. The query is bounded by the
// configured timeout; what a timed-out query returns follows the timeout
// policy. A corrupt index triggers a rebuild and the query fails with
// domain.ErrIndexCorruption.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) (*domain.RetrievalResult, error) {
	start := time.Now()

	plan, err := r.resolve(query, opts)
	if err != nil {
		r.metrics.ObserveRetrieve(metrics.OutcomeRejected, time.Since(start))
		return nil, err
	}

	logger.Section("Retrieval")
	logger.Debug("Query: %q k=%d floor=%.3f per-doc=%d dedupe=%.3f",
		query, plan.k, plan.floor, plan.perDocument, plan.dedupe)

	qctx, cancel := context.WithTimeout(ctx, plan.timeout)
	defer cancel()

	vec, err := r.embedder.Embed(qctx, query)
	if err != nil {
		if ctx.Err() == nil && qctx.Err() != nil {
			r.metrics.ObserveRetrieve(metrics.OutcomeTimeout, time.Since(start))
			return nil, fmt.Errorf("embed query: %w", domain.ErrQueryTimeout)
		}
		r.metrics.ObserveRetrieve(metrics.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := r.corpus.Search(qctx, vec, plan.k*r.settings.OverFetch, plan.floor)
	partial := false
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIndexCorruption):
		r.metrics.ObserveRetrieve(metrics.OutcomeError, time.Since(start))
		logger.Error("Index corruption detected, rebuilding: %v", err)
		if rerr := r.corpus.Rebuild(context.WithoutCancel(ctx)); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	case ctx.Err() == nil && qctx.Err() != nil:
		if r.settings.TimeoutPolicy == domain.TimeoutPolicyError {
			r.metrics.ObserveRetrieve(metrics.OutcomeTimeout, time.Since(start))
			return nil, fmt.Errorf("search: %w", domain.ErrQueryTimeout)
		}
		partial = true
		logger.Warn("Query timed out after %s, returning %d candidates", plan.timeout, len(candidates))
	default:
		r.metrics.ObserveRetrieve(metrics.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("search: %w", err)
	}

	passages := selectPassages(candidates, plan)
	logger.Debug("Candidates: %d, returned: %d", len(candidates), len(passages))

	outcome := metrics.OutcomeOK
	if partial {
		outcome = metrics.OutcomePartial
	}
	r.metrics.ObserveRetrieve(outcome, time.Since(start))

	return &domain.RetrievalResult{
		Query:    query,
		Passages: passages,
		Partial:  partial,
	}, nil
}

// queryPlan holds the options of one query after defaults are applied.
type queryPlan struct {
	k           int
	floor       float64
	perDocument int
	dedupe      float64
	timeout     time.Duration
}

// resolve validates the query and fills unset options from settings. An
// explicit zero is kept: it disables the floor, the per-document cap or
// near-duplicate collapse.
func (r *Retriever) resolve(query string, opts domain.RetrieveOptions) (queryPlan, error) {
	plan := queryPlan{
		k:           opts.K,
		floor:       r.settings.ScoreFloor,
		perDocument: r.settings.MaxPerDocument,
		dedupe:      r.settings.DedupeThreshold,
		timeout:     opts.Timeout,
	}
	if strings.TrimSpace(query) == "" {
		return plan, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}

	if plan.k == 0 {
		plan.k = r.settings.DefaultK
	}
	if plan.k < 1 || plan.k > r.settings.MaxK {
		return plan, fmt.Errorf("%w: k must be between 1 and %d, got %d", domain.ErrInvalidInput, r.settings.MaxK, plan.k)
	}
	if opts.ScoreFloor != nil {
		plan.floor = *opts.ScoreFloor
	}
	if plan.floor < -1 || plan.floor > 1 {
		return plan, fmt.Errorf("%w: score floor must be in [-1, 1]", domain.ErrInvalidInput)
	}
	if opts.MaxPerDocument != nil {
		plan.perDocument = *opts.MaxPerDocument
	}
	if plan.perDocument < 0 {
		return plan, fmt.Errorf("%w: max per document must not be negative", domain.ErrInvalidInput)
	}
	if opts.DedupeThreshold != nil {
		plan.dedupe = *opts.DedupeThreshold
	}
	if plan.dedupe < 0 || plan.dedupe > 1 {
		return plan, fmt.Errorf("%w: dedupe threshold must be in [0, 1]", domain.ErrInvalidInput)
	}
	if plan.timeout <= 0 {
		plan.timeout = r.settings.Timeout
	}
	return plan, nil
}

// selectPassages walks ranked candidates and keeps those passing the
// per-document cap and the near-duplicate check, stopping at k.
func selectPassages(candidates []domain.Passage, plan queryPlan) []domain.Passage {
	out := make([]domain.Passage, 0, min(plan.k, len(candidates)))
	perDoc := make(map[string]int)

	for _, p := range candidates {
		if len(out) == plan.k {
			break
		}
		if plan.perDocument > 0 && perDoc[p.Chunk.DocumentID] >= plan.perDocument {
			continue
		}
		if plan.dedupe > 0 && nearDuplicate(p, out, plan.dedupe) {
			continue
		}
		perDoc[p.Chunk.DocumentID]++
		out = append(out, p)
	}
	return out
}

// nearDuplicate reports whether p is more similar than threshold to any
// accepted passage. Chunk vectors are unit length, so the dot product is
// their cosine similarity.
func nearDuplicate(p domain.Passage, accepted []domain.Passage, threshold float64) bool {
	for i := range accepted {
		if dot(p.Chunk.Embedding, accepted[i].Chunk.Embedding) > threshold {
			return true
		}
	}
	return false
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
