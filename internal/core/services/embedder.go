package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
	"github.com/custodia-labs/passage/internal/logger"
	"github.com/custodia-labs/passage/internal/metrics"
)

// EmbedOutcome is the result for one text of an EmbedMany call.
// Exactly one of Vector and Err is set.
type EmbedOutcome struct {
	Vector []float32
	Err    error
}

// Embedder wraps the model boundary with the call policy: batching,
// bounded concurrency, per-call timeouts, throttling and retries of
// transient failures. It also checks every vector it hands out, so the
// index never sees a wrong-sized or zero vector from the model.
type Embedder struct {
	svc     driven.EmbeddingService
	cfg     domain.EmbeddingSettings
	limiter *rate.Limiter
	metrics *metrics.Metrics

	// dim is the expected vector size; 0 until known.
	dim atomic.Int64
}

// NewEmbedder creates an embedder. Unset policy fields fall back to the
// defaults of domain.DefaultAppSettings.
func NewEmbedder(svc driven.EmbeddingService, cfg domain.EmbeddingSettings) *Embedder {
	def := domain.DefaultAppSettings().Embedding
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	e := &Embedder{svc: svc, cfg: cfg}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.MaxConcurrency)
	}
	e.dim.Store(int64(cfg.Dimensions))
	return e
}

// SetMetrics attaches call metrics.
func (e *Embedder) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// Dimensions returns the vector size seen so far, or 0 before the first
// successful call when none was configured.
func (e *Embedder) Dimensions() int {
	return int(e.dim.Load())
}

// ModelName returns the underlying model name.
func (e *Embedder) ModelName() string {
	return e.svc.ModelName()
}

// Embed embeds a single text, retrying transient failures.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.retry(ctx, func(callCtx context.Context) error {
		v, err := e.svc.Embed(callCtx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.check(vec)
}

// EmbedMany embeds texts in batches of BatchSize with at most
// MaxConcurrency batches in flight. The result has the same length and
// order as texts; one item failing never fails the others.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) []EmbedOutcome {
	out := make([]EmbedOutcome, len(texts))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrency)
	for lo := 0; lo < len(texts); lo += e.cfg.BatchSize {
		hi := min(lo+e.cfg.BatchSize, len(texts))
		g.Go(func() error {
			e.embedBatch(ctx, texts[lo:hi], out[lo:hi])
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// embedBatch fills out for one batch. Items the batch call could not
// embed transiently get their own call with a fresh retry budget.
func (e *Embedder) embedBatch(ctx context.Context, texts []string, out []EmbedOutcome) {
	var vecs [][]float32
	var itemErrs map[int]error
	batchErr := e.retry(ctx, func(callCtx context.Context) error {
		v, err := e.svc.EmbedBatch(callCtx, texts)
		var be *domain.BatchError
		if errors.As(err, &be) {
			vecs, itemErrs = v, be.Failures
			return nil
		}
		if err != nil {
			return err
		}
		vecs, itemErrs = v, nil
		return nil
	})
	if batchErr == nil && len(vecs) != len(texts) {
		batchErr = fmt.Errorf("%w: model returned %d vectors for %d texts",
			domain.ErrTransientInference, len(vecs), len(texts))
	}

	if batchErr != nil && ctx.Err() != nil {
		for i := range out {
			out[i] = EmbedOutcome{Err: ctx.Err()}
		}
		return
	}
	if batchErr != nil {
		logger.Warn("embed batch of %d failed, falling back to single calls: %v", len(texts), batchErr)
	}

	for i := range texts {
		switch {
		case batchErr != nil:
			// Whole batch failed; every item gets its own attempt.
		case itemErrs[i] != nil && !isTransient(itemErrs[i]):
			out[i] = EmbedOutcome{Err: itemErrs[i]}
			continue
		case itemErrs[i] == nil:
			v, err := e.check(vecs[i])
			out[i] = EmbedOutcome{Vector: v, Err: err}
			continue
		}

		if err := ctx.Err(); err != nil {
			out[i] = EmbedOutcome{Err: err}
			continue
		}
		v, err := e.Embed(ctx, texts[i])
		out[i] = EmbedOutcome{Vector: v, Err: err}
	}
}

// retry runs op under the call policy: throttle, per-call timeout and
// exponential backoff on transient errors, at most MaxAttempts calls.
func (e *Embedder) retry(ctx context.Context, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.InitialBackoff
	if e.cfg.MaxBackoff > 0 {
		b.MaxInterval = e.cfg.MaxBackoff
	}
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.MaxAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()

		start := time.Now()
		err := op(callCtx)
		switch {
		case err == nil:
			e.metrics.ObserveEmbed(metrics.OutcomeOK, time.Since(start))
			return nil
		case ctx.Err() != nil:
			e.metrics.ObserveEmbed(metrics.OutcomeError, time.Since(start))
			return backoff.Permanent(ctx.Err())
		case isTransient(err):
			e.metrics.ObserveEmbed(metrics.OutcomeRetry, time.Since(start))
			logger.Debug("embed attempt %d/%d failed: %v", attempt, e.cfg.MaxAttempts, err)
			return err
		default:
			e.metrics.ObserveEmbed(metrics.OutcomeError, time.Since(start))
			return backoff.Permanent(err)
		}
	}, policy)
}

// isTransient reports whether a model error is worth retrying.
// A per-call deadline counts as transient; caller cancellation does not.
func isTransient(err error) bool {
	return errors.Is(err, domain.ErrTransientInference) || errors.Is(err, context.DeadlineExceeded)
}

// check rejects vectors the index could not hold, pins the dimension to
// the first good vector when none was configured, and returns a unit-length
// copy.
func (e *Embedder) check(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: model returned an empty vector", domain.ErrInvalidInput)
	}

	var sum float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: model returned a non-finite component", domain.ErrInvalidInput)
		}
		sum += f * f
	}
	if sum == 0 {
		return nil, domain.ErrZeroVector
	}

	n := int64(len(v))
	if !e.dim.CompareAndSwap(0, n) {
		if want := e.dim.Load(); want != n {
			return nil, fmt.Errorf("got %d want %d: %w", n, want, domain.ErrDimensionMismatch)
		}
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}
