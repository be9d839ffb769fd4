// Package metrics registers the Prometheus metrics of the retrieval engine
// and exposes small helpers used by the core services.
//
// Every helper is safe to call on a nil *Metrics, so services built
// without metrics (tests, one-shot CLI commands) need no guards.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "passage"

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomePartial  = "partial"
	OutcomeRejected = "rejected"
	OutcomeTimeout  = "timeout"
	OutcomeRetry    = "retry"
	OutcomeError    = "error"
)

// Metrics holds every metric owned by the engine.
type Metrics struct {
	gatherer prometheus.Gatherer

	ingestTotal    *prometheus.CounterVec
	ingestDuration prometheus.Histogram
	chunksTotal    *prometheus.CounterVec

	embedCalls    *prometheus.CounterVec
	embedDuration prometheus.Histogram

	retrieveTotal    *prometheus.CounterVec
	retrieveDuration prometheus.Histogram

	indexEntries    prometheus.Gauge
	indexTombstones prometheus.Gauge
	documents       prometheus.Gauge
	rebuilds        *prometheus.CounterVec
}

// New registers all metrics against reg. Pass a fresh prometheus.Registry
// in tests to keep them hermetic.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		ingestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Documents ingested, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a document ingestion including embedding.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),

		chunksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Chunks produced by ingestion, partitioned by status.",
		}, []string{"status"}),

		embedCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embed",
			Name:      "calls_total",
			Help:      "Embedding model calls, partitioned by outcome.",
		}, []string{"outcome"}),

		embedDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embed",
			Name:      "duration_seconds",
			Help:      "Latency of a single embedding model call.",
			Buckets:   prometheus.DefBuckets,
		}),

		retrieveTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieve",
			Name:      "requests_total",
			Help:      "Retrieval queries, partitioned by outcome.",
		}, []string{"outcome"}),

		retrieveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieve",
			Name:      "duration_seconds",
			Help:      "Latency of retrieval queries including query embedding.",
			Buckets:   prometheus.DefBuckets,
		}),

		indexEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "entries",
			Help:      "Live entries in the vector index.",
		}),

		indexTombstones: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "tombstones",
			Help:      "Deleted entries still held by the vector index structure.",
		}),

		documents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "corpus",
			Name:      "documents",
			Help:      "Documents in the corpus.",
		}),

		rebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "rebuilds_total",
			Help:      "Index rebuilds and compactions, partitioned by kind.",
		}, []string{"kind"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveIngest records one document ingestion.
func (m *Metrics) ObserveIngest(outcome string, indexed, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(outcome).Inc()
	m.ingestDuration.Observe(d.Seconds())
	m.chunksTotal.WithLabelValues("indexed").Add(float64(indexed))
	m.chunksTotal.WithLabelValues("failed").Add(float64(failed))
}

// ObserveEmbed records one model call.
func (m *Metrics) ObserveEmbed(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.embedCalls.WithLabelValues(outcome).Inc()
	m.embedDuration.Observe(d.Seconds())
}

// ObserveRetrieve records one query.
func (m *Metrics) ObserveRetrieve(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.retrieveTotal.WithLabelValues(outcome).Inc()
	m.retrieveDuration.Observe(d.Seconds())
}

// SetCorpusSize updates the corpus and index gauges.
func (m *Metrics) SetCorpusSize(documents, entries, tombstones int) {
	if m == nil {
		return
	}
	m.documents.Set(float64(documents))
	m.indexEntries.Set(float64(entries))
	m.indexTombstones.Set(float64(tombstones))
}

// IncRebuild counts an index rebuild of the given kind
// ("rebuild", "compact" or "load").
func (m *Metrics) IncRebuild(kind string) {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues(kind).Inc()
}
