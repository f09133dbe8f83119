// Package metrics owns the Prometheus collectors for the FAQ service and
// exposes them on an HTTP handler. All recording methods are safe on a nil
// *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "faqbot"

// DefaultBuckets are the default latency buckets (in seconds).
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Query outcomes.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeEmpty    = "empty_index"
	OutcomeError    = "error"
)

// Metrics holds every collector registered by the service.
type Metrics struct {
	reg *prometheus.Registry

	queries         *prometheus.CounterVec
	queryScore      prometheus.Histogram
	rerankFallbacks prometheus.Counter
	embedDuration   *prometheus.HistogramVec
	embedCache      *prometheus.CounterVec
	indexSize       prometheus.Gauge
	indexBuilds     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Answered queries by outcome.",
		}, []string{"outcome"}),
		queryScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_best_score",
			Help:      "Cosine similarity of the best hit per query.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		rerankFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_fallbacks_total",
			Help:      "Queries that fell back to vector order after a rerank failure.",
		}),
		embedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_duration_seconds",
			Help:      "Embedding provider latency by mode.",
			Buckets:   DefaultBuckets,
		}, []string{"mode"}),
		embedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_cache_total",
			Help:      "Query embedding cache lookups by result.",
		}, []string{"result"}),
		indexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Vectors stored in the active index generation.",
		}),
		indexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Index builds by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   DefaultBuckets,
		}, []string{"route"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open).",
		}, []string{"dependency"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.queries, m.queryScore, m.rerankFallbacks, m.embedDuration, m.embedCache,
		m.indexSize, m.indexBuilds, m.httpRequests, m.httpDuration, m.breakerState,
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler returns an http.Handler that serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveQuery records the outcome of one answered query.
func (m *Metrics) ObserveQuery(outcome string, bestScore float32) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	if outcome == OutcomeFound || outcome == OutcomeNotFound {
		m.queryScore.Observe(float64(bestScore))
	}
}

// RerankFallback counts a rerank failure that degraded to vector order.
func (m *Metrics) RerankFallback() {
	if m == nil {
		return
	}
	m.rerankFallbacks.Inc()
}

// ObserveEmbed records provider latency since start.
func (m *Metrics) ObserveEmbed(mode string, start time.Time) {
	if m == nil {
		return
	}
	m.embedDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

// EmbedCache counts a cache lookup; result is "hit", "miss" or "error".
func (m *Metrics) EmbedCache(result string) {
	if m == nil {
		return
	}
	m.embedCache.WithLabelValues(result).Inc()
}

// IndexBuilt records a finished build and, on success, the new index size.
func (m *Metrics) IndexBuilt(size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.indexBuilds.WithLabelValues("error").Inc()
		return
	}
	m.indexBuilds.WithLabelValues("ok").Inc()
	m.indexSize.Set(float64(size))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// SetBreakerState publishes a circuit breaker state as a numeric gauge.
func (m *Metrics) SetBreakerState(dependency string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(dependency).Set(float64(state))
}
