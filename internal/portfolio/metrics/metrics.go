// Package metrics exposes the portfolio service's prometheus collectors.
// All recorder methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portfolio_rag"

// Chat outcomes.
const (
	OutcomeAnswered      = "answered"
	OutcomeDeclined      = "declined"
	OutcomeRateLimited   = "rate_limited"
	OutcomeNotConfigured = "not_configured"
	OutcomeEmbedFailed   = "embed_failed"
	OutcomeStreamFailed  = "stream_failed"
	OutcomeInvalid       = "invalid"
)

// Metrics holds the collectors and the registry they are registered in.
type Metrics struct {
	registry *prometheus.Registry

	chatRequests      *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	retrievalHits     *prometheus.CounterVec
	ingestionRuns     *prometheus.CounterVec
	ingestionDuration prometheus.Histogram
	vectorsUpserted   prometheus.Counter
	embeddingFailures *prometheus.CounterVec
}

// New creates the collectors in a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"outcome"}),
		retrievalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Query embedding plus vector search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		retrievalHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_relevant_total",
			Help:      "Retrievals by whether any match cleared the score threshold.",
		}, []string{"relevant"}),
		ingestionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_runs_total",
			Help:      "Finished ingestion runs by final status.",
		}, []string{"status"}),
		ingestionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Duration of ingestion runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		vectorsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vectors_upserted_total",
			Help:      "Vectors written to the index.",
		}),
		embeddingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Embedding calls that failed, by task type.",
		}, []string{"task"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.chatRequests,
		m.retrievalDuration,
		m.retrievalHits,
		m.ingestionRuns,
		m.ingestionDuration,
		m.vectorsUpserted,
		m.embeddingFailures,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ChatRequest counts one chat request.
func (m *Metrics) ChatRequest(outcome string) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(outcome).Inc()
}

// Retrieval records one retrieval.
func (m *Metrics) Retrieval(d time.Duration, relevant bool) {
	if m == nil {
		return
	}
	m.retrievalDuration.Observe(d.Seconds())
	label := "false"
	if relevant {
		label = "true"
	}
	m.retrievalHits.WithLabelValues(label).Inc()
}

// IngestionRun records a finished run.
func (m *Metrics) IngestionRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestionRuns.WithLabelValues(status).Inc()
	m.ingestionDuration.Observe(d.Seconds())
}

// VectorsUpserted adds n written vectors.
func (m *Metrics) VectorsUpserted(n int) {
	if m == nil {
		return
	}
	m.vectorsUpserted.Add(float64(n))
}

// EmbeddingFailure counts one failed embedding.
func (m *Metrics) EmbeddingFailure(task string) {
	if m == nil {
		return
	}
	m.embeddingFailures.WithLabelValues(task).Inc()
}
