package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the scholar aggregator.
// Metrics are organized by subsystem: searches, provider calls, cache,
// deduplication, fetches and recommendations.
//
// All Record methods are no-ops on a nil receiver so components can run
// without metrics wired in.
type Metrics struct {
	// SearchesTotal counts orchestrator searches by outcome (ok, partial, cached, error).
	SearchesTotal *prometheus.CounterVec

	// SearchDuration observes end-to-end orchestrator search duration in seconds.
	SearchDuration prometheus.Histogram

	// ProviderRequestsTotal counts provider calls, labeled by source and operation.
	ProviderRequestsTotal *prometheus.CounterVec

	// ProviderFailuresTotal counts provider calls that failed after retries.
	ProviderFailuresTotal *prometheus.CounterVec

	// ProviderRequestDuration observes provider call duration in seconds, retries included.
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderRetriesTotal counts retry attempts, labeled by source.
	ProviderRetriesTotal *prometheus.CounterVec

	// CacheHits counts search cache hits.
	CacheHits prometheus.Counter

	// CacheMisses counts search cache misses, backend errors included.
	CacheMisses prometheus.Counter

	// PapersDeduplicated counts duplicate records dropped while merging.
	PapersDeduplicated prometheus.Counter

	// FetchesTotal counts single-record lookups by result (found, absent, error).
	FetchesTotal *prometheus.CounterVec

	// RecommendationsGenerated counts recommendation batches by algorithm.
	RecommendationsGenerated *prometheus.CounterVec

	// AdvancedSearchesTotal counts advanced searches.
	AdvancedSearchesTotal prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered with the default
// Prometheus registry. The namespace is used as a prefix for all metric names.
// Calling it twice with the same namespace panics.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a Metrics instance registered with reg.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Searches
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of aggregated searches by status",
		}, []string{"status"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of aggregated searches in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		// Providers
		ProviderRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of provider calls",
		}, []string{"source", "operation"}),
		ProviderFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Total number of provider calls that failed after retries",
		}, []string{"source", "operation"}),
		ProviderRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of provider calls in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "operation"}),
		ProviderRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Total number of provider call retries",
		}, []string{"source"}),

		// Cache
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of search cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of search cache misses",
		}),

		// Papers
		PapersDeduplicated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_deduplicated_total",
			Help:      "Total number of duplicate papers removed",
		}),
		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Total number of single-paper lookups by result",
		}, []string{"result"}),

		// Recommendations and advanced search
		RecommendationsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_generated_total",
			Help:      "Total number of recommendation batches by algorithm",
		}, []string{"algorithm"}),
		AdvancedSearchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advanced_searches_total",
			Help:      "Total number of advanced searches",
		}),
	}
}

// RecordSearch records a finished orchestrator search.
func (m *Metrics) RecordSearch(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(status).Inc()
	m.SearchDuration.Observe(durationSeconds)
}

// RecordProviderRequest records a successful provider call.
func (m *Metrics) RecordProviderRequest(source, operation string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(source, operation).Inc()
	m.ProviderRequestDuration.WithLabelValues(source, operation).Observe(durationSeconds)
}

// RecordProviderFailure records a provider call that failed after retries.
func (m *Metrics) RecordProviderFailure(source, operation string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(source, operation).Inc()
	m.ProviderFailuresTotal.WithLabelValues(source, operation).Inc()
	m.ProviderRequestDuration.WithLabelValues(source, operation).Observe(durationSeconds)
}

// RecordProviderRetry records one retry of a provider call.
func (m *Metrics) RecordProviderRetry(source string) {
	if m == nil {
		return
	}
	m.ProviderRetriesTotal.WithLabelValues(source).Inc()
}

// RecordCacheHit records a search cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss records a search cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// RecordPaperDuplicates records multiple duplicate papers in a single call.
func (m *Metrics) RecordPaperDuplicates(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.PapersDeduplicated.Add(float64(count))
}

// RecordFetch records a single-record lookup outcome.
func (m *Metrics) RecordFetch(result string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(result).Inc()
}

// RecordRecommendations records a generated recommendation batch.
func (m *Metrics) RecordRecommendations(algorithm string) {
	if m == nil {
		return
	}
	m.RecommendationsGenerated.WithLabelValues(algorithm).Inc()
}

// RecordAdvancedSearch records an advanced search.
func (m *Metrics) RecordAdvancedSearch() {
	if m == nil {
		return
	}
	m.AdvancedSearchesTotal.Inc()
}
