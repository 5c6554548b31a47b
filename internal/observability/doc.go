// Package observability provides logging, metrics, and context helpers for
// the scholar aggregator.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for searches, provider calls, cache and recommendations
//   - Context helpers for propagating request identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("request_id", reqID).Msg("search started")
//
// Add search context to logger:
//
//	logger = observability.WithSearchContext(logger, query, "arxiv")
//
// # Metrics
//
// Initialize metrics against the default registry:
//
//	metrics := observability.NewMetrics("scholar")
//
// or against a private registry in tests:
//
//	metrics := observability.NewMetricsWithRegistry("scholar", prometheus.NewRegistry())
//
// Record metrics:
//
//	metrics.RecordSearch("ok", 0.42)
//	metrics.RecordProviderRequest("arxiv", "search", 0.3)
//	metrics.RecordCacheHit()
//
// Every Record method is safe to call on a nil *Metrics.
//
// # Context Helpers
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - correlation_id: caller supplied correlation identifier
//   - component: emitting component (fetcher, search, recommend, ...)
//   - query: search query
//   - source: provider name (arxiv, crossref, openalex, pubmed, semanticscholar)
//   - identifier: paper identifier being fetched
//   - algorithm: recommendation algorithm
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
