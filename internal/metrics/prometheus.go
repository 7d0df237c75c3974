// Package metrics provides Prometheus metrics for the memory service.
// It tracks memory operations, model runtime calls, embedding cache
// efficiency, HTTP traffic and storage pool usage.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "recall"
)

// LatencyBuckets covers fast local lookups up to the 300s runtime timeout.
var LatencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0,
}

// =============================================================================
// Memory Metrics
// =============================================================================

var (
	// MemoryOperations counts memory service operations by outcome.
	MemoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_operations_total",
			Help:      "Total memory service operations",
		},
		[]string{"operation", "result"},
	)

	// MemoryOperationLatency tracks memory operation latency.
	MemoryOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_operation_duration_seconds",
			Help:      "Memory service operation latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"operation"},
	)

	// SearchResults tracks how many memories a search returned.
	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_search_results",
			Help:      "Number of memories returned per search",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 25, 50, 100},
		},
	)

	// StoredMemories tracks the number of rows scanned by the last search.
	StoredMemories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_scanned_records",
			Help:      "Records scanned by the most recent similarity search",
		},
	)
)

// =============================================================================
// Model Runtime Metrics
// =============================================================================

var (
	// OllamaRequests counts calls to the model runtime.
	OllamaRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ollama_requests_total",
			Help:      "Total requests sent to the model runtime",
		},
		[]string{"endpoint", "status"},
	)

	// OllamaLatency tracks model runtime call latency.
	OllamaLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ollama_request_duration_seconds",
			Help:      "Model runtime request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"endpoint"},
	)

	// ModelResolutions counts resolver outcomes by kind and the phase that matched.
	ModelResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_resolutions_total",
			Help:      "Model capability resolutions by kind and matching phase",
		},
		[]string{"kind", "phase"},
	)
)

// =============================================================================
// Embedding Cache Metrics
// =============================================================================

var (
	// EmbeddingCacheHits counts embedding cache hits.
	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_hits_total",
			Help:      "Embedding cache hits",
		},
		[]string{"backend"},
	)

	// EmbeddingCacheMisses counts embedding cache misses.
	EmbeddingCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_misses_total",
			Help:      "Embedding cache misses",
		},
		[]string{"backend"},
	)
)

// =============================================================================
// HTTP & Storage Metrics
// =============================================================================

var (
	// HTTPRequests counts HTTP requests by route pattern and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPLatency tracks HTTP request latency by route pattern.
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"method", "route"},
	)

	// DBConnectionPoolSize tracks storage connection pool usage.
	DBConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connection_pool",
			Help:      "Storage connection pool connections by state",
		},
		[]string{"driver", "state"},
	)
)

// =============================================================================
// Access Control Metrics
// =============================================================================

var (
	// RateLimitRejections counts requests rejected with 429.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"backend"},
	)

	// RateLimiterBackendErrors counts distributed limiter failures by the
	// action taken (allow or deny).
	RateLimiterBackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limiter_backend_errors_total",
			Help:      "Distributed rate limiter backend errors",
		},
		[]string{"action"},
	)

	// AuthFailures counts rejected bearer tokens.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Requests rejected by authentication",
		},
		[]string{"reason"},
	)
)

// RecordMemoryOperation records the outcome and latency of a memory operation.
func RecordMemoryOperation(operation, result string, latency time.Duration) {
	MemoryOperations.WithLabelValues(operation, result).Inc()
	MemoryOperationLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordOllamaRequest records a model runtime call. status is the HTTP status
// code as text, or "error" when no response was received.
func RecordOllamaRequest(endpoint, status string, latency time.Duration) {
	OllamaRequests.WithLabelValues(endpoint, status).Inc()
	OllamaLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordModelResolution records which phase produced a resolution.
// phase is "none" when nothing matched.
func RecordModelResolution(kind, phase string) {
	ModelResolutions.WithLabelValues(kind, phase).Inc()
}

// RecordEmbeddingCache records a cache lookup.
func RecordEmbeddingCache(backend string, hit bool) {
	if hit {
		EmbeddingCacheHits.WithLabelValues(backend).Inc()
		return
	}
	EmbeddingCacheMisses.WithLabelValues(backend).Inc()
}
