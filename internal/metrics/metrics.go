package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconnectRequests tracks reconnect requests per target and outcome
	ReconnectRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dal_reconnect_requests_total",
			Help: "Total number of reconnect requests by outcome",
		},
		[]string{"target", "outcome"},
	)

	// HandlesEstablished tracks connection handles created (initial connect and reconnects)
	HandlesEstablished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dal_handles_established_total",
			Help: "Total number of connection handles established",
		},
		[]string{"target"},
	)

	// OperationRetries tracks operations retried after a transient fault
	OperationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dal_operation_retries_total",
			Help: "Total number of operation retries after a transient fault",
		},
		[]string{"target"},
	)

	// OperationFailures tracks operations that failed after exhausting retries
	OperationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dal_operation_failures_total",
			Help: "Total number of operations that failed with a transient fault after all retries",
		},
		[]string{"target"},
	)

	// CacheLookups tracks distributed cache lookups
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dal_cache_lookups_total",
			Help: "Total number of distributed cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	// DBConnectionPoolUsage tracks open connections as a percentage of the pool limit
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dal_db_connection_pool_usage_percent",
			Help: "Open database connections as a percentage of the configured maximum",
		},
	)

	// DBBatchSize tracks the size of batched writes
	DBBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dal_db_batch_size",
			Help:    "Number of rows written per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"operation"},
	)

	// HTTPRequests tracks API requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPLatency tracks API request latency
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dal_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
