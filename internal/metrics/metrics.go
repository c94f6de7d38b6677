package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks processor runs per task and result
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_runs_total",
			Help: "Total number of processor runs",
		},
		[]string{"task", "result"},
	)

	// RunDuration tracks how long a processor run takes
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratesync_run_duration_seconds",
			Help:    "Processor run duration in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"task"},
	)

	// LastRunTimestamp is the unix time of the last finished run
	LastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ratesync_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last finished run",
		},
		[]string{"task"},
	)

	// RecordsTotal tracks record outcomes per task
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_records_total",
			Help: "Total number of records by outcome",
		},
		[]string{"task", "outcome"},
	)

	// RetryAttempts tracks operation attempts made by an executor
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_retry_attempts_total",
			Help: "Total number of attempts made by retry executors",
		},
		[]string{"executor"},
	)

	// RetryDelay tracks time spent waiting between attempts
	RetryDelay = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_retry_delay_seconds_total",
			Help: "Total seconds spent waiting between retries",
		},
		[]string{"executor"},
	)

	// RetryFailures tracks operations that failed after all attempts
	RetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_retry_failures_total",
			Help: "Total number of operations that failed, by failure kind",
		},
		[]string{"executor", "kind"},
	)

	// UpstreamRequests tracks HTTP calls to upstream APIs
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_upstream_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"upstream", "status"},
	)

	// UpstreamLatency tracks upstream API latency
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratesync_upstream_latency_seconds",
			Help:    "Upstream API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ratesync_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// DBConnectionPoolUsage tracks database connection pool usage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ratesync_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)

	// LockContention counts runs skipped because another process held the lock
	LockContention = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_lock_contention_total",
			Help: "Total number of runs skipped due to a held run lock",
		},
		[]string{"task"},
	)

	// HTTPRequests counts read API requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks HTTP request latency
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratesync_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
