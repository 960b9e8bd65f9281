package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger metrics
var (
	// SubmissionsTotal counts submit attempts by outcome (succeeded, failed, selection_required).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kakeibo_submissions_total",
			Help: "Entry submissions by result",
		},
		[]string{"result"},
	)

	// AllocationFallbacks counts identifier reads that failed and fell back to 1.
	AllocationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kakeibo_allocation_fallbacks_total",
			Help: "Identifier allocations that fell back to 1 after a read failure",
		},
	)

	// RemoteCallDuration tracks latency of Drive and Sheets calls.
	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kakeibo_remote_call_duration_seconds",
			Help:    "Duration of remote spreadsheet calls in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// DirectoryErrors counts failed listings, by directory (documents, regions).
	DirectoryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kakeibo_directory_errors_total",
			Help: "Failed document or region listings",
		},
		[]string{"directory"},
	)

	// WriteQueueDepth is the number of jobs waiting in the serialized write queue.
	WriteQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kakeibo_write_queue_depth",
			Help: "Jobs waiting in the serialized write queue",
		},
	)
)

// Session metrics
var (
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kakeibo_sessions_current",
			Help: "Browser sessions currently held in memory",
		},
	)

	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kakeibo_sessions_expired_total",
			Help: "Sessions dropped after the idle timeout",
		},
	)

	// SignIns counts credential acquisitions by result (succeeded, failed, not_ready).
	SignIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kakeibo_sign_ins_total",
			Help: "Sign-in attempts by result",
		},
		[]string{"result"},
	)
)

// Cache metrics
var (
	DocumentCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kakeibo_document_cache_hits_total",
			Help: "Document directory lookups served from cache",
		},
	)

	DocumentCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kakeibo_document_cache_misses_total",
			Help: "Document directory lookups that went to the remote API",
		},
	)
)

// Journal metrics
var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kakeibo_events_published_total",
			Help: "Entry events published by status",
		},
		[]string{"status"},
	)

	JournalRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kakeibo_journal_records_total",
			Help: "Journal writes by status",
		},
		[]string{"status"},
	)

	// DuplicateIDs counts entries whose (document, region, id) was already journalled.
	DuplicateIDs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kakeibo_duplicate_ids_total",
			Help: "Appended entries that reused an identifier already seen in the same sheet",
		},
	)

	// CircuitBreakerState tracks breaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kakeibo_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// HTTP metrics
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kakeibo_http_requests_total",
			Help: "HTTP requests by route and status class",
		},
		[]string{"route", "code"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kakeibo_http_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)
)
