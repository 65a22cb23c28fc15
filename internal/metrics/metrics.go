// Package metrics defines the Prometheus instruments shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Token cache metrics
var (
	// TokenRequestsTotal tracks OAuth token endpoint calls by outcome
	TokenRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_token_requests_total",
			Help: "Total OAuth client-credentials requests by status",
		},
		[]string{"status"},
	)

	// TokenCacheHitsTotal tracks getToken calls served from cache
	TokenCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oauth_token_cache_hits_total",
			Help: "Total token requests served from the cache without a network call",
		},
	)
)

// QoD client metrics
var (
	// QodRequestsTotal tracks remote QoD API calls by operation and status class
	QodRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qod_requests_total",
			Help: "Total QoD API requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	// QodRequestDuration tracks QoD API latency in seconds
	QodRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qod_request_duration_seconds",
			Help:    "QoD API request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// QodCircuitBreakerState tracks the breaker state (0=closed, 1=half-open, 2=open)
	QodCircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qod_circuit_breaker_state",
			Help: "QoD circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Session lifecycle metrics
var (
	// SessionsCreatedTotal tracks session creations by mode (remote or local_fallback)
	SessionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boost_sessions_created_total",
			Help: "Total boost sessions created by mode",
		},
		[]string{"mode"},
	)

	// SessionExtendsTotal tracks extend calls by remote outcome
	SessionExtendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boost_session_extends_total",
			Help: "Total session extensions by remote outcome",
		},
		[]string{"remote"},
	)

	// SessionDeletesTotal tracks delete calls by remote outcome
	SessionDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boost_session_deletes_total",
			Help: "Total session deletions by remote outcome",
		},
		[]string{"remote"},
	)

	// SessionsTracked tracks the current number of mirrored session records
	SessionsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "boost_sessions_tracked",
			Help: "Current number of session records in the local mirror",
		},
	)

	// SessionsPrunedTotal tracks records removed by the pruning rules
	SessionsPrunedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boost_sessions_pruned_total",
			Help: "Total session records pruned from the local mirror by reason",
		},
		[]string{"reason"},
	)

	// ExpiringSoonNotificationsTotal tracks one-shot expiring-soon signals
	ExpiringSoonNotificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boost_expiring_soon_notifications_total",
			Help: "Total one-shot expiring-soon notifications emitted",
		},
	)
)

// Scheduler metrics
var (
	// ScheduledTasksActive tracks currently tracked boost windows
	ScheduledTasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "boost_scheduled_tasks_active",
			Help: "Current number of scheduled boost windows",
		},
	)

	// ScheduledTaskStartsTotal tracks start-timer firings (including catch-up)
	ScheduledTaskStartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boost_scheduled_task_starts_total",
			Help: "Total scheduled task starts by trigger (timer or catchup)",
		},
		[]string{"trigger"},
	)
)

// Reconciliation metrics
var (
	// ReconcilePassesTotal tracks reconciliation sweeps
	ReconcilePassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boost_reconcile_passes_total",
			Help: "Total reconciliation passes against the QoD registry",
		},
	)

	// ReconcileDurationSeconds tracks reconciliation sweep duration
	ReconcileDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boost_reconcile_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10},
		},
	)
)

// WebSocket feed metrics
var (
	// SessionFeedClients tracks currently connected session-feed clients
	SessionFeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_feed_clients",
			Help: "Current number of connected session feed WebSocket clients",
		},
	)
)
