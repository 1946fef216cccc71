// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	SimulationsTotal   *prometheus.CounterVec
	SimulationDuration *prometheus.HistogramVec
	OptionsSimulated   prometheus.Counter
	SimulationErrors   *prometheus.CounterVec

	// Refresh metrics
	RefreshPassesTotal    *prometheus.CounterVec
	RefreshPassDuration   prometheus.Histogram
	DecisionsRefreshed    prometheus.Counter
	DecisionsFailed       prometheus.Counter
	SignalUpdatesIngested prometheus.Counter

	// Guardrail metrics
	OutcomesRecorded     prometheus.Counter
	BreachesDetected     *prometheus.CounterVec
	ThresholdAdjustments *prometheus.CounterVec

	// Learning metrics
	TraceEntriesAppended prometheus.Counter

	// Feed metrics
	FeedReconnects      prometheus.Counter
	FeedUpdatesReceived prometheus.Counter

	// Portfolio metrics
	SnapshotsComputed prometheus.Counter
	SnapshotDuration  prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRefresh  prometheus.Gauge
	LastSuccessfulSnapshot prometheus.Gauge
	UptimeSeconds          prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "risklab"
	}

	return &Metrics{
		// Simulation metrics
		SimulationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by trigger and status",
		}, []string{"trigger", "status"}),
		SimulationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Simulation execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"trigger"}),
		OptionsSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "options_simulated_total",
			Help:      "Total number of decision options simulated",
		}),
		SimulationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "errors_total",
			Help:      "Total number of simulation errors by type",
		}, []string{"error_type"}),

		// Refresh metrics
		RefreshPassesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "passes_total",
			Help:      "Total number of signal refresh passes by status",
		}, []string{"status"}),
		RefreshPassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "pass_duration_seconds",
			Help:      "Signal refresh pass duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DecisionsRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "decisions_refreshed_total",
			Help:      "Total number of decisions re-simulated by signal refresh",
		}),
		DecisionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "decisions_failed_total",
			Help:      "Total number of decisions that failed during signal refresh",
		}),
		SignalUpdatesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "signal_updates_ingested_total",
			Help:      "Total number of signal updates ingested into the debounce window",
		}),

		// Guardrail metrics
		OutcomesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guardrail",
			Name:      "outcomes_recorded_total",
			Help:      "Total number of actual outcomes recorded",
		}),
		BreachesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guardrail",
			Name:      "breaches_detected_total",
			Help:      "Total number of guardrail breaches by alert level",
		}, []string{"alert_level"}),
		ThresholdAdjustments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guardrail",
			Name:      "threshold_adjustments_total",
			Help:      "Total number of automatic threshold adjustments by direction",
		}, []string{"direction"}),

		// Learning metrics
		TraceEntriesAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "trace_entries_appended_total",
			Help:      "Total number of learning trace entries appended",
		}),

		// Feed metrics
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of signal feed reconnects",
		}),
		FeedUpdatesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "updates_received_total",
			Help:      "Total number of signal updates received from the feed",
		}),

		// Portfolio metrics
		SnapshotsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "snapshots_computed_total",
			Help:      "Total number of portfolio snapshots computed",
		}),
		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "snapshot_duration_seconds",
			Help:      "Portfolio snapshot computation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last successful refresh pass",
		}),
		LastSuccessfulSnapshot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_snapshot_timestamp",
			Help:      "Unix timestamp of last successful portfolio snapshot",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSimulation records a completed simulation run.
func RecordSimulation(trigger, status string, seconds float64, options int) {
	DefaultMetrics.SimulationsTotal.WithLabelValues(trigger, status).Inc()
	DefaultMetrics.SimulationDuration.WithLabelValues(trigger).Observe(seconds)
	DefaultMetrics.OptionsSimulated.Add(float64(options))
}

// RecordSimulationError records a simulation error by type.
func RecordSimulationError(errorType string) {
	DefaultMetrics.SimulationErrors.WithLabelValues(errorType).Inc()
}

// RecordRefreshPass records a completed signal refresh pass.
func RecordRefreshPass(status string, seconds float64, refreshed, failed int) {
	DefaultMetrics.RefreshPassesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RefreshPassDuration.Observe(seconds)
	DefaultMetrics.DecisionsRefreshed.Add(float64(refreshed))
	DefaultMetrics.DecisionsFailed.Add(float64(failed))
}

// RecordSignalUpdates increments the ingested signal updates counter.
func RecordSignalUpdates(count int) {
	DefaultMetrics.SignalUpdatesIngested.Add(float64(count))
}

// RecordOutcome increments the recorded outcomes counter.
func RecordOutcome() {
	DefaultMetrics.OutcomesRecorded.Inc()
}

// RecordBreach records a detected guardrail breach.
func RecordBreach(alertLevel string) {
	DefaultMetrics.BreachesDetected.WithLabelValues(alertLevel).Inc()
}

// RecordAdjustment records an automatic threshold adjustment.
func RecordAdjustment(direction string) {
	DefaultMetrics.ThresholdAdjustments.WithLabelValues(direction).Inc()
}

// RecordTraceEntry increments the learning trace entries counter.
func RecordTraceEntry() {
	DefaultMetrics.TraceEntriesAppended.Inc()
}

// RecordFeedReconnect increments the feed reconnects counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordFeedUpdate increments the feed updates counter.
func RecordFeedUpdate() {
	DefaultMetrics.FeedUpdatesReceived.Inc()
}

// RecordSnapshot records a computed portfolio snapshot.
func RecordSnapshot(seconds float64) {
	DefaultMetrics.SnapshotsComputed.Inc()
	DefaultMetrics.SnapshotDuration.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
