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
	// Refresh pipeline metrics
	RefreshRunsTotal *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	MalformedRecords prometheus.Counter
	LedgerEvents     *prometheus.CounterVec

	// Derived table sizes
	SymbolProfiles prometheus.Gauge
	EngineGroups   prometheus.Gauge
	SignalWeights  prometheus.Gauge

	// Query surface metrics
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	StaleReads         prometheus.Counter
	OverrideWrites     *prometheus.CounterVec
	ProfileCacheWrites *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRefresh prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trade_intel"
	}

	return &Metrics{
		RefreshRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of refresh runs by status",
		}, []string{"status"}),
		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Full recompute duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		MalformedRecords: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "malformed_records_total",
			Help:      "Total number of ledger rows excluded as malformed",
		}),
		LedgerEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Total number of outcome feed events by disposition",
		}, []string{"outcome"}),

		SymbolProfiles: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "derived",
			Name:      "symbol_profiles",
			Help:      "Number of symbol profiles in the current snapshot",
		}),
		EngineGroups: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "derived",
			Name:      "engine_groups",
			Help:      "Number of engine metric groups in the current snapshot",
		}),
		SignalWeights: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "derived",
			Name:      "signal_weights",
			Help:      "Number of signal weights in the current snapshot",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		StaleReads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "stale_reads_total",
			Help:      "Queries answered from a stale snapshot",
		}),
		OverrideWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "overrides",
			Name:      "writes_total",
			Help:      "Signal-weight override writes by outcome",
		}, []string{"outcome"}),
		ProfileCacheWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "profile_writes_total",
			Help:      "Profile cache write attempts by outcome",
		}, []string{"outcome"}),

		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of the last successful refresh",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRefresh records one refresh run.
func RecordRefresh(status string, durationSeconds float64) {
	DefaultMetrics.RefreshRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RefreshDuration.Observe(durationSeconds)
}

// SetDerivedSizes updates the derived table size gauges.
func SetDerivedSizes(profiles, engines, signals int) {
	DefaultMetrics.SymbolProfiles.Set(float64(profiles))
	DefaultMetrics.EngineGroups.Set(float64(engines))
	DefaultMetrics.SignalWeights.Set(float64(signals))
}

// RecordMalformedRecord increments the malformed ledger row counter.
func RecordMalformedRecord() {
	DefaultMetrics.MalformedRecords.Inc()
}

// RecordLedgerEvent records one outcome feed event by disposition.
func RecordLedgerEvent(outcome string) {
	DefaultMetrics.LedgerEvents.WithLabelValues(outcome).Inc()
}

// SetLastSuccessfulRefresh records the completion time of a successful refresh.
func SetLastSuccessfulRefresh(unixSeconds float64) {
	DefaultMetrics.LastSuccessfulRefresh.Set(unixSeconds)
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(route, code string, durationSeconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
	DefaultMetrics.HTTPDuration.WithLabelValues(route).Observe(durationSeconds)
}

// RecordStaleRead increments the stale read counter.
func RecordStaleRead() {
	DefaultMetrics.StaleReads.Inc()
}

// RecordOverrideWrite records an override write attempt.
func RecordOverrideWrite(outcome string) {
	DefaultMetrics.OverrideWrites.WithLabelValues(outcome).Inc()
}

// RecordProfileCacheWrite records a profile cache write attempt.
func RecordProfileCacheWrite(outcome string) {
	DefaultMetrics.ProfileCacheWrites.WithLabelValues(outcome).Inc()
}
