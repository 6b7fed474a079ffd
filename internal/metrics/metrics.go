package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reframing metrics
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reframe_sessions_active",
		Help: "Number of active reframing sessions",
	})

	unitsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_units_emitted_total",
		Help: "Total coded units emitted",
	}, []string{"syntax", "codec"})

	bytesEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_bytes_emitted_total",
		Help: "Total payload bytes emitted",
	}, []string{"syntax", "codec"})

	unitsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_units_dropped_total",
		Help: "Total units extracted but not emitted",
	}, []string{"syntax", "reason"})

	malformedUnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_malformed_units_total",
		Help: "Total malformed units skipped by resynchronization",
	}, []string{"syntax"})

	terminalFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_terminal_failures_total",
		Help: "Total sessions stopped by a terminal error",
	}, []string{"syntax", "reason"})

	configChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_config_changes_total",
		Help: "Total decoder configuration changes signaled",
	}, []string{"codec"})

	timestampRestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_timestamp_restarts_total",
		Help: "Total container timestamp restarts assumed to be concatenations",
	}, []string{"syntax"})

	indexBuildSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reframe_index_build_duration_seconds",
		Help:    "Duration of time index passes",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
	}, []string{"syntax", "result"})

	indexCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_index_cache_total",
		Help: "Index cache lookups by outcome",
	}, []string{"outcome"})

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reframe_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// SessionStarted increments the active session gauge
func SessionStarted() {
	sessionsActive.Inc()
}

// SessionEnded decrements the active session gauge
func SessionEnded() {
	sessionsActive.Dec()
}

// RecordUnitEmitted counts one emitted unit and its payload size
func RecordUnitEmitted(syntax, codec string, bytes int) {
	unitsEmittedTotal.WithLabelValues(syntax, codec).Inc()
	bytesEmittedTotal.WithLabelValues(syntax, codec).Add(float64(bytes))
}

// RecordUnitDropped counts a unit that was extracted but not emitted
func RecordUnitDropped(syntax, reason string) {
	unitsDroppedTotal.WithLabelValues(syntax, reason).Inc()
}

// IncrementMalformedUnits counts a malformed unit skipped by resynchronization
func IncrementMalformedUnits(syntax string) {
	malformedUnitsTotal.WithLabelValues(syntax).Inc()
}

// IncrementTerminalFailures counts a session stopped by a terminal error
func IncrementTerminalFailures(syntax, reason string) {
	terminalFailuresTotal.WithLabelValues(syntax, reason).Inc()
}

// IncrementConfigChanges counts a signaled configuration change
func IncrementConfigChanges(codec string) {
	configChangesTotal.WithLabelValues(codec).Inc()
}

// IncrementTimestampRestarts counts an assumed timestamp restart
func IncrementTimestampRestarts(syntax string) {
	timestampRestartsTotal.WithLabelValues(syntax).Inc()
}

// RecordIndexBuild records the duration of an indexing pass
func RecordIndexBuild(syntax, result string, seconds float64) {
	indexBuildSeconds.WithLabelValues(syntax, result).Observe(seconds)
}

// IncrementIndexCache counts an index cache lookup ("hit", "miss" or "error")
func IncrementIndexCache(outcome string) {
	indexCacheTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records one served HTTP request
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
