package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the sync and scoring service

var (
	// Feed API metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wcpickem_api_calls_total",
			Help: "Total number of CricAPI calls",
		},
		[]string{"endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wcpickem_api_call_duration_seconds",
			Help:    "Duration of API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIHitsToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wcpickem_api_hits_today",
			Help: "CricAPI hits consumed today as reported by the feed",
		},
	)

	APIHitsLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wcpickem_api_hits_limit",
			Help: "CricAPI daily hit limit as reported by the feed",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wcpickem_cache_hits_total",
			Help: "Total number of feed cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wcpickem_cache_misses_total",
			Help: "Total number of feed cache misses",
		},
	)

	// Sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wcpickem_sync_operations_total",
			Help: "Total number of sync operations",
		},
		[]string{"type", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wcpickem_sync_duration_seconds",
			Help:    "Duration of sync operations in seconds",
			Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"type"},
	)

	MatchesSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wcpickem_matches_synced_total",
			Help: "Total number of match upserts performed by the sync engine",
		},
	)

	DetailFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wcpickem_detail_fetches_total",
			Help: "Total number of per-match detail fetches",
		},
		[]string{"status"},
	)

	// Scoring metrics
	MatchesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wcpickem_matches_scored_total",
			Help: "Total number of matches marked as scored",
		},
	)

	PredictionsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wcpickem_predictions_scored_total",
			Help: "Total number of predictions scored by result",
		},
		[]string{"result"},
	)

	// Trigger metrics
	TriggerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wcpickem_trigger_invocations_total",
			Help: "Total number of pipeline invocations by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wcpickem_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wcpickem_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wcpickem_last_successful_sync_timestamp",
			Help: "Timestamp of last successful sync operation",
		},
	)
)

// RecordAPICall records an API call metric
func RecordAPICall(endpoint, status string, duration float64) {
	APICallsTotal.WithLabelValues(endpoint, status).Inc()
	APICallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordAPIUsage records the quota block reported by the feed
func RecordAPIUsage(hitsToday, hitsLimit int) {
	APIHitsToday.Set(float64(hitsToday))
	if hitsLimit > 0 {
		APIHitsLimit.Set(float64(hitsLimit))
	}
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordSync records a sync operation
func RecordSync(syncType, status string, duration float64) {
	SyncOperationsTotal.WithLabelValues(syncType, status).Inc()
	SyncDuration.WithLabelValues(syncType).Observe(duration)

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordMatchesSynced records upserted matches
func RecordMatchesSynced(n int) {
	MatchesSynced.Add(float64(n))
}

// RecordDetailFetch records a detail fetch outcome
func RecordDetailFetch(status string) {
	DetailFetches.WithLabelValues(status).Inc()
}

// RecordMatchesScored records matches marked as scored
func RecordMatchesScored(n int) {
	MatchesScored.Add(float64(n))
}

// RecordPredictionScored records a scored prediction by result
func RecordPredictionScored(result string) {
	PredictionsScored.WithLabelValues(result).Inc()
}

// RecordTrigger records a pipeline invocation
func RecordTrigger(source, outcome string) {
	TriggerInvocations.WithLabelValues(source, outcome).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
