// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every collector, so the service's series group under
// accord_* in a shared Prometheus.
const namespace = "accord"

var (
	// Ranking pipeline metrics
	RankRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_requests_total",
			Help:      "Total number of ranking requests",
		},
		[]string{"degraded", "cache_hit", "cold_start"},
	)

	RankRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rank_request_duration_seconds",
			Help:      "Ranking request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// Source adapter metrics
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Per-source fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	SourceFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_errors_total",
			Help:      "Total number of failed source fetches",
		},
		[]string{"source"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"source", "from_state", "to_state"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"tier"}, // "result", "recommendation"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"tier"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Total number of cache entries invalidated",
		},
		[]string{"reason"}, // "feedback", "drift", "erasure"
	)

	// Learner metrics
	FeedbackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_events_total",
			Help:      "Total number of feedback events received",
		},
		[]string{"kind"},
	)

	ExplorationRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "learner_exploration_rate",
			Help:      "Current exploration rate of the weight learner",
		},
	)

	WeightSnapshots = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learner_weight_snapshots_total",
			Help:      "Total number of published weight snapshots",
		},
	)

	// Drift metrics
	DriftDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drift_detections_total",
			Help:      "Total number of preference drift detections",
		},
		[]string{"scope"}, // "user", "population"
	)

	DriftDivergence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drift_divergence",
			Help:      "Jensen-Shannon divergence observed at drift detection",
			Buckets:   []float64{0.1, 0.2, 0.25, 0.3, 0.4, 0.5, 0.75, 1},
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// Recorder bridges the ranking engine's observability hooks onto the
// Prometheus collectors above.
type Recorder struct{}

// NewRecorder returns the Prometheus recorder.
func NewRecorder() Recorder { return Recorder{} }

// ObserveRequest records one completed ranking request.
func (Recorder) ObserveRequest(latency time.Duration, degraded, cacheHit, coldStart bool) {
	RankRequestsTotal.WithLabelValues(
		strconv.FormatBool(degraded),
		strconv.FormatBool(cacheHit),
		strconv.FormatBool(coldStart),
	).Inc()
	RankRequestDuration.Observe(latency.Seconds())
}

// ObserveSource records one source call within a request.
func (Recorder) ObserveSource(source string, latency time.Duration, ok bool) {
	SourceFetchDuration.WithLabelValues(source).Observe(latency.Seconds())
	if !ok {
		SourceFetchErrors.WithLabelValues(source).Inc()
	}
}

// ObserveCache is a cache lookup observer.
func ObserveCache(tier string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(tier).Inc()
	} else {
		CacheMisses.WithLabelValues(tier).Inc()
	}
}

// ObserveCacheInvalidation records entries removed by an invalidation.
// Reasons: "feedback", "drift", "erasure".
func ObserveCacheInvalidation(reason string, entries int) {
	if entries <= 0 {
		return
	}
	CacheInvalidations.WithLabelValues(reason).Add(float64(entries))
}

// ObserveFeedbackEvent counts one accepted feedback event by kind.
func ObserveFeedbackEvent(kind string) {
	FeedbackEventsTotal.WithLabelValues(kind).Inc()
}

// ObserveWeightSnapshot counts one published weight snapshot.
func ObserveWeightSnapshot() {
	WeightSnapshots.Inc()
}

// SetExplorationRate publishes the learner's active exploration rate.
func SetExplorationRate(rate float64) {
	ExplorationRate.Set(rate)
}

// ObserveBreakerTransition records a circuit state transition and updates
// the state gauge.
func ObserveBreakerTransition(source, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(source, from, to).Inc()
	CircuitBreakerState.WithLabelValues(source).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default: // closed
		return 0
	}
}

// ObserveDrift records a drift detection. An empty userID means the
// population distribution drifted.
func ObserveDrift(userID string, divergence float64) {
	scope := "user"
	if userID == "" {
		scope = "population"
	}
	DriftDetections.WithLabelValues(scope).Inc()
	DriftDivergence.Observe(divergence)
}

// RecordAPIRequest records one HTTP API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
