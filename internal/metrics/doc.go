// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

/*
Package metrics provides Prometheus instrumentation for the ranking service.

Collectors cover the ranking pipeline (request rate, latency, degraded and
cold-start counts), per-source fetch performance, circuit breaker states,
cache hit rates per tier, learner activity (exploration rate, feedback
volume), drift detections, and the HTTP API surface.

Metrics are exposed at /metrics in Prometheus text format.

Example PromQL:

	# Ranking p95 latency
	histogram_quantile(0.95, rate(rank_request_duration_seconds_bucket[5m]))

	# Per-source error rate
	rate(source_fetch_errors_total[5m]) / rate(source_fetch_duration_seconds_count[5m])

	# Recommendation-tier cache hit rate
	rate(cache_hits_total{tier="recommendation"}[5m])
	  / (rate(cache_hits_total{tier="recommendation"}[5m]) + rate(cache_misses_total{tier="recommendation"}[5m]))

	# Open breakers
	circuit_breaker_state == 2

All recording functions are safe for concurrent use. Labels are bounded:
source names, cache tiers, and feedback kinds come from fixed sets, and no
metric carries user identifiers.
*/
package metrics
