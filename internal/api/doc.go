// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

// Package api provides the HTTP surface of the ranking service using the
// chi router.
//
// Endpoints:
//
//	POST   /api/v1/rank          rank fragrances for a query
//	POST   /api/v1/feedback      submit a feedback event
//	GET    /api/v1/weights       active weight vectors per context bucket
//	DELETE /api/v1/users/{id}    erase a user's profile and cached entries
//	GET    /api/v1/health        service health including breaker states
//	GET    /api/v1/health/live   liveness probe
//	GET    /api/v1/health/ready  readiness probe
//	GET    /metrics              Prometheus metrics
//
// Responses use a uniform envelope with status, data, metadata, and an
// optional error block.
package api
