// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

// Package ranking implements the core ranking pipeline: concurrent fan-out to
// independent scoring sources, per-source circuit breaking, weighted score
// aggregation with overlap boosting, and preference-profile personalization.
//
// The pipeline tolerates the failure or slowness of any individual source.
// A request succeeds as long as at least one source returns candidates; the
// response is flagged degraded when sources were excluded.
//
// Two pieces of shared mutable state are read on every request: the active
// WeightVector per context bucket and the per-source circuit state. Both use
// a snapshot-publish discipline - background owners swap immutable snapshots
// atomically, request paths never take locks on them.
//
// This package has no dependencies on other internal packages. Integration
// points (weight snapshots, preference profiles, caching, metrics) are
// expressed as small interfaces implemented by the learner, cache, and
// metrics packages.
package ranking
