// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

// Package learner adapts per-context source weights from observed feedback
// (a contextual-bandit style control loop), maintains user preference
// profiles, and watches for preference drift.
//
// The Learner owns one WeightVector per context bucket. Recomputation runs
// on a dedicated goroutine consuming the feedback channel; ranking requests
// read an immutable snapshot through an atomic pointer and never lock or
// block on an update.
//
// Reward aggregation is an exponentially-decayed mean per source (decay is
// a configuration point; the pipeline only depends on directional
// convergence, not the exact formula). A per-source floor weight prevents
// starvation, and a seedable exploration perturbation keeps under-used
// sources measurable.
package learner
