// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

// Package cache provides the tiered response cache fronting the ranking
// pipeline: a short-TTL result tier keyed by normalized query+filters+context
// and a longer-TTL recommendation tier keyed by user+context.
//
// Storage is a sharded TTL map: reads take a per-shard read lock, writes a
// per-shard write lock, so many concurrent readers never block each other
// and writers never take a global lock. Invalidation is either TTL expiry
// (background sweeper) or event-driven by user id / query hash.
package cache
