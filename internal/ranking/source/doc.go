// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

// Package source provides the built-in scoring source adapters: semantic
// (embedding provider + vector index), keyword (full-text index), and
// popularity. All remote calls go through a shared rate-limited HTTP client
// and respect the caller's deadline. The indexes themselves are opaque
// external collaborators; adapters only speak the narrow fetch contract.
package source
