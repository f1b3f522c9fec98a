// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

// Package feedback carries user feedback events from the API surface to the
// learning components over Watermill. The default transport is an in-process
// gochannel; NATS JetStream (optionally embedded) can be enabled for
// multi-instance deployments.
//
// One router consumes the feedback topic and fans each accepted event out to
// the weight learner, the drift monitor, the profile store, and the cache
// invalidator. Handler failures are retried with backoff; panics are
// recovered and logged.
package feedback
