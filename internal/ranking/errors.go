// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ranking pipeline.
var (
	// ErrInvalidQuery indicates the query text is empty or below the
	// configured minimum length. Surfaced to the caller, never retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNoSourcesAvailable indicates every source failed, timed out, or
	// was circuit-open. Surfaced as an explicit failure; the pipeline never
	// returns an empty ranked list pretending success.
	ErrNoSourcesAvailable = errors.New("no sources available")

	// ErrSourceTimeout indicates a source exceeded the shared time budget.
	// Recovered locally by excluding the source from the merge.
	ErrSourceTimeout = errors.New("source timeout")

	// ErrSourceUnavailable indicates a source's circuit is open and the
	// call was rejected without touching the adapter.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// SourceError wraps a per-source failure with the source name so the fan-out
// coordinator can record it without losing the cause.
type SourceError struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error { return e.Err }
