// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Coordinator fans a query out to every enabled source adapter concurrently
// under a shared time budget and collects whatever completes.
//
// The set of enabled sources is hot-reloadable via SetEnabled; adapters stay
// constructed while disabled so re-enabling needs no rebuild.
type Coordinator struct {
	adapters []Adapter
	enabled  atomic.Pointer[map[string]struct{}]
	budget   time.Duration
	logger   zerolog.Logger
}

// NewCoordinator creates a fan-out coordinator over the given adapters.
// All adapters start enabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCoordinator(adapters []Adapter, budget time.Duration, logger zerolog.Logger) *Coordinator {
	if budget <= 0 {
		budget = 5 * time.Second
	}
	return &Coordinator{
		adapters: adapters,
		budget:   budget,
		logger:   logger.With().Str("component", "fanout").Logger(),
	}
}

// Sources returns the names of all configured adapters, in registration order.
func (c *Coordinator) Sources() []string {
	names := make([]string, len(c.adapters))
	for i, a := range c.adapters {
		names[i] = a.Name()
	}
	return names
}

// SetEnabled restricts fan-out to the named sources. A nil slice re-enables
// every adapter. In-flight requests keep the set they started with.
func (c *Coordinator) SetEnabled(names []string) {
	if names == nil {
		c.enabled.Store(nil)
		return
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	c.enabled.Store(&set)
}

// active returns the currently enabled adapters in registration order.
func (c *Coordinator) active() []Adapter {
	set := c.enabled.Load()
	if set == nil {
		return c.adapters
	}
	out := make([]Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		if _, ok := (*set)[a.Name()]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Fetch starts every enabled adapter call at t=0 and returns the full set of
// SourceResults once all complete or the budget expires, whichever is first.
// Calls outstanding at the deadline are cancelled and recorded as timeout
// failures; an uncancellable adapter is simply ignored when it eventually
// returns. Returns ErrNoSourcesAvailable if zero sources succeed.
func (c *Coordinator) Fetch(ctx context.Context, q Query) ([]SourceResult, error) {
	adapters := c.active()
	if len(adapters) == 0 {
		return nil, ErrNoSourcesAvailable
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	type indexed struct {
		idx int
		res SourceResult
	}

	// Buffered so late completions after the deadline never block their
	// goroutines.
	done := make(chan indexed, len(adapters))

	for i, a := range adapters {
		go func(idx int, a Adapter) {
			start := time.Now()
			scores, err := a.Fetch(fetchCtx, q)
			done <- indexed{idx: idx, res: SourceResult{
				Source:  a.Name(),
				Scores:  scores,
				Latency: time.Since(start),
				Err:     recordFetchErr(a.Name(), err),
			}}
		}(i, a)
	}

	results := make([]SourceResult, len(adapters))
	seen := make([]bool, len(adapters))
	remaining := len(adapters)

	for remaining > 0 {
		select {
		case r := <-done:
			results[r.idx] = r.res
			seen[r.idx] = true
			remaining--
		case <-fetchCtx.Done():
			// Deadline fired: record every outstanding call as a timeout.
			for i := range results {
				if !seen[i] {
					results[i] = SourceResult{
						Source:  adapters[i].Name(),
						Latency: c.budget,
						Err:     &SourceError{Source: adapters[i].Name(), Err: ErrSourceTimeout},
					}
				}
			}
			remaining = 0
		}
	}

	succeeded := 0
	for i := range results {
		r := &results[i]
		if r.OK() {
			succeeded++
			continue
		}
		c.logger.Warn().
			Str("source", r.Source).
			Dur("latency", r.Latency).
			Err(r.Err).
			Msg("source excluded")
	}

	if succeeded == 0 {
		return results, ErrNoSourcesAvailable
	}
	return results, nil
}

// recordFetchErr wraps a non-nil fetch error with the source name so failure
// records keep their origin through errors.As.
func recordFetchErr(source string, err error) error {
	if err = normalizeFetchErr(err); err == nil {
		return nil
	}
	return &SourceError{Source: source, Err: err}
}

// normalizeFetchErr maps context errors onto the pipeline taxonomy so the
// aggregator can report uniform failure reasons.
func normalizeFetchErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrSourceTimeout
	case errors.Is(err, context.Canceled):
		return ErrSourceTimeout
	default:
		return err
	}
}
