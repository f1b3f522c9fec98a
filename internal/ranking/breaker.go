// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the per-source circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the run of consecutive failures that opens the
	// circuit. Default: 5.
	FailureThreshold uint32

	// CoolDown is how long the circuit stays open before allowing the
	// half-open trial call. Default: 60s.
	CoolDown time.Duration
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		CoolDown:         60 * time.Second,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.CoolDown == 0 {
		c.CoolDown = 60 * time.Second
	}
	return c
}

// StateListener observes circuit state transitions for metrics.
type StateListener func(source, from, to string)

// BreakerAdapter wraps a source Adapter with circuit breaking so a failing
// source is rejected immediately instead of consuming the shared time budget
// of every request. It implements Adapter.
//
// The threshold and cool-down are hot-reloadable via UpdateConfig.
type BreakerAdapter struct {
	inner    Adapter
	cb       atomic.Pointer[gobreaker.CircuitBreaker[[]ScoredID]]
	listener StateListener
	logger   zerolog.Logger

	mu  sync.Mutex // guards cfg against concurrent UpdateConfig
	cfg BreakerConfig
}

// NewBreakerAdapter wraps an adapter with a circuit breaker.
// The listener may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBreakerAdapter(inner Adapter, cfg BreakerConfig, logger zerolog.Logger, listener StateListener) *BreakerAdapter {
	b := &BreakerAdapter{
		inner:    inner,
		listener: listener,
		logger:   logger.With().Str("source", inner.Name()).Logger(),
		cfg:      cfg.withDefaults(),
	}
	b.cb.Store(b.newBreaker(b.cfg))
	return b
}

// newBreaker builds the gobreaker instance for the given settings. gobreaker
// freezes its settings at construction, so a config change swaps the whole
// instance.
func (b *BreakerAdapter) newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[[]ScoredID] {
	settings := gobreaker.Settings{
		Name:        b.inner.Name(),
		MaxRequests: 1, // exactly one half-open trial call
		Timeout:     cfg.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit state change")
			if b.listener != nil {
				b.listener(name, from.String(), to.String())
			}
		},
	}
	return gobreaker.NewCircuitBreaker[[]ScoredID](settings)
}

// UpdateConfig applies a new threshold and cool-down by swapping in a fresh
// circuit. An unchanged config is a no-op so reloads of unrelated keys never
// reset a live failure count or reopen a tripped circuit as closed.
func (b *BreakerAdapter) UpdateConfig(cfg BreakerConfig) {
	cfg = cfg.withDefaults()

	b.mu.Lock()
	defer b.mu.Unlock()
	if cfg == b.cfg {
		return
	}
	b.cfg = cfg
	b.cb.Store(b.newBreaker(cfg))
	b.logger.Info().
		Uint32("failure_threshold", cfg.FailureThreshold).
		Dur("cool_down", cfg.CoolDown).
		Msg("circuit settings updated")
}

// Name returns the wrapped adapter's name.
func (b *BreakerAdapter) Name() string { return b.inner.Name() }

// State returns the current circuit state as a string (closed, open,
// half-open) for observability.
func (b *BreakerAdapter) State() string { return b.cb.Load().State().String() }

// Fetch calls the wrapped adapter through the circuit breaker. When the
// circuit is open the call is rejected without touching the adapter and
// ErrSourceUnavailable is returned.
func (b *BreakerAdapter) Fetch(ctx context.Context, q Query) ([]ScoredID, error) {
	scores, err := b.cb.Load().Execute(func() ([]ScoredID, error) {
		return b.inner.Fetch(ctx, q)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrSourceUnavailable
		}
		return nil, err
	}
	return scores, nil
}
