// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/metrics"
	"github.com/scentdex/accord/internal/ranking"
)

// RouterConfig configures the feedback consumption router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for in-flight handlers on shutdown.
	CloseTimeout time.Duration

	// Retry backoff for transient handler failures.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// MetaTimeout bounds the catalog lookup per event.
	MetaTimeout time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     30 * time.Second,
		RetryMultiplier:      2.0,
		MetaTimeout:          2 * time.Second,
	}
}

// WeightObserver receives events for weight learning.
type WeightObserver interface {
	Observe(ev ranking.FeedbackEvent)
}

// DriftObserver receives events plus resolved family metadata.
type DriftObserver interface {
	Observe(ev ranking.FeedbackEvent, family string)
}

// ProfileApplier folds events into preference profiles.
type ProfileApplier interface {
	Apply(ev ranking.FeedbackEvent, meta ranking.ItemMeta)
}

// UserInvalidator drops a user's cached recommendation entries.
type UserInvalidator interface {
	InvalidateUser(userID string) int
}

// Consumers bundles everything an accepted event fans out to. Any field may
// be nil; the corresponding step is skipped.
type Consumers struct {
	Learner WeightObserver
	Drift   DriftObserver
	Profile ProfileApplier
	Cache   UserInvalidator
	Catalog ranking.Catalog
}

// Router consumes the feedback topic and dispatches each event to the
// learning components. It satisfies suture.Service.
type Router struct {
	config    RouterConfig
	router    *message.Router
	consumers Consumers
	logger    zerolog.Logger
}

// NewRouter builds the Watermill router with recovery and retry middleware
// and registers the feedback handler on the given subscriber.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(cfg RouterConfig, sub message.Subscriber, consumers Consumers, logger zerolog.Logger) (*Router, error) {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}
	if cfg.MetaTimeout <= 0 {
		cfg.MetaTimeout = 2 * time.Second
	}

	wmLogger := NewWatermillLogger(logger)
	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create feedback router: %w", err)
	}

	r := &Router{
		config:    cfg,
		router:    wmRouter,
		consumers: consumers,
		logger:    logger.With().Str("component", "feedback").Logger(),
	}

	wmRouter.AddMiddleware(middleware.Recoverer)
	if cfg.RetryMaxRetries > 0 {
		retry := middleware.Retry{
			MaxRetries:      cfg.RetryMaxRetries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
			Multiplier:      cfg.RetryMultiplier,
			Logger:          wmLogger,
		}
		wmRouter.AddMiddleware(retry.Middleware)
	}

	wmRouter.AddNoPublisherHandler("feedback-consumer", TopicFeedback, sub, r.handle)

	return r, nil
}

// Serve runs the router until the context is cancelled. It satisfies
// suture.Service.
func (r *Router) Serve(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Close stops the router outside of context cancellation.
func (r *Router) Close() error { return r.router.Close() }

// Running returns a channel that closes once the router is consuming.
func (r *Router) Running() <-chan struct{} { return r.router.Running() }

// handle fans one event out to the learning components. A malformed payload
// is dropped (acked) rather than retried: it can never become valid.
func (r *Router) handle(msg *message.Message) error {
	ev, err := Decode(msg)
	if err != nil {
		r.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping malformed feedback event")
		return nil
	}

	metrics.ObserveFeedbackEvent(ev.Kind.String())

	meta := r.resolveMeta(msg.Context(), ev.CandidateID)

	if r.consumers.Learner != nil {
		r.consumers.Learner.Observe(ev)
	}
	if r.consumers.Drift != nil {
		r.consumers.Drift.Observe(ev, meta.Family)
	}
	if r.consumers.Profile != nil && ev.UserID != "" {
		r.consumers.Profile.Apply(ev, meta)
	}
	if r.consumers.Cache != nil && ev.UserID != "" && ev.Kind.Invalidating() {
		n := r.consumers.Cache.InvalidateUser(ev.UserID)
		metrics.ObserveCacheInvalidation("feedback", n)
		r.logger.Debug().
			Str("user_id", ev.UserID).
			Str("kind", ev.Kind.String()).
			Int("invalidated", n).
			Msg("recommendation cache invalidated")
	}

	return nil
}

// resolveMeta looks up candidate metadata, tolerating catalog failures:
// learning proceeds without family or vector detail rather than blocking
// the event.
func (r *Router) resolveMeta(ctx context.Context, candidateID string) ranking.ItemMeta {
	if r.consumers.Catalog == nil {
		return ranking.ItemMeta{ID: candidateID}
	}
	ctx, cancel := context.WithTimeout(ctx, r.config.MetaTimeout)
	defer cancel()

	metas, err := r.consumers.Catalog.Meta(ctx, []string{candidateID})
	if err != nil {
		r.logger.Warn().Err(err).Str("candidate_id", candidateID).Msg("catalog lookup failed")
		return ranking.ItemMeta{ID: candidateID}
	}
	meta, ok := metas[candidateID]
	if !ok {
		return ranking.ItemMeta{ID: candidateID}
	}
	return meta
}
