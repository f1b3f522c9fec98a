// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/ranking"
)

// Tier names used in keys, logs, and metrics.
const (
	TierResult         = "result"
	TierRecommendation = "recommendation"
)

// ManagerConfig configures the tiered cache.
type ManagerConfig struct {
	// ResultTTL is the result-tier TTL. Default: 5m.
	ResultTTL time.Duration

	// RecommendationTTL is the recommendation-tier TTL. Default: 1h.
	RecommendationTTL time.Duration

	// SweepInterval is how often expired entries are swept. Default: 5m.
	SweepInterval time.Duration
}

// DefaultManagerConfig returns production defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ResultTTL:         5 * time.Minute,
		RecommendationTTL: time.Hour,
		SweepInterval:     5 * time.Minute,
	}
}

// Observer receives cache lookups for metrics. May be nil.
type Observer func(tier string, hit bool)

// Manager is the tiered response cache. It implements ranking.ResponseCache.
// Queries without a user id use the result tier; personalized queries use
// the recommendation tier, which is invalidated by strong feedback events.
type Manager struct {
	store    *Store
	config   ManagerConfig
	observer Observer
	logger   zerolog.Logger

	resultTTL atomic.Int64 // nanoseconds, hot-reloadable
	recTTL    atomic.Int64
}

// NewManager creates the cache manager.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewManager(cfg ManagerConfig, logger zerolog.Logger) *Manager {
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 5 * time.Minute
	}
	if cfg.RecommendationTTL <= 0 {
		cfg.RecommendationTTL = time.Hour
	}

	m := &Manager{
		// Store default TTL is unused; every Set passes the tier TTL.
		store:  NewStore(cfg.ResultTTL, cfg.SweepInterval),
		config: cfg,
		logger: logger.With().Str("component", "cache").Logger(),
	}
	m.resultTTL.Store(int64(cfg.ResultTTL))
	m.recTTL.Store(int64(cfg.RecommendationTTL))
	return m
}

// SetObserver sets the metrics observer.
func (m *Manager) SetObserver(o Observer) { m.observer = o }

// SetTTLs publishes new tier TTLs. Used by config hot reload; existing
// entries keep the TTL they were stored with.
func (m *Manager) SetTTLs(result, recommendation time.Duration) {
	if result > 0 {
		m.resultTTL.Store(int64(result))
	}
	if recommendation > 0 {
		m.recTTL.Store(int64(recommendation))
	}
}

// Close stops the underlying store's sweeper.
func (m *Manager) Close() { m.store.Close() }

// Lookup implements ranking.ResponseCache.
func (m *Manager) Lookup(q ranking.Query) (*ranking.Response, bool) {
	tier, key := m.keyFor(q)
	v, ok := m.store.Get(key)
	if m.observer != nil {
		m.observer(tier, ok)
	}
	if !ok {
		return nil, false
	}
	resp, ok := v.(*ranking.Response)
	return resp, ok
}

// Store implements ranking.ResponseCache.
func (m *Manager) Store(q ranking.Query, resp *ranking.Response) {
	tier, key := m.keyFor(q)
	ttl := time.Duration(m.resultTTL.Load())
	if tier == TierRecommendation {
		ttl = time.Duration(m.recTTL.Load())
	}
	m.store.SetWithTTL(key, resp, ttl)
}

// InvalidateUser drops every recommendation-tier entry for the user across
// all contexts. Called for strong feedback events and on drift detection.
func (m *Manager) InvalidateUser(userID string) int {
	if userID == "" {
		return 0
	}
	removed := m.store.DeletePrefix("rec:" + userID + ":")
	if removed > 0 {
		m.logger.Debug().
			Str("user_id", userID).
			Int("removed", removed).
			Msg("invalidated recommendation cache")
	}
	return removed
}

// InvalidateQuery drops the result-tier entry for a query.
func (m *Manager) InvalidateQuery(q ranking.Query) {
	m.store.Delete("res:" + queryHash(q))
}

// GetStats returns the underlying store counters.
func (m *Manager) GetStats() Stats { return m.store.GetStats() }

// keyFor picks the tier and builds the key for a query.
func (m *Manager) keyFor(q ranking.Query) (tier, key string) {
	hash := queryHash(q)
	if q.UserID != "" {
		return TierRecommendation, fmt.Sprintf("rec:%s:%s", q.UserID, hash)
	}
	return TierResult, "res:" + hash
}

// queryHash hashes the normalized query text, filters, and context bucket
// into a compact key component.
func queryHash(q ranking.Query) string {
	payload := struct {
		Text    string          `json:"text"`
		Filters ranking.Filters `json:"filters"`
		Bucket  string          `json:"bucket"`
		K       int             `json:"k"`
	}{
		Text:    normalizeText(q.Text),
		Filters: q.Filters,
		Bucket:  ranking.Bucket(q.Context),
		K:       q.K,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Fallback to the raw text; still a valid, just coarser, key.
		data = []byte(payload.Text)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:16])
}

// normalizeText lowercases and collapses internal whitespace so trivially
// different spellings share a cache entry.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
