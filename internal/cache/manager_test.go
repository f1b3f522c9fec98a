// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/ranking"
)

func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour
	}
	m := NewManager(cfg, zerolog.Nop())
	t.Cleanup(m.Close)
	return m
}

func TestManagerResultTierRoundTrip(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig())
	q := ranking.Query{Text: "warm amber", K: 10}
	resp := &ranking.Response{Candidates: []ranking.Candidate{{ID: "a", FinalScore: 0.9}}}

	if _, ok := m.Lookup(q); ok {
		t.Fatal("expected miss before Store")
	}
	m.Store(q, resp)

	got, ok := m.Lookup(q)
	if !ok {
		t.Fatal("expected hit after Store")
	}
	if got != resp {
		t.Error("result tier must return the stored response")
	}
}

func TestManagerKeyNormalization(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig())
	resp := &ranking.Response{}

	m.Store(ranking.Query{Text: "Warm  Amber", K: 10}, resp)
	if _, ok := m.Lookup(ranking.Query{Text: "warm amber", K: 10}); !ok {
		t.Error("case and whitespace variants must share a cache entry")
	}
	if _, ok := m.Lookup(ranking.Query{Text: "warm amber", K: 20}); ok {
		t.Error("different K must not share a cache entry")
	}
	if _, ok := m.Lookup(ranking.Query{Text: "warm amber", K: 10, Filters: ranking.Filters{Brands: []string{"x"}}}); ok {
		t.Error("different filters must not share a cache entry")
	}
}

func TestManagerTierSelection(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig())

	var lookups []string
	m.SetObserver(func(tier string, _ bool) { lookups = append(lookups, tier) })

	m.Lookup(ranking.Query{Text: "q"})
	m.Lookup(ranking.Query{Text: "q", UserID: "u1"})

	if len(lookups) != 2 || lookups[0] != TierResult || lookups[1] != TierRecommendation {
		t.Errorf("tiers = %v, want [result recommendation]", lookups)
	}
}

func TestManagerUserQueriesDoNotCollide(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig())
	resp := &ranking.Response{}

	m.Store(ranking.Query{Text: "q", UserID: "u1"}, resp)
	if _, ok := m.Lookup(ranking.Query{Text: "q"}); ok {
		t.Error("anonymous lookup must not hit a personalized entry")
	}
	if _, ok := m.Lookup(ranking.Query{Text: "q", UserID: "u2"}); ok {
		t.Error("another user's lookup must not hit u1's entry")
	}
}

func TestManagerInvalidateUser(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig())
	resp := &ranking.Response{}

	// Same user across two contexts, plus another user and an anonymous
	// result entry.
	m.Store(ranking.Query{Text: "q", UserID: "u1"}, resp)
	m.Store(ranking.Query{Text: "q", UserID: "u1", Context: ranking.RequestContext{Occasion: "date"}}, resp)
	m.Store(ranking.Query{Text: "q", UserID: "u2"}, resp)
	m.Store(ranking.Query{Text: "q"}, resp)

	if removed := m.InvalidateUser("u1"); removed != 2 {
		t.Errorf("removed = %d, want 2 (all of u1's contexts)", removed)
	}
	if _, ok := m.Lookup(ranking.Query{Text: "q", UserID: "u1"}); ok {
		t.Error("u1 entry survived invalidation")
	}
	if _, ok := m.Lookup(ranking.Query{Text: "q", UserID: "u2"}); !ok {
		t.Error("u2 entry must survive")
	}
	if _, ok := m.Lookup(ranking.Query{Text: "q"}); !ok {
		t.Error("result-tier entry must survive")
	}

	if removed := m.InvalidateUser(""); removed != 0 {
		t.Errorf("empty user id removed %d entries", removed)
	}
}

func TestManagerInvalidateQuery(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig())
	q := ranking.Query{Text: "q"}

	m.Store(q, &ranking.Response{})
	m.InvalidateQuery(q)
	if _, ok := m.Lookup(q); ok {
		t.Error("entry survived query invalidation")
	}
}

func TestManagerTTLPerTier(t *testing.T) {
	m := newTestManager(t, ManagerConfig{
		ResultTTL:         20 * time.Millisecond,
		RecommendationTTL: time.Hour,
		SweepInterval:     time.Hour,
	})
	resp := &ranking.Response{}

	m.Store(ranking.Query{Text: "q"}, resp)
	m.Store(ranking.Query{Text: "q", UserID: "u1"}, resp)

	time.Sleep(40 * time.Millisecond)

	if _, ok := m.Lookup(ranking.Query{Text: "q"}); ok {
		t.Error("result entry must expire after its short TTL")
	}
	if _, ok := m.Lookup(ranking.Query{Text: "q", UserID: "u1"}); !ok {
		t.Error("recommendation entry must still be live")
	}
}

func TestManagerSetTTLsHotReload(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig())
	m.SetTTLs(10*time.Millisecond, time.Hour)

	m.Store(ranking.Query{Text: "q"}, &ranking.Response{})
	time.Sleep(30 * time.Millisecond)
	if _, ok := m.Lookup(ranking.Query{Text: "q"}); ok {
		t.Error("entry stored after the TTL change must use the new TTL")
	}
}
