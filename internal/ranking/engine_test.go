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
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// swapWeights is a snapshot-publishing weight provider for concurrency tests.
type swapWeights struct {
	ptr atomic.Pointer[WeightVector]
}

func newSwapWeights(w WeightVector) *swapWeights {
	s := &swapWeights{}
	s.ptr.Store(&w)
	return s
}

func (s *swapWeights) Weights(string) WeightVector { return *s.ptr.Load() }

func (s *swapWeights) publish(w WeightVector) { s.ptr.Store(&w) }

type mapCatalog map[string]ItemMeta

func (m mapCatalog) Meta(_ context.Context, ids []string) (map[string]ItemMeta, error) {
	out := make(map[string]ItemMeta, len(ids))
	for _, id := range ids {
		if meta, ok := m[id]; ok {
			out[id] = meta
		}
	}
	return out, nil
}

type mapProfiles map[string]*UserPreferenceProfile

func (m mapProfiles) Profile(_ context.Context, userID string) (*UserPreferenceProfile, error) {
	return m[userID], nil
}

// memCache is a plain map ResponseCache for engine tests.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*Response
}

func newMemCache() *memCache { return &memCache{entries: make(map[string]*Response)} }

func (c *memCache) Lookup(q Query) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.entries[q.Text+"|"+q.UserID]
	return resp, ok
}

func (c *memCache) Store(q Query, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[q.Text+"|"+q.UserID] = resp
}

func newTestEngine(adapters []Adapter, weights WeightProvider) *Engine {
	logger := zerolog.Nop()
	coord := NewCoordinator(adapters, 200*time.Millisecond, logger)
	pers := NewPersonalizer(mapCatalog{}, DefaultPersonalizerConfig(), logger)
	return NewEngine(coord, pers, weights, logger)
}

func TestRankRejectsShortQuery(t *testing.T) {
	e := newTestEngine([]Adapter{&fakeAdapter{name: "keyword"}}, newSwapWeights(EqualWeights([]string{"keyword"})))

	if _, err := e.Rank(context.Background(), Query{Text: " a "}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestRankMinQueryLengthCountsRunes(t *testing.T) {
	e := newTestEngine([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
	}, newSwapWeights(EqualWeights([]string{"keyword"})))
	e.SetOptions(Options{MinQueryLength: 3})

	// "néroli" is well over three runes either way; "éé" is two runes but
	// four bytes, so a byte count would wrongly accept it.
	if _, err := e.Rank(context.Background(), Query{Text: "éé"}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery for a two-rune query", err)
	}
	if _, err := e.Rank(context.Background(), Query{Text: "néroli"}); err != nil {
		t.Fatalf("err = %v for a six-rune query", err)
	}
}

func TestRankDegradedExcludesSlowSource(t *testing.T) {
	// The semantic source exceeds the shared budget; the response must be
	// degraded with semantic excluded and the rest contributing.
	adapters := []Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}, {ID: "b", Score: 0.5}}},
		&fakeAdapter{name: "popularity", scores: []ScoredID{{ID: "a", Score: 0.9}, {ID: "c", Score: 0.2}}},
		&fakeAdapter{name: "semantic", delay: time.Second, scores: []ScoredID{{ID: "z", Score: 1}}},
	}
	weights := newSwapWeights(EqualWeights([]string{"keyword", "popularity", "semantic"}))
	e := newTestEngine(adapters, weights)

	resp, err := e.Rank(context.Background(), Query{Text: "warm amber"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Degraded {
		t.Error("expected degraded response")
	}
	if len(resp.MissingSources) != 1 || resp.MissingSources[0] != "semantic" {
		t.Errorf("MissingSources = %v, want [semantic]", resp.MissingSources)
	}
	used := make(map[string]bool)
	for _, m := range resp.MethodsUsed {
		used[m] = true
	}
	if !used["keyword"] || !used["popularity"] || used["semantic"] {
		t.Errorf("MethodsUsed = %v, want keyword+popularity only", resp.MethodsUsed)
	}
	for _, c := range resp.Candidates {
		if c.ID == "z" {
			t.Error("candidate from the excluded source must not appear")
		}
	}
}

func TestRankAllSourcesFail(t *testing.T) {
	e := newTestEngine([]Adapter{
		&fakeAdapter{name: "keyword", err: errors.New("down")},
	}, newSwapWeights(EqualWeights([]string{"keyword"})))

	if _, err := e.Rank(context.Background(), Query{Text: "warm amber"}); !errors.Is(err, ErrNoSourcesAvailable) {
		t.Fatalf("err = %v, want ErrNoSourcesAvailable", err)
	}
}

func TestRankCacheHit(t *testing.T) {
	inner := &fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}}
	e := newTestEngine([]Adapter{inner}, newSwapWeights(EqualWeights([]string{"keyword"})))
	e.SetCache(newMemCache())

	first, err := e.Rank(context.Background(), Query{Text: "warm amber"})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Error("first request must be a miss")
	}

	calls := inner.calls.Load()
	second, err := e.Rank(context.Background(), Query{Text: "warm amber"})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Error("second request must hit the cache")
	}
	if inner.calls.Load() != calls {
		t.Error("cache hit must skip all source calls")
	}
	if len(second.Candidates) != len(first.Candidates) {
		t.Errorf("cached candidates = %d, want %d", len(second.Candidates), len(first.Candidates))
	}
	// The cached copy is adjusted per request, not mutated in place.
	if second.RequestID == first.RequestID {
		t.Error("cache hit must carry the new request id")
	}
}

func TestRankColdStartFlagged(t *testing.T) {
	e := newTestEngine([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
	}, newSwapWeights(EqualWeights([]string{"keyword"})))
	e.SetProfiles(mapProfiles{}) // no profile for any user

	resp, err := e.Rank(context.Background(), Query{Text: "warm amber", UserID: "new-user"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.ColdStart {
		t.Error("missing profile must flag cold start, never silently skip personalization")
	}
}

func TestRankLowConfidenceProfileIsColdStart(t *testing.T) {
	e := newTestEngine([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
	}, newSwapWeights(EqualWeights([]string{"keyword"})))
	e.SetProfiles(mapProfiles{
		"u1": {UserID: "u1", Confidence: 0.1}, // below the 0.2 floor
	})

	resp, err := e.Rank(context.Background(), Query{Text: "warm amber", UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.ColdStart {
		t.Error("below-floor confidence must flag cold start")
	}
}

func TestRankExcludeFilter(t *testing.T) {
	e := newTestEngine([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "owned", Score: 1}, {ID: "new", Score: 0.5}}},
	}, newSwapWeights(EqualWeights([]string{"keyword"})))

	resp, err := e.Rank(context.Background(), Query{
		Text:    "warm amber",
		Filters: Filters{Exclude: []string{"owned"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range resp.Candidates {
		if c.ID == "owned" {
			t.Error("excluded candidate leaked into the response")
		}
	}
}

func TestRankTruncatesToK(t *testing.T) {
	scores := make([]ScoredID, 30)
	for i := range scores {
		scores[i] = ScoredID{ID: string(rune('a' + i)), Score: float64(i)}
	}
	e := newTestEngine([]Adapter{
		&fakeAdapter{name: "keyword", scores: scores},
	}, newSwapWeights(EqualWeights([]string{"keyword"})))

	resp, err := e.Rank(context.Background(), Query{Text: "warm amber", K: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Candidates) != 5 {
		t.Errorf("candidates = %d, want 5", len(resp.Candidates))
	}
}

func TestRankConcurrentRequestsObserveConsistentWeights(t *testing.T) {
	before := NewWeightVector(map[string]float64{"keyword": 0.9, "popularity": 0.1})
	after := NewWeightVector(map[string]float64{"keyword": 0.1, "popularity": 0.9})
	weights := newSwapWeights(before)

	e := newTestEngine([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}, {ID: "b", Score: 0}}},
		&fakeAdapter{name: "popularity", scores: []ScoredID{{ID: "b", Score: 1}, {ID: "a", Score: 0}}},
	}, weights)

	var wg sync.WaitGroup
	errCh := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 25 {
				weights.publish(after)
			}
			resp, err := e.Rank(context.Background(), Query{Text: "warm amber"})
			if err != nil {
				errCh <- err
				return
			}
			// Either snapshot ranks one candidate clearly first; a torn
			// read would produce an invalid weight vector and arbitrary
			// scores. Both orderings are legal, a failure is not.
			if len(resp.Candidates) != 2 {
				errCh <- errors.New("unexpected candidate count")
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}

func TestSetOptionsAppliesToNewRequests(t *testing.T) {
	e := newTestEngine([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
	}, newSwapWeights(EqualWeights([]string{"keyword"})))

	e.SetOptions(Options{MinQueryLength: 10})
	if _, err := e.Rank(context.Background(), Query{Text: "short"}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery after raising the minimum", err)
	}

	e.SetOptions(Options{MinQueryLength: 2})
	if _, err := e.Rank(context.Background(), Query{Text: "short"}); err != nil {
		t.Fatalf("err = %v after lowering the minimum", err)
	}
}
