// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeAdapter is a configurable in-test source.
type fakeAdapter struct {
	name   string
	scores []ScoredID
	err    error
	delay  time.Duration
	// ignoreCancel simulates a source that cannot be cancelled.
	ignoreCancel bool
	calls        atomic.Int32
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Fetch(ctx context.Context, _ Query) ([]ScoredID, error) {
	a.calls.Add(1)
	if a.delay > 0 {
		if a.ignoreCancel {
			time.Sleep(a.delay)
		} else {
			select {
			case <-time.After(a.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return a.scores, a.err
}

func TestFetchCollectsAllSources(t *testing.T) {
	coord := NewCoordinator([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
		&fakeAdapter{name: "popularity", scores: []ScoredID{{ID: "b", Score: 2}}},
	}, time.Second, zerolog.Nop())

	results, err := coord.Fetch(context.Background(), Query{Text: "amber"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, r := range results {
		if !r.OK() {
			t.Errorf("source %s failed: %v", r.Source, r.Err)
		}
	}
}

func TestFetchSlowSourceRecordedAsTimeout(t *testing.T) {
	slow := &fakeAdapter{name: "semantic", delay: 300 * time.Millisecond, scores: []ScoredID{{ID: "x", Score: 1}}}
	coord := NewCoordinator([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
		slow,
	}, 50*time.Millisecond, zerolog.Nop())

	results, err := coord.Fetch(context.Background(), Query{Text: "amber"})
	if err != nil {
		t.Fatal(err)
	}

	byName := make(map[string]SourceResult, len(results))
	for _, r := range results {
		byName[r.Source] = r
	}
	keyword := byName["keyword"]
	if !keyword.OK() {
		t.Errorf("keyword failed: %v", keyword.Err)
	}
	if !errors.Is(byName["semantic"].Err, ErrSourceTimeout) {
		t.Errorf("semantic err = %v, want ErrSourceTimeout", byName["semantic"].Err)
	}
}

func TestFetchReturnsAtDeadlineDespiteUncancellableSource(t *testing.T) {
	stuck := &fakeAdapter{name: "semantic", delay: time.Second, ignoreCancel: true}
	coord := NewCoordinator([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
		stuck,
	}, 30*time.Millisecond, zerolog.Nop())

	start := time.Now()
	results, err := coord.Fetch(context.Background(), Query{Text: "amber"})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Fetch took %v, must return at the deadline", elapsed)
	}
	for _, r := range results {
		if r.Source == "semantic" && !errors.Is(r.Err, ErrSourceTimeout) {
			t.Errorf("stuck source err = %v, want ErrSourceTimeout", r.Err)
		}
	}
}

func TestFetchFailFastBeforeDeadline(t *testing.T) {
	// A source that fails immediately must be recorded without waiting for
	// the deadline.
	coord := NewCoordinator([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
		&fakeAdapter{name: "semantic", err: errors.New("index offline")},
	}, 5*time.Second, zerolog.Nop())

	start := time.Now()
	results, err := coord.Fetch(context.Background(), Query{Text: "amber"})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Fetch took %v, must not wait for the deadline", elapsed)
	}

	var failed *SourceResult
	for i := range results {
		if results[i].Source == "semantic" {
			failed = &results[i]
		}
	}
	if failed == nil || failed.OK() {
		t.Fatalf("expected recorded failure for semantic, got %+v", failed)
	}
}

func TestFetchAllSourcesFail(t *testing.T) {
	coord := NewCoordinator([]Adapter{
		&fakeAdapter{name: "keyword", err: errors.New("down")},
		&fakeAdapter{name: "semantic", err: errors.New("down")},
	}, time.Second, zerolog.Nop())

	results, err := coord.Fetch(context.Background(), Query{Text: "amber"})
	if !errors.Is(err, ErrNoSourcesAvailable) {
		t.Fatalf("err = %v, want ErrNoSourcesAvailable", err)
	}
	// The per-source results still come back so the caller can report why.
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}
}

func TestFetchNoAdapters(t *testing.T) {
	coord := NewCoordinator(nil, time.Second, zerolog.Nop())
	if _, err := coord.Fetch(context.Background(), Query{Text: "amber"}); !errors.Is(err, ErrNoSourcesAvailable) {
		t.Fatalf("err = %v, want ErrNoSourcesAvailable", err)
	}
}

func TestFetchFailureRecordsCarrySourceName(t *testing.T) {
	coord := NewCoordinator([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
		&fakeAdapter{name: "semantic", err: errors.New("index offline")},
	}, time.Second, zerolog.Nop())

	results, err := coord.Fetch(context.Background(), Query{Text: "amber"})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Source != "semantic" {
			continue
		}
		var srcErr *SourceError
		if !errors.As(r.Err, &srcErr) {
			t.Fatalf("semantic err = %v, want a *SourceError", r.Err)
		}
		if srcErr.Source != "semantic" {
			t.Errorf("SourceError.Source = %q, want %q", srcErr.Source, "semantic")
		}
	}
}

func TestFetchTimeoutRecordsCarrySourceName(t *testing.T) {
	stuck := &fakeAdapter{name: "semantic", delay: time.Second, ignoreCancel: true}
	coord := NewCoordinator([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
		stuck,
	}, 30*time.Millisecond, zerolog.Nop())

	results, err := coord.Fetch(context.Background(), Query{Text: "amber"})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Source != "semantic" {
			continue
		}
		var srcErr *SourceError
		if !errors.As(r.Err, &srcErr) || srcErr.Source != "semantic" {
			t.Errorf("timeout record err = %v, want *SourceError for semantic", r.Err)
		}
		if !errors.Is(r.Err, ErrSourceTimeout) {
			t.Errorf("timeout record err = %v, must unwrap to ErrSourceTimeout", r.Err)
		}
	}
}

func TestSetEnabledSkipsDisabledSources(t *testing.T) {
	disabled := &fakeAdapter{name: "semantic", scores: []ScoredID{{ID: "x", Score: 1}}}
	coord := NewCoordinator([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
		disabled,
	}, time.Second, zerolog.Nop())

	coord.SetEnabled([]string{"keyword"})

	results, err := coord.Fetch(context.Background(), Query{Text: "amber"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Source != "keyword" {
		t.Fatalf("results = %+v, want only keyword", results)
	}
	if disabled.calls.Load() != 0 {
		t.Error("disabled adapter must not be called")
	}

	// Re-enabling brings the adapter back without a rebuild.
	coord.SetEnabled([]string{"keyword", "semantic"})
	results, err = coord.Fetch(context.Background(), Query{Text: "amber"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d after re-enable, want 2", len(results))
	}
	if disabled.calls.Load() != 1 {
		t.Errorf("re-enabled adapter calls = %d, want 1", disabled.calls.Load())
	}
}

func TestSetEnabledAllDisabled(t *testing.T) {
	coord := NewCoordinator([]Adapter{
		&fakeAdapter{name: "keyword", scores: []ScoredID{{ID: "a", Score: 1}}},
	}, time.Second, zerolog.Nop())

	coord.SetEnabled([]string{})
	if _, err := coord.Fetch(context.Background(), Query{Text: "amber"}); !errors.Is(err, ErrNoSourcesAvailable) {
		t.Fatalf("err = %v, want ErrNoSourcesAvailable with every source disabled", err)
	}

	coord.SetEnabled(nil)
	if _, err := coord.Fetch(context.Background(), Query{Text: "amber"}); err != nil {
		t.Fatalf("nil enable set must restore all adapters, got %v", err)
	}
}

func TestNormalizeFetchErr(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"deadline", context.DeadlineExceeded, ErrSourceTimeout},
		{"canceled", context.Canceled, ErrSourceTimeout},
		{"other", errors.New("boom"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeFetchErr(tc.in)
			if tc.want != nil && !errors.Is(got, tc.want) {
				t.Errorf("normalizeFetchErr(%v) = %v, want %v", tc.in, got, tc.want)
			}
			if tc.name == "other" && got != tc.in {
				t.Errorf("unknown errors must pass through, got %v", got)
			}
			if tc.in == nil && got != nil {
				t.Errorf("nil must stay nil, got %v", got)
			}
		})
	}
}
