// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package learner

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/ranking"
)

func driftEvent(userID, candidateID string) ranking.FeedbackEvent {
	return ranking.FeedbackEvent{
		EventID:     "ev",
		CandidateID: candidateID,
		UserID:      userID,
		Bucket:      "any|any|any",
		Sources:     []string{"keyword"},
		Kind:        ranking.FeedbackRating,
		Reward:      1,
	}
}

func newTestDrift(t *testing.T) (*Drift, *[]DriftSignal) {
	t.Helper()
	var signals []DriftSignal
	d := NewDrift(DriftConfig{
		WindowSize:  10,
		CheckEvery:  5,
		Threshold:   0.2,
		MinBaseline: 10,
	}, func(sig DriftSignal) { signals = append(signals, sig) }, zerolog.Nop())
	return d, &signals
}

func TestDriftDetectsPreferenceShift(t *testing.T) {
	d, signals := newTestDrift(t)

	// A long woody history, then a hard switch to citrus.
	for i := 0; i < 30; i++ {
		d.Observe(driftEvent("u1", "frag-w"), "woody")
	}
	if len(*signals) != 0 {
		t.Fatalf("drift signalled on a stable distribution: %v", *signals)
	}

	for i := 0; i < 30; i++ {
		d.Observe(driftEvent("u1", "frag-c"), "citrus")
	}

	var userSignal *DriftSignal
	for i := range *signals {
		if (*signals)[i].UserID == "u1" {
			userSignal = &(*signals)[i]
		}
	}
	if userSignal == nil {
		t.Fatal("expected a drift signal for u1 after the preference shift")
	}
	if userSignal.Divergence <= 0.2 {
		t.Errorf("divergence = %v, want above the threshold", userSignal.Divergence)
	}
}

func TestDriftQuietOnStableDistribution(t *testing.T) {
	d, signals := newTestDrift(t)

	for i := 0; i < 100; i++ {
		family := "woody"
		if i%3 == 0 {
			family = "amber"
		}
		d.Observe(driftEvent("u1", "frag"), family)
	}
	if len(*signals) != 0 {
		t.Errorf("drift signalled on a stationary mix: %v", *signals)
	}
}

func TestDriftTracksPopulation(t *testing.T) {
	d, signals := newTestDrift(t)

	// Anonymous events still feed the population tracker.
	for i := 0; i < 30; i++ {
		d.Observe(driftEvent("", "frag-w"), "woody")
	}
	for i := 0; i < 30; i++ {
		d.Observe(driftEvent("", "frag-c"), "citrus")
	}

	found := false
	for _, sig := range *signals {
		if sig.UserID == "" {
			found = true
		}
	}
	if !found {
		t.Error("expected a population-level drift signal")
	}
}

func TestDriftSkipsEventsWithoutSignal(t *testing.T) {
	d, signals := newTestDrift(t)

	for i := 0; i < 100; i++ {
		d.Observe(driftEvent("u1", "frag"), "") // no family metadata
		ev := driftEvent("u1", "frag")
		ev.Reward = 0 // no positive signal
		d.Observe(ev, "woody")
	}
	if len(*signals) != 0 {
		t.Errorf("signal-free events produced drift: %v", *signals)
	}
}

func TestJensenShannon(t *testing.T) {
	identical := map[string]float64{"woody": 0.5, "citrus": 0.5}
	if got := JensenShannon(identical, identical); math.Abs(got) > 1e-12 {
		t.Errorf("JS(p, p) = %v, want 0", got)
	}

	disjoint := map[string]float64{"amber": 1}
	other := map[string]float64{"green": 1}
	if got := JensenShannon(disjoint, other); math.Abs(got-1) > 1e-9 {
		t.Errorf("JS of disjoint distributions = %v, want 1", got)
	}

	p := map[string]float64{"woody": 0.9, "citrus": 0.1}
	q := map[string]float64{"woody": 0.1, "citrus": 0.9}
	if got := JensenShannon(p, q); got <= 0 || got >= 1 {
		t.Errorf("JS = %v, want in (0,1) for partially overlapping distributions", got)
	}
}
