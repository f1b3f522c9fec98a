// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
)

func TestNewWeightVectorNormalizes(t *testing.T) {
	w := NewWeightVector(map[string]float64{"semantic": 7, "keyword": 2, "popularity": 1})

	if err := w.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := w.Get("semantic"); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("semantic = %v, want 0.7", got)
	}
	if got := w.Get("unknown"); got != 0 {
		t.Errorf("unknown source weight = %v, want 0", got)
	}
}

func TestNewWeightVectorClampsNegatives(t *testing.T) {
	w := NewWeightVector(map[string]float64{"a": -3, "b": 1})

	if got := w.Get("a"); got != 0 {
		t.Errorf("a = %v, want 0 after clamping", got)
	}
	if got := w.Get("b"); got != 1 {
		t.Errorf("b = %v, want 1", got)
	}
}

func TestEqualWeights(t *testing.T) {
	w := EqualWeights([]string{"a", "b", "c", "d"})
	for _, s := range w.Sources() {
		if got := w.Get(s); math.Abs(got-0.25) > 1e-9 {
			t.Errorf("weight for %s = %v, want 0.25", s, got)
		}
	}
}

func TestNormalizeZeroSum(t *testing.T) {
	w := WeightVector{weights: map[string]float64{"a": 0, "b": 0}}.Normalize()
	if got := w.Get("a"); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("a = %v, want 0.5 for zero-sum input", got)
	}
}

func TestWithFloor(t *testing.T) {
	w := NewWeightVector(map[string]float64{"hot": 0.99, "cold": 0.01})
	floored := w.WithFloor(0.05)

	if err := floored.Validate(); err != nil {
		t.Fatal(err)
	}
	// 0.99 and max(0.01, 0.05)=0.05 renormalize over 1.04.
	if got := floored.Get("cold"); math.Abs(got-0.05/1.04) > 1e-9 {
		t.Errorf("cold = %v, want %v", got, 0.05/1.04)
	}
	if floored.Get("cold") >= floored.Get("hot") {
		t.Error("floor must not invert the ordering")
	}
}

func TestWeightVectorJSON(t *testing.T) {
	w := NewWeightVector(map[string]float64{"semantic": 0.6, "keyword": 0.4})

	data, err := json.Marshal(w)
	if err != nil {
		t.Fatal(err)
	}
	var back WeightVector
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if got := back.Get("semantic"); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("semantic after round trip = %v, want 0.6", got)
	}
	if err := back.Validate(); err != nil {
		t.Error(err)
	}
}

func TestValidateRejectsBadSum(t *testing.T) {
	w := WeightVector{weights: map[string]float64{"a": 0.5, "b": 0.6}}
	if err := w.Validate(); err == nil {
		t.Error("expected error for weights summing to 1.1")
	}
}
