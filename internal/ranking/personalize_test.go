// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func TestPersonalizeSkipsWithoutProfile(t *testing.T) {
	p := NewPersonalizer(mapCatalog{}, DefaultPersonalizerConfig(), zerolog.Nop())
	in := []Candidate{{ID: "a", FinalScore: 1}}

	out, coldStart := p.Personalize(context.Background(), in, nil)
	if !coldStart {
		t.Error("nil profile must report cold start")
	}
	if out[0].FinalScore != 1 {
		t.Error("cold start must leave scores untouched")
	}
}

func TestPersonalizeSkipsBelowConfidenceFloor(t *testing.T) {
	p := NewPersonalizer(mapCatalog{}, DefaultPersonalizerConfig(), zerolog.Nop())
	profile := &UserPreferenceProfile{UserID: "u1", Confidence: 0.19}

	_, coldStart := p.Personalize(context.Background(), []Candidate{{ID: "a"}}, profile)
	if !coldStart {
		t.Error("confidence below the floor must report cold start")
	}
}

func TestPersonalizeBoostsAndReranks(t *testing.T) {
	catalog := mapCatalog{
		"woody-one":  {ID: "woody-one", Family: "woody", Brand: "maison-x", Vector: []float64{1, 0}},
		"floral-one": {ID: "floral-one", Family: "floral", Brand: "other", Vector: []float64{0, 1}},
	}
	p := NewPersonalizer(catalog, DefaultPersonalizerConfig(), zerolog.Nop())

	profile := &UserPreferenceProfile{
		UserID:         "u1",
		Vector:         []float64{1, 0},
		FamilyAffinity: map[string]float64{"woody": 0.9},
		BrandAffinity:  map[string]float64{"maison-x": 0.8},
		Confidence:     1.0,
	}

	// floral-one starts slightly ahead; the profile prefers woody-one.
	in := []Candidate{
		{ID: "floral-one", FinalScore: 0.50},
		{ID: "woody-one", FinalScore: 0.48},
	}

	out, coldStart := p.Personalize(context.Background(), in, profile)
	if coldStart {
		t.Fatal("confident profile must not report cold start")
	}
	if out[0].ID != "woody-one" {
		t.Errorf("top = %q, want woody-one after personalization", out[0].ID)
	}

	var woody *Candidate
	for i := range out {
		if out[i].ID == "woody-one" {
			woody = &out[i]
		}
	}
	// vector cosine 1.0 * confidence 1.0 * 0.15 + family 0.9*0.05 + brand 0.8*0.05
	wantBoost := 0.15 + 0.045 + 0.04
	if math.Abs(woody.FinalScore-(0.48+wantBoost)) > 1e-9 {
		t.Errorf("woody-one score = %v, want %v", woody.FinalScore, 0.48+wantBoost)
	}

	names := make(map[string]bool)
	for _, f := range woody.Explanations {
		names[f.Name] = true
	}
	for _, want := range []string{"vector_match", "family_match", "brand_affinity"} {
		if !names[want] {
			t.Errorf("missing explanation factor %q in %v", want, woody.Explanations)
		}
	}
}

func TestPersonalizeSetConfigAppliesNewFloor(t *testing.T) {
	p := NewPersonalizer(mapCatalog{}, DefaultPersonalizerConfig(), zerolog.Nop())
	profile := &UserPreferenceProfile{UserID: "u1", Confidence: 0.3}

	if _, coldStart := p.Personalize(context.Background(), []Candidate{{ID: "a"}}, profile); coldStart {
		t.Fatal("confidence 0.3 clears the default 0.2 floor")
	}

	p.SetConfig(PersonalizerConfig{ConfidenceFloor: 0.5})
	if _, coldStart := p.Personalize(context.Background(), []Candidate{{ID: "a"}}, profile); !coldStart {
		t.Error("raised floor must push the same profile into cold start")
	}

	p.SetConfig(PersonalizerConfig{ConfidenceFloor: 0.2})
	if _, coldStart := p.Personalize(context.Background(), []Candidate{{ID: "a"}}, profile); coldStart {
		t.Error("lowered floor must restore personalization")
	}
}

type failingCatalog struct{}

func (failingCatalog) Meta(context.Context, []string) (map[string]ItemMeta, error) {
	return nil, errors.New("catalog offline")
}

func TestPersonalizeCatalogFailureDoesNotAbort(t *testing.T) {
	p := NewPersonalizer(failingCatalog{}, DefaultPersonalizerConfig(), zerolog.Nop())
	profile := &UserPreferenceProfile{UserID: "u1", Confidence: 0.9}
	in := []Candidate{{ID: "a", FinalScore: 0.7}}

	out, coldStart := p.Personalize(context.Background(), in, profile)
	if coldStart {
		t.Error("catalog failure is not a cold start")
	}
	if len(out) != 1 || out[0].FinalScore != 0.7 {
		t.Errorf("out = %+v, want the aggregated order untouched", out)
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2}, []float64{1, 2}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"empty", nil, nil, 0},
		{"mismatched dims", []float64{1}, []float64{1, 2}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 2}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
