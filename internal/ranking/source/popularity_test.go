// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package source

import (
	"context"
	"testing"

	"github.com/scentdex/accord/internal/ranking"
)

func testTable() []PopularItem {
	return []PopularItem{
		{ID: "mid", Family: "woody", Brand: "cedarworks", Score: 0.5},
		{ID: "top", Family: "citrus", Brand: "zest", Score: 0.9},
		{ID: "low", Family: "woody", Brand: "zest", Score: 0.1},
	}
}

func TestPopularityReturnsScoreDescending(t *testing.T) {
	p := NewPopularity(testTable(), 10)

	got, err := p.Fetch(context.Background(), ranking.Query{Text: "ignored"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("results = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not sorted by score: %v", got)
		}
	}
	if got[0].ID != "top" {
		t.Errorf("first result = %q, want %q", got[0].ID, "top")
	}
}

func TestPopularityHonorsFilters(t *testing.T) {
	p := NewPopularity(testTable(), 10)

	got, err := p.Fetch(context.Background(), ranking.Query{
		Filters: ranking.Filters{Families: []string{"woody"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("family-filtered results = %v, want mid and low", got)
	}

	got, err = p.Fetch(context.Background(), ranking.Query{
		Filters: ranking.Filters{Families: []string{"woody"}, Brands: []string{"zest"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "low" {
		t.Errorf("combined-filter results = %v, want only low", got)
	}
}

func TestPopularityHonorsLimit(t *testing.T) {
	p := NewPopularity(testTable(), 2)

	got, err := p.Fetch(context.Background(), ranking.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want the 2 highest", len(got))
	}
	if got[0].ID != "top" || got[1].ID != "mid" {
		t.Errorf("results = %v, want [top mid]", got)
	}
}

func TestPopularityCancelledContext(t *testing.T) {
	p := NewPopularity(testTable(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Fetch(ctx, ranking.Query{}); err == nil {
		t.Fatal("expected the context error")
	}
}

func TestPopularityReplaceSwapsTable(t *testing.T) {
	p := NewPopularity(testTable(), 10)
	p.Replace([]PopularItem{{ID: "fresh", Score: 1}})

	got, err := p.Fetch(context.Background(), ranking.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("results after Replace = %v, want only fresh", got)
	}
}
