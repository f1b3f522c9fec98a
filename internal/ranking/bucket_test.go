// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import "testing"

func TestDayPart(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "night"},
		{4, "night"},
		{5, "morning"},
		{11, "morning"},
		{12, "afternoon"},
		{17, "afternoon"},
		{18, "evening"},
		{22, "evening"},
		{23, "night"},
		{-1, "any"},
		{24, "any"},
	}
	for _, tt := range tests {
		if got := DayPart(tt.hour); got != tt.want {
			t.Errorf("DayPart(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		name string
		rc   RequestContext
		want string
	}{
		{
			name: "full context",
			rc:   RequestContext{TimeOfDay: 20, Occasion: "Date", Device: "Mobile"},
			want: "evening|date|mobile",
		},
		{
			name: "empty context collapses to any",
			rc:   RequestContext{},
			want: "night|any|any",
		},
		{
			name: "whitespace trimmed",
			rc:   RequestContext{TimeOfDay: 9, Occasion: " office ", Device: ""},
			want: "morning|office|any",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bucket(tt.rc); got != tt.want {
				t.Errorf("Bucket() = %q, want %q", got, tt.want)
			}
		})
	}
}
