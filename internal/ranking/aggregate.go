// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"fmt"
	"sort"
)

// AggregatorConfig configures score merging.
type AggregatorConfig struct {
	// BoostFactor controls the multiplicative overlap bonus: a candidate
	// appearing in k sources receives 1 + BoostFactor*(k-1) after the
	// weighted sum. Default: 0.1.
	BoostFactor float64
}

// DefaultAggregatorConfig returns production defaults.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{BoostFactor: 0.1}
}

// Aggregation is the merged, ranked output of one fan-out.
type Aggregation struct {
	// Candidates is the ranked list, best first.
	Candidates []Candidate

	// MethodsUsed lists sources that contributed, in registration order.
	MethodsUsed []string

	// MissingSources lists sources excluded due to failure or timeout.
	MissingSources []string

	// Degraded is true when MissingSources is non-empty.
	Degraded bool
}

// Aggregate merges per-source result lists into one ranked candidate list.
//
// Each source's raw scores are min-max rescaled to [0,1] against that
// source's own distribution before weighting: a raw 0.95 from one source and
// 0.95 from another are not comparable without this step. Missing sources do
// not zero-fill - only present sources contribute to the sum, so their weight
// mass is implicitly redistributed - and the result is flagged degraded.
//
// Ties break by higher final score, then more contributing sources, then
// lexicographic id, so the merge is deterministic given the same inputs.
func Aggregate(results []SourceResult, weights WeightVector, cfg AggregatorConfig) Aggregation {
	if cfg.BoostFactor < 0 {
		cfg.BoostFactor = 0
	}

	agg := Aggregation{}
	byID := make(map[string]*Candidate)

	for i := range results {
		r := &results[i]
		if !r.OK() {
			agg.MissingSources = append(agg.MissingSources, r.Source)
			continue
		}
		if len(r.Scores) == 0 {
			continue
		}
		agg.MethodsUsed = append(agg.MethodsUsed, r.Source)

		weight := weights.Get(r.Source)
		for id, norm := range normalizeScores(r.Scores) {
			c := byID[id]
			if c == nil {
				c = &Candidate{ID: id, SourceScores: make(map[string]float64, len(results))}
				byID[id] = c
			}
			c.SourceScores[r.Source] = norm
			c.FinalScore += weight * norm
			c.Sources = append(c.Sources, r.Source)
		}
	}

	agg.Degraded = len(agg.MissingSources) > 0

	candidates := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		sort.Strings(c.Sources)
		c.FinalScore *= overlapBoost(len(c.Sources), cfg.BoostFactor)
		c.Explanations = explainSources(c, weights)
		candidates = append(candidates, *c)
	}

	sortCandidates(candidates)
	agg.Candidates = candidates
	return agg
}

// overlapBoost is the multiplicative bonus for independent corroboration.
func overlapBoost(k int, factor float64) float64 {
	if k <= 1 {
		return 1
	}
	return 1 + factor*float64(k-1)
}

// normalizeScores min-max rescales one source's raw scores to [0,1] using
// that source's own distribution. A degenerate distribution (single score or
// all scores equal) maps to 1.0 so the source still contributes its weight.
func normalizeScores(scores []ScoredID) map[string]float64 {
	out := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	lo, hi := scores[0].Score, scores[0].Score
	for _, s := range scores[1:] {
		if s.Score < lo {
			lo = s.Score
		}
		if s.Score > hi {
			hi = s.Score
		}
	}

	span := hi - lo
	for _, s := range scores {
		if span == 0 {
			out[s.ID] = 1.0
			continue
		}
		out[s.ID] = (s.Score - lo) / span
	}
	return out
}

// explainSources builds the ordered per-source contribution factors for one
// candidate, followed by the overlap bonus when it applies.
func explainSources(c *Candidate, weights WeightVector) []ExplanationFactor {
	factors := make([]ExplanationFactor, 0, len(c.Sources)+1)
	for _, src := range c.Sources {
		factors = append(factors, ExplanationFactor{
			Name:  fmt.Sprintf("%s_score", src),
			Value: weights.Get(src) * c.SourceScores[src],
		})
	}
	if len(c.Sources) > 1 {
		factors = append(factors, ExplanationFactor{
			Name:  "overlap_boost",
			Value: float64(len(c.Sources) - 1),
		})
	}
	return factors
}

// sortCandidates applies the deterministic ordering: final score descending,
// then contributing-source count descending, then id ascending.
func sortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := &candidates[i], &candidates[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if len(a.Sources) != len(b.Sources) {
			return len(a.Sources) > len(b.Sources)
		}
		return a.ID < b.ID
	})
}
