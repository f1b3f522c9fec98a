// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// PersonalizerConfig configures profile-based re-ranking.
type PersonalizerConfig struct {
	// ConfidenceFloor is the minimum profile confidence for personalization.
	// Below it the cold-start policy applies. Default: 0.2.
	ConfidenceFloor float64

	// VectorWeight scales the cosine-similarity boost. Default: 0.15.
	VectorWeight float64

	// FamilyWeight scales the family-affinity bonus. Default: 0.05.
	FamilyWeight float64

	// BrandWeight scales the brand-affinity bonus. Default: 0.05.
	BrandWeight float64
}

// DefaultPersonalizerConfig returns production defaults.
func DefaultPersonalizerConfig() PersonalizerConfig {
	return PersonalizerConfig{
		ConfidenceFloor: 0.2,
		VectorWeight:    0.15,
		FamilyWeight:    0.05,
		BrandWeight:     0.05,
	}
}

// Personalizer re-ranks an aggregated candidate list against a user
// preference profile and attaches named explanation factors.
//
// The config is hot-reloadable via SetConfig; each Personalize call reads an
// immutable snapshot.
type Personalizer struct {
	catalog Catalog
	config  atomic.Pointer[PersonalizerConfig]
	logger  zerolog.Logger
}

// NewPersonalizer creates a personalization layer backed by the catalog.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPersonalizer(catalog Catalog, cfg PersonalizerConfig, logger zerolog.Logger) *Personalizer {
	p := &Personalizer{
		catalog: catalog,
		logger:  logger.With().Str("component", "personalize").Logger(),
	}
	p.SetConfig(cfg)
	return p
}

// SetConfig publishes a new config snapshot. Used by config hot reload;
// in-flight requests keep the snapshot they started with.
func (p *Personalizer) SetConfig(cfg PersonalizerConfig) {
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = 0.2
	}
	p.config.Store(&cfg)
}

// Personalize returns the re-ranked list and whether the cold-start policy
// applied. With no profile, or confidence below the floor, personalization is
// skipped entirely and coldStart is true: the aggregated order already
// carries the popularity signal, which is the documented cold-start default.
// The skip is always flagged, never silent.
func (p *Personalizer) Personalize(ctx context.Context, candidates []Candidate, profile *UserPreferenceProfile) (out []Candidate, coldStart bool) {
	cfg := *p.config.Load()
	if profile == nil || profile.Confidence < cfg.ConfidenceFloor {
		return candidates, true
	}
	if len(candidates) == 0 {
		return candidates, false
	}

	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
	}

	meta, err := p.catalog.Meta(ctx, ids)
	if err != nil {
		// Catalog trouble must not abort the request; the aggregated
		// order is still a valid best-effort answer.
		p.logger.Warn().Err(err).Msg("catalog lookup failed, skipping personalization")
		return candidates, false
	}

	for i := range candidates {
		c := &candidates[i]
		m, ok := meta[c.ID]
		if !ok {
			continue
		}
		c.FinalScore += p.boost(&cfg, c, &m, profile)
	}

	sortCandidates(candidates)
	return candidates, false
}

// boost computes the personalization boost for one candidate and appends the
// corresponding explanation factors.
func (p *Personalizer) boost(cfg *PersonalizerConfig, c *Candidate, m *ItemMeta, profile *UserPreferenceProfile) float64 {
	var total float64

	if sim := Cosine(profile.Vector, m.Vector); sim > 0 {
		v := cfg.VectorWeight * profile.Confidence * sim
		total += v
		c.Explanations = append(c.Explanations, ExplanationFactor{Name: "vector_match", Value: v})
	}

	if m.Family != "" {
		if aff := profile.FamilyAffinity[m.Family]; aff > 0 {
			v := cfg.FamilyWeight * aff
			total += v
			c.Explanations = append(c.Explanations, ExplanationFactor{Name: "family_match", Value: v})
		}
	}

	if m.Brand != "" {
		if aff := profile.BrandAffinity[m.Brand]; aff > 0 {
			v := cfg.BrandWeight * aff
			total += v
			c.Explanations = append(c.Explanations, ExplanationFactor{Name: "brand_affinity", Value: v})
		}
	}

	return total
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty, zero, or the dimensions disagree.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
