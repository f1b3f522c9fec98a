// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package learner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/ranking"
)

// ProfileConfig configures preference profile updates.
type ProfileConfig struct {
	// LearningRate is the base EMA rate applied to vector and affinity
	// updates. Default: 0.1.
	LearningRate float64

	// DriftMultiplier scales the learning rate while a user is flagged as
	// drifting. Default: 2.0.
	DriftMultiplier float64

	// ConfidenceStep controls how fast confidence approaches 1 with each
	// accepted event. Default: 0.05.
	ConfidenceStep float64

	// DriftWindow is how long the elevated learning rate stays active
	// after a drift signal. Default: 30m.
	DriftWindow time.Duration
}

// DefaultProfileConfig returns production defaults.
func DefaultProfileConfig() ProfileConfig {
	return ProfileConfig{
		LearningRate:    0.1,
		DriftMultiplier: 2.0,
		ConfidenceStep:  0.05,
		DriftWindow:     30 * time.Minute,
	}
}

// Profiles maintains user preference profiles in memory with optional
// write-behind persistence. It implements ranking.ProfileProvider.
type Profiles struct {
	config ProfileConfig
	logger zerolog.Logger

	mu       sync.RWMutex
	profiles map[string]*ranking.UserPreferenceProfile
	drifting map[string]time.Time // user -> elevated-rate expiry

	// persist, when set, receives every mutated profile.
	persist func(*ranking.UserPreferenceProfile)
	// erase, when set, receives explicit deletions.
	erase func(userID string)
}

// NewProfiles creates the profile store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewProfiles(cfg ProfileConfig, logger zerolog.Logger) *Profiles {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.DriftMultiplier <= 1 {
		cfg.DriftMultiplier = 2.0
	}
	if cfg.ConfidenceStep <= 0 {
		cfg.ConfidenceStep = 0.05
	}
	if cfg.DriftWindow <= 0 {
		cfg.DriftWindow = 30 * time.Minute
	}
	return &Profiles{
		config:   cfg,
		logger:   logger.With().Str("component", "profiles").Logger(),
		profiles: make(map[string]*ranking.UserPreferenceProfile),
		drifting: make(map[string]time.Time),
	}
}

// SetPersistence wires write-behind persistence hooks. May be left unset.
func (p *Profiles) SetPersistence(persist func(*ranking.UserPreferenceProfile), erase func(string)) {
	p.persist = persist
	p.erase = erase
}

// Profile implements ranking.ProfileProvider. The returned profile is a
// copy; callers may read it freely while updates continue.
func (p *Profiles) Profile(_ context.Context, userID string) (*ranking.UserPreferenceProfile, error) {
	p.mu.RLock()
	prof, ok := p.profiles[userID]
	if !ok {
		p.mu.RUnlock()
		return nil, nil
	}
	out := cloneProfile(prof)
	p.mu.RUnlock()
	return out, nil
}

// Apply folds one accepted feedback event into the user's profile, creating
// it with cold-start defaults on first interaction. meta may be zero-valued
// when the catalog has no entry for the candidate.
func (p *Profiles) Apply(ev ranking.FeedbackEvent, meta ranking.ItemMeta) {
	if ev.UserID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prof := p.profiles[ev.UserID]
	if prof == nil {
		prof = &ranking.UserPreferenceProfile{
			UserID:         ev.UserID,
			FamilyAffinity: make(map[string]float64),
			BrandAffinity:  make(map[string]float64),
		}
		p.profiles[ev.UserID] = prof
	}

	lr := p.config.LearningRate * ev.Reward
	if expiry, ok := p.drifting[ev.UserID]; ok {
		if time.Now().Before(expiry) {
			lr *= p.config.DriftMultiplier
		} else {
			delete(p.drifting, ev.UserID)
		}
	}

	if len(meta.Vector) > 0 {
		if len(prof.Vector) != len(meta.Vector) {
			prof.Vector = make([]float64, len(meta.Vector))
			copy(prof.Vector, meta.Vector)
		} else {
			for i := range prof.Vector {
				prof.Vector[i] = (1-lr)*prof.Vector[i] + lr*meta.Vector[i]
			}
		}
	}

	if meta.Family != "" {
		cur := prof.FamilyAffinity[meta.Family]
		prof.FamilyAffinity[meta.Family] = cur + lr*(1-cur)
	}
	if meta.Brand != "" {
		cur := prof.BrandAffinity[meta.Brand]
		prof.BrandAffinity[meta.Brand] = cur + lr*(1-cur)
	}

	prof.Confidence += p.config.ConfidenceStep * ev.Reward * (1 - prof.Confidence)
	prof.UpdatedAt = time.Now()

	if p.persist != nil {
		p.persist(cloneProfile(prof))
	}
}

// MarkDrifting flags a user as drifting: their profile updates run at the
// elevated learning rate until the drift window elapses. An empty user id
// (population drift) is a no-op; there is no profile to accelerate.
func (p *Profiles) MarkDrifting(userID string) {
	if userID == "" {
		return
	}
	p.mu.Lock()
	p.drifting[userID] = time.Now().Add(p.config.DriftWindow)
	p.mu.Unlock()
}

// Erase removes a user's profile entirely (explicit user-data erasure).
func (p *Profiles) Erase(userID string) {
	p.mu.Lock()
	delete(p.profiles, userID)
	delete(p.drifting, userID)
	p.mu.Unlock()

	if p.erase != nil {
		p.erase(userID)
	}
	p.logger.Info().Str("user_id", userID).Msg("profile erased")
}

// Restore seeds the store from persisted profiles. Call during startup.
func (p *Profiles) Restore(profiles []*ranking.UserPreferenceProfile) {
	p.mu.Lock()
	for _, prof := range profiles {
		p.profiles[prof.UserID] = cloneProfile(prof)
	}
	p.mu.Unlock()
}

func cloneProfile(in *ranking.UserPreferenceProfile) *ranking.UserPreferenceProfile {
	out := &ranking.UserPreferenceProfile{
		UserID:         in.UserID,
		Vector:         append([]float64(nil), in.Vector...),
		FamilyAffinity: make(map[string]float64, len(in.FamilyAffinity)),
		BrandAffinity:  make(map[string]float64, len(in.BrandAffinity)),
		Confidence:     in.Confidence,
		UpdatedAt:      in.UpdatedAt,
	}
	for k, v := range in.FamilyAffinity {
		out.FamilyAffinity[k] = v
	}
	for k, v := range in.BrandAffinity {
		out.BrandAffinity[k] = v
	}
	return out
}
