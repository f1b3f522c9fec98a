// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package learner

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/ranking"
)

// DriftConfig configures the drift monitor.
type DriftConfig struct {
	// WindowSize is how many recent family observations form the recent
	// window. Default: 50.
	WindowSize int

	// CheckEvery is how many observations between divergence checks per
	// user. Default: 20.
	CheckEvery int

	// Threshold is the Jensen-Shannon divergence above which drift is
	// signalled. JS divergence (base 2) is bounded in [0,1]. Default: 0.25.
	Threshold float64

	// MinBaseline is the minimum number of baseline observations before
	// divergence is meaningful. Default: 30.
	MinBaseline int
}

// DefaultDriftConfig returns production defaults.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{
		WindowSize:  50,
		CheckEvery:  20,
		Threshold:   0.25,
		MinBaseline: 30,
	}
}

// DriftSignal announces detected drift. UserID is empty for population-level
// drift.
type DriftSignal struct {
	UserID     string
	Divergence float64
}

// userDrift tracks one user's (or the population's) distributions.
type userDrift struct {
	baseline   map[string]float64 // accumulated counts
	window     []string           // ring of recent family observations
	windowPos  int
	windowFull bool
	sinceCheck int
	total      int
}

// Drift compares recent preference-signal distributions (fragrance family of
// positively rewarded candidates) against a historical baseline and signals
// when the distance exceeds the threshold.
type Drift struct {
	config  DriftConfig
	logger  zerolog.Logger
	onDrift func(DriftSignal)

	mu         sync.Mutex
	users      map[string]*userDrift
	population *userDrift
}

// NewDrift creates a drift monitor. onDrift is invoked synchronously from
// Observe whenever drift is detected; it must be fast or dispatch its own
// work.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewDrift(cfg DriftConfig, onDrift func(DriftSignal), logger zerolog.Logger) *Drift {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 50
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = 20
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.25
	}
	if cfg.MinBaseline <= 0 {
		cfg.MinBaseline = 30
	}
	return &Drift{
		config:     cfg,
		logger:     logger.With().Str("component", "drift").Logger(),
		onDrift:    onDrift,
		users:      make(map[string]*userDrift),
		population: newUserDrift(cfg.WindowSize),
	}
}

func newUserDrift(window int) *userDrift {
	return &userDrift{
		baseline: make(map[string]float64),
		window:   make([]string, window),
	}
}

// Observe records the family of a positively rewarded candidate for the
// event's user and for the population, then runs due divergence checks.
// Events with no family metadata or zero reward carry no preference signal
// and are skipped.
func (d *Drift) Observe(ev ranking.FeedbackEvent, family string) {
	if family == "" || ev.Reward <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.UserID != "" {
		u := d.users[ev.UserID]
		if u == nil {
			u = newUserDrift(d.config.WindowSize)
			d.users[ev.UserID] = u
		}
		d.observeOne(u, ev.UserID, family)
	}
	d.observeOne(d.population, "", family)
}

// observeOne folds one observation into a tracker and checks divergence when
// due. Must be called with mu held.
func (d *Drift) observeOne(u *userDrift, userID, family string) {
	// The displaced window entry graduates into the baseline, so the
	// baseline always trails the window by exactly WindowSize events.
	if u.windowFull {
		u.baseline[u.window[u.windowPos]]++
	}
	u.window[u.windowPos] = family
	u.windowPos = (u.windowPos + 1) % len(u.window)
	if u.windowPos == 0 {
		u.windowFull = true
	}
	u.total++
	u.sinceCheck++

	if u.sinceCheck < d.config.CheckEvery {
		return
	}
	u.sinceCheck = 0

	if baselineCount(u.baseline) < d.config.MinBaseline || !u.windowFull {
		return
	}

	div := JensenShannon(distribution(u.baseline), windowDistribution(u.window))
	if div <= d.config.Threshold {
		return
	}

	d.logger.Info().
		Str("user_id", userID).
		Float64("divergence", div).
		Msg("drift detected")

	// Fold the drifted window into the baseline so repeated signals
	// require continued divergence, not the same stale window.
	for _, f := range u.window {
		u.baseline[f]++
	}

	if d.onDrift != nil {
		d.onDrift(DriftSignal{UserID: userID, Divergence: div})
	}
}

func baselineCount(baseline map[string]float64) int {
	var n float64
	for _, v := range baseline {
		n += v
	}
	return int(n)
}

// distribution normalizes counts into a probability distribution.
func distribution(counts map[string]float64) map[string]float64 {
	var total float64
	for _, v := range counts {
		total += v
	}
	out := make(map[string]float64, len(counts))
	if total == 0 {
		return out
	}
	for k, v := range counts {
		out[k] = v / total
	}
	return out
}

// windowDistribution builds the distribution of a full ring window.
func windowDistribution(window []string) map[string]float64 {
	counts := make(map[string]float64)
	for _, f := range window {
		counts[f]++
	}
	return distribution(counts)
}

// JensenShannon computes the Jensen-Shannon divergence (base 2, bounded in
// [0,1]) between two distributions.
func JensenShannon(p, q map[string]float64) float64 {
	keys := make(map[string]struct{}, len(p)+len(q))
	for k := range p {
		keys[k] = struct{}{}
	}
	for k := range q {
		keys[k] = struct{}{}
	}

	var js float64
	for k := range keys {
		pi, qi := p[k], q[k]
		mi := (pi + qi) / 2
		if pi > 0 {
			js += 0.5 * pi * math.Log2(pi/mi)
		}
		if qi > 0 {
			js += 0.5 * qi * math.Log2(qi/mi)
		}
	}
	return js
}
