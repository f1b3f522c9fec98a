// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package learner

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/metrics"
	"github.com/scentdex/accord/internal/ranking"
)

// Config configures the weight learner.
type Config struct {
	// Sources is the full set of source names weights are learned over.
	Sources []string

	// ExplorationRate blends the exploit-optimal weights toward uniform
	// and drives the occasional random jitter, keeping under-used sources
	// measurable. Default: 0.1.
	ExplorationRate float64

	// FloorWeight is the minimum weight any source can hold, so no source
	// is starved to zero. Default: 0.05.
	FloorWeight float64

	// Decay is the exponential decay applied to per-source reward means on
	// each observation. Default: 0.05.
	Decay float64

	// JitterScale bounds the occasional random perturbation. Default: 0.05.
	JitterScale float64

	// Defaults seeds initial weights per context bucket. Buckets absent
	// from the map start at equal weights.
	Defaults map[string]map[string]float64

	// Seed makes the exploration random source deterministic for tests.
	// Zero selects a fixed default seed.
	Seed int64

	// QueueSize is the feedback channel capacity. Default: 1024.
	QueueSize int
}

// DefaultConfig returns production defaults for the given sources.
func DefaultConfig(sources []string) Config {
	return Config{
		Sources:         sources,
		ExplorationRate: 0.1,
		FloorWeight:     0.05,
		Decay:           0.05,
		JitterScale:     0.05,
		QueueSize:       1024,
	}
}

func (c Config) withDefaults() Config {
	if c.ExplorationRate <= 0 {
		c.ExplorationRate = 0.1
	}
	if c.FloorWeight <= 0 {
		c.FloorWeight = 0.05
	}
	if c.Decay <= 0 {
		c.Decay = 0.05
	}
	if c.JitterScale <= 0 {
		c.JitterScale = 0.05
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	return c
}

// sourceStats accumulates the decayed reward mean for one source in one
// bucket.
type sourceStats struct {
	mean  float64
	count int64
}

// bucketState holds the learner's view of one context bucket.
type bucketState struct {
	stats map[string]*sourceStats
}

// Learner is the contextual weight learner. It implements
// ranking.WeightProvider for request paths and suture.Service for its
// background consumption loop.
type Learner struct {
	config atomic.Pointer[Config]
	logger zerolog.Logger

	// snapshot maps bucket -> active WeightVector. Replaced wholesale on
	// every recompute; readers load it without locks.
	snapshot atomic.Pointer[map[string]ranking.WeightVector]

	// buckets is the mutable learning state, touched only by the Serve
	// goroutine (and Observe's synchronous path in tests via ingest).
	mu      sync.Mutex
	buckets map[string]*bucketState
	rng     *rand.Rand

	events chan ranking.FeedbackEvent

	// explorationRate mirrors the config for the metrics gauge.
	explorationRate atomic.Uint64
}

// New creates a learner.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, logger zerolog.Logger) *Learner {
	cfg = cfg.withDefaults()

	seed := cfg.Seed
	if seed == 0 {
		seed = 42
	}

	l := &Learner{
		logger:  logger.With().Str("component", "learner").Logger(),
		buckets: make(map[string]*bucketState),
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // exploration jitter, not security
		events:  make(chan ranking.FeedbackEvent, cfg.QueueSize),
	}
	l.config.Store(&cfg)
	l.storeExplorationRate(cfg.ExplorationRate)

	snap := make(map[string]ranking.WeightVector, len(cfg.Defaults))
	for bucket, weights := range cfg.Defaults {
		snap[bucket] = ranking.NewWeightVector(weights).WithFloor(cfg.FloorWeight)
	}
	l.snapshot.Store(&snap)

	return l
}

// Weights implements ranking.WeightProvider. It returns the active snapshot
// for the bucket, or the default equal-weight vector for unseen buckets.
// Never blocks: concurrent updates swap in a fresh map, so a reader observes
// either the pre- or post-update vector, never a partial write.
func (l *Learner) Weights(bucket string) ranking.WeightVector {
	snap := *l.snapshot.Load()
	if w, ok := snap[bucket]; ok {
		return w
	}
	return ranking.EqualWeights(l.config.Load().Sources)
}

// ExplorationRate returns the current exploration rate for observability.
func (l *Learner) ExplorationRate() float64 {
	return float64(l.explorationRate.Load()) / 1e9
}

func (l *Learner) storeExplorationRate(rate float64) {
	l.explorationRate.Store(uint64(rate * 1e9))
	metrics.SetExplorationRate(rate)
}

// SeedDefaults publishes default weight vectors for buckets with no learned
// or restored state. Buckets the learner has already observed (or restored
// from persistence) keep their vectors. Used by config hot reload.
func (l *Learner) SeedDefaults(defaults map[string]map[string]float64) {
	if len(defaults) == 0 {
		return
	}
	cfg := l.config.Load()

	l.mu.Lock()
	defer l.mu.Unlock()

	old := *l.snapshot.Load()
	next := make(map[string]ranking.WeightVector, len(old)+len(defaults))
	for k, v := range old {
		next[k] = v
	}
	changed := false
	for bucket, weights := range defaults {
		if _, learned := l.buckets[bucket]; learned {
			continue
		}
		next[bucket] = ranking.NewWeightVector(weights).WithFloor(cfg.FloorWeight)
		changed = true
	}
	if changed {
		l.snapshot.Store(&next)
	}
}

// UpdateConfig publishes new tunables (exploration rate, floor, decay).
// Sources are fixed at construction; defaults reload via SeedDefaults.
func (l *Learner) UpdateConfig(exploration, floor, decay float64) {
	cur := *l.config.Load()
	if exploration > 0 {
		cur.ExplorationRate = exploration
	}
	if floor > 0 {
		cur.FloorWeight = floor
	}
	if decay > 0 {
		cur.Decay = decay
	}
	l.config.Store(&cur)
	l.storeExplorationRate(cur.ExplorationRate)
}

// Observe enqueues a feedback event for asynchronous processing. It never
// blocks a ranking request: when the queue is full the event is dropped and
// counted, which only delays convergence.
func (l *Learner) Observe(ev ranking.FeedbackEvent) {
	select {
	case l.events <- ev:
	default:
		l.logger.Warn().Str("event_id", ev.EventID).Msg("feedback queue full, event dropped")
	}
}

// Serve consumes the feedback queue until the context is cancelled.
// It satisfies suture.Service.
func (l *Learner) Serve(ctx context.Context) error {
	for {
		select {
		case ev := <-l.events:
			l.ingest(ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ingest applies one event and republishes the bucket's weight snapshot.
func (l *Learner) ingest(ev ranking.FeedbackEvent) {
	if len(ev.Sources) == 0 || ev.Bucket == "" {
		return
	}
	cfg := *l.config.Load()

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[ev.Bucket]
	if b == nil {
		b = &bucketState{stats: make(map[string]*sourceStats, len(cfg.Sources))}
		l.buckets[ev.Bucket] = b
	}

	for _, src := range ev.Sources {
		st := b.stats[src]
		if st == nil {
			st = &sourceStats{}
			b.stats[src] = st
		}
		if st.count == 0 {
			st.mean = ev.Reward
		} else {
			st.mean = (1-cfg.Decay)*st.mean + cfg.Decay*ev.Reward
		}
		st.count++
	}

	l.publishLocked(ev.Bucket, b, &cfg)
}

// publishLocked recomputes the bucket's WeightVector and swaps in a new
// snapshot map. Must be called with mu held.
func (l *Learner) publishLocked(bucket string, b *bucketState, cfg *Config) {
	exploit := make(map[string]float64, len(cfg.Sources))
	uniform := 1.0 / float64(len(cfg.Sources))
	for _, src := range cfg.Sources {
		if st, ok := b.stats[src]; ok && st.count > 0 {
			exploit[src] = st.mean
		} else {
			// Unobserved sources hold the uniform prior.
			exploit[src] = uniform
		}
	}

	w := ranking.NewWeightVector(exploit)

	// Exploration: blend toward uniform so exploitation never fully wins,
	// plus an occasional seeded jitter on one random source.
	blended := make(map[string]float64, len(cfg.Sources))
	for _, src := range cfg.Sources {
		blended[src] = (1-cfg.ExplorationRate)*w.Get(src) + cfg.ExplorationRate*uniform
	}
	if l.rng.Float64() < cfg.ExplorationRate {
		src := cfg.Sources[l.rng.Intn(len(cfg.Sources))]
		blended[src] += cfg.JitterScale * l.rng.Float64()
	}

	final := ranking.NewWeightVector(blended).WithFloor(cfg.FloorWeight)

	old := *l.snapshot.Load()
	next := make(map[string]ranking.WeightVector, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[bucket] = final
	l.snapshot.Store(&next)
	metrics.ObserveWeightSnapshot()
}

// Export returns a copy of all active weight vectors, for persistence and
// the introspection API.
func (l *Learner) Export() map[string]ranking.WeightVector {
	snap := *l.snapshot.Load()
	out := make(map[string]ranking.WeightVector, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out
}

// Restore seeds the snapshot from persisted state. Call before Serve.
// Restored buckets count as learned, so a later SeedDefaults cannot
// overwrite them.
func (l *Learner) Restore(weights map[string]ranking.WeightVector) {
	cfg := l.config.Load()
	snap := make(map[string]ranking.WeightVector, len(weights))

	l.mu.Lock()
	defer l.mu.Unlock()
	for bucket, w := range weights {
		snap[bucket] = w.WithFloor(cfg.FloorWeight)
		if l.buckets[bucket] == nil {
			l.buckets[bucket] = &bucketState{stats: make(map[string]*sourceStats)}
		}
	}
	l.snapshot.Store(&snap)
}
