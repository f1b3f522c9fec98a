// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ResponseCache fronts the whole pipeline. A hit skips all source calls.
// Implementations choose the tier (result vs. recommendation) from the query.
type ResponseCache interface {
	// Lookup returns a cached response for the query, if present.
	Lookup(q Query) (*Response, bool)

	// Store caches the response for the query.
	Store(q Query, resp *Response)
}

// Recorder receives per-request observability signals.
type Recorder interface {
	// ObserveRequest records one completed ranking request.
	ObserveRequest(latency time.Duration, degraded, cacheHit, coldStart bool)

	// ObserveSource records one source call within a request.
	ObserveSource(source string, latency time.Duration, ok bool)
}

// nopRecorder is used when no Recorder is configured.
type nopRecorder struct{}

func (nopRecorder) ObserveRequest(time.Duration, bool, bool, bool) {}
func (nopRecorder) ObserveSource(string, time.Duration, bool)      {}

// Options are the hot-reloadable engine settings. The engine reads an
// immutable snapshot per request; SetOptions publishes a new one atomically.
type Options struct {
	// MinQueryLength is the minimum query length in runes. Default: 2.
	MinQueryLength int

	// DefaultK is the result count when the request leaves K zero. Default: 20.
	DefaultK int

	// MaxK caps the result count. Default: 100.
	MaxK int

	// Aggregator configures score merging.
	Aggregator AggregatorConfig
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		MinQueryLength: 2,
		DefaultK:       20,
		MaxK:           100,
		Aggregator:     DefaultAggregatorConfig(),
	}
}

func (o Options) withDefaults() Options {
	if o.MinQueryLength <= 0 {
		o.MinQueryLength = 2
	}
	if o.DefaultK <= 0 {
		o.DefaultK = 20
	}
	if o.MaxK <= 0 {
		o.MaxK = 100
	}
	return o
}

// Engine runs the full ranking pipeline: cache lookup, concurrent source
// fan-out, weighted aggregation, and personalization. Safe for concurrent use.
type Engine struct {
	coordinator  *Coordinator
	personalizer *Personalizer
	weights      WeightProvider
	profiles     ProfileProvider
	cache        ResponseCache
	recorder     Recorder
	opts         atomic.Pointer[Options]
	logger       zerolog.Logger
}

// NewEngine wires the pipeline. profiles, cache, and recorder may be nil:
// a nil profiles disables personalization, a nil cache disables caching.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(coordinator *Coordinator, personalizer *Personalizer, weights WeightProvider, logger zerolog.Logger) *Engine {
	e := &Engine{
		coordinator:  coordinator,
		personalizer: personalizer,
		weights:      weights,
		recorder:     nopRecorder{},
		logger:       logger.With().Str("component", "ranking").Logger(),
	}
	opts := DefaultOptions()
	e.opts.Store(&opts)
	return e
}

// SetProfiles sets the preference profile provider.
func (e *Engine) SetProfiles(p ProfileProvider) { e.profiles = p }

// SetCache sets the response cache fronting the pipeline.
func (e *Engine) SetCache(c ResponseCache) { e.cache = c }

// SetRecorder sets the observability recorder.
func (e *Engine) SetRecorder(r Recorder) {
	if r != nil {
		e.recorder = r
	}
}

// SetOptions publishes a new options snapshot. Used by config hot reload;
// in-flight requests keep the snapshot they started with.
func (e *Engine) SetOptions(o Options) {
	o = o.withDefaults()
	e.opts.Store(&o)
}

// Rank executes the pipeline for one query.
//
// Single-source failures are recovered locally: the source is excluded and
// the response flagged degraded. Only malformed input (ErrInvalidQuery) or
// total source failure (ErrNoSourcesAvailable) surface as errors.
func (e *Engine) Rank(ctx context.Context, q Query) (*Response, error) {
	start := time.Now()
	opts := *e.opts.Load()

	q, err := e.prepare(q, &opts)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With().
		Str("request_id", q.RequestID).
		Str("user_id", q.UserID).
		Logger()

	if resp := e.tryCache(q, start); resp != nil {
		logger.Debug().Msg("cache hit")
		return resp, nil
	}

	bucket := Bucket(q.Context)

	results, err := e.coordinator.Fetch(ctx, q)
	for i := range results {
		e.recorder.ObserveSource(results[i].Source, results[i].Latency, results[i].OK())
	}
	if err != nil {
		logger.Warn().Err(err).Msg("ranking failed")
		return nil, err
	}

	agg := Aggregate(results, e.weights.Weights(bucket), opts.Aggregator)
	candidates := excludeIDs(agg.Candidates, q.Filters.Exclude)

	candidates, coldStart := e.personalize(ctx, q, candidates, &logger)

	if len(candidates) > q.K {
		candidates = candidates[:q.K]
	}

	resp := &Response{
		Candidates:     candidates,
		Degraded:       agg.Degraded,
		MissingSources: agg.MissingSources,
		MethodsUsed:    agg.MethodsUsed,
		ColdStart:      coldStart,
		Bucket:         bucket,
		RequestID:      q.RequestID,
		LatencyMS:      time.Since(start).Milliseconds(),
	}

	if e.cache != nil {
		e.cache.Store(q, resp)
	}
	e.recorder.ObserveRequest(time.Since(start), resp.Degraded, false, coldStart)

	logger.Debug().
		Int("candidates", len(candidates)).
		Bool("degraded", resp.Degraded).
		Str("bucket", bucket).
		Int64("latency_ms", resp.LatencyMS).
		Msg("ranking complete")

	return resp, nil
}

// prepare validates the query and applies defaults.
func (e *Engine) prepare(q Query, opts *Options) (Query, error) {
	if utf8.RuneCountInString(strings.TrimSpace(q.Text)) < opts.MinQueryLength {
		return q, ErrInvalidQuery
	}
	if q.RequestID == "" {
		q.RequestID = uuid.NewString()
	}
	if q.K <= 0 {
		q.K = opts.DefaultK
	}
	if q.K > opts.MaxK {
		q.K = opts.MaxK
	}
	return q, nil
}

// tryCache returns a cached response adjusted for this request, or nil.
func (e *Engine) tryCache(q Query, start time.Time) *Response {
	if e.cache == nil {
		return nil
	}
	cached, ok := e.cache.Lookup(q)
	if !ok {
		return nil
	}
	resp := *cached
	resp.CacheHit = true
	resp.RequestID = q.RequestID
	resp.LatencyMS = time.Since(start).Milliseconds()
	e.recorder.ObserveRequest(time.Since(start), resp.Degraded, true, resp.ColdStart)
	return &resp
}

// personalize applies the preference profile when one is usable. Profile
// lookup trouble is recovered locally as a cold start, never an abort.
func (e *Engine) personalize(ctx context.Context, q Query, candidates []Candidate, logger *zerolog.Logger) ([]Candidate, bool) {
	if q.UserID == "" || e.personalizer == nil || e.profiles == nil {
		return candidates, false
	}

	profile, err := e.profiles.Profile(ctx, q.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("profile lookup failed, falling back to cold start")
		profile = nil
	}

	return e.personalizer.Personalize(ctx, candidates, profile)
}

// excludeIDs drops explicitly excluded candidates after the merge.
func excludeIDs(candidates []Candidate, exclude []string) []Candidate {
	if len(exclude) == 0 {
		return candidates
	}
	drop := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		drop[id] = struct{}{}
	}
	out := candidates[:0]
	for i := range candidates {
		if _, skip := drop[candidates[i].ID]; !skip {
			out = append(out, candidates[i])
		}
	}
	return out
}
