// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Filters narrows the candidate set before scoring.
type Filters struct {
	// Families restricts results to the given fragrance families (e.g. "oriental").
	Families []string `json:"families,omitempty"`

	// Brands restricts results to the given brands.
	Brands []string `json:"brands,omitempty"`

	// Exclude is a set of candidate IDs to omit (e.g. items the user owns).
	Exclude []string `json:"exclude,omitempty"`
}

// RequestContext carries the situational factors used for context bucketing.
type RequestContext struct {
	// TimeOfDay is the hour (0-23).
	TimeOfDay int `json:"time_of_day,omitempty"`

	// Occasion is a free-form occasion tag (e.g. "office", "date", "gift").
	Occasion string `json:"occasion,omitempty"`

	// Device is the client device type (web, mobile, tv).
	Device string `json:"device,omitempty"`
}

// Query is a single ranking request.
type Query struct {
	// Text is the query text. Must be at least MinQueryLength runes.
	Text string `json:"query"`

	// Filters narrows the candidate set.
	Filters Filters `json:"filters,omitempty"`

	// UserID enables personalization when set.
	UserID string `json:"user_id,omitempty"`

	// Context provides situational factors for bucketing and caching.
	Context RequestContext `json:"context,omitempty"`

	// K is the maximum number of candidates to return. Zero means the
	// configured default.
	K int `json:"k,omitempty"`

	// RequestID is a unique identifier for tracing. Generated if empty.
	RequestID string `json:"request_id,omitempty"`
}

// ScoredID is one (candidate id, raw score) pair returned by a source.
type ScoredID struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SourceResult is the outcome of one source adapter call. Produced once per
// fan-out, consumed by the aggregator, then discarded.
type SourceResult struct {
	// Source is the adapter name (e.g. "semantic", "keyword", "popularity").
	Source string

	// Scores holds the raw (id, score) pairs. Raw scores from different
	// sources are not comparable until normalized per source.
	Scores []ScoredID

	// Latency is how long the adapter call took.
	Latency time.Duration

	// Err is the failure reason; nil on success.
	Err error
}

// OK reports whether the call succeeded.
func (r *SourceResult) OK() bool { return r.Err == nil }

// ExplanationFactor is one named contribution to a candidate's score.
type ExplanationFactor struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Candidate is one ranked item. Created fresh per request, immutable once
// aggregation completes, never persisted beyond the cache.
type Candidate struct {
	// ID is the fragrance identifier.
	ID string `json:"id"`

	// SourceScores maps source name to that source's normalized score.
	SourceScores map[string]float64 `json:"source_scores,omitempty"`

	// FinalScore is the weighted, overlap-boosted, personalized score.
	FinalScore float64 `json:"final_score"`

	// Sources lists the sources that contributed, sorted.
	Sources []string `json:"contributing_sources"`

	// Explanations is the ordered list of named contributions.
	Explanations []ExplanationFactor `json:"explanation_factors,omitempty"`
}

// Response is the result of a ranking request.
type Response struct {
	// Candidates is the final ranked list, best first.
	Candidates []Candidate `json:"candidates"`

	// Degraded is true when one or more sources were excluded due to
	// failure, timeout, or an open circuit.
	Degraded bool `json:"degraded"`

	// MissingSources lists the excluded sources when Degraded is true.
	MissingSources []string `json:"missing_sources,omitempty"`

	// MethodsUsed lists the sources that contributed to the ranking.
	MethodsUsed []string `json:"methods_used"`

	// ColdStart is true when personalization was skipped because the user
	// has no profile or profile confidence is below the configured floor.
	ColdStart bool `json:"cold_start,omitempty"`

	// CacheHit is true when the response was served from cache.
	CacheHit bool `json:"cache_hit"`

	// Bucket is the context bucket the request was scored under.
	Bucket string `json:"bucket,omitempty"`

	// RequestID echoes the request identifier.
	RequestID string `json:"request_id"`

	// LatencyMS is the total pipeline latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`
}

// UserPreferenceProfile captures a user's learned taste. Created on first
// interaction with cold-start defaults, mutated incrementally by accepted
// feedback, deleted only on explicit user-data erasure.
type UserPreferenceProfile struct {
	// UserID is the profile owner.
	UserID string `json:"user_id"`

	// Vector is the preference embedding, same dimensionality as the
	// semantic source's vectors.
	Vector []float64 `json:"vector"`

	// FamilyAffinity maps fragrance family to affinity in [0,1].
	FamilyAffinity map[string]float64 `json:"family_affinity"`

	// BrandAffinity maps brand to affinity in [0,1].
	BrandAffinity map[string]float64 `json:"brand_affinity"`

	// Confidence is the profile confidence in [0,1]. Grows with accepted
	// feedback; below the configured floor the profile is ignored.
	Confidence float64 `json:"confidence"`

	// UpdatedAt is when the profile was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// FeedbackKind classifies feedback events by strength.
type FeedbackKind int

const (
	// FeedbackClick is a weak positive signal.
	FeedbackClick FeedbackKind = iota
	// FeedbackSample indicates the user sampled the fragrance.
	FeedbackSample
	// FeedbackRating is an explicit rating.
	FeedbackRating
	// FeedbackCollectionAdd indicates the item was added to a collection.
	FeedbackCollectionAdd
)

// String returns a human-readable name for the feedback kind.
func (k FeedbackKind) String() string {
	switch k {
	case FeedbackClick:
		return "click"
	case FeedbackSample:
		return "sample"
	case FeedbackRating:
		return "rating"
	case FeedbackCollectionAdd:
		return "collection_add"
	default:
		return "unknown"
	}
}

// Invalidating reports whether events of this kind are strong enough to
// invalidate the user's recommendation cache entries.
func (k FeedbackKind) Invalidating() bool {
	return k == FeedbackRating || k == FeedbackCollectionAdd
}

// Valid reports whether k is one of the defined kinds.
func (k FeedbackKind) Valid() bool {
	return k >= FeedbackClick && k <= FeedbackCollectionAdd
}

// ParseFeedbackKind resolves the wire name of a feedback kind.
func ParseFeedbackKind(s string) (FeedbackKind, error) {
	switch s {
	case "click":
		return FeedbackClick, nil
	case "sample":
		return FeedbackSample, nil
	case "rating":
		return FeedbackRating, nil
	case "collection_add":
		return FeedbackCollectionAdd, nil
	default:
		return 0, fmt.Errorf("unknown feedback kind %q", s)
	}
}

// MarshalJSON encodes the kind as its wire name.
func (k FeedbackKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes the kind from its wire name.
func (k *FeedbackKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind, err := ParseFeedbackKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// FeedbackEvent is one observed outcome. Append-only; consumed by the weight
// learner, drift monitor, and profile updater.
type FeedbackEvent struct {
	// EventID uniquely identifies the event.
	EventID string `json:"event_id"`

	// CandidateID is the fragrance the event refers to.
	CandidateID string `json:"candidate_id"`

	// UserID is the user who produced the event, if known.
	UserID string `json:"user_id,omitempty"`

	// Bucket is the context bucket the candidate was ranked under.
	Bucket string `json:"bucket"`

	// Sources lists the sources that contributed to the candidate at
	// ranking time. The learner credits reward to exactly these sources.
	Sources []string `json:"sources"`

	// Kind classifies the event.
	Kind FeedbackKind `json:"kind"`

	// Reward is the observed reward in [0,1].
	Reward float64 `json:"reward"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// ItemMeta is catalog metadata used by personalization. The catalog itself
// (vector index, item store) is an external collaborator.
type ItemMeta struct {
	// ID is the fragrance identifier.
	ID string `json:"id"`

	// Vector is the item embedding.
	Vector []float64 `json:"vector,omitempty"`

	// Family is the fragrance family (e.g. "woody", "floral", "oriental").
	Family string `json:"family,omitempty"`

	// Brand is the house name.
	Brand string `json:"brand,omitempty"`
}

// Catalog resolves candidate metadata for personalization.
type Catalog interface {
	// Meta returns metadata for the given candidate IDs. Unknown IDs are
	// simply absent from the result.
	Meta(ctx context.Context, ids []string) (map[string]ItemMeta, error)
}

// Adapter is the uniform capability interface to one scoring source.
// Implementations must respect the context deadline and return promptly on
// cancellation.
type Adapter interface {
	// Name returns the source identifier.
	Name() string

	// Fetch returns raw-scored candidates for the query.
	Fetch(ctx context.Context, q Query) ([]ScoredID, error)
}

// WeightProvider supplies the active weight snapshot for a context bucket.
// Implementations must return immutable snapshots readable without locks.
type WeightProvider interface {
	// Weights returns the active WeightVector for the bucket.
	Weights(bucket string) WeightVector
}

// ProfileProvider supplies user preference profiles for personalization.
type ProfileProvider interface {
	// Profile returns the user's profile, or nil if none exists.
	Profile(ctx context.Context, userID string) (*UserPreferenceProfile, error)
}
