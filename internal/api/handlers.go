// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/feedback"
	"github.com/scentdex/accord/internal/logging"
	"github.com/scentdex/accord/internal/metrics"
	"github.com/scentdex/accord/internal/ranking"
)

// Publisher accepts validated feedback events.
type Publisher interface {
	Publish(ev ranking.FeedbackEvent) error
}

// WeightsSource exposes the learner's active state for introspection.
type WeightsSource interface {
	Export() map[string]ranking.WeightVector
	ExplorationRate() float64
}

// UserEraser removes a user's preference profile.
type UserEraser interface {
	Erase(userID string)
}

// UserInvalidator drops a user's cached entries.
type UserInvalidator interface {
	InvalidateUser(userID string) int
}

// BreakerStates reports per-source circuit states for health.
type BreakerStates func() map[string]string

// CacheLen reports the number of live cache entries.
type CacheLen func() int

// Handler holds the endpoint implementations.
type Handler struct {
	engine    *ranking.Engine
	publisher Publisher
	weights   WeightsSource
	eraser    UserEraser
	cache     UserInvalidator
	breakers  BreakerStates
	cacheLen  CacheLen
	validate  *validator.Validate
	logger    zerolog.Logger
}

// HandlerDeps wires the handler's collaborators. publisher, weights,
// eraser, cache, breakers, and cacheLen may be nil; the corresponding
// endpoints degrade gracefully.
type HandlerDeps struct {
	Engine    *ranking.Engine
	Publisher Publisher
	Weights   WeightsSource
	Eraser    UserEraser
	Cache     UserInvalidator
	Breakers  BreakerStates
	CacheLen  CacheLen
}

// NewHandler creates the endpoint handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(deps HandlerDeps, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:    deps.Engine,
		publisher: deps.Publisher,
		weights:   deps.Weights,
		eraser:    deps.Eraser,
		cache:     deps.Cache,
		breakers:  deps.Breakers,
		cacheLen:  deps.CacheLen,
		validate:  validator.New(),
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Rank handles POST /api/v1/rank.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	q := ranking.Query{
		Text:      req.Query,
		Filters:   req.Filters,
		UserID:    req.UserID,
		Context:   req.Context,
		K:         req.K,
		RequestID: logging.RequestIDFromContext(r.Context()),
	}

	resp, err := h.engine.Rank(r.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, ranking.ErrInvalidQuery):
			respondError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		case errors.Is(err, ranking.ErrNoSourcesAvailable):
			respondError(w, r, http.StatusServiceUnavailable, "NO_SOURCES", "no scoring sources available")
		default:
			h.logger.Error().Err(err).Msg("rank request failed")
			respondError(w, r, http.StatusInternalServerError, "INTERNAL", "ranking failed")
		}
		return
	}

	respondJSON(w, r, http.StatusOK, resp)
}

// Feedback handles POST /api/v1/feedback. Events are accepted (202) once
// validated and published; processing is asynchronous.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		respondError(w, r, http.StatusServiceUnavailable, "FEEDBACK_DISABLED", "feedback ingestion is not configured")
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	kind, err := ranking.ParseFeedbackKind(req.Kind)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	ev := feedback.NewEvent(req.CandidateID, req.UserID, req.Bucket, req.Sources, kind, req.Reward)
	if err := h.publisher.Publish(ev); err != nil {
		h.logger.Error().Err(err).Str("event_id", ev.EventID).Msg("feedback publish failed")
		respondError(w, r, http.StatusInternalServerError, "PUBLISH_FAILED", "feedback event could not be accepted")
		return
	}

	respondJSON(w, r, http.StatusAccepted, map[string]string{"event_id": ev.EventID})
}

// Weights handles GET /api/v1/weights.
func (h *Handler) Weights(w http.ResponseWriter, r *http.Request) {
	if h.weights == nil {
		respondError(w, r, http.StatusServiceUnavailable, "LEARNER_DISABLED", "weight learner is not configured")
		return
	}

	buckets := make(map[string]map[string]float64)
	for bucket, wv := range h.weights.Export() {
		buckets[bucket] = wv.ToMap()
	}
	respondJSON(w, r, http.StatusOK, WeightsData{
		Buckets:         buckets,
		ExplorationRate: h.weights.ExplorationRate(),
	})
}

// EraseUser handles DELETE /api/v1/users/{id}: removes the preference
// profile, persisted state, and cached recommendation entries.
func (h *Handler) EraseUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		respondError(w, r, http.StatusBadRequest, "MISSING_USER", "user id is required")
		return
	}

	if h.eraser != nil {
		h.eraser.Erase(userID)
	}
	removed := 0
	if h.cache != nil {
		removed = h.cache.InvalidateUser(userID)
		metrics.ObserveCacheInvalidation("erasure", removed)
	}

	h.logger.Info().Str("user_id", userID).Int("cache_removed", removed).Msg("user data erased")
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"user_id":       userID,
		"cache_removed": removed,
	})
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	data := HealthData{Status: "ok"}
	if h.breakers != nil {
		data.Sources = h.breakers()
		for _, state := range data.Sources {
			if state != "closed" {
				data.Status = "degraded"
			}
		}
	}
	if h.cacheLen != nil {
		data.CacheLen = h.cacheLen()
	}
	respondJSON(w, r, http.StatusOK, data)
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady handles GET /api/v1/health/ready. The service is ready once
// the engine exists; open breakers degrade but do not unready it.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		respondError(w, r, http.StatusServiceUnavailable, "NOT_READY", "ranking engine not initialized")
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
