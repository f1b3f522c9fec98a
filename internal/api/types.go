// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package api

import (
	"time"

	"github.com/scentdex/accord/internal/ranking"
)

// Response is the uniform API envelope.
type Response struct {
	Status   string      `json:"status"` // "success" or "error"
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *Error      `json:"error,omitempty"`
}

// Metadata carries per-response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error is the error block of the envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RankRequest is the POST /api/v1/rank body.
type RankRequest struct {
	Query   string                 `json:"query" validate:"required"`
	Filters ranking.Filters        `json:"filters"`
	UserID  string                 `json:"user_id" validate:"omitempty,max=128"`
	Context ranking.RequestContext `json:"context"`
	K       int                    `json:"k" validate:"min=0,max=1000"`
}

// FeedbackRequest is the POST /api/v1/feedback body.
type FeedbackRequest struct {
	CandidateID string   `json:"candidate_id" validate:"required,max=128"`
	UserID      string   `json:"user_id" validate:"omitempty,max=128"`
	Bucket      string   `json:"bucket" validate:"required,max=128"`
	Sources     []string `json:"sources" validate:"required,min=1,dive,max=64"`
	Kind        string   `json:"kind" validate:"required"`
	Reward      float64  `json:"reward" validate:"min=0,max=1"`
}

// WeightsData is the GET /api/v1/weights payload.
type WeightsData struct {
	Buckets         map[string]map[string]float64 `json:"buckets"`
	ExplorationRate float64                       `json:"exploration_rate"`
}

// HealthData is the GET /api/v1/health payload.
type HealthData struct {
	Status   string            `json:"status"` // "ok" or "degraded"
	Sources  map[string]string `json:"sources,omitempty"`
	CacheLen int               `json:"cache_entries"`
}
