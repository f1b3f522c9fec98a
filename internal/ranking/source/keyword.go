// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package source

import (
	"context"

	"github.com/scentdex/accord/internal/ranking"
)

// Keyword scores candidates against the external full-text index.
type Keyword struct {
	client *Client
	limit  int
}

// NewKeyword creates the keyword adapter.
func NewKeyword(client *Client, limit int) *Keyword {
	if limit <= 0 {
		limit = 100
	}
	return &Keyword{client: client, limit: limit}
}

// Name implements ranking.Adapter.
func (k *Keyword) Name() string { return "keyword" }

// keywordRequest is the full-text index request shape.
type keywordRequest struct {
	Query    string   `json:"query"`
	Families []string `json:"families,omitempty"`
	Brands   []string `json:"brands,omitempty"`
	Limit    int      `json:"limit"`
}

// Fetch implements ranking.Adapter.
func (k *Keyword) Fetch(ctx context.Context, q ranking.Query) ([]ranking.ScoredID, error) {
	return k.client.Post(ctx, keywordRequest{
		Query:    q.Text,
		Families: q.Filters.Families,
		Brands:   q.Filters.Brands,
		Limit:    k.limit,
	})
}
