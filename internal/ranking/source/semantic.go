// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/scentdex/accord/internal/ranking"
)

// Embedder is the narrow contract to the external embedding provider.
type Embedder interface {
	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Semantic scores candidates by embedding the query text and searching the
// external vector index.
type Semantic struct {
	embedder Embedder
	client   *Client
	limit    int
}

// NewSemantic creates the semantic adapter.
func NewSemantic(embedder Embedder, client *Client, limit int) *Semantic {
	if limit <= 0 {
		limit = 100
	}
	return &Semantic{embedder: embedder, client: client, limit: limit}
}

// Name implements ranking.Adapter.
func (s *Semantic) Name() string { return "semantic" }

// vectorRequest is the vector index request shape.
type vectorRequest struct {
	Vector   []float64 `json:"vector"`
	Families []string  `json:"families,omitempty"`
	Brands   []string  `json:"brands,omitempty"`
	Limit    int       `json:"limit"`
}

// Fetch implements ranking.Adapter. An embedding failure fails the whole
// source call; the pipeline recovers by excluding the source.
func (s *Semantic) Fetch(ctx context.Context, q ranking.Query) ([]ranking.ScoredID, error) {
	vec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return s.client.Post(ctx, vectorRequest{
		Vector:   vec,
		Families: q.Filters.Families,
		Brands:   q.Filters.Brands,
		Limit:    s.limit,
	})
}

// HTTPEmbedder calls an embedding provider over HTTP.
type HTTPEmbedder struct {
	url  string
	http *http.Client
}

// NewHTTPEmbedder creates an embedding client for the given endpoint.
func NewHTTPEmbedder(url string, timeout time.Duration) *HTTPEmbedder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPEmbedder{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding provider returned %d", resp.StatusCode)
	}

	var decoded struct {
		Vector []float64 `json:"vector"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(decoded.Vector) == 0 {
		return nil, fmt.Errorf("embedding provider returned empty vector")
	}
	return decoded.Vector, nil
}
