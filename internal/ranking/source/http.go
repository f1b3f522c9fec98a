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
	"golang.org/x/time/rate"

	"github.com/scentdex/accord/internal/ranking"
)

// ClientConfig configures the shared scoring-service HTTP client.
type ClientConfig struct {
	// URL is the scoring endpoint.
	URL string

	// Timeout bounds a single HTTP exchange. The caller's context deadline
	// still applies on top. Default: 5s.
	Timeout time.Duration

	// RequestsPerSecond rate-limits outbound calls client-side.
	// Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Default: 1 when limiting.
	Burst int
}

// Client is a rate-limited JSON-over-HTTP client for external scoring
// services (keyword index, vector index).
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a scoring client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		url:     cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

// scoreResponse is the wire shape every scoring service returns.
type scoreResponse struct {
	Results []ranking.ScoredID `json:"results"`
}

// Post sends the payload and decodes the scored results. It waits on the
// rate limiter first, so an over-budget wait surfaces as a context error the
// fan-out coordinator records as a timeout.
func (c *Client) Post(ctx context.Context, payload any) ([]ranking.ScoredID, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("scoring service returned %d", resp.StatusCode)
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded.Results, nil
}
