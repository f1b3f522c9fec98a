// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/scentdex/accord/internal/logging"
	"github.com/scentdex/accord/internal/metrics"
)

// requestID assigns every request an ID, propagated through the context
// (so the engine and logs carry it) and echoed in the X-Request-ID header.
// A client-supplied header is honored.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// prometheusMetrics records request counts and latency per route. The chi
// route pattern is used instead of the raw path to keep label cardinality
// bounded.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		metrics.RecordAPIRequest(r.Method, endpoint, ww.Status(), time.Since(start))
	})
}
