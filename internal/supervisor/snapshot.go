// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/ranking"
)

// WeightExporter provides the current per-bucket weight snapshot.
type WeightExporter interface {
	Export() map[string]ranking.WeightVector
}

// SnapshotWriter persists a full weight snapshot.
type SnapshotWriter interface {
	SaveAllWeights(weights map[string]ranking.WeightVector) error
}

// SnapshotService periodically flushes learned weights to durable storage
// so a restart resumes from recent state instead of the defaults.
// It satisfies suture.Service.
type SnapshotService struct {
	exporter WeightExporter
	writer   SnapshotWriter
	interval time.Duration
	logger   zerolog.Logger
}

// NewSnapshotService creates the flusher. interval <= 0 defaults to one minute.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSnapshotService(exporter WeightExporter, writer SnapshotWriter, interval time.Duration, logger zerolog.Logger) *SnapshotService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SnapshotService{
		exporter: exporter,
		writer:   writer,
		interval: interval,
		logger:   logger.With().Str("component", "snapshot").Logger(),
	}
}

// Serve flushes on each tick and performs a final flush on shutdown.
func (s *SnapshotService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush()
			return ctx.Err()
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *SnapshotService) flush() {
	snapshot := s.exporter.Export()
	if len(snapshot) == 0 {
		return
	}
	if err := s.writer.SaveAllWeights(snapshot); err != nil {
		s.logger.Error().Err(err).Msg("weight snapshot flush failed")
		return
	}
	s.logger.Debug().Int("buckets", len(snapshot)).Msg("weight snapshot flushed")
}
