// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package source

import (
	"context"
	"sort"
	"sync"

	"github.com/scentdex/accord/internal/ranking"
)

// PopularItem is one entry in the popularity table.
type PopularItem struct {
	ID     string
	Family string
	Brand  string
	Score  float64
}

// Popularity serves pre-computed popularity scores from memory. The table is
// replaced wholesale by a periodic refresh (snapshot swap under a short
// write lock); reads take the read lock only long enough to copy the slice
// header.
type Popularity struct {
	mu    sync.RWMutex
	items []PopularItem
	limit int
}

// NewPopularity creates the popularity adapter with an initial table.
func NewPopularity(items []PopularItem, limit int) *Popularity {
	if limit <= 0 {
		limit = 100
	}
	p := &Popularity{limit: limit}
	p.Replace(items)
	return p
}

// Name implements ranking.Adapter.
func (p *Popularity) Name() string { return "popularity" }

// Replace swaps in a new popularity table, kept sorted by score descending.
func (p *Popularity) Replace(items []PopularItem) {
	sorted := make([]PopularItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	p.mu.Lock()
	p.items = sorted
	p.mu.Unlock()
}

// Fetch implements ranking.Adapter. Popularity ignores the query text; it
// only honors family/brand filters and the context deadline.
func (p *Popularity) Fetch(ctx context.Context, q ranking.Query) ([]ranking.ScoredID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	items := p.items
	p.mu.RUnlock()

	families := toSet(q.Filters.Families)
	brands := toSet(q.Filters.Brands)

	out := make([]ranking.ScoredID, 0, p.limit)
	for i := range items {
		it := &items[i]
		if len(families) > 0 {
			if _, ok := families[it.Family]; !ok {
				continue
			}
		}
		if len(brands) > 0 {
			if _, ok := brands[it.Brand]; !ok {
				continue
			}
		}
		out = append(out, ranking.ScoredID{ID: it.ID, Score: it.Score})
		if len(out) >= p.limit {
			break
		}
	}
	return out, nil
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
