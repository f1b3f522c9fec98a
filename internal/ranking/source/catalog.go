// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package source

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"

	"github.com/scentdex/accord/internal/ranking"
)

// CatalogItem is one fragrance in the catalog seed file. Popularity feeds
// the popularity adapter; the rest becomes ItemMeta for personalization.
type CatalogItem struct {
	ID         string    `json:"id"`
	Vector     []float64 `json:"vector,omitempty"`
	Family     string    `json:"family,omitempty"`
	Brand      string    `json:"brand,omitempty"`
	Popularity float64   `json:"popularity,omitempty"`
}

// LoadCatalogFile reads a JSON array of catalog items.
func LoadCatalogFile(path string) ([]CatalogItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var items []CatalogItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return items, nil
}

// PopularItems projects catalog items into the popularity adapter's table.
func PopularItems(items []CatalogItem) []PopularItem {
	out := make([]PopularItem, 0, len(items))
	for _, it := range items {
		if it.Popularity <= 0 {
			continue
		}
		out = append(out, PopularItem{
			ID:     it.ID,
			Family: it.Family,
			Brand:  it.Brand,
			Score:  it.Popularity,
		})
	}
	return out
}

// MemoryCatalog resolves candidate metadata from an in-memory table. It
// implements ranking.Catalog. The table is replaced wholesale, like the
// popularity adapter's.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]ranking.ItemMeta
}

// NewMemoryCatalog creates the catalog from seed items.
func NewMemoryCatalog(items []CatalogItem) *MemoryCatalog {
	c := &MemoryCatalog{}
	c.Replace(items)
	return c
}

// Replace swaps in a new metadata table.
func (c *MemoryCatalog) Replace(items []CatalogItem) {
	table := make(map[string]ranking.ItemMeta, len(items))
	for _, it := range items {
		table[it.ID] = ranking.ItemMeta{
			ID:     it.ID,
			Vector: it.Vector,
			Family: it.Family,
			Brand:  it.Brand,
		}
	}
	c.mu.Lock()
	c.items = table
	c.mu.Unlock()
}

// Len returns the number of cataloged items.
func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Meta implements ranking.Catalog. Unknown ids are simply absent from the
// result; callers treat missing metadata as no-op personalization.
func (c *MemoryCatalog) Meta(ctx context.Context, ids []string) (map[string]ranking.ItemMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]ranking.ItemMeta, len(ids))
	for _, id := range ids {
		if meta, ok := c.items[id]; ok {
			out[id] = meta
		}
	}
	return out, nil
}
