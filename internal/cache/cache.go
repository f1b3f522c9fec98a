// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package cache

import (
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const defaultShards = 16

// entry is one cached value with its expiry.
type entry struct {
	value     any
	expiresAt time.Time
}

// shard is one lock domain of the store.
type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Stats is a snapshot of store counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Keys      int64
}

// Store is a sharded in-memory TTL cache. Safe for concurrent use; readers
// on different keys, and on the same key, never block each other.
type Store struct {
	shards [defaultShards]shard
	ttl    time.Duration

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	stop chan struct{}
	once sync.Once
}

// NewStore creates a store with the given default TTL and starts the
// background sweeper. Call Close to stop the sweeper.
func NewStore(ttl time.Duration, sweepInterval time.Duration) *Store {
	s := &Store{ttl: ttl, stop: make(chan struct{})}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]entry)
	}
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	go s.sweepLoop(sweepInterval)
	return s
}

// Close stops the background sweeper.
func (s *Store) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%defaultShards]
}

// Get returns the value for key if present and unexpired.
func (s *Store) Get(key string) (any, bool) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()

	if !ok {
		s.misses.Add(1)
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		sh.mu.Lock()
		delete(sh.entries, key)
		sh.mu.Unlock()
		s.misses.Add(1)
		s.evictions.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return e.value, true
}

// Set stores value under key with the default TTL.
func (s *Store) Set(key string, value any) {
	s.SetWithTTL(key, value, s.ttl)
}

// SetWithTTL stores value under key with an explicit TTL.
func (s *Store) SetWithTTL(key string, value any, ttl time.Duration) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	sh.mu.Unlock()
}

// Delete removes a key. No-op when absent.
func (s *Store) Delete(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	_, existed := sh.entries[key]
	delete(sh.entries, key)
	sh.mu.Unlock()
	if existed {
		s.evictions.Add(1)
	}
}

// DeletePrefix removes every key with the given prefix and returns the count
// removed. Used for event-driven invalidation (all of a user's entries
// across contexts). Writes are infrequent, so walking the shards is fine.
func (s *Store) DeletePrefix(prefix string) int {
	var removed int
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key := range sh.entries {
			if strings.HasPrefix(key, prefix) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	s.evictions.Add(int64(removed))
	return removed
}

// Clear removes all entries.
func (s *Store) Clear() {
	var removed int64
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		removed += int64(len(sh.entries))
		sh.entries = make(map[string]entry)
		sh.mu.Unlock()
	}
	s.evictions.Add(removed)
}

// Len returns the current number of entries, expired or not.
func (s *Store) Len() int {
	var n int
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// GetStats returns a counter snapshot.
func (s *Store) GetStats() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Keys:      int64(s.Len()),
	}
}

// sweepLoop periodically removes expired entries.
func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep removes all expired entries.
func (s *Store) sweep() {
	now := time.Now()
	var removed int64
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, e := range sh.entries {
			if now.After(e.expiresAt) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	s.evictions.Add(removed)
}
