// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package learner

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/scentdex/accord/internal/ranking"
)

var (
	weightsPrefix = []byte("weights:")
	profilePrefix = []byte("profile:")
)

// Store persists learned weight vectors and preference profiles in Badger so
// learning survives restarts. All values are JSON-encoded.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

// OpenStore opens (or creates) the store at path. An empty path opens an
// in-memory store, used in tests and when persistence is disabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenStore(path string, logger zerolog.Logger) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	// Badger's own logger is noisy at INFO; zerolog carries our logs.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open learner store: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "learner-store").Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveWeights persists one bucket's weight vector.
func (s *Store) SaveWeights(bucket string, w ranking.WeightVector) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(weightsPrefix, bucket...), data)
	})
}

// SaveAllWeights persists a full weight snapshot.
func (s *Store) SaveAllWeights(weights map[string]ranking.WeightVector) error {
	for bucket, w := range weights {
		if err := s.SaveWeights(bucket, w); err != nil {
			return err
		}
	}
	return nil
}

// LoadWeights returns all persisted weight vectors keyed by bucket.
func (s *Store) LoadWeights() (map[string]ranking.WeightVector, error) {
	out := make(map[string]ranking.WeightVector)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(weightsPrefix); it.ValidForPrefix(weightsPrefix); it.Next() {
			item := it.Item()
			bucket := string(item.Key()[len(weightsPrefix):])
			err := item.Value(func(val []byte) error {
				var w ranking.WeightVector
				if err := json.Unmarshal(val, &w); err != nil {
					return fmt.Errorf("unmarshal weights for %q: %w", bucket, err)
				}
				out[bucket] = w
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveProfile persists one preference profile.
func (s *Store) SaveProfile(p *ranking.UserPreferenceProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(profilePrefix, p.UserID...), data)
	})
}

// DeleteProfile removes a persisted profile (user-data erasure).
func (s *Store) DeleteProfile(userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(append(profilePrefix, userID...))
	})
}

// LoadProfiles returns all persisted profiles.
func (s *Store) LoadProfiles() ([]*ranking.UserPreferenceProfile, error) {
	var out []*ranking.UserPreferenceProfile
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(profilePrefix); it.ValidForPrefix(profilePrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var p ranking.UserPreferenceProfile
				if err := json.Unmarshal(val, &p); err != nil {
					return fmt.Errorf("unmarshal profile: %w", err)
				}
				out = append(out, &p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
