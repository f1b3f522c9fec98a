// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"fmt"
	"math"
	"sort"

	"github.com/goccy/go-json"
)

// WeightVector maps source name to weight. Invariant: weights are
// non-negative and sum to 1.0 after Normalize. Treat instances as immutable
// once published; mutate only copies obtained via Clone.
type WeightVector struct {
	weights map[string]float64
}

// NewWeightVector builds a normalized WeightVector from the given weights.
// Negative weights are clamped to zero before normalization.
func NewWeightVector(weights map[string]float64) WeightVector {
	w := WeightVector{weights: make(map[string]float64, len(weights))}
	for name, v := range weights {
		if v < 0 {
			v = 0
		}
		w.weights[name] = v
	}
	return w.Normalize()
}

// EqualWeights returns a WeightVector assigning identical weight to each of
// the given sources.
func EqualWeights(sources []string) WeightVector {
	m := make(map[string]float64, len(sources))
	for _, s := range sources {
		m[s] = 1
	}
	return NewWeightVector(m)
}

// Get returns the weight for a source, or zero if the source is unknown.
func (w WeightVector) Get(source string) float64 {
	return w.weights[source]
}

// Len returns the number of sources in the vector.
func (w WeightVector) Len() int { return len(w.weights) }

// Sources returns the source names in lexicographic order.
func (w WeightVector) Sources() []string {
	names := make([]string, 0, len(w.weights))
	for name := range w.weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize returns a copy with weights scaled to sum to 1.0. A zero-sum
// vector normalizes to equal weights.
func (w WeightVector) Normalize() WeightVector {
	out := WeightVector{weights: make(map[string]float64, len(w.weights))}

	var sum float64
	for _, v := range w.weights {
		sum += v
	}

	if sum == 0 {
		if len(w.weights) == 0 {
			return out
		}
		equal := 1.0 / float64(len(w.weights))
		for name := range w.weights {
			out.weights[name] = equal
		}
		return out
	}

	for name, v := range w.weights {
		out.weights[name] = v / sum
	}
	return out
}

// WithFloor returns a copy where every source holds at least floor weight,
// renormalized. This keeps under-rewarded sources measurable instead of
// starving them to zero.
func (w WeightVector) WithFloor(floor float64) WeightVector {
	if floor <= 0 || len(w.weights) == 0 {
		return w.Normalize()
	}

	out := WeightVector{weights: make(map[string]float64, len(w.weights))}
	for name, v := range w.weights {
		out.weights[name] = math.Max(v, floor)
	}
	return out.Normalize()
}

// Clone returns a deep copy safe to mutate.
func (w WeightVector) Clone() WeightVector {
	out := WeightVector{weights: make(map[string]float64, len(w.weights))}
	for name, v := range w.weights {
		out.weights[name] = v
	}
	return out
}

// ToMap returns the weights as a plain map in a fresh allocation.
func (w WeightVector) ToMap() map[string]float64 {
	out := make(map[string]float64, len(w.weights))
	for name, v := range w.weights {
		out[name] = v
	}
	return out
}

// MarshalJSON encodes the vector as a plain source->weight object.
func (w WeightVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.weights)
}

// UnmarshalJSON decodes and renormalizes a source->weight object.
func (w *WeightVector) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*w = NewWeightVector(m)
	return nil
}

// Validate checks the sum-to-one invariant within tolerance.
func (w WeightVector) Validate() error {
	var sum float64
	for name, v := range w.weights {
		if v < 0 {
			return fmt.Errorf("weight for %q is negative: %f", name, v)
		}
		sum += v
	}
	if len(w.weights) > 0 && math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("weights sum to %f, want 1.0", sum)
	}
	return nil
}
