// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package ranking

import (
	"fmt"
	"strings"
)

// Day-part boundaries for bucketing. Hours outside [0,23] fall back to the
// unknown part so malformed client input cannot explode bucket cardinality.
const (
	partMorning   = "morning"   // 05-11
	partAfternoon = "afternoon" // 12-17
	partEvening   = "evening"   // 18-22
	partNight     = "night"     // 23-04
	partUnknown   = "any"
)

// DayPart discretizes an hour into a coarse day part.
func DayPart(hour int) string {
	switch {
	case hour >= 5 && hour <= 11:
		return partMorning
	case hour >= 12 && hour <= 17:
		return partAfternoon
	case hour >= 18 && hour <= 22:
		return partEvening
	case hour == 23 || (hour >= 0 && hour <= 4):
		return partNight
	default:
		return partUnknown
	}
}

// Bucket derives the context bucket key for a request. The key scopes weight
// learning and recommendation caching: one active WeightVector exists per
// bucket. Occasion and device are lowercased; empty values collapse to "any"
// to keep cardinality bounded.
func Bucket(rc RequestContext) string {
	occasion := strings.ToLower(strings.TrimSpace(rc.Occasion))
	if occasion == "" {
		occasion = partUnknown
	}
	device := strings.ToLower(strings.TrimSpace(rc.Device))
	if device == "" {
		device = partUnknown
	}
	return fmt.Sprintf("%s|%s|%s", DayPart(rc.TimeOfDay), occasion, device)
}
