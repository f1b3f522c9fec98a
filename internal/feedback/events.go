// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package feedback

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/scentdex/accord/internal/ranking"
)

// TopicFeedback is the topic all feedback events are published on.
const TopicFeedback = "feedback.events"

// metadata keys set on every published message.
const (
	metaEventKind = "event_kind"
	metaUserID    = "user_id"
)

// Encode validates and serializes an event into a Watermill message. The
// message UUID is the event ID so transport-level deduplication lines up
// with event identity.
func Encode(ev ranking.FeedbackEvent) (*message.Message, error) {
	if err := Validate(ev); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal feedback event: %w", err)
	}
	msg := message.NewMessage(ev.EventID, payload)
	msg.Metadata.Set(metaEventKind, ev.Kind.String())
	msg.Metadata.Set(metaUserID, ev.UserID)
	return msg, nil
}

// Decode deserializes and validates a feedback event from a message.
func Decode(msg *message.Message) (ranking.FeedbackEvent, error) {
	var ev ranking.FeedbackEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal feedback event: %w", err)
	}
	if err := Validate(ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// Validate checks the invariants every event must satisfy before it reaches
// a consumer.
func Validate(ev ranking.FeedbackEvent) error {
	if ev.EventID == "" {
		return fmt.Errorf("feedback event: missing event_id")
	}
	if ev.CandidateID == "" {
		return fmt.Errorf("feedback event %s: missing candidate_id", ev.EventID)
	}
	if !ev.Kind.Valid() {
		return fmt.Errorf("feedback event %s: unknown kind %q", ev.EventID, ev.Kind)
	}
	if ev.Reward < 0 || ev.Reward > 1 {
		return fmt.Errorf("feedback event %s: reward %v outside [0,1]", ev.EventID, ev.Reward)
	}
	return nil
}

// NewEvent builds a feedback event with a fresh ID and timestamp.
func NewEvent(candidateID, userID, bucket string, sources []string, kind ranking.FeedbackKind, reward float64) ranking.FeedbackEvent {
	return ranking.FeedbackEvent{
		EventID:     uuid.New().String(),
		CandidateID: candidateID,
		UserID:      userID,
		Bucket:      bucket,
		Sources:     sources,
		Kind:        kind,
		Reward:      reward,
		Timestamp:   time.Now().UTC(),
	}
}
