// Accord - Adaptive Multi-Signal Fragrance Ranking
// Copyright 2026 Scentdex
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/scentdex/accord

package feedback

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/scentdex/accord/internal/ranking"
)

// Publisher publishes validated feedback events on the feedback topic.
type Publisher struct {
	pub message.Publisher
}

// NewPublisher wraps any Watermill publisher.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

// Publish validates, serializes, and publishes one event.
func (p *Publisher) Publish(ev ranking.FeedbackEvent) error {
	msg, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.pub.Publish(TopicFeedback, msg); err != nil {
		return fmt.Errorf("publish feedback event %s: %w", ev.EventID, err)
	}
	return nil
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error { return p.pub.Close() }

// NewGoChannel creates the default in-process pub/sub. The returned value is
// both a message.Publisher and a message.Subscriber; the same instance must
// back both sides.
func NewGoChannel(buffer int64, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: buffer,
	}, logger)
}
