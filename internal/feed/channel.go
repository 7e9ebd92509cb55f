// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package feed

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	goccyjson "github.com/goccy/go-json"

	"github.com/tomtom215/waymark/internal/database"
	"github.com/tomtom215/waymark/internal/metrics"
)

// ChannelBus is an in-process change feed used when NATS is disabled. All
// consumers live in the same binary, so a Watermill gochannel Pub/Sub gives
// the same at-least-once cue semantics without a broker.
type ChannelBus struct {
	pubsub *gochannel.GoChannel
}

// NewChannelBus creates an in-process bus. The buffer bounds how many unread
// cues a slow consumer can accumulate before publishes drop.
func NewChannelBus() *ChannelBus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, newWatermillLogger())

	return &ChannelBus{pubsub: pubsub}
}

// Publish sends one change event to all current subscribers.
func (b *ChannelBus) Publish(ctx context.Context, event database.ChangeEvent) error {
	payload, err := goccyjson.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.Type)

	err = b.pubsub.Publish(Topic, msg)
	metrics.RecordFeedPublish(event.Type, err)
	if err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe returns decoded change events until ctx is canceled.
func (b *ChannelBus) Subscribe(ctx context.Context) (<-chan database.ChangeEvent, error) {
	messages, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to change feed: %w", err)
	}

	events := make(chan database.ChangeEvent)
	go forwardEvents(ctx, messages, events)
	return events, nil
}

// Close shuts down the pub/sub and closes all subscriber channels.
func (b *ChannelBus) Close() error {
	return b.pubsub.Close()
}
