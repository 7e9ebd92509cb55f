// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package websocket

import (
	"context"
	"fmt"

	"github.com/tomtom215/waymark/internal/database"
	"github.com/tomtom215/waymark/internal/logging"
)

// ChangeSource delivers change events from the feed. It is satisfied by
// feed.NATSBus and feed.ChannelBus.
type ChangeSource interface {
	Subscribe(ctx context.Context) (<-chan database.ChangeEvent, error)
}

// FeedBridge forwards feed change events to the WebSocket hub so browsers
// learn about community location changes without polling.
//
// Presence events are not forwarded: connected clients receive marker
// commands from the presence tracker instead, which already reconciles on
// every presence cue.
type FeedBridge struct {
	hub    *Hub
	source ChangeSource
}

// NewFeedBridge creates a bridge from the given change source to the hub.
func NewFeedBridge(hub *Hub, source ChangeSource) *FeedBridge {
	return &FeedBridge{hub: hub, source: source}
}

// Serve subscribes to the feed and forwards events until ctx is canceled.
// It implements suture.Service.
func (b *FeedBridge) Serve(ctx context.Context) error {
	events, err := b.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to change feed: %w", err)
	}

	logging.Info().Msg("feed to websocket bridge started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			if event.Type == database.EventPresenceChanged {
				continue
			}
			b.hub.BroadcastChange(event)
		}
	}
}

// String identifies the bridge in supervisor logs.
func (b *FeedBridge) String() string {
	return "websocket-feed-bridge"
}
