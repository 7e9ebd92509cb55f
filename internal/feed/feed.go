// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

// Package feed carries store change notifications to every connected
// consumer. The transport is Watermill over NATS JetStream (with an embedded
// server by default) or an in-process channel Pub/Sub when NATS is disabled.
//
// Delivery is at-least-once and coalescing under load is expected: a
// notification is a cue to re-fetch the authoritative set, never a delta to
// apply. Consumers that miss a notification are healed by the tracker's
// fallback poll.
package feed

import (
	"context"

	"github.com/tomtom215/waymark/internal/database"
)

// Topic is the single subject carrying all change events. The event type
// travels in the payload, so one durable stream serves every consumer.
const Topic = "waymark_changes"

// Bus is the change notification transport. Publish never blocks on slow
// consumers; Subscribe returns a channel closed when ctx is canceled.
type Bus interface {
	Publish(ctx context.Context, event database.ChangeEvent) error
	Subscribe(ctx context.Context) (<-chan database.ChangeEvent, error)
	Close() error
}

// Hook adapts a Bus to the store's change hook. Publish failures are logged
// by the bus and never fail the mutation that triggered them.
func Hook(bus Bus) database.ChangeHook {
	return func(event database.ChangeEvent) {
		// The hook runs on the mutation path; a bounded publish keeps store
		// writes from stalling behind a slow broker.
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		_ = bus.Publish(ctx, event)
	}
}
