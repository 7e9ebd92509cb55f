// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package feed

import (
	"context"
	"fmt"

	"github.com/tomtom215/waymark/internal/database"
	"github.com/tomtom215/waymark/internal/presence"
)

// PresenceCues adapts a Bus to the tracker's subscription interface,
// filtering the feed down to presence change cues.
type PresenceCues struct {
	bus Bus
}

// NewPresenceCues wraps a bus for the presence tracker.
func NewPresenceCues(bus Bus) *PresenceCues {
	return &PresenceCues{bus: bus}
}

// SubscribeChanges returns a cue channel delivering one empty signal per
// presence change event. Cues carry no payload: the tracker refetches the
// full set on each one, so dropping duplicates in transit is harmless.
func (c *PresenceCues) SubscribeChanges(ctx context.Context) (<-chan struct{}, error) {
	events, err := c.bus.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", presence.ErrSubscribe, err)
	}

	cues := make(chan struct{}, 1)
	go func() {
		defer close(cues)
		for event := range events {
			if event.Type != database.EventPresenceChanged {
				continue
			}
			select {
			case cues <- struct{}{}:
			default:
				// A pending cue already forces a refetch.
			}
		}
	}()

	return cues, nil
}
