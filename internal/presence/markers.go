// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package presence

import (
	"sync"

	"github.com/tomtom215/waymark/internal/models"
)

// MarkerSet is the rendered-marker collection owned by one consumer. All
// mutation goes through Apply so the set can only ever reflect commands that
// came out of a reconcile pass; it is never a source of truth for the next
// diff, which always uses the freshly fetched snapshot.
type MarkerSet struct {
	mu      sync.RWMutex
	markers map[string]models.LivePosition
}

// NewMarkerSet returns an empty marker set.
func NewMarkerSet() *MarkerSet {
	return &MarkerSet{markers: make(map[string]models.LivePosition)}
}

// Apply mutates the set per the given commands. Unknown users in move
// commands are upserted rather than dropped: a move observed without its
// preceding create still converges to the correct state.
func (s *MarkerSet) Apply(commands []Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cmd := range commands {
		switch cmd.Op {
		case OpCreate, OpMove:
			s.markers[cmd.UserID] = models.LivePosition{
				UserID:      cmd.UserID,
				DisplayName: cmd.DisplayName,
				Latitude:    cmd.Latitude,
				Longitude:   cmd.Longitude,
			}
		case OpRemove:
			delete(s.markers, cmd.UserID)
		}
	}
}

// Snapshot returns a copy of the current marker positions keyed by user id.
func (s *MarkerSet) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(s.markers))
	for userID, pos := range s.markers {
		snap[userID] = pos
	}
	return snap
}

// Len returns the number of rendered markers.
func (s *MarkerSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}
