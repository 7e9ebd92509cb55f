// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

// Package presence implements the live-position synchronization pipeline:
// sampling the device position at a bounded rate, publishing it to the
// single-row-per-user store, and reconciling the authoritative presence set
// into minimal marker commands fanned out to connected map clients.
package presence

import (
	"sort"

	"github.com/tomtom215/waymark/internal/models"
)

// Snapshot maps user_id to that user's current live position. It is the unit
// the reconciler diffs; the store's row set is the only source of truth and a
// snapshot is always rebuilt from a full fetch, never patched incrementally.
type Snapshot map[string]models.LivePosition

// MakeSnapshot indexes a fetched position list by user id. Positions for
// excludeUserID are dropped, which keeps the local user's own marker out of
// the "other users" view.
func MakeSnapshot(positions []models.LivePosition, excludeUserID string) Snapshot {
	snap := make(Snapshot, len(positions))
	for _, pos := range positions {
		if excludeUserID != "" && pos.UserID == excludeUserID {
			continue
		}
		snap[pos.UserID] = pos
	}
	return snap
}

// Marker command operations.
const (
	OpCreate = "create"
	OpMove   = "move"
	OpRemove = "remove"
)

// Command is one marker mutation produced by reconciliation. Remove commands
// carry only the user id.
type Command struct {
	Op          string  `json:"op"`
	UserID      string  `json:"user_id"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Reconcile diffs two snapshots into marker commands: create for users only
// in current, move for users in both whose position changed, remove for users
// only in previous. It is pure and idempotent; reconciling identical
// snapshots yields nil. Commands are ordered by user id so equal inputs
// always produce equal output.
func Reconcile(previous, current Snapshot) []Command {
	var commands []Command

	for userID, pos := range current {
		prev, existed := previous[userID]
		if !existed {
			commands = append(commands, Command{
				Op:          OpCreate,
				UserID:      userID,
				Latitude:    pos.Latitude,
				Longitude:   pos.Longitude,
				DisplayName: pos.DisplayName,
			})
			continue
		}
		if prev.Latitude != pos.Latitude || prev.Longitude != pos.Longitude {
			commands = append(commands, Command{
				Op:          OpMove,
				UserID:      userID,
				Latitude:    pos.Latitude,
				Longitude:   pos.Longitude,
				DisplayName: pos.DisplayName,
			})
		}
	}

	for userID := range previous {
		if _, exists := current[userID]; !exists {
			commands = append(commands, Command{Op: OpRemove, UserID: userID})
		}
	}

	sort.Slice(commands, func(i, j int) bool {
		return commands[i].UserID < commands[j].UserID
	})

	return commands
}

// CountOps tallies commands by operation, in create, move, remove order.
func CountOps(commands []Command) (creates, moves, removes int) {
	for _, cmd := range commands {
		switch cmd.Op {
		case OpCreate:
			creates++
		case OpMove:
			moves++
		case OpRemove:
			removes++
		}
	}
	return creates, moves, removes
}
