// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package presence

import "errors"

// Sentinel errors for the presence pipeline. Callers branch with errors.Is;
// wrapped errors carry the underlying cause.
var (
	// ErrPermissionDenied means the position source refused access. Fatal to
	// the current sharing attempt; the user must opt in again.
	ErrPermissionDenied = errors.New("position permission denied")

	// ErrPositionUnavailable means no fix could be obtained. Transient; safe
	// to retry on the next sampler tick.
	ErrPositionUnavailable = errors.New("position unavailable")

	// ErrValidation means coordinates were out of bounds. Never retried.
	ErrValidation = errors.New("invalid coordinates")

	// ErrAuthenticationRequired means no authenticated session was available
	// at publish time.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrFetch means a presence snapshot fetch failed. Retried with backoff.
	ErrFetch = errors.New("presence fetch failed")

	// ErrSubscribe means the change feed subscription could not be
	// established. The tracker degrades to polling.
	ErrSubscribe = errors.New("presence feed subscription failed")
)
