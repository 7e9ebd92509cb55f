// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package models

import (
	"time"
)

// LivePosition is one user's most recent shared position. The store keeps at
// most one row per user; publishing while a row exists replaces it in place.
type LivePosition struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PublishPresenceRequest is the payload for PUT /api/v1/presence.
type PublishPresenceRequest struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// PresenceListResponse wraps the full set of current live positions.
type PresenceListResponse struct {
	Total     int            `json:"total"`
	Positions []LivePosition `json:"positions"`
}

// User roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Profile holds per-user display information joined onto live positions and
// location submissions.
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}
