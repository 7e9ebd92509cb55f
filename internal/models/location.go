// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package models

import (
	"time"
)

// Moderation states for community-submitted map locations. Submissions start
// as pending and only approved locations are visible to non-admin users.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// Location is a community-submitted point of interest on the shared map.
// Every submission passes through moderation before it appears for regular
// users; admins see all statuses.
type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateLocationRequest is the payload for POST /api/v1/locations.
// Name and coordinate bounds mirror the database constraints so invalid
// submissions are rejected before touching storage.
type CreateLocationRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description string  `json:"description" validate:"max=500"`
	Latitude    float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude   float64 `json:"longitude" validate:"min=-180,max=180"`
}

// UpdateLocationStatusRequest is the payload for PATCH
// /api/v1/locations/{id}/status. Admin only.
type UpdateLocationStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved denied"`
}

// LocationListResponse wraps a page of locations.
type LocationListResponse struct {
	Total     int        `json:"total"`
	Locations []Location `json:"locations"`
}
