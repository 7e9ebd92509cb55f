// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/waymark/internal/auth"
	"github.com/tomtom215/waymark/internal/database"
	"github.com/tomtom215/waymark/internal/models"
)

// Locations lists community locations. Non-admin callers always see the
// approved set; admins may filter by any status or list everything.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	claims, _ := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		status = models.StatusApproved
	}

	if status != "" && status != models.StatusPending && status != models.StatusApproved && status != models.StatusDenied {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown status filter", nil)
		return
	}

	limit := getIntParam(r, "limit", h.config.API.DefaultPageSize)
	if limit < 1 || limit > h.config.API.MaxPageSize {
		limit = h.config.API.DefaultPageSize
	}
	offset := getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	locations, err := h.db.ListLocations(r.Context(), status, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list locations", err)
		return
	}
	total, err := h.db.CountLocations(r.Context(), status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count locations", err)
		return
	}

	respondSuccess(w, http.StatusOK, models.LocationListResponse{
		Total:     total,
		Locations: locations,
	})
}

// Location returns one location. Submissions that are not approved are
// visible only to admins and their creator; everyone else gets NOT_FOUND so
// pending IDs cannot be probed.
func (h *Handler) Location(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	loc, err := h.db.GetLocation(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Location not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to get location", err)
		return
	}

	if loc.Status != models.StatusApproved {
		claims, _ := auth.ClaimsFromContext(r.Context())
		if claims == nil || (claims.Role != models.RoleAdmin && claims.UserID != loc.CreatedBy) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Location not found", nil)
			return
		}
	}

	respondSuccess(w, http.StatusOK, loc)
}

// CreateLocation accepts a new submission. Coordinates are validated before
// the store is touched and the status always starts as pending.
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Authentication required", nil)
		return
	}

	var req models.CreateLocationRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	loc := &models.Location{
		Name:        req.Name,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		CreatedBy:   claims.UserID,
	}
	if err := h.db.CreateLocation(r.Context(), loc); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create location", err)
		return
	}

	respondSuccess(w, http.StatusCreated, loc)
}

// UpdateLocationStatus moves a submission through moderation. Admin only,
// enforced by the router.
func (h *Handler) UpdateLocationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.UpdateLocationStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.db.UpdateLocationStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Location not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update location status", err)
		return
	}

	loc, err := h.db.GetLocation(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to reload location", err)
		return
	}

	respondSuccess(w, http.StatusOK, loc)
}

// DeleteLocation removes a submission. Admin only, enforced by the router.
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.db.DeleteLocation(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Location not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete location", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"id": id})
}
