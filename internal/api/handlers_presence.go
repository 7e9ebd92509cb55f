// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/waymark/internal/auth"
	"github.com/tomtom215/waymark/internal/models"
	"github.com/tomtom215/waymark/internal/presence"
)

// Presence lists current live positions with display names joined on. Rows
// older than the configured staleness threshold are filtered out, which is
// the only expiry mechanism presence rows have.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	positions, err := h.db.ListPresence(r.Context(), h.config.Presence.StaleThreshold)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list presence", err)
		return
	}

	respondSuccess(w, http.StatusOK, models.PresenceListResponse{
		Total:     len(positions),
		Positions: positions,
	})
}

// claimsPublisher binds a publisher to the request's authenticated user, so
// the HTTP presence path shares the validation, gating, and metrics of the
// sampler-driven one. A PUT or DELETE is itself the sharing declaration.
func (h *Handler) claimsPublisher(claims *auth.Claims) *presence.Publisher {
	return presence.NewPublisher(h.db, presence.SessionFunc(func() (string, bool) {
		return claims.UserID, true
	}))
}

// PublishPresence upserts the caller's live position. Bounds are validated
// before the store is contacted; the row is keyed by the authenticated user,
// so republishing replaces the previous position in place.
func (h *Handler) PublishPresence(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Authentication required", nil)
		return
	}

	var req models.PublishPresenceRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}

	pub := h.claimsPublisher(claims)
	pub.StartSharing()
	if err := pub.Publish(r.Context(), req.Latitude, req.Longitude); err != nil {
		switch {
		case errors.Is(err, presence.ErrValidation):
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		case errors.Is(err, presence.ErrAuthenticationRequired):
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Authentication required", nil)
		default:
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to publish presence", err)
		}
		return
	}

	pos, err := h.db.GetPresence(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load published presence", err)
		return
	}

	respondSuccess(w, http.StatusOK, pos)
}

// RetractPresence removes the caller's live position. Retracting when no row
// exists is still success, so retries and duplicate stop events are harmless.
func (h *Handler) RetractPresence(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Authentication required", nil)
		return
	}

	if err := h.claimsPublisher(claims).Retract(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to retract presence", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"user_id": claims.UserID})
}
