// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/waymark/internal/auth"
	"github.com/tomtom215/waymark/internal/logging"
	"github.com/tomtom215/waymark/internal/models"
)

// Login authenticates the configured operator account and issues a JWT. The
// token is returned in the body and set as an HTTP-only cookie so the
// WebSocket upgrade can authenticate without an Authorization header.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if h.config.Security.AuthMode != auth.AuthModeJWT {
		respondError(w, http.StatusForbidden, "AUTH_DISABLED", "Authentication is disabled", nil)
		return
	}
	if h.jwtManager == nil {
		respondError(w, http.StatusInternalServerError, "AUTH_NOT_CONFIGURED", "JWT manager not initialized", nil)
		return
	}

	if !h.authenticateCredentials(&req) {
		logging.Warn().Str("username", sanitizeLogValue(req.Username)).Msg("failed login attempt")
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
		return
	}

	userID := fmt.Sprintf("%s-001", req.Username)
	token, err := h.jwtManager.GenerateToken(userID, req.Username, models.RoleAdmin)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "Failed to generate authentication token", err)
		return
	}

	if err := h.db.UpsertProfile(r.Context(), &models.Profile{
		UserID:      userID,
		DisplayName: req.Username,
		Role:        models.RoleAdmin,
	}); err != nil {
		logging.Warn().Err(err).Msg("failed to upsert operator profile")
	}

	expiresAt := time.Now().Add(h.config.Security.SessionTimeout)
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondSuccess(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Role:      models.RoleAdmin,
	})
}

// authenticateCredentials verifies the operator username and password. The
// bcrypt manager is preferred; plain config comparison is the fallback when
// basic auth was never configured.
func (h *Handler) authenticateCredentials(req *models.LoginRequest) bool {
	if h.basicAuth != nil {
		return h.basicAuth.ValidatePassword(req.Username, req.Password)
	}
	return req.Username == h.config.Security.AdminUsername &&
		req.Password == h.config.Security.AdminPassword
}
