// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/waymark/internal/auth"
	"github.com/tomtom215/waymark/internal/config"
	"github.com/tomtom215/waymark/internal/database"
	"github.com/tomtom215/waymark/internal/logging"
	ws "github.com/tomtom215/waymark/internal/websocket"
)

// FeedStatus reports whether the change feed transport is up. Satisfied by
// feed.EmbeddedServer; nil when the in-process bus is used.
type FeedStatus interface {
	IsRunning() bool
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, WebSocket upgrade
//   - handlers_auth.go: login endpoint
//   - handlers_health.go: health and probe endpoints
//   - handlers_locations.go: community location CRUD and moderation
//   - handlers_presence.go: live presence publish/retract/list
type Handler struct {
	db         *database.DB
	config     *config.Config
	jwtManager *auth.JWTManager
	basicAuth  *auth.BasicAuthManager
	wsHub      *ws.Hub
	feed       FeedStatus
	startTime  time.Time
}

// NewHandler creates an API handler. jwtManager, basicAuth, wsHub, and feed
// may be nil depending on configuration; the affected endpoints then respond
// with a service error instead of panicking.
func NewHandler(db *database.DB, cfg *config.Config, jwtManager *auth.JWTManager, basicAuth *auth.BasicAuthManager, wsHub *ws.Hub, feed FeedStatus) *Handler {
	return &Handler{
		db:         db,
		config:     cfg,
		jwtManager: jwtManager,
		basicAuth:  basicAuth,
		wsHub:      wsHub,
		feed:       feed,
		startTime:  time.Now(),
	}
}

// upgrader is shared across WebSocket upgrades. Origin checking is delegated
// to the CORS layer; same-origin browser clients always pass.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocket upgrades the connection and registers the client with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("websocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}
