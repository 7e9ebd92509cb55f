// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

// Package api provides the HTTP surface: Chi routing, middleware wiring, and
// request handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/waymark/internal/auth"
	"github.com/tomtom215/waymark/internal/middleware"
	"github.com/tomtom215/waymark/internal/models"
)

// Router wires handlers, authentication, and the Chi middleware stack.
type Router struct {
	handler       *Handler
	authMW        *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, authMW *auth.Middleware, chiMW *ChiMiddleware) *Router {
	return &Router{
		handler:       handler,
		authMW:        authMW,
		chiMiddleware: chiMW,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global stack, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(router.chiMiddleware.CORS())

	// Health probes: permissive rate limit so monitors can poll freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	// Login gets the strictest rate limit.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", router.handler.Login)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		// Public reads. Claims are optional: anonymous callers see the
		// approved location set, authenticated creators also see their own
		// pending submissions.
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware(router.authMW.OptionalAuthenticate))
			r.Get("/locations", router.handler.Locations)
			r.Get("/locations/{id}", router.handler.Location)
			r.Get("/presence", router.handler.Presence)
		})

		// Authenticated operations.
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware(router.authMW.Authenticate))
			r.Get("/ws", router.handler.WebSocket)
			r.With(router.chiMiddleware.RateLimitWrite()).Post("/locations", router.handler.CreateLocation)
			r.With(router.chiMiddleware.RateLimitWrite()).Put("/presence", router.handler.PublishPresence)
			r.Delete("/presence", router.handler.RetractPresence)
		})

		// Moderation, admin only.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitWrite())
			r.Patch("/locations/{id}/status", router.authMW.RequireRole(models.RoleAdmin, router.handler.UpdateLocationStatus))
			r.Delete("/locations/{id}", router.authMW.RequireRole(models.RoleAdmin, router.handler.DeleteLocation))
		})
	})

	// Observability.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
