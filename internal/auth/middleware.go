// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/waymark/internal/config"
	"github.com/tomtom215/waymark/internal/logging"
)

type contextKey string

// ClaimsContextKey is the request context key holding *Claims after
// authentication.
const ClaimsContextKey contextKey = "claims"

// Auth modes accepted by the middleware.
const (
	AuthModeNone  = "none"
	AuthModeJWT   = "jwt"
	AuthModeBasic = "basic"
)

// anonymousClaims is attached when auth_mode is none so downstream handlers
// always find claims in the context.
var anonymousClaims = &Claims{UserID: "anonymous", Username: "anonymous", Role: "admin"}

// Middleware provides authentication and rate limiting middleware.
type Middleware struct {
	jwtManager        *JWTManager
	basicAuthManager  *BasicAuthManager
	authMode          string
	rateLimiter       *RateLimiter
	rateLimitDisabled bool
	trustedProxies    map[string]bool
}

// NewMiddleware creates the authentication middleware from the security
// configuration. jwtManager and basicAuthManager may be nil when the
// corresponding auth mode is not in use.
func NewMiddleware(cfg *config.SecurityConfig, jwtManager *JWTManager, basicAuthManager *BasicAuthManager) *Middleware {
	trustedMap := make(map[string]bool)
	for _, proxy := range cfg.TrustedProxies {
		trustedMap[proxy] = true
	}

	m := &Middleware{
		jwtManager:        jwtManager,
		basicAuthManager:  basicAuthManager,
		authMode:          cfg.AuthMode,
		rateLimiter:       NewRateLimiter(cfg.RateLimitReqs, cfg.RateLimitWindow),
		rateLimitDisabled: cfg.RateLimitDisabled,
		trustedProxies:    trustedMap,
	}

	if !cfg.RateLimitDisabled {
		go m.rateLimiter.startCleanup(5 * time.Minute)
	}

	return m
}

// Authenticate enforces authentication per the configured mode and attaches
// *Claims to the request context.
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch m.authMode {
		case AuthModeNone:
			ctx := context.WithValue(r.Context(), ClaimsContextKey, anonymousClaims)
			next(w, r.WithContext(ctx))
		case AuthModeBasic:
			m.handleBasicAuth(w, r, next)
		default:
			m.handleJWTAuth(w, r, next)
		}
	}
}

func (m *Middleware) handleBasicAuth(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		m.sendBasicAuthChallenge(w, "Unauthorized: authentication required")
		return
	}

	username, err := m.basicAuthManager.ValidateCredentials(authHeader)
	if err != nil {
		logging.Warn().Err(err).Msg("Basic auth validation failed")
		m.sendBasicAuthChallenge(w, "Unauthorized: invalid credentials")
		return
	}

	// Basic auth has a single configured account, which is the operator.
	claims := &Claims{UserID: username, Username: username, Role: "admin"}
	ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
	next(w, r.WithContext(ctx))
}

func (m *Middleware) sendBasicAuthChallenge(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", m.basicAuthManager.GetWWWAuthenticateHeader())
	http.Error(w, message, http.StatusUnauthorized)
}

func (m *Middleware) handleJWTAuth(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	token, err := m.extractJWTToken(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		logging.Warn().Err(err).Msg("Token validation failed")
		http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
		return
	}

	ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
	next(w, r.WithContext(ctx))
}

// extractJWTToken reads the token from the Authorization header or, for
// browser WebSocket upgrades that cannot set headers, the "token" cookie.
func (m *Middleware) extractJWTToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		cookie, err := r.Cookie("token")
		if err != nil {
			return "", fmt.Errorf("unauthorized: missing token")
		}
		return cookie.Value, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("unauthorized: invalid authorization header")
	}

	return parts[1], nil
}

// OptionalAuthenticate attaches claims when valid credentials are presented
// but lets the request through anonymously otherwise. Used on public read
// endpoints where authenticated callers get wider visibility.
func (m *Middleware) OptionalAuthenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch m.authMode {
		case AuthModeNone:
			ctx := context.WithValue(r.Context(), ClaimsContextKey, anonymousClaims)
			next(w, r.WithContext(ctx))
		case AuthModeBasic:
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next(w, r)
				return
			}
			m.handleBasicAuth(w, r, next)
		default:
			token, err := m.extractJWTToken(r)
			if err != nil {
				next(w, r)
				return
			}
			claims, err := m.jwtManager.ValidateToken(token)
			if err != nil {
				next(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireRole enforces authentication plus a role. Admins pass any role
// check.
func (m *Middleware) RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return m.Authenticate(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "Forbidden: invalid claims", http.StatusForbidden)
			return
		}

		if claims.Role != role && claims.Role != "admin" {
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
			return
		}

		next(w, r)
	})
}

// RateLimit enforces per-client request rate limiting.
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimitDisabled {
			next(w, r)
			return
		}

		ip := m.getClientIP(r)
		if !m.rateLimiter.Allow(ip) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// getClientIP returns the client address, honoring X-Forwarded-For only when
// the direct peer is a trusted proxy.
func (m *Middleware) getClientIP(r *http.Request) string {
	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}

	if m.trustedProxies[remoteIP] {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			parts := strings.Split(forwarded, ",")
			return strings.TrimSpace(parts[0])
		}
	}

	return remoteIP
}

// ClaimsFromContext extracts authenticated claims from a request context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok
}
