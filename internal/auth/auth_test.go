// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package auth

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/waymark/internal/config"
	"github.com/tomtom215/waymark/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestJWTManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      testSecret,
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJWTManager() error: %v", err)
	}
	return m
}

func TestJWTManagerRequiresSecret(t *testing.T) {
	_, err := NewJWTManager(&config.SecurityConfig{})
	if err == nil {
		t.Fatal("NewJWTManager() with empty secret should fail")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	m := newTestJWTManager(t)

	token, err := m.GenerateToken("u-123", "alice", "user")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if claims.UserID != "u-123" || claims.Username != "alice" || claims.Role != "user" {
		t.Errorf("claims = %+v, want u-123/alice/user", claims)
	}
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	m := newTestJWTManager(t)

	token, err := m.GenerateToken("u-123", "alice", "user")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	tampered := token[:len(token)-4] + "XXXX"
	if _, err := m.ValidateToken(tampered); err == nil {
		t.Error("ValidateToken() accepted tampered token")
	}
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	m, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      testSecret,
		SessionTimeout: -time.Minute,
	})
	if err != nil {
		t.Fatalf("NewJWTManager() error: %v", err)
	}

	token, err := m.GenerateToken("u-123", "alice", "user")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted expired token")
	}
}

func TestBasicAuthValidation(t *testing.T) {
	m, err := NewBasicAuthManager("admin", "correct-horse")
	if err != nil {
		t.Fatalf("NewBasicAuthManager() error: %v", err)
	}

	header := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:correct-horse"))
	username, err := m.ValidateCredentials(header)
	if err != nil {
		t.Fatalf("ValidateCredentials() error: %v", err)
	}
	if username != "admin" {
		t.Errorf("username = %q, want admin", username)
	}

	bad := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:wrong"))
	if _, err := m.ValidateCredentials(bad); err == nil {
		t.Error("ValidateCredentials() accepted wrong password")
	}
	if _, err := m.ValidateCredentials("Bearer xyz"); err == nil {
		t.Error("ValidateCredentials() accepted non-Basic header")
	}
}

func TestBasicAuthRejectsShortPassword(t *testing.T) {
	if _, err := NewBasicAuthManager("admin", "short"); err == nil {
		t.Error("NewBasicAuthManager() accepted password under 8 characters")
	}
}

func newTestMiddleware(t *testing.T, authMode string) *Middleware {
	t.Helper()
	cfg := &config.SecurityConfig{
		AuthMode:          authMode,
		JWTSecret:         testSecret,
		SessionTimeout:    time.Hour,
		RateLimitDisabled: true,
	}

	var jwtManager *JWTManager
	var basicManager *BasicAuthManager
	var err error
	if authMode == AuthModeJWT {
		jwtManager, err = NewJWTManager(cfg)
		if err != nil {
			t.Fatalf("NewJWTManager() error: %v", err)
		}
	}
	if authMode == AuthModeBasic {
		basicManager, err = NewBasicAuthManager("admin", "correct-horse")
		if err != nil {
			t.Fatalf("NewBasicAuthManager() error: %v", err)
		}
	}

	return NewMiddleware(cfg, jwtManager, basicManager)
}

func TestAuthenticateNoneAttachesAnonymousClaims(t *testing.T) {
	m := newTestMiddleware(t, AuthModeNone)

	var gotClaims *Claims
	handler := m.Authenticate(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = ClaimsFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/presence", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotClaims == nil || gotClaims.UserID != "anonymous" {
		t.Errorf("claims = %+v, want anonymous", gotClaims)
	}
}

func TestAuthenticateJWT(t *testing.T) {
	m := newTestMiddleware(t, AuthModeJWT)
	token, err := m.jwtManager.GenerateToken("u-9", "bob", "user")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
	}{
		{
			name:       "missing token",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+token)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "token cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "token", Value: token})
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "malformed header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Token "+token)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "garbage token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer not-a-jwt")
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := m.Authenticate(func(w http.ResponseWriter, r *http.Request) {
				claims, ok := ClaimsFromContext(r.Context())
				if !ok || claims.UserID != "u-9" {
					t.Errorf("claims = %+v, want u-9", claims)
				}
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/presence", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestOptionalAuthenticateJWT(t *testing.T) {
	m := newTestMiddleware(t, AuthModeJWT)
	token, err := m.jwtManager.GenerateToken("u-4", "carol", "user")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantUserID string
	}{
		{
			name:       "no credentials passes through anonymously",
			setup:      func(r *http.Request) {},
			wantUserID: "",
		},
		{
			name: "valid token attaches claims",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+token)
			},
			wantUserID: "u-4",
		},
		{
			name: "invalid token passes through anonymously",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer not-a-jwt")
			},
			wantUserID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotClaims *Claims
			handler := m.OptionalAuthenticate(func(w http.ResponseWriter, r *http.Request) {
				gotClaims, _ = ClaimsFromContext(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if tt.wantUserID == "" {
				if gotClaims != nil {
					t.Errorf("claims = %+v, want none", gotClaims)
				}
			} else if gotClaims == nil || gotClaims.UserID != tt.wantUserID {
				t.Errorf("claims = %+v, want %s", gotClaims, tt.wantUserID)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	m := newTestMiddleware(t, AuthModeJWT)

	tests := []struct {
		name       string
		role       string
		required   string
		wantStatus int
	}{
		{"user accessing user route", "user", "user", http.StatusOK},
		{"admin accessing user route", "admin", "user", http.StatusOK},
		{"user accessing admin route", "user", "admin", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := m.jwtManager.GenerateToken("u-1", "x", tt.role)
			if err != nil {
				t.Fatalf("GenerateToken() error: %v", err)
			}

			handler := m.RequireRole(tt.required, func(w http.ResponseWriter, r *http.Request) {})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRateLimiterAllowAndExhaust(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("request over burst allowed, want denied")
	}
	// Separate clients have separate buckets.
	if !rl.Allow("10.0.0.2") {
		t.Error("fresh client denied")
	}
}

func TestGetClientIPTrustedProxy(t *testing.T) {
	cfg := &config.SecurityConfig{
		AuthMode:          AuthModeNone,
		RateLimitDisabled: true,
		TrustedProxies:    []string{"10.0.0.5"},
	}
	m := NewMiddleware(cfg, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4312"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")
	if ip := m.getClientIP(req); ip != "203.0.113.7" {
		t.Errorf("getClientIP() = %q, want forwarded address", ip)
	}

	// Untrusted peers cannot spoof via the header.
	req.RemoteAddr = "198.51.100.9:4312"
	if ip := m.getClientIP(req); ip != "198.51.100.9" {
		t.Errorf("getClientIP() = %q, want peer address", ip)
	}
}
