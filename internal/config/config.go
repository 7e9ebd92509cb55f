// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables
// and config files.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Presence PresenceConfig `koanf:"presence"`
	Feed     FeedConfig     `koanf:"feed"`
	API      APIConfig      `koanf:"api"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DatabaseConfig holds DuckDB configuration.
type DatabaseConfig struct {
	// Path is the DuckDB database file location. ":memory:" is supported for tests.
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory limit, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`

	// Environment toggles production-only checks: development or production.
	Environment string `koanf:"environment"`
}

// PresenceConfig holds settings for the presence synchronization pipeline.
type PresenceConfig struct {
	// SampleInterval is the minimum interval between accepted position
	// samples. The device may report faster; samples inside the window
	// are dropped before they reach the publisher.
	SampleInterval time.Duration `koanf:"sample_interval"`

	// FallbackPollInterval is the tracker's safety-net resync interval,
	// used to mask missed change-feed notifications and as the only
	// trigger when the feed subscription cannot be established.
	FallbackPollInterval time.Duration `koanf:"fallback_poll_interval"`

	// StaleThreshold is how old a presence row's updated_at may be before
	// consumers stop displaying it. Rows are never expired server-side; a
	// crashed client that never retracted simply goes stale. Default is
	// three sample intervals.
	StaleThreshold time.Duration `koanf:"stale_threshold"`

	// FetchRetryAttempts bounds retries of a failed full fetch before the
	// tracker gives up until the next trigger.
	FetchRetryAttempts int `koanf:"fetch_retry_attempts"`

	// FetchRetryDelay is the initial backoff between fetch retries
	// (doubled per attempt).
	FetchRetryDelay time.Duration `koanf:"fetch_retry_delay"`
}

// FeedConfig holds change-notification transport settings.
//
// When NATS is enabled the feed runs over NATS JetStream (embedded server by
// default); otherwise an in-process Watermill pub/sub carries notifications to
// subscribers inside the same binary.
type FeedConfig struct {
	NATSEnabled    bool          `koanf:"nats_enabled"`
	NATSURL        string        `koanf:"nats_url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxMemory      int64         `koanf:"max_memory"`
	MaxStore       int64         `koanf:"max_store"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
	MaxReconnects  int           `koanf:"max_reconnects"`
}

// APIConfig holds API pagination and response limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	// AuthMode selects the authentication scheme: jwt, basic, or none.
	AuthMode string `koanf:"auth_mode"`

	// JWTSecret signs session tokens; required when AuthMode is jwt.
	// Minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	SessionTimeout time.Duration `koanf:"session_timeout"`

	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment != "production"
}

// ListenAddr returns the host:port address for the HTTP server.
func (c *Config) ListenAddr() string {
	return formatAddr(c.Server.Host, c.Server.Port)
}
