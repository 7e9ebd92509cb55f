// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists locations searched for a config file, in order.
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config/config.yaml",
	"/etc/waymark/config.yaml",
	"/config/config.yaml",
}

// defaultConfig returns the built-in defaults applied before any file or
// environment overrides.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/waymark.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Server: ServerConfig{
			Port:        8320,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "production",
		},
		Presence: PresenceConfig{
			SampleInterval:       5 * time.Second,
			FallbackPollInterval: 30 * time.Second,
			StaleThreshold:       15 * time.Second,
			FetchRetryAttempts:   3,
			FetchRetryDelay:      500 * time.Millisecond,
		},
		Feed: FeedConfig{
			NATSEnabled:    true,
			NATSURL:        "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats",
			MaxMemory:      64 * 1024 * 1024,
			MaxStore:       256 * 1024 * 1024,
			ReconnectWait:  2 * time.Second,
			MaxReconnects:  10,
		},
		API: APIConfig{
			DefaultPageSize: 100,
			MaxPageSize:     1000,
		},
		Security: SecurityConfig{
			AuthMode:        "none",
			SessionTimeout:  24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// envMappings maps flat environment variable names to koanf config paths.
// Variables not listed here are ignored by the loader.
var envMappings = map[string]string{
	"DUCKDB_PATH":       "database.path",
	"DUCKDB_MAX_MEMORY": "database.max_memory",
	"DUCKDB_THREADS":    "database.threads",

	"HTTP_PORT":    "server.port",
	"HTTP_HOST":    "server.host",
	"HTTP_TIMEOUT": "server.timeout",
	"ENVIRONMENT":  "server.environment",

	"PRESENCE_SAMPLE_INTERVAL":        "presence.sample_interval",
	"PRESENCE_FALLBACK_POLL_INTERVAL": "presence.fallback_poll_interval",
	"PRESENCE_STALE_THRESHOLD":        "presence.stale_threshold",

	"NATS_ENABLED":         "feed.nats_enabled",
	"NATS_URL":             "feed.nats_url",
	"NATS_EMBEDDED_SERVER": "feed.embedded_server",
	"NATS_STORE_DIR":       "feed.store_dir",

	"AUTH_MODE":           "security.auth_mode",
	"JWT_SECRET":          "security.jwt_secret",
	"SESSION_TIMEOUT":     "security.session_timeout",
	"ADMIN_USERNAME":      "security.admin_username",
	"ADMIN_PASSWORD":      "security.admin_password",
	"RATE_LIMIT_REQS":     "security.rate_limit_reqs",
	"RATE_LIMIT_WINDOW":   "security.rate_limit_window",
	"RATE_LIMIT_DISABLED": "security.rate_limit_disabled",
	"CORS_ORIGINS":        "security.cors_origins",
	"TRUSTED_PROXIES":     "security.trusted_proxies",

	"API_DEFAULT_PAGE_SIZE": "api.default_page_size",
	"API_MAX_PAGE_SIZE":     "api.max_page_size",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",
}

// sliceFields are config paths whose env values are comma-separated lists.
var sliceFields = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// Load builds the application configuration by layering defaults, an optional
// YAML config file, and environment variable overrides, then validates the
// result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	processSliceFields(k)

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// envTransformFunc maps environment variable names to koanf paths via
// envMappings. Unmapped variables return "" and are skipped.
func envTransformFunc(s string) string {
	if path, ok := envMappings[s]; ok {
		return path
	}
	return ""
}

// processSliceFields converts comma-separated string values into slices for
// fields declared as []string. Environment variables can only carry flat
// strings, so CORS_ORIGINS="https://a.example,https://b.example" arrives as a
// single string and must be split before unmarshaling.
func processSliceFields(k *koanf.Koanf) {
	for _, path := range sliceFields {
		raw := k.Get(path)
		s, ok := raw.(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		_ = k.Set(path, out)
	}
}

// findConfigFile returns the first existing config file path, honoring
// CONFIG_PATH when set.
func findConfigFile() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func formatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
