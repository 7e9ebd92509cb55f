// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package config

import (
	"fmt"
	"time"
)

const minJWTSecretLength = 32

// Validate checks the configuration for internal consistency. It is called by
// Load after all layers are merged, and by tests constructing configs by hand.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must not be negative, got %d", c.Database.Threads)
	}

	if err := c.validatePresence(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}

	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("api.default_page_size must be at least 1, got %d", c.API.DefaultPageSize)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size (%d) must not be less than api.default_page_size (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}

	return nil
}

func (c *Config) validatePresence() error {
	p := c.Presence
	if p.SampleInterval < time.Second {
		return fmt.Errorf("presence.sample_interval must be at least 1s, got %s", p.SampleInterval)
	}
	if p.FallbackPollInterval < p.SampleInterval {
		return fmt.Errorf("presence.fallback_poll_interval (%s) must not be shorter than presence.sample_interval (%s)",
			p.FallbackPollInterval, p.SampleInterval)
	}
	if p.StaleThreshold < p.SampleInterval {
		return fmt.Errorf("presence.stale_threshold (%s) must not be shorter than presence.sample_interval (%s)",
			p.StaleThreshold, p.SampleInterval)
	}
	if p.FetchRetryAttempts < 0 {
		return fmt.Errorf("presence.fetch_retry_attempts must not be negative, got %d", p.FetchRetryAttempts)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := c.Security
	switch s.AuthMode {
	case "none":
	case "jwt":
		if len(s.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("security.jwt_secret must be at least %d characters when auth_mode is jwt", minJWTSecretLength)
		}
		if s.AdminUsername == "" || s.AdminPassword == "" {
			return fmt.Errorf("security.admin_username and security.admin_password are required when auth_mode is jwt")
		}
		if s.SessionTimeout <= 0 {
			return fmt.Errorf("security.session_timeout must be positive, got %s", s.SessionTimeout)
		}
	case "basic":
		if s.AdminUsername == "" || s.AdminPassword == "" {
			return fmt.Errorf("security.admin_username and security.admin_password are required when auth_mode is basic")
		}
	default:
		return fmt.Errorf("security.auth_mode must be one of none, jwt, basic, got %q", s.AuthMode)
	}

	if !s.RateLimitDisabled {
		if s.RateLimitReqs < 1 {
			return fmt.Errorf("security.rate_limit_reqs must be at least 1, got %d", s.RateLimitReqs)
		}
		if s.RateLimitWindow <= 0 {
			return fmt.Errorf("security.rate_limit_window must be positive, got %s", s.RateLimitWindow)
		}
	}

	return nil
}
