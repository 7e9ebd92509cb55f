// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package presence

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/waymark/internal/logging"
	"github.com/tomtom215/waymark/internal/metrics"
	"github.com/tomtom215/waymark/internal/models"
)

// Store is the presence persistence surface consumed by the publisher.
// *database.DB satisfies it.
type Store interface {
	UpsertPresence(ctx context.Context, pos *models.LivePosition) error
	DeletePresence(ctx context.Context, userID string) error
}

// Session answers "who is publishing", the only identity information the
// pipeline consumes. UserID reports false when there is no authenticated
// session.
type Session interface {
	UserID() (string, bool)
}

// SessionFunc adapts a function to the Session interface.
type SessionFunc func() (string, bool)

// UserID implements Session.
func (f SessionFunc) UserID() (string, bool) { return f() }

// Publisher pushes position samples into the store and retracts them when
// sharing stops. Publishes are gated on the current sharing state, so a
// sample that arrives after Stop is dropped instead of resurrecting the
// record.
type Publisher struct {
	store   Store
	session Session

	mu      sync.Mutex
	sharing bool
}

// NewPublisher creates a publisher bound to a store and session.
func NewPublisher(store Store, session Session) *Publisher {
	return &Publisher{store: store, session: session}
}

// StartSharing moves the publisher to the sharing state.
func (p *Publisher) StartSharing() {
	p.mu.Lock()
	p.sharing = true
	p.mu.Unlock()
}

// StopSharing moves the publisher back to idle without touching the store.
// Used when sharing ends for a reason that makes retraction impossible, such
// as losing the session mid-share.
func (p *Publisher) StopSharing() {
	p.mu.Lock()
	p.sharing = false
	p.mu.Unlock()
}

// Sharing reports whether the publisher currently accepts samples.
func (p *Publisher) Sharing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sharing
}

// ValidateCoordinates checks latitude and longitude bounds.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrValidation, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrValidation, lon)
	}
	return nil
}

// Publish validates and upserts one sample. Bounds are checked before any
// store contact; an unauthenticated session fails with
// ErrAuthenticationRequired; a sample arriving while not sharing is dropped
// and reported as success.
func (p *Publisher) Publish(ctx context.Context, lat, lon float64) error {
	if err := ValidateCoordinates(lat, lon); err != nil {
		metrics.PresencePublishesTotal.WithLabelValues("invalid").Inc()
		return err
	}

	userID, ok := p.session.UserID()
	if !ok {
		metrics.PresencePublishesTotal.WithLabelValues("unauthorized").Inc()
		return ErrAuthenticationRequired
	}

	if !p.Sharing() {
		logging.Debug().Str("user_id", userID).Msg("Dropping sample received while not sharing")
		return nil
	}

	pos := &models.LivePosition{UserID: userID, Latitude: lat, Longitude: lon}
	if err := p.store.UpsertPresence(ctx, pos); err != nil {
		metrics.PresencePublishesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish presence: %w", err)
	}

	metrics.PresencePublishesTotal.WithLabelValues("ok").Inc()
	return nil
}

// Retract leaves the sharing state and deletes the caller's record. The
// store treats a missing row as success, so retracting twice is safe.
func (p *Publisher) Retract(ctx context.Context) error {
	p.mu.Lock()
	p.sharing = false
	p.mu.Unlock()

	userID, ok := p.session.UserID()
	if !ok {
		return ErrAuthenticationRequired
	}

	if err := p.store.DeletePresence(ctx, userID); err != nil {
		return fmt.Errorf("failed to retract presence: %w", err)
	}

	metrics.PresenceRetractsTotal.Inc()
	return nil
}
