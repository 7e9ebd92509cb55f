// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/waymark/internal/logging"
	"github.com/tomtom215/waymark/internal/metrics"
)

// Position is one sample from a device position source.
type Position struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// PositionSource is the device geolocation capability. Watch returns a
// channel that delivers a fix immediately and then on every position change
// until ctx is canceled. It fails with ErrPermissionDenied when access is
// refused and ErrPositionUnavailable when no fix can be obtained.
type PositionSource interface {
	Watch(ctx context.Context) (<-chan Position, error)
}

// Sampler observes a position source for as long as the user shares their
// location, throttles samples to a minimum interval, and forwards each
// accepted sample to the publisher.
type Sampler struct {
	source      PositionSource
	publisher   *Publisher
	minInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// DefaultMinInterval bounds the publish rate; the device may report position
// changes much faster than this.
const DefaultMinInterval = 5 * time.Second

// NewSampler creates a sampler. A non-positive minInterval falls back to
// DefaultMinInterval.
func NewSampler(source PositionSource, publisher *Publisher, minInterval time.Duration) *Sampler {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Sampler{
		source:      source,
		publisher:   publisher,
		minInterval: minInterval,
	}
}

// Start begins observation and moves the publisher into the sharing state.
// Starting while already started is a no-op. The returned error mirrors the
// source's: ErrPermissionDenied is fatal to this attempt, the user must opt
// in again.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	samples, err := s.source.Watch(watchCtx)
	if err != nil {
		cancel()
		return err
	}

	s.publisher.StartSharing()
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(watchCtx, samples, s.done)

	return nil
}

// Stop ceases observation and retracts the published record. Calling Stop
// when not started is a no-op.
func (s *Sampler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	return s.publisher.Retract(ctx)
}

// run forwards samples to the publisher, dropping those that arrive inside
// the minimum interval. The publisher's own sharing gate handles any sample
// still in flight when Stop wins the race.
func (s *Sampler) run(ctx context.Context, samples <-chan Position, done chan struct{}) {
	defer close(done)

	var lastPublish time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}

			if !lastPublish.IsZero() && time.Since(lastPublish) < s.minInterval {
				metrics.PresenceSamplesDropped.Inc()
				continue
			}

			err := s.publisher.Publish(ctx, sample.Latitude, sample.Longitude)
			switch {
			case err == nil:
				lastPublish = time.Now()
			case errors.Is(err, ErrAuthenticationRequired):
				// Session lost mid-share; back to idle until re-opt-in.
				logging.Warn().Msg("Session lost while sharing, stopping sampler")
				s.publisher.StopSharing()
				s.mu.Lock()
				if s.cancel != nil {
					s.cancel()
					s.cancel, s.done = nil, nil
				}
				s.mu.Unlock()
				return
			case errors.Is(err, ErrValidation):
				logging.Error().Err(err).Msg("Position source produced out-of-range coordinates")
			default:
				// Transient store failure; next sample retries.
				logging.Warn().Err(err).Msg("Failed to publish position sample")
			}
		}
	}
}
