// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/waymark/internal/logging"
	"github.com/tomtom215/waymark/internal/metrics"
	"github.com/tomtom215/waymark/internal/models"
)

// Fetcher returns the full current presence set. *database.DB satisfies it.
type Fetcher interface {
	ListPresence(ctx context.Context, maxAge time.Duration) ([]models.LivePosition, error)
}

// FeedSubscriber delivers change cues. The channel carries no payload beyond
// "something changed"; each cue prompts a full refetch, never a delta apply.
type FeedSubscriber interface {
	SubscribeChanges(ctx context.Context) (<-chan struct{}, error)
}

// MarkerSink receives the commands produced by each reconcile pass.
type MarkerSink interface {
	Apply(commands []Command)
}

// TrackerConfig tunes the tracker's resynchronization behavior.
type TrackerConfig struct {
	// PollInterval is the fallback resync interval masking missed cues. It
	// is also the only trigger when the subscription cannot be established.
	PollInterval time.Duration

	// StaleThreshold filters out rows whose updated_at is older than this.
	// Zero disables filtering.
	StaleThreshold time.Duration

	// FetchRetryAttempts bounds retries of a failed fetch within one cycle.
	FetchRetryAttempts int

	// FetchRetryDelay is the initial backoff between retries, doubled per
	// attempt.
	FetchRetryDelay time.Duration

	// ExcludeUserID drops one user from the tracked set, keeping the local
	// user's own marker out of the fan-out view. Usually empty on the
	// server, where the tracker feeds all clients.
	ExcludeUserID string
}

// Tracker maintains an eventually consistent view of who is sharing their
// location. Change cues and the fallback ticker both funnel into a
// single-slot pending trigger drained by one goroutine, so reconciles never
// run concurrently with themselves and a burst of cues collapses into one
// refetch.
type Tracker struct {
	fetcher Fetcher
	feed    FeedSubscriber
	sink    MarkerSink
	cfg     TrackerConfig
	breaker *gobreaker.CircuitBreaker[[]models.LivePosition]

	trigger chan string

	previous Snapshot
}

// NewTracker creates a tracker. feed may be nil, in which case the tracker
// runs on the fallback ticker alone.
func NewTracker(fetcher Fetcher, feed FeedSubscriber, sink MarkerSink, cfg TrackerConfig) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.FetchRetryDelay <= 0 {
		cfg.FetchRetryDelay = 500 * time.Millisecond
	}

	breaker := gobreaker.NewCircuitBreaker[[]models.LivePosition](gobreaker.Settings{
		Name:    "presence-fetch",
		Timeout: cfg.PollInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Presence fetch circuit breaker state change")
		},
	})

	return &Tracker{
		fetcher:  fetcher,
		feed:     feed,
		sink:     sink,
		cfg:      cfg,
		breaker:  breaker,
		trigger:  make(chan string, 1),
		previous: make(Snapshot),
	}
}

// Trigger requests a resynchronization. Triggers are idempotent cues, so one
// already pending absorbs any number of further calls.
func (t *Tracker) Trigger(reason string) {
	select {
	case t.trigger <- reason:
	default:
	}
}

// Serve runs the tracker until ctx is canceled. Implements suture.Service.
func (t *Tracker) Serve(ctx context.Context) error {
	cues := t.subscribe(ctx)

	// Initial sync so consumers see the current set without waiting for the
	// first change.
	t.resync(ctx, "initial")

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-cues:
			if !ok {
				// Feed closed; degrade to polling until restarted.
				cues = nil
				continue
			}
			t.Trigger("feed")
		case <-ticker.C:
			t.Trigger("poll")
		case reason := <-t.trigger:
			t.resync(ctx, reason)
		}
	}
}

// String implements suture.Service naming.
func (t *Tracker) String() string {
	return "presence-tracker"
}

// subscribe establishes the change feed. Failure is not fatal: the fallback
// ticker keeps the view eventually consistent, matching the degrade-to-poll
// contract.
func (t *Tracker) subscribe(ctx context.Context) <-chan struct{} {
	if t.feed == nil {
		return nil
	}

	cues, err := t.feed.SubscribeChanges(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Presence feed unavailable, falling back to polling")
		return nil
	}
	return cues
}

// resync fetches the authoritative set and applies the diff against the
// previously reconciled snapshot. Only Serve calls it, which serializes all
// reconcile work.
func (t *Tracker) resync(ctx context.Context, reason string) {
	positions, err := t.fetchWithRetry(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn().Err(err).Str("trigger", reason).Msg("Presence resync failed, view is stale until next trigger")
		}
		return
	}

	current := MakeSnapshot(positions, t.cfg.ExcludeUserID)
	commands := Reconcile(t.previous, current)
	t.previous = current

	creates, moves, removes := CountOps(commands)
	metrics.RecordReconcile(reason, creates, moves, removes)

	if len(commands) == 0 {
		return
	}

	logging.Debug().
		Str("trigger", reason).
		Int("creates", creates).
		Int("moves", moves).
		Int("removes", removes).
		Msg("Presence reconciled")

	t.sink.Apply(commands)
}

// fetchWithRetry wraps the fetch in the circuit breaker and retries with
// exponential backoff.
func (t *Tracker) fetchWithRetry(ctx context.Context) ([]models.LivePosition, error) {
	var lastErr error

	delay := t.cfg.FetchRetryDelay
	for attempt := 0; attempt <= t.cfg.FetchRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		positions, err := t.breaker.Execute(func() ([]models.LivePosition, error) {
			return t.fetcher.ListPresence(ctx, t.cfg.StaleThreshold)
		})
		if err == nil {
			return positions, nil
		}

		lastErr = err
		metrics.PresenceFetchFailures.Inc()

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// Breaker is shedding; retrying immediately cannot succeed.
			break
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrFetch, lastErr)
}
