// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package feed

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/waymark/internal/config"
	"github.com/tomtom215/waymark/internal/database"
	"github.com/tomtom215/waymark/internal/logging"
	"github.com/tomtom215/waymark/internal/models"
	"github.com/tomtom215/waymark/internal/presence"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func setupChannelBus(t *testing.T) *ChannelBus {
	t.Helper()

	bus := NewChannelBus()
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return bus
}

func waitForEvent(t *testing.T, events <-chan database.ChangeEvent) database.ChangeEvent {
	t.Helper()

	select {
	case event, ok := <-events:
		if !ok {
			t.Fatal("event channel closed before delivery")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return database.ChangeEvent{}
}

func TestChannelBusRoundTrip(t *testing.T) {
	bus := setupChannelBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	sent := database.ChangeEvent{
		Type:    database.EventPresenceChanged,
		Subject: "user-1",
	}
	if err := bus.Publish(ctx, sent); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	got := waitForEvent(t, events)
	if got.Type != sent.Type {
		t.Errorf("event type = %q, want %q", got.Type, sent.Type)
	}
	if got.Subject != sent.Subject {
		t.Errorf("event subject = %q, want %q", got.Subject, sent.Subject)
	}
}

func TestChannelBusMultipleSubscribers(t *testing.T) {
	bus := setupChannelBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	second, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	event := database.ChangeEvent{Type: database.EventLocationCreated, Subject: "loc-1"}
	if err := bus.Publish(ctx, event); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	for _, events := range []<-chan database.ChangeEvent{first, second} {
		got := waitForEvent(t, events)
		if got.Type != database.EventLocationCreated {
			t.Errorf("event type = %q, want %q", got.Type, database.EventLocationCreated)
		}
	}
}

func TestHookCarriesStoreChanges(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
	})
	if err != nil {
		t.Fatalf("database.New() error: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})

	bus := setupChannelBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	db.SetChangeHook(Hook(bus))

	pos := &models.LivePosition{UserID: "user-1", Latitude: 52.37, Longitude: 4.89}
	if err := db.UpsertPresence(ctx, pos); err != nil {
		t.Fatalf("UpsertPresence() error: %v", err)
	}

	got := waitForEvent(t, events)
	if got.Type != database.EventPresenceChanged {
		t.Errorf("event type = %q, want %q", got.Type, database.EventPresenceChanged)
	}
	if got.Subject != "user-1" {
		t.Errorf("event subject = %q, want %q", got.Subject, "user-1")
	}
}

func TestPresenceCuesFiltersEventTypes(t *testing.T) {
	bus := setupChannelBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cues, err := NewPresenceCues(bus).SubscribeChanges(ctx)
	if err != nil {
		t.Fatalf("SubscribeChanges() error: %v", err)
	}

	if err := bus.Publish(ctx, database.ChangeEvent{Type: database.EventLocationCreated, Subject: "loc-1"}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	select {
	case <-cues:
		t.Fatal("location event produced a presence cue")
	case <-time.After(100 * time.Millisecond):
	}

	if err := bus.Publish(ctx, database.ChangeEvent{Type: database.EventPresenceChanged, Subject: "user-1"}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	select {
	case <-cues:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for presence cue")
	}
}

func TestPresenceCuesCoalesceBurst(t *testing.T) {
	bus := setupChannelBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cues, err := NewPresenceCues(bus).SubscribeChanges(ctx)
	if err != nil {
		t.Fatalf("SubscribeChanges() error: %v", err)
	}

	const burst = 20
	for i := 0; i < burst; i++ {
		event := database.ChangeEvent{Type: database.EventPresenceChanged, Subject: "user-1"}
		if err := bus.Publish(ctx, event); err != nil {
			t.Fatalf("Publish() error: %v", err)
		}
	}

	select {
	case <-cues:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first cue")
	}

	// The remaining cues must coalesce rather than queue one per event.
	received := 1
	for {
		select {
		case <-cues:
			received++
		case <-time.After(200 * time.Millisecond):
			if received >= burst {
				t.Errorf("received %d cues for %d events, expected coalescing", received, burst)
			}
			return
		}
	}
}

func TestPresenceCuesClosesOnCancel(t *testing.T) {
	bus := setupChannelBus(t)

	ctx, cancel := context.WithCancel(context.Background())

	cues, err := NewPresenceCues(bus).SubscribeChanges(ctx)
	if err != nil {
		t.Fatalf("SubscribeChanges() error: %v", err)
	}

	cancel()

	select {
	case _, ok := <-cues:
		if ok {
			// A cue in flight at cancel time is fine; the close follows.
			select {
			case _, ok = <-cues:
				if ok {
					t.Error("cue channel still open after cancel")
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for cue channel close")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cue channel close")
	}
}

type failingBus struct{}

func (failingBus) Publish(context.Context, database.ChangeEvent) error { return nil }

func (failingBus) Subscribe(context.Context) (<-chan database.ChangeEvent, error) {
	return nil, errors.New("broker unavailable")
}

func (failingBus) Close() error { return nil }

func TestPresenceCuesSubscribeFailure(t *testing.T) {
	_, err := NewPresenceCues(failingBus{}).SubscribeChanges(context.Background())
	if !errors.Is(err, presence.ErrSubscribe) {
		t.Errorf("SubscribeChanges() error = %v, want ErrSubscribe", err)
	}
}
