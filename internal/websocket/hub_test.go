// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/waymark/internal/database"
	"github.com/tomtom215/waymark/internal/logging"
	"github.com/tomtom215/waymark/internal/presence"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// setupHub creates and runs a hub, stopping it when the test ends.
func setupHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(10 * time.Millisecond)
	return hub
}

func createTestClient(hub *Hub) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		send: make(chan Message, 256),
	}
}

func registerClient(hub *Hub, client *Client) {
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
}

func waitForMessage(t *testing.T, client *Client) Message {
	t.Helper()

	select {
	case msg := <-client.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	checks := []struct {
		name   string
		check  bool
		errMsg string
	}{
		{"clients map", hub.clients != nil, "clients map not initialized"},
		{"broadcast channel", hub.broadcast != nil, "broadcast channel not initialized"},
		{"Register channel", hub.Register != nil, "Register channel not initialized"},
		{"Unregister channel", hub.Unregister != nil, "Unregister channel not initialized"},
		{"empty clients", len(hub.clients) == 0, "clients map should be empty"},
	}

	for _, c := range checks {
		if !c.check {
			t.Error(c.errMsg)
		}
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := setupHub(t)

	client := createTestClient(hub)
	registerClient(hub, client)

	if count := hub.GetClientCount(); count != 1 {
		t.Fatalf("client count = %d after register, want 1", count)
	}

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)

	if count := hub.GetClientCount(); count != 0 {
		t.Errorf("client count = %d after unregister, want 0", count)
	}

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("send channel delivered a message instead of closing")
		}
	default:
		t.Error("send channel not closed after unregister")
	}
}

func TestHubBroadcastJSON(t *testing.T) {
	hub := setupHub(t)

	first := createTestClient(hub)
	second := createTestClient(hub)
	registerClient(hub, first)
	registerClient(hub, second)

	hub.BroadcastJSON("test_type", map[string]int{"count": 42})

	for _, client := range []*Client{first, second} {
		msg := waitForMessage(t, client)
		if msg.Type != "test_type" {
			t.Errorf("message type = %q, want %q", msg.Type, "test_type")
		}
	}
}

func TestHubApplyMarkerCommands(t *testing.T) {
	hub := setupHub(t)

	client := createTestClient(hub)
	registerClient(hub, client)

	commands := []presence.Command{
		{Op: presence.OpCreate, UserID: "user-1", Latitude: 52.37, Longitude: 4.89},
		{Op: presence.OpRemove, UserID: "user-2"},
	}
	hub.Apply(commands)

	msg := waitForMessage(t, client)
	if msg.Type != MessageTypeMarkerCommands {
		t.Fatalf("message type = %q, want %q", msg.Type, MessageTypeMarkerCommands)
	}
	got, ok := msg.Data.([]presence.Command)
	if !ok {
		t.Fatalf("message data type = %T, want []presence.Command", msg.Data)
	}
	if len(got) != 2 {
		t.Errorf("command count = %d, want 2", len(got))
	}
}

func TestHubApplyEmptyBatch(t *testing.T) {
	hub := setupHub(t)

	client := createTestClient(hub)
	registerClient(hub, client)

	hub.Apply(nil)
	time.Sleep(20 * time.Millisecond)

	select {
	case msg := <-client.send:
		t.Errorf("empty batch produced message %+v", msg)
	default:
	}
}

func TestHubBroadcastChange(t *testing.T) {
	hub := setupHub(t)

	client := createTestClient(hub)
	registerClient(hub, client)

	hub.BroadcastChange(database.ChangeEvent{
		Type:    database.EventLocationCreated,
		Subject: "loc-1",
	})

	msg := waitForMessage(t, client)
	if msg.Type != MessageTypeChange {
		t.Fatalf("message type = %q, want %q", msg.Type, MessageTypeChange)
	}
	data, ok := msg.Data.(ChangeData)
	if !ok {
		t.Fatalf("message data type = %T, want ChangeData", msg.Data)
	}
	if data.Event != database.EventLocationCreated {
		t.Errorf("change event = %q, want %q", data.Event, database.EventLocationCreated)
	}
	if data.Subject != "loc-1" {
		t.Errorf("change subject = %q, want %q", data.Subject, "loc-1")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := setupHub(t)

	slow := &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		send: make(chan Message, 1),
	}
	registerClient(hub, slow)

	// The first broadcast fills the buffer, the second drops the client.
	hub.BroadcastJSON("test_type", 1)
	hub.BroadcastJSON("test_type", 2)
	time.Sleep(50 * time.Millisecond)

	if count := hub.GetClientCount(); count != 0 {
		t.Errorf("client count = %d, want 0 after slow client dropped", count)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- hub.RunWithContext(ctx)
	}()
	time.Sleep(10 * time.Millisecond)

	client := createTestClient(hub)
	registerClient(hub, client)

	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("RunWithContext() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hub shutdown")
	}

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("send channel delivered a message instead of closing")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed after shutdown")
	}
}

func TestClientIDsIncrease(t *testing.T) {
	hub := NewHub()
	first := NewClient(hub, nil)
	second := NewClient(hub, nil)

	if first.ID() >= second.ID() {
		t.Errorf("client IDs not increasing: %d then %d", first.ID(), second.ID())
	}
}
