// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/waymark/internal/models"
)

func createTestLocation(t *testing.T, db *DB, name string) *models.Location {
	t.Helper()
	loc := &models.Location{
		Name:      name,
		Latitude:  48.137,
		Longitude: 11.575,
		CreatedBy: "alice",
	}
	if err := db.CreateLocation(context.Background(), loc); err != nil {
		t.Fatalf("CreateLocation(%s) error: %v", name, err)
	}
	return loc
}

func TestCreateLocationStartsPending(t *testing.T) {
	db := setupTestDB(t)

	loc := &models.Location{
		Name:      "Skate Park",
		Status:    models.StatusApproved, // caller cannot pre-approve
		Latitude:  1,
		Longitude: 2,
		CreatedBy: "bob",
	}
	if err := db.CreateLocation(context.Background(), loc); err != nil {
		t.Fatalf("CreateLocation() error: %v", err)
	}

	if loc.ID == "" {
		t.Error("ID not generated")
	}
	got, err := db.GetLocation(context.Background(), loc.ID)
	if err != nil {
		t.Fatalf("GetLocation() error: %v", err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
}

func TestListLocationsStatusFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := createTestLocation(t, db, "First")
	createTestLocation(t, db, "Second")

	if err := db.UpdateLocationStatus(ctx, first.ID, models.StatusApproved); err != nil {
		t.Fatalf("UpdateLocationStatus() error: %v", err)
	}

	approved, err := db.ListLocations(ctx, models.StatusApproved, 100, 0)
	if err != nil {
		t.Fatalf("ListLocations(approved) error: %v", err)
	}
	if len(approved) != 1 || approved[0].ID != first.ID {
		t.Errorf("approved list = %v, want only %s", approved, first.ID)
	}

	all, err := db.ListLocations(ctx, "", 100, 0)
	if err != nil {
		t.Fatalf("ListLocations(all) error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all list has %d rows, want 2", len(all))
	}

	count, err := db.CountLocations(ctx, models.StatusPending)
	if err != nil {
		t.Fatalf("CountLocations() error: %v", err)
	}
	if count != 1 {
		t.Errorf("pending count = %d, want 1", count)
	}
}

func TestUpdateLocationStatusNotFound(t *testing.T) {
	db := setupTestDB(t)

	err := db.UpdateLocationStatus(context.Background(), "missing", models.StatusDenied)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateLocationStatus() = %v, want ErrNotFound", err)
	}
}

func TestDeleteLocation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	loc := createTestLocation(t, db, "Ephemeral")
	if err := db.DeleteLocation(ctx, loc.ID); err != nil {
		t.Fatalf("DeleteLocation() error: %v", err)
	}

	if _, err := db.GetLocation(ctx, loc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLocation() after delete = %v, want ErrNotFound", err)
	}
	if err := db.DeleteLocation(ctx, loc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteLocation() = %v, want ErrNotFound", err)
	}
}

func TestLocationChangeNotifications(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var events []ChangeEvent
	db.SetChangeHook(func(event ChangeEvent) {
		events = append(events, event)
	})

	loc := createTestLocation(t, db, "Watched")
	if err := db.UpdateLocationStatus(ctx, loc.ID, models.StatusApproved); err != nil {
		t.Fatalf("UpdateLocationStatus() error: %v", err)
	}
	if err := db.DeleteLocation(ctx, loc.ID); err != nil {
		t.Fatalf("DeleteLocation() error: %v", err)
	}

	wantTypes := []string{EventLocationCreated, EventLocationStatusChanged, EventLocationDeleted}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %v", len(events), len(wantTypes), events)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("events[%d].Type = %q, want %q", i, events[i].Type, want)
		}
		if events[i].Subject != loc.ID {
			t.Errorf("events[%d].Subject = %q, want %q", i, events[i].Subject, loc.ID)
		}
	}
}

func TestProfileRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	profile := &models.Profile{UserID: "alice", DisplayName: "Alice", Role: "admin"}
	if err := db.UpsertProfile(ctx, profile); err != nil {
		t.Fatalf("UpsertProfile() error: %v", err)
	}

	// Display name changes on re-login keep the same row.
	profile.DisplayName = "Alice B"
	if err := db.UpsertProfile(ctx, profile); err != nil {
		t.Fatalf("second UpsertProfile() error: %v", err)
	}

	got, err := db.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("GetProfile() error: %v", err)
	}
	if got.DisplayName != "Alice B" || got.Role != "admin" {
		t.Errorf("profile = %+v, want updated display name and admin role", got)
	}

	if _, err := db.GetProfile(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProfile(nobody) = %v, want ErrNotFound", err)
	}
}
