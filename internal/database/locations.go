// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/waymark/internal/metrics"
	"github.com/tomtom215/waymark/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = fmt.Errorf("not found")

// CreateLocation inserts a new community location submission. The ID is
// generated here and the status always starts as pending regardless of what
// the caller set.
func (db *DB) CreateLocation(ctx context.Context, loc *models.Location) error {
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	loc.Status = models.StatusPending
	now := time.Now().UTC()
	loc.CreatedAt = now
	loc.UpdatedAt = now

	const query = `INSERT INTO locations (id, name, description, latitude, longitude, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		loc.ID, loc.Name, loc.Description, loc.Latitude, loc.Longitude,
		loc.Status, loc.CreatedBy, loc.CreatedAt, loc.UpdatedAt)
	metrics.RecordDBQuery("insert", "locations", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}

	db.notifyChange(ChangeEvent{Type: EventLocationCreated, Subject: loc.ID})
	return nil
}

// ListLocations returns locations filtered by status. An empty status returns
// all rows (admin view); non-admin callers pass models.StatusApproved.
func (db *DB) ListLocations(ctx context.Context, status string, limit, offset int) ([]models.Location, error) {
	query := `SELECT id, name, COALESCE(description, ''), latitude, longitude, status, created_by, created_at, updated_at
		FROM locations`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("list", "locations", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer closeQuietly(rows)

	var locations []models.Location
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Description, &loc.Latitude, &loc.Longitude,
			&loc.Status, &loc.CreatedBy, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}

	return locations, nil
}

// CountLocations returns the row count matching the status filter.
func (db *DB) CountLocations(ctx context.Context, status string) (int, error) {
	query := `SELECT COUNT(*) FROM locations`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}

	var count int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count locations: %w", err)
	}
	return count, nil
}

// GetLocation returns one location by ID, or ErrNotFound.
func (db *DB) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	const query = `SELECT id, name, COALESCE(description, ''), latitude, longitude, status, created_by, created_at, updated_at
		FROM locations WHERE id = ?`

	var loc models.Location
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&loc.ID, &loc.Name, &loc.Description, &loc.Latitude, &loc.Longitude,
		&loc.Status, &loc.CreatedBy, &loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	return &loc, nil
}

// UpdateLocationStatus moves a submission through moderation. Returns
// ErrNotFound when the ID does not exist.
func (db *DB) UpdateLocationStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE locations SET status = ?, updated_at = ? WHERE id = ?`

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, query, status, time.Now().UTC(), id)
	metrics.RecordDBQuery("update", "locations", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update location status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	db.notifyChange(ChangeEvent{Type: EventLocationStatusChanged, Subject: id})
	return nil
}

// DeleteLocation removes a location. Returns ErrNotFound when the ID does not
// exist.
func (db *DB) DeleteLocation(ctx context.Context, id string) error {
	start := time.Now()
	result, err := db.conn.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	metrics.RecordDBQuery("delete", "locations", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	db.notifyChange(ChangeEvent{Type: EventLocationDeleted, Subject: id})
	return nil
}
