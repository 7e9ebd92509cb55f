// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/waymark/internal/logging"
	"github.com/tomtom215/waymark/internal/metrics"
	"github.com/tomtom215/waymark/internal/models"
)

// UpsertPresence inserts or replaces a user's live position. The per-user
// lock serializes concurrent publishes for the same user; transaction
// conflicts between different users are retried with exponential backoff.
// A change notification fires only after the write commits.
func (db *DB) UpsertPresence(ctx context.Context, pos *models.LivePosition) error {
	mu := db.acquireUserLock(pos.UserID)
	defer db.releaseUserLock(mu)

	if pos.UpdatedAt.IsZero() {
		pos.UpdatedAt = time.Now().UTC()
	}

	const maxRetries = 3
	var lastErr error

	start := time.Now()
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := db.doUpsertPresence(ctx, pos)
		if err == nil {
			metrics.RecordDBQuery("upsert", "live_locations", time.Since(start), nil)
			db.notifyChange(ChangeEvent{Type: EventPresenceChanged, Subject: pos.UserID})
			return nil
		}

		lastErr = err

		if ctx.Err() != nil {
			metrics.RecordDBQuery("upsert", "live_locations", time.Since(start), err)
			return fmt.Errorf("operation timed out or canceled: %w", ctx.Err())
		}

		if isInternalError(err) {
			metrics.RecordDBQuery("upsert", "live_locations", time.Since(start), err)
			return fmt.Errorf("duckdb internal error during presence upsert: %w", err)
		}

		if isTransactionConflict(err) {
			if attempt < maxRetries-1 {
				backoff := time.Millisecond * time.Duration(1<<uint(attempt)) // 1ms, 2ms, 4ms
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}

		metrics.RecordDBQuery("upsert", "live_locations", time.Since(start), err)
		return err
	}

	metrics.RecordDBQuery("upsert", "live_locations", time.Since(start), lastErr)
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (db *DB) doUpsertPresence(ctx context.Context, pos *models.LivePosition) error {
	const query = `INSERT INTO live_locations (user_id, latitude, longitude, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = EXCLUDED.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		pos.UserID, pos.Latitude, pos.Longitude, pos.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert live position: %w", err)
	}
	return nil
}

// DeletePresence removes a user's live position. Deleting a row that does not
// exist succeeds: retraction is idempotent and the end state is identical. A
// change notification fires only when a row was actually removed.
func (db *DB) DeletePresence(ctx context.Context, userID string) error {
	mu := db.acquireUserLock(userID)
	defer db.releaseUserLock(mu)

	start := time.Now()
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM live_locations WHERE user_id = ?`, userID)
	metrics.RecordDBQuery("delete", "live_locations", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete live position: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		logging.Debug().Err(err).Msg("RowsAffected unavailable after presence delete")
		rows = 1
	}
	if rows > 0 {
		db.notifyChange(ChangeEvent{Type: EventPresenceChanged, Subject: userID})
	}

	return nil
}

// ListPresence returns all current live positions with display names joined
// from profiles. Rows older than maxAge are excluded; pass zero to disable
// the staleness filter. Results are ordered by user_id for deterministic
// output.
func (db *DB) ListPresence(ctx context.Context, maxAge time.Duration) ([]models.LivePosition, error) {
	query := `SELECT l.user_id, COALESCE(p.display_name, ''), l.latitude, l.longitude, l.updated_at
		FROM live_locations l
		LEFT JOIN profiles p ON l.user_id = p.user_id`
	args := []interface{}{}

	if maxAge > 0 {
		query += ` WHERE l.updated_at >= ?`
		args = append(args, time.Now().UTC().Add(-maxAge))
	}
	query += ` ORDER BY l.user_id`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("list", "live_locations", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list live positions: %w", err)
	}
	defer closeQuietly(rows)

	var positions []models.LivePosition
	for rows.Next() {
		var pos models.LivePosition
		if err := rows.Scan(&pos.UserID, &pos.DisplayName, &pos.Latitude, &pos.Longitude, &pos.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan live position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate live positions: %w", err)
	}

	metrics.PresenceActiveUsers.Set(float64(len(positions)))
	return positions, nil
}

// GetPresence returns one user's live position, or nil when the user is not
// currently sharing.
func (db *DB) GetPresence(ctx context.Context, userID string) (*models.LivePosition, error) {
	const query = `SELECT l.user_id, COALESCE(p.display_name, ''), l.latitude, l.longitude, l.updated_at
		FROM live_locations l
		LEFT JOIN profiles p ON l.user_id = p.user_id
		WHERE l.user_id = ?`

	start := time.Now()
	row := db.conn.QueryRowContext(ctx, query, userID)

	var pos models.LivePosition
	err := row.Scan(&pos.UserID, &pos.DisplayName, &pos.Latitude, &pos.Longitude, &pos.UpdatedAt)
	metrics.RecordDBQuery("get", "live_locations", time.Since(start), nil)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get live position: %w", err)
	}

	return &pos, nil
}
