// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/waymark/internal/models"
)

// UpsertProfile creates or updates a user profile. Called on login so the
// display name shown next to live markers tracks the account.
func (db *DB) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	if profile.Role == "" {
		profile.Role = "user"
	}

	const query = `INSERT INTO profiles (user_id, display_name, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			role = EXCLUDED.role`

	_, err := db.conn.ExecContext(ctx, query,
		profile.UserID, profile.DisplayName, profile.Role, profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetProfile returns one profile by user ID, or ErrNotFound.
func (db *DB) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	const query = `SELECT user_id, display_name, role, created_at FROM profiles WHERE user_id = ?`

	var profile models.Profile
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID, &profile.DisplayName, &profile.Role, &profile.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}
