// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package database

import (
	"context"
	"fmt"
	"time"
)

// createTables creates the core schema. All statements are idempotent so
// startup after an unclean shutdown is safe.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		// One row per user; publishing while a row exists replaces it.
		`CREATE TABLE IF NOT EXISTS live_locations (
			user_id VARCHAR PRIMARY KEY,
			latitude DOUBLE NOT NULL CHECK (latitude >= -90 AND latitude <= 90),
			longitude DOUBLE NOT NULL CHECK (longitude >= -180 AND longitude <= 180),
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS locations (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL CHECK (length(name) >= 1 AND length(name) <= 100),
			description VARCHAR CHECK (description IS NULL OR length(description) <= 500),
			latitude DOUBLE NOT NULL CHECK (latitude >= -90 AND latitude <= 90),
			longitude DOUBLE NOT NULL CHECK (longitude >= -180 AND longitude <= 180),
			status VARCHAR NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'approved', 'denied')),
			created_by VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			user_id VARCHAR PRIMARY KEY,
			display_name VARCHAR NOT NULL,
			role VARCHAR NOT NULL DEFAULT 'user',
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

func (db *DB) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_locations_status ON locations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_created_by ON locations(created_by)`,
		`CREATE INDEX IF NOT EXISTS idx_live_locations_updated_at ON live_locations(updated_at)`,
	}

	for _, stmt := range indexes {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
