// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

// Package database provides DuckDB-backed storage for map locations, live
// positions, and user profiles.
//
// Write semantics for live positions follow a single-row-per-user model: the
// user_id column is the primary key and publishes are UPSERTs, so the table
// always holds at most one row per user. Concurrent publishes for the same
// user are serialized with a per-user mutex; DuckDB transaction conflicts are
// retried with exponential backoff.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/waymark/internal/config"
	"github.com/tomtom215/waymark/internal/logging"
)

// ChangeEvent describes a committed store mutation. Subscribers treat it as
// an invalidation signal only; consumers refetch the full dataset rather than
// applying the event incrementally.
type ChangeEvent struct {
	Type    string `json:"type"`
	Subject string `json:"subject,omitempty"`
}

// Change event types emitted by the store.
const (
	EventPresenceChanged       = "presence_changed"
	EventLocationCreated       = "location_created"
	EventLocationStatusChanged = "location_status_changed"
	EventLocationDeleted       = "location_deleted"
)

// ChangeHook receives change events after a mutation commits. Hook errors are
// logged and never fail the mutation; the tracker's fallback poll masks a
// lost notification.
type ChangeHook func(event ChangeEvent)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Per-user write locks for concurrent presence UPSERTs.
	userLocks sync.Map

	hookMu sync.RWMutex
	hook   ChangeHook
}

// New creates a new database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for the database file.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn: conn,
		cfg:  cfg,
	}

	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Msg("Database initialized")

	return db, nil
}

// SetChangeHook installs the hook notified after committed mutations. Passing
// nil disables notifications.
func (db *DB) SetChangeHook(hook ChangeHook) {
	db.hookMu.Lock()
	db.hook = hook
	db.hookMu.Unlock()
}

// notifyChange invokes the change hook, if installed.
func (db *DB) notifyChange(event ChangeEvent) {
	db.hookMu.RLock()
	hook := db.hook
	db.hookMu.RUnlock()
	if hook != nil {
		hook(event)
	}
}

// Conn exposes the underlying connection for health checks.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close checkpoints the WAL and closes the connection. The checkpoint is best
// effort; a failure is logged and the close proceeds.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}

	return db.conn.Close()
}

func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

func (db *DB) initialize() error {
	if err := db.createTables(); err != nil {
		return err
	}
	if err := db.createIndexes(); err != nil {
		return err
	}

	// Flush the WAL so a crash before the first checkpoint cannot force a
	// replay of schema statements on next startup.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}

	return nil
}

// acquireUserLock locks the per-user mutex, creating it on first use.
func (db *DB) acquireUserLock(userID string) *sync.Mutex {
	muInterface, _ := db.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu, ok := muInterface.(*sync.Mutex)
	if !ok {
		mu = &sync.Mutex{}
		db.userLocks.Store(userID, mu)
	}
	mu.Lock()
	return mu
}

func (db *DB) releaseUserLock(mu *sync.Mutex) {
	mu.Unlock()
}

// isTransactionConflict checks if an error is a DuckDB transaction conflict.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "Conflict on update") ||
		strings.Contains(errStr, "cannot update a table that has been altered")
}

// isInternalError checks if an error is a DuckDB INTERNAL error.
func isInternalError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "INTERNAL Error")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		logging.Debug().Err(err).Msg("Close failed")
	}
}
