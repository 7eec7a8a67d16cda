// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package database provides DuckDB-backed persistence for visitor
// records. All write operations are parameterized, and the status
// transition uses a conditional UPDATE so concurrent decisions cannot
// both win.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New creates a new database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	// 0750 per gosec G301.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Disable auto-install/auto-load of extensions to prevent hangs in
	// restricted network environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	// DuckDB is an embedded single-writer database; a small pool is
	// enough and avoids writer contention.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database initialized")
	return db, nil
}

// createTables creates the visitors table and its indexes.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := `
		CREATE TABLE IF NOT EXISTS visitors (
			id VARCHAR PRIMARY KEY,
			visitor_code VARCHAR NOT NULL UNIQUE,
			name VARCHAR NOT NULL,
			email VARCHAR NOT NULL,
			mobile VARCHAR NOT NULL,
			national_id VARCHAR NOT NULL,
			purpose VARCHAR NOT NULL,
			to_meet VARCHAR,
			other_person VARCHAR,
			person_type VARCHAR NOT NULL,
			company_name VARCHAR NOT NULL,
			gate_number INTEGER NOT NULL,
			laptop VARCHAR NOT NULL DEFAULT 'No',
			vehicle_number VARCHAR,
			host_email VARCHAR NOT NULL,
			host_phone VARCHAR,
			photo_url VARCHAR NOT NULL,
			status VARCHAR NOT NULL DEFAULT 'pending',
			approval_token VARCHAR NOT NULL,
			token_expires_at TIMESTAMP NOT NULL,
			decision_at TIMESTAMP,
			approved_by VARCHAR,
			pdf_url VARCHAR,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create visitors table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_visitors_status ON visitors(status)`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_token ON visitors(approval_token)`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_created_at ON visitors(created_at)`,
	}
	for _, idx := range indexes {
		if _, err := db.conn.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// ensureContext creates a context with a 30-second timeout if the
// caller's context has no deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}
	return ctx, func() {}
}

// Checkpoint forces a WAL checkpoint.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close flushes the WAL and closes the database connection. The
// checkpoint is best-effort: a failure is logged, not returned, so a
// dirty WAL never blocks shutdown.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	cancel()

	return db.conn.Close()
}
