// Package duckdb persists predictions, feedback, calibration state and the
// monitor's locations, routes and alerts in an embedded DuckDB file.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" driver
)

// Store wraps a single-connection DuckDB handle. One connection serialises
// all statements, so concurrent writers never interleave.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. An empty path opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS feedback_report_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS monitored_location_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS saved_route_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS accuracy_history_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS predictions (
		id          VARCHAR PRIMARY KEY,
		created_at  TIMESTAMP NOT NULL,
		lat         DOUBLE,
		lon         DOUBLE,
		model       VARCHAR NOT NULL,
		risk_level  VARCHAR NOT NULL,
		risk_score  DOUBLE NOT NULL,
		probability DOUBLE NOT NULL,
		confidence  DOUBLE NOT NULL,
		conditions  VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id          VARCHAR PRIMARY KEY,
		location_id BIGINT NOT NULL,
		name        VARCHAR NOT NULL,
		lat         DOUBLE NOT NULL,
		lon         DOUBLE NOT NULL,
		level       VARCHAR NOT NULL,
		score       DOUBLE NOT NULL,
		message     VARCHAR NOT NULL,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS monitored_locations (
		id         BIGINT PRIMARY KEY DEFAULT nextval('monitored_location_id_seq'),
		name       VARCHAR NOT NULL,
		lat        DOUBLE NOT NULL,
		lon        DOUBLE NOT NULL,
		is_bridge  BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS saved_routes (
		id         BIGINT PRIMARY KEY DEFAULT nextval('saved_route_id_seq'),
		name       VARCHAR NOT NULL,
		waypoints  VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS route_analyses (
		id                   VARCHAR PRIMARY KEY,
		created_at           TIMESTAMP NOT NULL,
		total_distance_miles DOUBLE NOT NULL,
		max_risk_level       VARCHAR NOT NULL,
		average_risk_score   DOUBLE NOT NULL,
		analysis             VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feedback_reports (
		id                    BIGINT PRIMARY KEY DEFAULT nextval('feedback_report_id_seq'),
		created_at            TIMESTAMP NOT NULL,
		lat                   DOUBLE NOT NULL,
		lon                   DOUBLE NOT NULL,
		actual_condition      VARCHAR NOT NULL,
		predicted_condition   VARCHAR,
		predicted_probability DOUBLE,
		comment               VARCHAR NOT NULL DEFAULT '',
		up_votes              INTEGER NOT NULL DEFAULT 0,
		down_votes            INTEGER NOT NULL DEFAULT 0,
		metadata              VARCHAR NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS feedback_reports_created_at_idx ON feedback_reports (created_at)`,
	`CREATE TABLE IF NOT EXISTS calibration_state (
		id         INTEGER PRIMARY KEY,
		version    INTEGER NOT NULL,
		weights    VARCHAR NOT NULL,
		samples    VARCHAR NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accuracy_history (
		id             BIGINT PRIMARY KEY DEFAULT nextval('accuracy_history_id_seq'),
		recorded_at    TIMESTAMP NOT NULL,
		mean_abs_error DOUBLE NOT NULL,
		samples        INTEGER NOT NULL,
		weights        VARCHAR NOT NULL
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
