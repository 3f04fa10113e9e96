package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

const calibrationVersion = 1

// CalibrationState is the persisted learning state.
type CalibrationState struct {
	Weights domain.Weights
	Samples []domain.CalibrationSample
}

// LoadCalibration returns the saved state, or false when nothing was saved yet.
func (s *Store) LoadCalibration(ctx context.Context) (CalibrationState, bool, error) {
	var weights, samples string
	err := s.db.QueryRowContext(ctx,
		`SELECT weights, samples FROM calibration_state WHERE id = 1`).Scan(&weights, &samples)
	if errors.Is(err, sql.ErrNoRows) {
		return CalibrationState{}, false, nil
	}
	if err != nil {
		return CalibrationState{}, false, fmt.Errorf("load calibration: %w", err)
	}

	var st CalibrationState
	if err := json.Unmarshal([]byte(weights), &st.Weights); err != nil {
		return CalibrationState{}, false, fmt.Errorf("decode calibration weights: %w", err)
	}
	if err := json.Unmarshal([]byte(samples), &st.Samples); err != nil {
		return CalibrationState{}, false, fmt.Errorf("decode calibration samples: %w", err)
	}
	return st, true, nil
}

// SaveCalibration upserts the single calibration row.
func (s *Store) SaveCalibration(ctx context.Context, st CalibrationState) error {
	weights, err := json.Marshal(st.Weights)
	if err != nil {
		return fmt.Errorf("encode calibration weights: %w", err)
	}
	samples := st.Samples
	if samples == nil {
		samples = []domain.CalibrationSample{}
	}
	samplesJSON, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("encode calibration samples: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calibration_state (id, version, weights, samples, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			version = excluded.version,
			weights = excluded.weights,
			samples = excluded.samples,
			updated_at = excluded.updated_at`,
		calibrationVersion, string(weights), string(samplesJSON), domain.Now().UTC())
	if err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	return nil
}

// AppendAccuracySnapshot records one recalibration run.
func (s *Store) AppendAccuracySnapshot(ctx context.Context, snap domain.AccuracySnapshot) error {
	weights, err := json.Marshal(snap.Weights)
	if err != nil {
		return fmt.Errorf("encode snapshot weights: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accuracy_history (recorded_at, mean_abs_error, samples, weights) VALUES (?, ?, ?, ?)`,
		snap.Timestamp.UTC(), snap.MeanAbsError, snap.Samples, string(weights))
	if err != nil {
		return fmt.Errorf("append accuracy snapshot: %w", err)
	}
	return nil
}

// AccuracyHistory returns the most recent snapshots, oldest first.
func (s *Store) AccuracyHistory(ctx context.Context, limit int) ([]domain.AccuracySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recorded_at, mean_abs_error, samples, weights FROM (
			SELECT * FROM accuracy_history ORDER BY id DESC LIMIT ?
		) ORDER BY id`, limit)
	if err != nil {
		return nil, fmt.Errorf("query accuracy history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AccuracySnapshot, 0)
	for rows.Next() {
		var (
			snap    domain.AccuracySnapshot
			weights string
		)
		if err := rows.Scan(&snap.Timestamp, &snap.MeanAbsError, &snap.Samples, &weights); err != nil {
			return nil, fmt.Errorf("scan accuracy snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(weights), &snap.Weights); err != nil {
			return nil, fmt.Errorf("decode snapshot weights: %w", err)
		}
		snap.Timestamp = snap.Timestamp.UTC()
		out = append(out, snap)
	}
	return out, rows.Err()
}
