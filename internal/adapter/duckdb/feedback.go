package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

const feedbackColumns = `id, created_at, lat, lon, actual_condition, predicted_condition,
	predicted_probability, comment, up_votes, down_votes, metadata`

// Submit stores a report and returns it with its assigned id and timestamp.
func (s *Store) Submit(ctx context.Context, sub domain.FeedbackSubmission) (domain.FeedbackReport, error) {
	meta := sub.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return domain.FeedbackReport{}, fmt.Errorf("encode metadata: %w", err)
	}

	r := domain.FeedbackReport{
		Timestamp:            domain.Now().UTC(),
		Location:             sub.Location,
		ActualCondition:      sub.ActualCondition,
		PredictedCondition:   sub.PredictedCondition,
		PredictedProbability: sub.PredictedProbability,
		Comment:              sub.Comment,
		Metadata:             meta,
	}

	var predicted sql.NullString
	if r.PredictedCondition != "" {
		predicted = sql.NullString{String: string(r.PredictedCondition), Valid: true}
	}
	var prob sql.NullFloat64
	if r.PredictedProbability != nil {
		prob = sql.NullFloat64{Float64: *r.PredictedProbability, Valid: true}
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO feedback_reports
			(created_at, lat, lon, actual_condition, predicted_condition, predicted_probability, comment, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		r.Timestamp, r.Location.Lat, r.Location.Lon, string(r.ActualCondition), predicted, prob, r.Comment, string(metaJSON),
	).Scan(&r.ID)
	if err != nil {
		return domain.FeedbackReport{}, fmt.Errorf("insert feedback report: %w", err)
	}
	return r, nil
}

// Reports returns every report created at or after since, oldest first.
func (s *Store) Reports(ctx context.Context, since time.Time) ([]domain.FeedbackReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback_reports WHERE created_at >= ? ORDER BY created_at, id`,
		since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query feedback reports: %w", err)
	}
	defer rows.Close()

	reports := make([]domain.FeedbackReport, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback reports: %w", err)
	}
	return reports, nil
}

// Nearby returns reports within radiusMiles of center and newer than
// maxAge, newest first.
func (s *Store) Nearby(ctx context.Context, center domain.Point, radiusMiles float64, maxAge time.Duration) ([]domain.FeedbackReport, error) {
	now := domain.Now()
	reports, err := s.Reports(ctx, now.Add(-maxAge))
	if err != nil {
		return nil, err
	}
	return domain.FilterNearby(reports, center, radiusMiles, maxAge, now), nil
}

// Vote adds one vote to a report. It returns false, changing nothing, when
// no report has that id.
func (s *Store) Vote(ctx context.Context, id int64, dir domain.VoteDirection) (bool, error) {
	var stmt string
	switch dir {
	case domain.VoteUp:
		stmt = `UPDATE feedback_reports SET up_votes = up_votes + 1 WHERE id = ? RETURNING id`
	case domain.VoteDown:
		stmt = `UPDATE feedback_reports SET down_votes = down_votes + 1 WHERE id = ? RETURNING id`
	default:
		return false, fmt.Errorf("unknown vote direction %q", dir)
	}

	var got int64
	err := s.db.QueryRowContext(ctx, stmt, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("vote on report %d: %w", id, err)
	}
	return true, nil
}

// Report returns a single report.
func (s *Store) Report(ctx context.Context, id int64) (domain.FeedbackReport, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedback_reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FeedbackReport{}, false, nil
	}
	if err != nil {
		return domain.FeedbackReport{}, false, err
	}
	return r, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(sc scanner) (domain.FeedbackReport, error) {
	var (
		r         domain.FeedbackReport
		actual    string
		predicted sql.NullString
		prob      sql.NullFloat64
		meta      string
	)
	err := sc.Scan(&r.ID, &r.Timestamp, &r.Location.Lat, &r.Location.Lon, &actual, &predicted,
		&prob, &r.Comment, &r.Votes.Up, &r.Votes.Down, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan feedback report: %w", err)
	}
	r.Timestamp = r.Timestamp.UTC()
	r.ActualCondition = domain.Condition(actual)
	if predicted.Valid {
		r.PredictedCondition = domain.Condition(predicted.String)
	}
	if prob.Valid {
		p := prob.Float64
		r.PredictedProbability = &p
	}
	if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
		return r, fmt.Errorf("decode metadata of report %d: %w", r.ID, err)
	}
	return r, nil
}
