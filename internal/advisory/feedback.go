package advisory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/risk"
)

// Feedback query defaults and limits.
const (
	DefaultNearbyRadiusMiles = 5.0
	DefaultNearbyMaxAge      = 24 * time.Hour
	DefaultStatsMaxAge       = 30 * 24 * time.Hour
	maxCommentLength         = 500
	maxNearbyRadiusMiles     = 100.0
)

// FeedbackInput is a ground-truth report as submitted by a client.
type FeedbackInput struct {
	Lat                  *float64          `json:"lat"`
	Lon                  *float64          `json:"lon"`
	ActualCondition      string            `json:"actual_condition"`
	PredictedCondition   string            `json:"predicted_condition"`
	PredictedProbability *float64          `json:"predicted_probability"`
	Comment              string            `json:"comment"`
	Metadata             map[string]string `json:"metadata"`
}

func (in FeedbackInput) submission() (domain.FeedbackSubmission, error) {
	if in.Lat == nil || in.Lon == nil {
		return domain.FeedbackSubmission{}, invalid("lat and lon are required")
	}
	p := domain.Point{Lat: *in.Lat, Lon: *in.Lon}
	if !p.Valid() {
		return domain.FeedbackSubmission{}, invalid("coordinates out of range")
	}
	actual, err := domain.ParseCondition(in.ActualCondition)
	if err != nil {
		return domain.FeedbackSubmission{}, err
	}
	sub := domain.FeedbackSubmission{
		Location:             p,
		ActualCondition:      actual,
		PredictedProbability: in.PredictedProbability,
		Comment:              strings.TrimSpace(in.Comment),
		Metadata:             in.Metadata,
	}
	if strings.TrimSpace(in.PredictedCondition) != "" {
		sub.PredictedCondition = domain.ParsePredictedCondition(in.PredictedCondition)
	}
	if pp := in.PredictedProbability; pp != nil && (*pp < 0 || *pp > 1) {
		return domain.FeedbackSubmission{}, invalid("predicted_probability must be between 0 and 1")
	}
	if len(sub.Comment) > maxCommentLength {
		return domain.FeedbackSubmission{}, invalid("comment longer than %d characters", maxCommentLength)
	}
	return sub, nil
}

// SubmitFeedback stores a report and feeds it to the calibrator. Learning
// needs live weather at the report location; when none is available the
// report is stored without learning.
func (s *Service) SubmitFeedback(ctx context.Context, in FeedbackInput) (domain.FeedbackReport, error) {
	sub, err := in.submission()
	if err != nil {
		return domain.FeedbackReport{}, err
	}
	report, err := s.store.Submit(ctx, sub)
	if err != nil {
		return domain.FeedbackReport{}, fmt.Errorf("submit feedback: %w", err)
	}
	s.metrics.FeedbackReports.WithLabelValues(string(report.ActualCondition)).Inc()
	s.logger.Info("feedback received", "id", report.ID, "actual", report.ActualCondition)

	if err := s.learn(ctx, report); err != nil {
		s.logger.Warn("calibration update failed", "report_id", report.ID, "error", err)
	}
	return report, nil
}

func (s *Service) learn(ctx context.Context, report domain.FeedbackReport) error {
	r, err := s.CurrentWeather(ctx, report.Location)
	if err != nil || r.Degraded {
		s.logger.Debug("skipping calibration, no live weather", "report_id", report.ID)
		return nil
	}

	predicted := risk.BIFIv3(r.Conditions, s.calibrator).Score
	if !s.calibrator.LearnFromFeedback(predicted, report.ActualCondition, r.Conditions) {
		return nil
	}

	s.metrics.Recalibrations.Inc()
	snaps := s.calibrator.Snapshots()
	if len(snaps) > 0 {
		last := snaps[len(snaps)-1]
		s.logger.Info("weights recalibrated", "mean_abs_error", last.MeanAbsError, "temperature_weight", last.Weights.Temperature)
		if err := s.store.AppendAccuracySnapshot(ctx, last); err != nil {
			return err
		}
	}
	return s.saveCalibration(ctx)
}

// NearbyQuery selects reports around a point.
type NearbyQuery struct {
	Lat         float64
	Lon         float64
	RadiusMiles float64
	MaxAge      time.Duration
}

// NearbyFeedback returns reports within the radius, newest first.
func (s *Service) NearbyFeedback(ctx context.Context, q NearbyQuery) ([]domain.FeedbackReport, error) {
	p := domain.Point{Lat: q.Lat, Lon: q.Lon}
	if !p.Valid() {
		return nil, invalid("coordinates out of range")
	}
	if math.IsNaN(q.RadiusMiles) || math.IsInf(q.RadiusMiles, 0) {
		return nil, invalid("radius must be a finite number")
	}
	if q.RadiusMiles <= 0 {
		q.RadiusMiles = DefaultNearbyRadiusMiles
	}
	if q.RadiusMiles > maxNearbyRadiusMiles {
		return nil, invalid("radius must be at most %.0f miles", maxNearbyRadiusMiles)
	}
	if q.MaxAge <= 0 {
		q.MaxAge = DefaultNearbyMaxAge
	}
	return s.store.Nearby(ctx, p, q.RadiusMiles, q.MaxAge)
}

// Vote records an up or down vote on a report.
func (s *Service) Vote(ctx context.Context, id int64, direction string) error {
	dir := domain.VoteDirection(strings.ToLower(strings.TrimSpace(direction)))
	if dir != domain.VoteUp && dir != domain.VoteDown {
		return invalid("vote must be up or down")
	}
	ok, err := s.store.Vote(ctx, id, dir)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: report %d", ErrNotFound, id)
	}
	return nil
}

// FeedbackStats computes prediction accuracy over recent reports.
func (s *Service) FeedbackStats(ctx context.Context, minConfidence float64, maxAge time.Duration) (domain.AccuracyStats, error) {
	if minConfidence < 0 || minConfidence > 1 {
		return domain.AccuracyStats{}, invalid("min_confidence must be between 0 and 1")
	}
	if maxAge <= 0 {
		maxAge = DefaultStatsMaxAge
	}
	now := domain.Now()
	reports, err := s.store.Reports(ctx, now.Add(-maxAge))
	if err != nil {
		return domain.AccuracyStats{}, err
	}
	return domain.ComputeAccuracyStats(reports, minConfidence, maxAge, now), nil
}

// Reports returns every report since the given time, oldest first.
func (s *Service) Reports(ctx context.Context, since time.Time) ([]domain.FeedbackReport, error) {
	return s.store.Reports(ctx, since)
}

// CalibrationStatus describes the current learned weights.
type CalibrationStatus struct {
	Weights      domain.Weights            `json:"weights"`
	Samples      int                       `json:"samples"`
	MeanAbsError *float64                  `json:"mean_abs_error,omitempty"`
	History      []domain.AccuracySnapshot `json:"history"`
}

// Calibration returns the weights, sample count and the most recent
// recalibration snapshots.
func (s *Service) Calibration(ctx context.Context, limit int) (CalibrationStatus, error) {
	hist, err := s.store.AccuracyHistory(ctx, limit)
	if err != nil {
		return CalibrationStatus{}, err
	}
	st := CalibrationStatus{
		Weights: s.calibrator.Weights(),
		Samples: len(s.calibrator.Samples()),
		History: hist,
	}
	if mae, ok := s.calibrator.MeanAbsError(); ok {
		st.MeanAbsError = &mae
	}
	return st, nil
}
