package advisory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

func denverFeedback(actual string) FeedbackInput {
	return FeedbackInput{Lat: f64(39.7392), Lon: f64(-104.9903), ActualCondition: actual}
}

func TestSubmitFeedback(t *testing.T) {
	fx := newFixture(t, liveWeather(icyConditions))
	ctx := context.Background()

	in := denverFeedback(" ICY ")
	in.PredictedCondition = "High risk"
	in.PredictedProbability = f64(0.8)
	in.Comment = "  bridge deck glazed  "

	r, err := fx.svc.SubmitFeedback(ctx, in)
	require.NoError(t, err)

	assert.Positive(t, r.ID)
	assert.Equal(t, domain.ConditionIcy, r.ActualCondition)
	assert.Equal(t, domain.ConditionIcy, r.PredictedCondition)
	assert.Equal(t, "bridge deck glazed", r.Comment)
	assert.Equal(t, testNow, r.Timestamp)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.FeedbackReports.WithLabelValues("icy")))
	assert.Len(t, fx.svc.calibrator.Samples(), 1)

	nearby, err := fx.svc.NearbyFeedback(ctx, NearbyQuery{Lat: 39.7392, Lon: -104.9903})
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, r.ID, nearby[0].ID)
}

func TestSubmitFeedback_Validation(t *testing.T) {
	fx := newFixture(t, liveWeather(icyConditions))
	ctx := context.Background()

	_, err := fx.svc.SubmitFeedback(ctx, denverFeedback("slushy"))
	require.ErrorIs(t, err, domain.ErrUnknownCondition)

	_, err = fx.svc.SubmitFeedback(ctx, FeedbackInput{Lat: f64(39.7), ActualCondition: "dry"})
	require.ErrorIs(t, err, ErrInvalidInput)

	bad := denverFeedback("dry")
	bad.PredictedProbability = f64(1.5)
	_, err = fx.svc.SubmitFeedback(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidInput)

	reports, err := fx.svc.Reports(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestSubmitFeedback_DegradedWeatherSkipsLearning(t *testing.T) {
	fx := newFixture(t, degradedWeather())

	_, err := fx.svc.SubmitFeedback(context.Background(), denverFeedback("wet"))
	require.NoError(t, err)
	assert.Empty(t, fx.svc.calibrator.Samples())
}

func TestSubmitFeedback_RecalibratesAndPersists(t *testing.T) {
	fx := newFixture(t, liveWeather(icyConditions))
	ctx := context.Background()

	// Icy weather scored high while drivers keep reporting dry roads.
	for i := 0; i < domain.MinSamplesForRecalibration; i++ {
		_, err := fx.svc.SubmitFeedback(ctx, denverFeedback("dry"))
		require.NoError(t, err)
	}

	assert.Greater(t, fx.svc.calibrator.Weights().Temperature, domain.DefaultWeights().Temperature)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Recalibrations))

	status, err := fx.svc.Calibration(ctx, 10)
	require.NoError(t, err)
	require.Len(t, status.History, 1)
	assert.Equal(t, domain.MinSamplesForRecalibration, status.Samples)
	require.NotNil(t, status.MeanAbsError)
	assert.Greater(t, *status.MeanAbsError, domain.RecalibrationErrorLimit)

	require.NoError(t, fx.svc.Close(ctx))

	restored := New(Deps{Store: fx.store, Weather: liveWeather(icyConditions), Tracker: fx.tracker, Metrics: fx.metrics, Logger: fx.svc.logger})
	require.NoError(t, restored.Open(ctx))
	assert.Equal(t, fx.svc.calibrator.Weights(), restored.calibrator.Weights())
	assert.Len(t, restored.calibrator.Samples(), domain.MinSamplesForRecalibration)
}

func TestNearbyFeedback_Validation(t *testing.T) {
	fx := newFixture(t, liveWeather(icyConditions))
	ctx := context.Background()

	_, err := fx.svc.NearbyFeedback(ctx, NearbyQuery{Lat: 91, Lon: 0})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = fx.svc.NearbyFeedback(ctx, NearbyQuery{Lat: 39, Lon: -105, RadiusMiles: 500})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = fx.svc.NearbyFeedback(ctx, NearbyQuery{Lat: 39, Lon: -105, RadiusMiles: math.NaN()})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestVote(t *testing.T) {
	fx := newFixture(t, degradedWeather())
	ctx := context.Background()

	r, err := fx.svc.SubmitFeedback(ctx, denverFeedback("icy"))
	require.NoError(t, err)

	require.NoError(t, fx.svc.Vote(ctx, r.ID, "UP"))
	require.ErrorIs(t, fx.svc.Vote(ctx, r.ID, "sideways"), ErrInvalidInput)

	err = fx.svc.Vote(ctx, r.ID+42, "down")
	require.ErrorIs(t, err, ErrNotFound)

	reports, err := fx.svc.Reports(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, domain.Votes{Up: 1}, reports[0].Votes)
}

func TestFeedbackStats(t *testing.T) {
	fx := newFixture(t, degradedWeather())
	ctx := context.Background()

	submit := func(actual, predicted string, prob float64) {
		in := denverFeedback(actual)
		in.PredictedCondition = predicted
		in.PredictedProbability = f64(prob)
		_, err := fx.svc.SubmitFeedback(ctx, in)
		require.NoError(t, err)
	}
	submit("icy", "icy", 0.9)
	submit("snow", "icy", 0.8)
	submit("dry", "icy", 0.7)
	submit("wet", "dry", 0.3)
	_, err := fx.svc.SubmitFeedback(ctx, denverFeedback("dry"))
	require.NoError(t, err)

	stats, err := fx.svc.FeedbackStats(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Correct)
	assert.Equal(t, domain.IceDetection{TruePositives: 2, FalsePositives: 1}, stats.IceDetection)

	stats, err = fx.svc.FeedbackStats(ctx, 0.75, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)

	_, err = fx.svc.FeedbackStats(ctx, 2, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFeedbackStats_RespectsMaxAge(t *testing.T) {
	fx := newFixture(t, degradedWeather())
	ctx := context.Background()

	in := denverFeedback("icy")
	in.PredictedCondition = "icy"
	_, err := fx.svc.SubmitFeedback(ctx, in)
	require.NoError(t, err)

	fx.clock.Advance(48 * time.Hour)
	stats, err := fx.svc.FeedbackStats(ctx, 0, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestSubmitFeedback_StoreFailure(t *testing.T) {
	fx := newFixture(t, degradedWeather())
	require.NoError(t, fx.store.Close())

	_, err := fx.svc.SubmitFeedback(context.Background(), denverFeedback("icy"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidInput))
}
