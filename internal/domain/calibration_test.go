package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezing() Conditions {
	return Conditions{TemperatureC: -1, Humidity: 90, DewPointC: -2}
}

func TestDefaultWeights_Valid(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
}

func TestWeights_ValidateRejectsBadSums(t *testing.T) {
	w := DefaultWeights()
	w.Temperature = 0.9
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w.Wind = -0.1
	w.Temperature += 0.2
	assert.ErrorContains(t, w.Validate(), "negative weight")
}

func TestLearnFromFeedback_NoRecalibrationBelowTenSamples(t *testing.T) {
	c := NewCalibrator()

	for i := 0; i < MinSamplesForRecalibration-1; i++ {
		changed := c.LearnFromFeedback(95, ConditionDry, freezing())
		assert.False(t, changed)
	}
	assert.Equal(t, DefaultWeights(), c.Weights())
	assert.Len(t, c.Samples(), MinSamplesForRecalibration-1)
}

func TestLearnFromFeedback_RecordsErrorAgainstMidpoint(t *testing.T) {
	c := NewCalibrator()
	c.LearnFromFeedback(55, ConditionIcy, freezing())

	samples := c.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, 80.0, samples[0].ExpectedScore)
	assert.Equal(t, -25.0, samples[0].Error)
	assert.InDelta(t, 30.2, samples[0].TemperatureF, 0.001)
}

func TestRecalibrate_HighErrorRaisesTemperatureWeight(t *testing.T) {
	c := NewCalibrator()
	before := c.Weights()

	var changed bool
	for i := 0; i < MinSamplesForRecalibration; i++ {
		changed = c.LearnFromFeedback(90, ConditionDry, freezing()) // error 80
	}

	require.True(t, changed)
	after := c.Weights()
	assert.Greater(t, after.Temperature, before.Temperature)
	assert.Less(t, after.Time, before.Time)
	assert.InDelta(t, 1.0, after.Sum(), 1e-9)
	require.NoError(t, after.Validate())
	require.Len(t, c.Snapshots(), 1)
	assert.InDelta(t, 80.0, c.Snapshots()[0].MeanAbsError, 1e-9)
}

func TestRecalibrate_StrictlyIncreasesUntilCap(t *testing.T) {
	c := NewCalibrator()
	for i := 0; i < MinSamplesForRecalibration; i++ {
		c.LearnFromFeedback(0, ConditionIcy, freezing())
	}

	prev := c.Weights().Temperature
	for i := 0; i < 30; i++ {
		c.Recalibrate()
		w := c.Weights()
		if prev < MaxTemperatureWeight {
			assert.Greater(t, w.Temperature, prev)
		}
		assert.LessOrEqual(t, w.Temperature, MaxTemperatureWeight+1e-12)
		assert.InDelta(t, 1.0, w.Sum(), 1e-9)
		assert.GreaterOrEqual(t, w.Time, 0.0)
		prev = w.Temperature
	}
	assert.InDelta(t, MaxTemperatureWeight, c.Weights().Temperature, 1e-12)
}

func TestRecalibrate_LowErrorLeavesWeights(t *testing.T) {
	c := NewCalibrator()
	for i := 0; i < 15; i++ {
		c.LearnFromFeedback(45, ConditionWet, freezing()) // error 5
	}

	assert.Equal(t, DefaultWeights(), c.Weights())
	assert.Empty(t, c.Snapshots())
}

func TestRecalibrate_UsesRecentWindow(t *testing.T) {
	c := NewCalibrator()
	for i := 0; i < 60; i++ {
		c.LearnFromFeedback(10, ConditionDry, freezing()) // exact
	}
	before := c.Weights()

	// 10 large errors inside a 50-sample window: MAE = 10*70/50 = 14, below the limit.
	for i := 0; i < 10; i++ {
		c.LearnFromFeedback(80, ConditionDry, freezing())
	}
	assert.Equal(t, before, c.Weights())

	mae, ok := c.MeanAbsError()
	require.True(t, ok)
	assert.InDelta(t, 14.0, mae, 1e-9)
}

func TestConfidence_CappedWithoutSimilarCases(t *testing.T) {
	c := NewCalibrator()
	for i := 0; i < 20; i++ {
		c.LearnFromFeedback(80, ConditionIcy, Conditions{TemperatureC: 20, Humidity: 30})
	}

	// Perfect history, but none of it resembles a near-freezing humid night.
	assert.Equal(t, lowSimilarityCap, c.Confidence(freezing()))
	// Similar conditions get the full accuracy-based confidence.
	assert.Equal(t, maxCalibratedConfidence, c.Confidence(Conditions{TemperatureC: 20, Humidity: 35}))
}

func TestConfidence_NoHistory(t *testing.T) {
	c := NewCalibrator()
	assert.Equal(t, math.Min(noHistoryConfidence, lowSimilarityCap), c.Confidence(freezing()))
}

func TestRestore(t *testing.T) {
	c := NewCalibrator()
	w := Weights{Temperature: 0.35, Humidity: 0.15, DewPoint: 0.2, Wind: 0.1, Time: 0.05, Precipitation: 0.15}

	require.NoError(t, c.Restore(w, []CalibrationSample{{Error: 3}}))
	assert.Equal(t, w, c.Weights())
	assert.Len(t, c.Samples(), 1)

	bad := w
	bad.Temperature = 0.9
	require.Error(t, c.Restore(bad, nil))
	assert.Equal(t, w, c.Weights())
}
