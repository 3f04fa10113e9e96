package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

var feedbackNow = time.Date(2025, time.February, 3, 7, 0, 0, 0, time.UTC)

func prob(v float64) *float64 { return &v }

func TestFilterNearby(t *testing.T) {
	center := Point{Lat: 39.7392, Lon: -104.9903}
	reports := []FeedbackReport{
		{ID: 1, Timestamp: feedbackNow.Add(-3 * time.Hour), Location: center},
		{ID: 2, Timestamp: feedbackNow.Add(-1 * time.Hour), Location: Point{Lat: 39.74, Lon: -104.99}},
		{ID: 3, Timestamp: feedbackNow.Add(-30 * time.Hour), Location: center},
		{ID: 4, Timestamp: feedbackNow.Add(-10 * time.Minute), Location: Point{Lat: 40.0150, Lon: -105.2705}},
	}

	got := FilterNearby(reports, center, 5, 24*time.Hour, feedbackNow)

	ids := make([]int64, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []int64{2, 1}, ids)
}

func TestFilterNearby_EmptyIsNotNil(t *testing.T) {
	got := FilterNearby(nil, Point{}, 5, time.Hour, feedbackNow)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestComputeAccuracyStats(t *testing.T) {
	at := feedbackNow.Add(-time.Hour)
	reports := []FeedbackReport{
		{Timestamp: at, ActualCondition: ConditionIcy, PredictedCondition: ConditionIcy, PredictedProbability: prob(0.9)},
		{Timestamp: at, ActualCondition: ConditionSnow, PredictedCondition: ConditionIcy, PredictedProbability: prob(0.8)},
		{Timestamp: at, ActualCondition: ConditionIcy, PredictedCondition: ConditionWet, PredictedProbability: prob(0.6)},
		{Timestamp: at, ActualCondition: ConditionDry, PredictedCondition: ConditionIcy, PredictedProbability: prob(0.7)},
		{Timestamp: at, ActualCondition: ConditionDry, PredictedCondition: ConditionDry, PredictedProbability: prob(0.2)},
		{Timestamp: at, ActualCondition: ConditionWet},
		{Timestamp: feedbackNow.Add(-40 * 24 * time.Hour), ActualCondition: ConditionDry, PredictedCondition: ConditionIcy},
	}

	got := ComputeAccuracyStats(reports, 0, 30*24*time.Hour, feedbackNow)

	want := AccuracyStats{
		Total:     5,
		Correct:   3,
		Accuracy:  60,
		Precision: 66.7,
		Recall:    66.7,
		ByCondition: map[Condition]ConditionStats{
			ConditionIcy:  {Total: 2, Correct: 1, Accuracy: 50},
			ConditionSnow: {Total: 1, Correct: 1, Accuracy: 100},
			ConditionDry:  {Total: 2, Correct: 1, Accuracy: 50},
		},
		IceDetection: IceDetection{TruePositives: 2, FalsePositives: 1, FalseNegatives: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ComputeAccuracyStats mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeAccuracyStats_MinConfidence(t *testing.T) {
	at := feedbackNow.Add(-time.Hour)
	reports := []FeedbackReport{
		{Timestamp: at, ActualCondition: ConditionIcy, PredictedCondition: ConditionIcy, PredictedProbability: prob(0.9)},
		{Timestamp: at, ActualCondition: ConditionDry, PredictedCondition: ConditionIcy, PredictedProbability: prob(0.3)},
		{Timestamp: at, ActualCondition: ConditionDry, PredictedCondition: ConditionIcy},
	}

	got := ComputeAccuracyStats(reports, 0.5, 24*time.Hour, feedbackNow)

	assert.Equal(t, 1, got.Total)
	assert.Equal(t, 100.0, got.Accuracy)
	assert.Equal(t, 100.0, got.Precision)
}

func TestComputeAccuracyStats_NoData(t *testing.T) {
	got := ComputeAccuracyStats(nil, 0, time.Hour, feedbackNow)

	assert.Zero(t, got.Total)
	assert.Zero(t, got.Accuracy)
	assert.Zero(t, got.Precision)
	assert.Zero(t, got.Recall)
	assert.NotNil(t, got.ByCondition)
}
