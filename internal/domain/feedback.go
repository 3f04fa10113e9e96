package domain

import (
	"math"
	"sort"
	"time"
)

// VoteDirection is an up or down vote on a report.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Votes counts community votes on a report.
type Votes struct {
	Up   int `json:"up"`
	Down int `json:"down"`
}

// FeedbackSubmission is a validated ground-truth report before it is stored.
type FeedbackSubmission struct {
	Location             Point
	ActualCondition      Condition
	PredictedCondition   Condition // empty when the client made no prediction
	PredictedProbability *float64
	Comment              string
	Metadata             map[string]string
}

// FeedbackReport is a stored ground-truth report. Only Votes ever change.
type FeedbackReport struct {
	ID                   int64             `json:"id"`
	Timestamp            time.Time         `json:"timestamp"`
	Location             Point             `json:"location"`
	ActualCondition      Condition         `json:"actual_condition"`
	PredictedCondition   Condition         `json:"predicted_condition,omitempty"`
	PredictedProbability *float64          `json:"predicted_probability,omitempty"`
	Comment              string            `json:"comment,omitempty"`
	Votes                Votes             `json:"votes"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// FilterNearby keeps reports within radiusMiles of center and no older than
// maxAge, newest first.
func FilterNearby(reports []FeedbackReport, center Point, radiusMiles float64, maxAge time.Duration, now time.Time) []FeedbackReport {
	out := make([]FeedbackReport, 0)
	for _, r := range reports {
		if now.Sub(r.Timestamp) > maxAge {
			continue
		}
		if HaversineMiles(center, r.Location) > radiusMiles {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// ConditionStats is the per-condition accuracy breakdown.
type ConditionStats struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// IceDetection is the confusion counts for the icy class.
type IceDetection struct {
	TruePositives  int `json:"tp"`
	FalsePositives int `json:"fp"`
	FalseNegatives int `json:"fn"`
}

// AccuracyStats summarizes how well predictions matched ground truth.
type AccuracyStats struct {
	Total        int                          `json:"total"`
	Correct      int                          `json:"correct"`
	Accuracy     float64                      `json:"accuracy"`
	Precision    float64                      `json:"precision"`
	Recall       float64                      `json:"recall"`
	ByCondition  map[Condition]ConditionStats `json:"by_condition"`
	IceDetection IceDetection                 `json:"ice_detection"`
}

// ComputeAccuracyStats compares predicted and actual conditions of reports
// newer than maxAge. Reports without a prediction are ignored; reports whose
// predicted probability is below minConfidence are ignored, and reports
// without a probability only count when minConfidence is zero. Snow counts as icy.
func ComputeAccuracyStats(reports []FeedbackReport, minConfidence float64, maxAge time.Duration, now time.Time) AccuracyStats {
	stats := AccuracyStats{ByCondition: make(map[Condition]ConditionStats)}

	for _, r := range reports {
		if r.PredictedCondition == "" || now.Sub(r.Timestamp) > maxAge {
			continue
		}
		if r.PredictedProbability == nil {
			if minConfidence > 0 {
				continue
			}
		} else if *r.PredictedProbability < minConfidence {
			continue
		}

		actual := r.ActualCondition.normalized()
		predicted := r.PredictedCondition.normalized()
		correct := actual == predicted

		stats.Total++
		cs := stats.ByCondition[r.ActualCondition]
		cs.Total++
		if correct {
			stats.Correct++
			cs.Correct++
		}
		stats.ByCondition[r.ActualCondition] = cs

		switch {
		case predicted == ConditionIcy && actual == ConditionIcy:
			stats.IceDetection.TruePositives++
		case predicted == ConditionIcy:
			stats.IceDetection.FalsePositives++
		case actual == ConditionIcy:
			stats.IceDetection.FalseNegatives++
		}
	}

	for c, cs := range stats.ByCondition {
		cs.Accuracy = percent(cs.Correct, cs.Total)
		stats.ByCondition[c] = cs
	}
	ice := stats.IceDetection
	stats.Accuracy = percent(stats.Correct, stats.Total)
	stats.Precision = percent(ice.TruePositives, ice.TruePositives+ice.FalsePositives)
	stats.Recall = percent(ice.TruePositives, ice.TruePositives+ice.FalseNegatives)
	return stats
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*1000) / 10
}
