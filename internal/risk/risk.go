// Package risk holds the independent black-ice scorers. Each scorer is a
// pure function of weather conditions and reports a 0–100 score.
package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// Assessment is the common result of every scorer.
type Assessment struct {
	Model       string             `json:"model"`
	Score       float64            `json:"score"`
	Level       domain.RiskLevel   `json:"level"`
	Explanation string             `json:"explanation"`
	Components  map[string]float64 `json:"components"`
	Confidence  *float64           `json:"confidence,omitempty"`
}

// Scorer assesses black-ice risk for a set of conditions.
type Scorer interface {
	Name() string
	Assess(cond domain.Conditions) Assessment
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc struct {
	Model string
	Fn    func(domain.Conditions) Assessment
}

func (s ScorerFunc) Name() string { return s.Model }

func (s ScorerFunc) Assess(cond domain.Conditions) Assessment { return s.Fn(cond) }

func newAssessment(model string, score float64, components map[string]float64) Assessment {
	score = round1(clampScore(score))
	return Assessment{
		Model:       model,
		Score:       score,
		Level:       domain.LevelForScore(score),
		Explanation: explain(score, components),
		Components:  components,
	}
}

// explain names the two largest contributors.
func explain(score float64, components map[string]float64) string {
	if len(components) == 0 {
		return fmt.Sprintf("%s risk", domain.LevelForScore(score))
	}
	names := make([]string, 0, len(components))
	for k := range components {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if components[names[i]] == components[names[j]] {
			return names[i] < names[j]
		}
		return components[names[i]] > components[names[j]]
	})
	if len(names) > 2 {
		names = names[:2]
	}
	return fmt.Sprintf("%s risk, driven by %s", domain.LevelForScore(score), strings.Join(names, " and "))
}

func clampScore(v float64) float64 { return clamp(v, 0, 100) }

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
