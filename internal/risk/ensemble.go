package risk

import (
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// WeightedScorer is a scorer and its share of the ensemble.
type WeightedScorer struct {
	Scorer Scorer
	Weight float64
}

// CombinedHazard is the ensemble result.
type CombinedHazard struct {
	Score       float64                 `json:"score"`
	Level       domain.RiskLevel        `json:"level"`
	Confidence  domain.ConfidenceResult `json:"confidence"`
	Assessments []Assessment            `json:"assessments"`
	Sources     []domain.Source         `json:"sources"`
}

// Ensemble is a weighted average of independent scorers.
type Ensemble struct {
	scorers []WeightedScorer
}

// NewEnsemble returns an ensemble over scorers.
func NewEnsemble(scorers ...WeightedScorer) *Ensemble {
	return &Ensemble{scorers: scorers}
}

// DefaultEnsemble combines every scorer, BIFI v3 on the given calibrator.
func DefaultEnsemble(cal *domain.Calibrator) *Ensemble {
	return NewEnsemble(
		WeightedScorer{Scorer: ScorerFunc{Model: ModelBIFIv3, Fn: func(c domain.Conditions) Assessment { return BIFIv3(c, cal) }}, Weight: 0.30},
		WeightedScorer{Scorer: BlackIcePredictor{}, Weight: 0.20},
		WeightedScorer{Scorer: ScorerFunc{Model: ModelRoadSurface, Fn: RoadSurface}, Weight: 0.15},
		WeightedScorer{Scorer: ScorerFunc{Model: ModelOvernightCooling, Fn: OvernightCooling}, Weight: 0.10},
		WeightedScorer{Scorer: ScorerFunc{Model: ModelLogistic, Fn: Logistic}, Weight: 0.15},
		WeightedScorer{Scorer: ScorerFunc{Model: ModelBridgeFreeze, Fn: BridgeFreeze}, Weight: 0.10},
	)
}

// Combine runs every scorer. Base confidence reflects how much the scorers
// agree and is then discounted by the freshness of sources.
func (e *Ensemble) Combine(cond domain.Conditions, tracker *domain.Tracker, sources []domain.Source) CombinedHazard {
	scores := make([]float64, 0, len(e.scorers))
	weights := make([]float64, 0, len(e.scorers))
	out := CombinedHazard{Assessments: make([]Assessment, 0, len(e.scorers)), Sources: sources}

	for _, ws := range e.scorers {
		if ws.Scorer.Name() == ModelBridgeFreeze && !cond.IsBridge {
			continue
		}
		a := ws.Scorer.Assess(cond)
		out.Assessments = append(out.Assessments, a)
		scores = append(scores, a.Score)
		weights = append(weights, ws.Weight)
	}
	if len(scores) == 0 {
		out.Level = domain.RiskMinimal
		out.Confidence = tracker.OverallConfidence(sources, 0)
		return out
	}

	// Weights are relative and need not sum to one.
	mean, sd := stat.PopMeanStdDev(scores, weights)
	if len(scores) < 2 {
		sd = 0
	}
	out.Score = round1(mean)
	out.Level = domain.LevelForScore(mean)
	out.Confidence = tracker.OverallConfidence(sources, clamp(1-sd/50, 0.3, 1))
	return out
}
