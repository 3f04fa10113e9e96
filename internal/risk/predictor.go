package risk

import (
	"fmt"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// ModelPredictor is the name of the factor-point predictor.
const ModelPredictor = "predictor"

// Prediction is the result of BlackIcePredictor.Predict.
type Prediction struct {
	RiskLevel       domain.RiskLevel  `json:"risk_level"`
	Probability     float64           `json:"probability"`
	RiskScore       float64           `json:"risk_score"`
	Factors         []string          `json:"factors"`
	Recommendations []string          `json:"recommendations"`
	Conditions      domain.Conditions `json:"conditions"`
}

// BlackIcePredictor adds up points for each condition known to favour
// black ice.
type BlackIcePredictor struct{}

// Predict scores metric weather conditions.
func (BlackIcePredictor) Predict(cond domain.Conditions) Prediction {
	var score float64
	factors := make([]string, 0, 6)
	add := func(points float64, format string, args ...any) {
		score += points
		factors = append(factors, fmt.Sprintf(format, args...))
	}

	t := cond.TemperatureC
	switch {
	case t >= -5 && t <= 2:
		add(30, "air temperature %.1f°C is in the black-ice range", t)
	case t < -5:
		add(15, "air temperature %.1f°C is well below freezing", t)
	case t <= 4:
		add(10, "air temperature %.1f°C is close to freezing", t)
	}

	if cond.RoadTemperatureC != nil && *cond.RoadTemperatureC <= 0 {
		add(25, "road surface at %.1f°C", *cond.RoadTemperatureC)
	}

	spread := t - cond.DewPointC
	switch {
	case spread <= 1:
		add(20, "dew point spread %.1f°C, condensation likely", spread)
	case spread <= 3:
		add(10, "dew point spread %.1f°C", spread)
	}

	switch {
	case cond.Humidity >= 90:
		add(15, "humidity %.0f%%", cond.Humidity)
	case cond.Humidity >= 80:
		add(8, "humidity %.0f%%", cond.Humidity)
	}

	if cond.WindSpeedMS < 2 {
		add(10, "calm wind (%.1f m/s) allows radiative cooling", cond.WindSpeedMS)
	}

	if cond.PrecipitationMM > 0 && t <= 2 {
		add(20, "%.1f mm precipitation near freezing", cond.PrecipitationMM)
	}

	score = clampScore(score)
	level := predictorLevel(score)
	return Prediction{
		RiskLevel:       level,
		Probability:     score / 100,
		RiskScore:       score,
		Factors:         factors,
		Recommendations: Recommendations(level),
		Conditions:      cond,
	}
}

// Assess lets the predictor take part in an ensemble.
func (p BlackIcePredictor) Assess(cond domain.Conditions) Assessment {
	pred := p.Predict(cond)
	a := newAssessment(ModelPredictor, pred.RiskScore, nil)
	a.Level = pred.RiskLevel
	a.Explanation = fmt.Sprintf("%s risk from %d factors", pred.RiskLevel, len(pred.Factors))
	return a
}

func (BlackIcePredictor) Name() string { return ModelPredictor }

func predictorLevel(score float64) domain.RiskLevel {
	switch {
	case score >= 75:
		return domain.RiskExtreme
	case score >= 50:
		return domain.RiskHigh
	case score >= 25:
		return domain.RiskModerate
	default:
		return domain.RiskLow
	}
}

// Recommendations returns driver advice for a risk level.
func Recommendations(level domain.RiskLevel) []string {
	switch level {
	case domain.RiskExtreme:
		return []string{
			"Avoid travel if possible",
			"Expect black ice on bridges, overpasses and shaded curves",
			"If you must drive, reduce speed drastically and avoid sudden braking",
		}
	case domain.RiskHigh:
		return []string{
			"Reduce speed and double following distance",
			"Treat bridges and overpasses as icy",
		}
	case domain.RiskModerate:
		return []string{
			"Use caution on bridges and shaded areas",
			"Allow extra stopping distance",
		}
	default:
		return []string{"Normal driving conditions; stay alert for changing weather"}
	}
}
