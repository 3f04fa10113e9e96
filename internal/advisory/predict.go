package advisory

import (
	"context"

	"github.com/google/uuid"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/risk"
)

// ConditionsInput is the weather part of a prediction request, metric units.
// When Temperature is absent and Lat/Lon are present, current weather at
// that point is used instead.
type ConditionsInput struct {
	Temperature     *float64 `json:"temperature"`
	Humidity        *float64 `json:"humidity"`
	DewPoint        *float64 `json:"dew_point"`
	WindSpeed       *float64 `json:"wind_speed"`
	Precipitation   *float64 `json:"precipitation"`
	RoadTemperature *float64 `json:"road_temperature"`
	CloudCover      *float64 `json:"cloud_cover"`
	Lat             *float64 `json:"lat"`
	Lon             *float64 `json:"lon"`
	IsBridge        bool     `json:"is_bridge"`
}

func (in ConditionsInput) point() (*domain.Point, error) {
	if in.Lat == nil && in.Lon == nil {
		return nil, nil
	}
	if in.Lat == nil || in.Lon == nil {
		return nil, invalid("lat and lon must be given together")
	}
	p := domain.Point{Lat: *in.Lat, Lon: *in.Lon}
	if !p.Valid() {
		return nil, invalid("coordinates out of range")
	}
	return &p, nil
}

// resolve turns the input into conditions and the sources that fed them.
func (s *Service) resolve(ctx context.Context, in ConditionsInput) (domain.Conditions, []domain.Source, *domain.Point, error) {
	p, err := in.point()
	if err != nil {
		return domain.Conditions{}, nil, nil, err
	}

	if in.Temperature == nil {
		if p == nil {
			return domain.Conditions{}, nil, nil, invalid("temperature is required when no location is given")
		}
		r, err := s.usableWeather(ctx, *p)
		if err != nil {
			return domain.Conditions{}, nil, nil, err
		}
		cond := r.Conditions
		cond.IsBridge = in.IsBridge
		if in.RoadTemperature != nil {
			cond.RoadTemperatureC = in.RoadTemperature
		}
		return cond, r.Sources(), p, nil
	}

	switch {
	case in.Humidity == nil:
		return domain.Conditions{}, nil, nil, invalid("humidity is required")
	case in.DewPoint == nil:
		return domain.Conditions{}, nil, nil, invalid("dew_point is required")
	case in.WindSpeed == nil:
		return domain.Conditions{}, nil, nil, invalid("wind_speed is required")
	}
	cond := domain.Conditions{
		TemperatureC:     *in.Temperature,
		Humidity:         *in.Humidity,
		DewPointC:        *in.DewPoint,
		WindSpeedMS:      *in.WindSpeed,
		RoadTemperatureC: in.RoadTemperature,
		IsBridge:         in.IsBridge,
		IsDay:            true,
		ObservedAt:       domain.Now(),
	}
	if in.Precipitation != nil {
		cond.PrecipitationMM = *in.Precipitation
	}
	if in.CloudCover != nil {
		cond.CloudCover = *in.CloudCover
	}
	cond.FeelsLikeC = domain.WindChill(cond.TemperatureC, cond.WindSpeedMS)

	if err := validateConditions(cond); err != nil {
		return domain.Conditions{}, nil, nil, err
	}
	return cond, nil, p, nil
}

func validateConditions(c domain.Conditions) error {
	switch {
	case c.TemperatureC < -60 || c.TemperatureC > 60:
		return invalid("temperature must be between -60 and 60 C")
	case c.Humidity < 0 || c.Humidity > 100:
		return invalid("humidity must be between 0 and 100")
	case c.WindSpeedMS < 0:
		return invalid("wind_speed must not be negative")
	case c.PrecipitationMM < 0:
		return invalid("precipitation must not be negative")
	case c.CloudCover < 0 || c.CloudCover > 100:
		return invalid("cloud_cover must be between 0 and 100")
	}
	return nil
}

// Predict runs the factor-point predictor and records the result.
func (s *Service) Predict(ctx context.Context, in ConditionsInput) (risk.Prediction, error) {
	cond, sources, p, err := s.resolve(ctx, in)
	if err != nil {
		return risk.Prediction{}, err
	}
	pred := s.predictor.Predict(cond)
	conf := s.tracker.OverallConfidence(sources, s.calibrator.Confidence(cond))

	s.record(ctx, domain.PredictionRecord{
		Location:    p,
		Model:       risk.ModelPredictor,
		RiskLevel:   pred.RiskLevel,
		RiskScore:   pred.RiskScore,
		Probability: pred.Probability,
		Confidence:  conf.OverallConfidence,
		Conditions:  cond,
	})
	return pred, nil
}

// BIFIInput adds the data sources behind the conditions, used for the
// freshness discount.
type BIFIInput struct {
	ConditionsInput
	Sources []string `json:"sources"`
}

// BIFIResult is the calibrated BIFI score with its discounted confidence.
type BIFIResult struct {
	risk.Assessment
	Weights   domain.Weights          `json:"weights"`
	Freshness domain.ConfidenceResult `json:"freshness"`
}

// BIFI scores conditions with the calibrated weights. The calibrator's
// confidence is discounted by the freshness of the listed sources, or of the
// sources that fed a weather lookup when none are listed.
func (s *Service) BIFI(ctx context.Context, in BIFIInput) (BIFIResult, error) {
	sources, err := domain.ParseSources(in.Sources)
	if err != nil {
		return BIFIResult{}, err
	}
	cond, fetched, p, err := s.resolve(ctx, in.ConditionsInput)
	if err != nil {
		return BIFIResult{}, err
	}
	if len(sources) == 0 {
		sources = fetched
	}

	a := risk.BIFIv3(cond, s.calibrator)
	fresh := s.tracker.OverallConfidence(sources, *a.Confidence)
	a.Confidence = &fresh.OverallConfidence

	s.record(ctx, domain.PredictionRecord{
		Location:    p,
		Model:       a.Model,
		RiskLevel:   a.Level,
		RiskScore:   a.Score,
		Probability: a.Score / 100,
		Confidence:  fresh.OverallConfidence,
		Conditions:  cond,
	})
	return BIFIResult{Assessment: a, Weights: s.calibrator.Weights(), Freshness: fresh}, nil
}

// HazardResult is the ensemble over every scorer plus the weather it used.
type HazardResult struct {
	risk.CombinedHazard
	Weather domain.WeatherReading `json:"weather"`
}

// CombinedHazard fetches weather at p and runs the ensemble.
func (s *Service) CombinedHazard(ctx context.Context, p domain.Point, isBridge bool) (HazardResult, error) {
	r, err := s.usableWeather(ctx, p)
	if err != nil {
		return HazardResult{}, err
	}
	cond := r.Conditions
	cond.IsBridge = isBridge
	h := s.ensemble.Combine(cond, s.tracker, r.Sources())

	s.record(ctx, domain.PredictionRecord{
		Location:    &p,
		Model:       "ensemble",
		RiskLevel:   h.Level,
		RiskScore:   h.Score,
		Probability: h.Score / 100,
		Confidence:  h.Confidence.OverallConfidence,
		Conditions:  cond,
	})
	return HazardResult{CombinedHazard: h, Weather: r}, nil
}

// record stores a prediction. A failed write does not fail the request.
func (s *Service) record(ctx context.Context, rec domain.PredictionRecord) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = domain.Now().UTC()
	s.metrics.Predictions.WithLabelValues(rec.Model, string(rec.RiskLevel)).Inc()
	if err := s.store.SavePrediction(ctx, rec); err != nil {
		s.logger.Error("save prediction failed", "model", rec.Model, "error", err)
	}
}

// AssessLocation runs the ensemble for a monitored location.
func (s *Service) AssessLocation(ctx context.Context, loc domain.MonitoredLocation) (risk.CombinedHazard, error) {
	h, err := s.CombinedHazard(ctx, loc.Location, loc.IsBridge)
	if err != nil {
		return risk.CombinedHazard{}, err
	}
	return h.CombinedHazard, nil
}
