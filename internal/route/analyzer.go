// Package route analyzes black-ice risk along a sequence of waypoints.
package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/risk"
)

// Errors returned for unusable input.
var (
	ErrTooFewWaypoints = errors.New("a route needs at least 2 waypoints")
	ErrInvalidWaypoint = errors.New("waypoint has no usable coordinates")
)

// WeatherSource supplies conditions at a point. A degraded reading may be
// returned together with an error.
type WeatherSource interface {
	Current(ctx context.Context, p domain.Point) (domain.WeatherReading, error)
}

// Analyzer scores each segment of a route at its midpoint.
type Analyzer struct {
	weather   WeatherSource
	geocoder  domain.Geocoder
	predictor risk.BlackIcePredictor
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer. geocoder may be nil when geocoding is disabled.
func NewAnalyzer(weather WeatherSource, geocoder domain.Geocoder, logger *slog.Logger) *Analyzer {
	return &Analyzer{weather: weather, geocoder: geocoder, logger: logger}
}

// Analyze resolves the waypoints, scores every consecutive pair and
// summarizes the result. Segments at high or extreme risk are danger zones.
func (a *Analyzer) Analyze(ctx context.Context, waypoints []domain.Waypoint) (domain.RouteAnalysis, error) {
	if len(waypoints) < 2 {
		return domain.RouteAnalysis{}, ErrTooFewWaypoints
	}

	resolved := make([]domain.Waypoint, len(waypoints))
	for i, wp := range waypoints {
		wp = domain.ResolveWaypoint(ctx, wp, a.geocoder, a.logger)
		if !wp.HasCoords() || !wp.Point().Valid() {
			return domain.RouteAnalysis{}, fmt.Errorf("waypoint %d: %w", i, ErrInvalidWaypoint)
		}
		resolved[i] = wp
	}

	result := domain.RouteAnalysis{
		ID:           uuid.NewString(),
		CreatedAt:    domain.Now().UTC(),
		MaxRiskLevel: domain.RiskLow,
		Segments:     make([]domain.RouteSegment, 0, len(resolved)-1),
		DangerZones:  make([]domain.RouteSegment, 0),
	}
	scores := make([]float64, 0, len(resolved)-1)

	for i := 0; i+1 < len(resolved); i++ {
		seg, err := a.segment(ctx, i, resolved[i], resolved[i+1])
		if err != nil {
			return domain.RouteAnalysis{}, err
		}
		result.Segments = append(result.Segments, seg)
		result.TotalDistanceMiles += seg.DistanceMiles
		scores = append(scores, seg.RiskScore)
		if seg.RiskLevel.Rank() > result.MaxRiskLevel.Rank() {
			result.MaxRiskLevel = seg.RiskLevel
		}
		if seg.RiskLevel.AtLeast(domain.RiskHigh) {
			result.DangerZones = append(result.DangerZones, seg)
		}
	}

	result.TotalDistanceMiles = round1(result.TotalDistanceMiles)
	result.AverageRiskScore = round1(stat.Mean(scores, nil))
	result.Recommendations = recommendations(result)
	return result, nil
}

func (a *Analyzer) segment(ctx context.Context, idx int, from, to domain.Waypoint) (domain.RouteSegment, error) {
	mid := domain.Midpoint(from.Point(), to.Point())
	reading, err := a.weather.Current(ctx, mid)
	if err != nil && !reading.Degraded {
		return domain.RouteSegment{}, fmt.Errorf("weather for segment %d: %w", idx, err)
	}
	if err != nil {
		a.logger.Warn("route segment scored on degraded weather", "segment", idx, "error", err)
	}

	pred := a.predictor.Predict(reading.Conditions)
	return domain.RouteSegment{
		Index:         idx,
		From:          from,
		To:            to,
		DistanceMiles: round1(domain.HaversineMiles(from.Point(), to.Point())),
		RiskLevel:     pred.RiskLevel,
		RiskScore:     pred.RiskScore,
		Probability:   pred.Probability,
		Factors:       pred.Factors,
		Degraded:      reading.Degraded,
	}, nil
}

func recommendations(r domain.RouteAnalysis) []string {
	out := risk.Recommendations(r.MaxRiskLevel)
	for _, z := range r.DangerZones {
		out = append(out, fmt.Sprintf("Danger zone between %s and %s (%s risk)", label(z.From), label(z.To), z.RiskLevel))
	}
	for _, s := range r.Segments {
		if s.Degraded {
			out = append(out, "Live weather was unavailable for part of this route; check conditions before departure")
			break
		}
	}
	return out
}

func label(wp domain.Waypoint) string {
	if wp.Name != "" {
		return wp.Name
	}
	return fmt.Sprintf("%.4f,%.4f", wp.Lat, wp.Lon)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
