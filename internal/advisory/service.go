// Package advisory wires the freshness tracker, calibrator, scorers and
// stores into the operations served over HTTP and by the monitor pipeline.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/black-ice-advisory/internal/adapter/duckdb"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
	"github.com/couchcryptid/black-ice-advisory/internal/risk"
	"github.com/couchcryptid/black-ice-advisory/internal/route"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// Errors mapped to client responses.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// WeatherSource supplies current conditions. A degraded reading may be
// returned together with an error.
type WeatherSource interface {
	Current(ctx context.Context, p domain.Point) (domain.WeatherReading, error)
}

type healthReporter interface {
	Health() map[string]string
}

// Deps are the collaborators of a Service. Geocoder may be nil.
type Deps struct {
	Store    *duckdb.Store
	Weather  WeatherSource
	Tracker  *domain.Tracker
	Sensors  *domain.SensorNetwork
	Geocoder domain.Geocoder
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Service owns the process-wide state: the freshness tracker and the
// calibrator. It is created once at startup and passed to every handler.
type Service struct {
	store      *duckdb.Store
	weather    WeatherSource
	tracker    *domain.Tracker
	sensors    *domain.SensorNetwork
	calibrator *domain.Calibrator
	ensemble   *risk.Ensemble
	predictor  risk.BlackIcePredictor
	analyzer   *route.Analyzer
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates a Service with default calibration weights. Call Open to
// restore persisted calibration.
func New(d Deps) *Service {
	cal := domain.NewCalibrator()
	return &Service{
		store:      d.Store,
		weather:    d.Weather,
		tracker:    d.Tracker,
		sensors:    d.Sensors,
		calibrator: cal,
		ensemble:   risk.DefaultEnsemble(cal),
		analyzer:   route.NewAnalyzer(d.Weather, d.Geocoder, d.Logger),
		metrics:    d.Metrics,
		logger:     d.Logger,
	}
}

// Open loads the persisted calibration state. Missing state is not an error;
// unusable state is logged and the defaults are kept.
func (s *Service) Open(ctx context.Context) error {
	st, found, err := s.store.LoadCalibration(ctx)
	if err != nil {
		return fmt.Errorf("open advisory service: %w", err)
	}
	if !found {
		s.logger.Info("no saved calibration, using default weights")
		return nil
	}
	if err := s.calibrator.Restore(st.Weights, st.Samples); err != nil {
		s.logger.Warn("saved calibration rejected, using default weights", "error", err)
		return nil
	}
	s.logger.Info("calibration restored", "samples", len(st.Samples))
	return nil
}

// Close flushes the calibration state.
func (s *Service) Close(ctx context.Context) error {
	return s.saveCalibration(ctx)
}

func (s *Service) saveCalibration(ctx context.Context) error {
	st := duckdb.CalibrationState{Weights: s.calibrator.Weights(), Samples: s.calibrator.Samples()}
	if err := s.store.SaveCalibration(ctx, st); err != nil {
		return fmt.Errorf("flush calibration: %w", err)
	}
	return nil
}

// Tracker exposes the freshness tracker.
func (s *Service) Tracker() *domain.Tracker { return s.tracker }

// CheckReadiness reports whether the database answers.
func (s *Service) CheckReadiness(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// HealthReport is the body of GET /api/health.
type HealthReport struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}

// Health checks the database and reports the last known state of each
// weather provider.
func (s *Service) Health(ctx context.Context) HealthReport {
	services := map[string]string{
		"database":      "healthy",
		"noaa_api":      "unknown",
		"openmeteo_api": "unknown",
	}
	status := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("database health check failed", "error", err)
		services["database"] = "unhealthy"
		status = "unhealthy"
	}
	if hr, ok := s.weather.(healthReporter); ok {
		for name, st := range hr.Health() {
			services[name+"_api"] = st
		}
	}
	if status == "healthy" && services["noaa_api"] == "unhealthy" && services["openmeteo_api"] == "unhealthy" {
		status = "degraded"
	}
	return HealthReport{
		Status:    status,
		Timestamp: domain.Now().UTC(),
		Service:   observability.ServiceName,
		Version:   Version,
		Services:  services,
	}
}

// Freshness returns the status of every known source.
func (s *Service) Freshness() []domain.FreshnessStatus {
	return s.tracker.Statuses()
}

// SweepFreshness drops source timestamps and sensor readings older than
// maxAge and returns how many entries were removed.
func (s *Service) SweepFreshness(maxAge time.Duration) int {
	n := s.tracker.Sweep(maxAge)
	if s.sensors != nil {
		n += s.sensors.Sweep(maxAge)
	}
	return n
}

// Sensors returns the latest reading of every roadside sensor.
func (s *Service) Sensors() []domain.SensorReading {
	if s.sensors == nil {
		return []domain.SensorReading{}
	}
	return s.sensors.Readings()
}

// CurrentWeather returns conditions at p.
func (s *Service) CurrentWeather(ctx context.Context, p domain.Point) (domain.WeatherReading, error) {
	if !p.Valid() {
		return domain.WeatherReading{}, invalid("coordinates out of range")
	}
	return s.weather.Current(ctx, p)
}

// usableWeather fetches weather for scoring. Degraded readings are accepted;
// their empty source list makes the freshness discount conservative.
func (s *Service) usableWeather(ctx context.Context, p domain.Point) (domain.WeatherReading, error) {
	r, err := s.CurrentWeather(ctx, p)
	if err != nil && !r.Degraded {
		return domain.WeatherReading{}, err
	}
	if err != nil {
		s.logger.Warn("scoring on degraded weather", "lat", p.Lat, "lon", p.Lon, "error", err)
	}
	return r, nil
}
