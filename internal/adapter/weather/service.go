package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/black-ice-advisory/internal/adapter/cache"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
)

// sensorRadiusMiles is how far a roadside sensor may be from the point and
// still supply its road temperature.
const sensorRadiusMiles = 5.0

// Service tries providers in order, caches successful readings, records
// source freshness and merges in nearby road sensor data.
type Service struct {
	providers []Provider
	store     cache.Store[domain.WeatherReading]
	tracker   *domain.Tracker
	sensors   *domain.SensorNetwork
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu     sync.RWMutex
	health map[string]string
}

// NewService builds the fallback chain. store and sensors may be nil.
func NewService(providers []Provider, store cache.Store[domain.WeatherReading], tracker *domain.Tracker, sensors *domain.SensorNetwork, metrics *observability.Metrics, logger *slog.Logger) *Service {
	health := make(map[string]string, len(providers))
	for _, p := range providers {
		health[p.Name()] = "unknown"
	}
	return &Service{
		providers: providers,
		store:     store,
		tracker:   tracker,
		sensors:   sensors,
		metrics:   metrics,
		logger:    logger,
		health:    health,
	}
}

// Current returns conditions at p. When every provider fails it returns a
// degraded reading built from conservative defaults together with an error
// wrapping ErrUnavailable; callers choose whether to serve it.
func (s *Service) Current(ctx context.Context, p domain.Point) (domain.WeatherReading, error) {
	if !p.Valid() {
		return domain.WeatherReading{}, fmt.Errorf("coordinates out of range: %.4f,%.4f", p.Lat, p.Lon)
	}
	key := fmt.Sprintf("%.3f,%.3f", p.Lat, p.Lon)

	if s.store != nil {
		if r, ok := s.store.Get(ctx, key); ok {
			s.metrics.CacheLookups.WithLabelValues("weather", "hit").Inc()
			return s.withSensors(r, p), nil
		}
		s.metrics.CacheLookups.WithLabelValues("weather", "miss").Inc()
	}

	var errs []error
	for _, prov := range s.providers {
		start := time.Now()
		cond, err := prov.Fetch(ctx, p)
		s.metrics.WeatherAPIDuration.WithLabelValues(prov.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.WeatherFetches.WithLabelValues(prov.Name(), "error").Inc()
			s.setHealth(prov.Name(), "unhealthy")
			s.logger.Warn("weather provider failed", "provider", prov.Name(), "lat", p.Lat, "lon", p.Lon, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", prov.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		s.metrics.WeatherFetches.WithLabelValues(prov.Name(), "success").Inc()
		s.setHealth(prov.Name(), "healthy")
		s.tracker.Touch(prov.Source())

		r := domain.WeatherReading{Conditions: cond, Source: prov.Source(), Provider: prov.Name()}
		if s.store != nil {
			s.store.Put(ctx, key, r)
		}
		return s.withSensors(r, p), nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no providers configured"))
	}
	s.metrics.WeatherFetches.WithLabelValues("fallback", "degraded").Inc()
	err := fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
	degraded := domain.WeatherReading{
		Conditions: domain.DefaultConditions(),
		Provider:   "fallback",
		Degraded:   true,
		Error:      err.Error(),
	}
	return s.withSensors(degraded, p), err
}

// withSensors attaches the road temperature of the nearest sensor.
func (s *Service) withSensors(r domain.WeatherReading, p domain.Point) domain.WeatherReading {
	if s.sensors == nil {
		return r
	}
	reading, ok := s.sensors.Nearest(p, sensorRadiusMiles)
	if !ok {
		return r
	}
	road := reading.RoadTempC
	r.Conditions.RoadTemperatureC = &road
	return r
}

func (s *Service) setHealth(name, status string) {
	s.mu.Lock()
	s.health[name] = status
	s.mu.Unlock()
}

// Health reports the outcome of the last call to each provider:
// healthy, unhealthy or unknown when never called.
func (s *Service) Health() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.health))
	for k, v := range s.health {
		out[k] = v
	}
	return out
}
