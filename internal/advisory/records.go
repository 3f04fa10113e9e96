package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/route"
)

// AnalyzeRoute scores a route segment by segment and stores the analysis.
func (s *Service) AnalyzeRoute(ctx context.Context, waypoints []domain.Waypoint) (domain.RouteAnalysis, error) {
	a, err := s.analyzer.Analyze(ctx, waypoints)
	if errors.Is(err, route.ErrTooFewWaypoints) || errors.Is(err, route.ErrInvalidWaypoint) {
		return domain.RouteAnalysis{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil {
		return domain.RouteAnalysis{}, err
	}
	if err := s.store.SaveRouteAnalysis(ctx, a); err != nil {
		return domain.RouteAnalysis{}, err
	}
	return a, nil
}

// RouteAnalysis loads a stored analysis.
func (s *Service) RouteAnalysis(ctx context.Context, id string) (domain.RouteAnalysis, error) {
	a, found, err := s.store.RouteAnalysis(ctx, id)
	if err != nil {
		return domain.RouteAnalysis{}, err
	}
	if !found {
		return domain.RouteAnalysis{}, fmt.Errorf("%w: route analysis %s", ErrNotFound, id)
	}
	return a, nil
}

// SaveRoute stores a named route for later analysis.
func (s *Service) SaveRoute(ctx context.Context, r domain.SavedRoute) (domain.SavedRoute, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return domain.SavedRoute{}, invalid("route name is required")
	}
	if len(r.Waypoints) < 2 {
		return domain.SavedRoute{}, invalid("a route needs at least 2 waypoints")
	}
	for i, wp := range r.Waypoints {
		if !wp.HasCoords() && wp.Name == "" {
			return domain.SavedRoute{}, invalid("waypoint %d needs coordinates or a name", i)
		}
		if wp.HasCoords() && !wp.Point().Valid() {
			return domain.SavedRoute{}, invalid("waypoint %d coordinates out of range", i)
		}
	}
	return s.store.SaveRoute(ctx, r)
}

// Routes lists saved routes.
func (s *Service) Routes(ctx context.Context) ([]domain.SavedRoute, error) {
	return s.store.Routes(ctx)
}

// AddLocation registers a location for the monitor pipeline.
func (s *Service) AddLocation(ctx context.Context, loc domain.MonitoredLocation) (domain.MonitoredLocation, error) {
	loc.Name = strings.TrimSpace(loc.Name)
	if loc.Name == "" {
		return domain.MonitoredLocation{}, invalid("location name is required")
	}
	if !loc.Location.Valid() {
		return domain.MonitoredLocation{}, invalid("coordinates out of range")
	}
	return s.store.AddLocation(ctx, loc)
}

// Locations lists monitored locations.
func (s *Service) Locations(ctx context.Context) ([]domain.MonitoredLocation, error) {
	return s.store.Locations(ctx)
}

// Alerts returns the most recent alerts.
func (s *Service) Alerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.store.RecentAlerts(ctx, limit)
}

// PredictionCounts returns predictions per level over the last day.
func (s *Service) PredictionCounts(ctx context.Context) (map[domain.RiskLevel]int, error) {
	return s.store.PredictionCounts(ctx, domain.Now().AddDate(0, 0, -1))
}
