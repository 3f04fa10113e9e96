package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// SavePrediction records a served prediction.
func (s *Store) SavePrediction(ctx context.Context, p domain.PredictionRecord) error {
	cond, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	var lat, lon sql.NullFloat64
	if p.Location != nil {
		lat = sql.NullFloat64{Float64: p.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: p.Location.Lon, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, created_at, lat, lon, model, risk_level, risk_score, probability, confidence, conditions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CreatedAt.UTC(), lat, lon, p.Model, string(p.RiskLevel), p.RiskScore, p.Probability, p.Confidence, string(cond))
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// PredictionCounts returns the number of predictions per risk level since t.
func (s *Store) PredictionCounts(ctx context.Context, since time.Time) (map[domain.RiskLevel]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT risk_level, count(*) FROM predictions WHERE created_at >= ? GROUP BY risk_level`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("count predictions: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.RiskLevel]int)
	for rows.Next() {
		var (
			level string
			n     int64
		)
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("scan prediction count: %w", err)
		}
		out[domain.RiskLevel(level)] = int(n)
	}
	return out, rows.Err()
}

// SaveAlert records an alert.
func (s *Store) SaveAlert(ctx context.Context, a domain.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, location_id, name, lat, lon, level, score, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.LocationID, a.Name, a.Location.Lat, a.Location.Lon, string(a.Level), a.Score, a.Message, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location_id, name, lat, lon, level, score, message, created_at
		FROM alerts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Alert, 0)
	for rows.Next() {
		var (
			a     domain.Alert
			level string
		)
		if err := rows.Scan(&a.ID, &a.LocationID, &a.Name, &a.Location.Lat, &a.Location.Lon, &level, &a.Score, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Level = domain.RiskLevel(level)
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddLocation stores a monitored location and returns it with its id.
func (s *Store) AddLocation(ctx context.Context, loc domain.MonitoredLocation) (domain.MonitoredLocation, error) {
	loc.CreatedAt = domain.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO monitored_locations (name, lat, lon, is_bridge, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		loc.Name, loc.Location.Lat, loc.Location.Lon, loc.IsBridge, loc.CreatedAt).Scan(&loc.ID)
	if err != nil {
		return domain.MonitoredLocation{}, fmt.Errorf("insert monitored location: %w", err)
	}
	return loc, nil
}

// Locations returns all monitored locations by id.
func (s *Store) Locations(ctx context.Context) ([]domain.MonitoredLocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, lat, lon, is_bridge, created_at FROM monitored_locations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query monitored locations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.MonitoredLocation, 0)
	for rows.Next() {
		var loc domain.MonitoredLocation
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Location.Lat, &loc.Location.Lon, &loc.IsBridge, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan monitored location: %w", err)
		}
		loc.CreatedAt = loc.CreatedAt.UTC()
		out = append(out, loc)
	}
	return out, rows.Err()
}

// SaveRoute stores a named route and returns it with its id.
func (s *Store) SaveRoute(ctx context.Context, r domain.SavedRoute) (domain.SavedRoute, error) {
	wps, err := json.Marshal(r.Waypoints)
	if err != nil {
		return domain.SavedRoute{}, fmt.Errorf("encode waypoints: %w", err)
	}
	r.CreatedAt = domain.Now().UTC()
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO saved_routes (name, waypoints, created_at) VALUES (?, ?, ?) RETURNING id`,
		r.Name, string(wps), r.CreatedAt).Scan(&r.ID)
	if err != nil {
		return domain.SavedRoute{}, fmt.Errorf("insert saved route: %w", err)
	}
	return r, nil
}

// Routes returns all saved routes by id.
func (s *Store) Routes(ctx context.Context) ([]domain.SavedRoute, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, waypoints, created_at FROM saved_routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query saved routes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SavedRoute, 0)
	for rows.Next() {
		var (
			r   domain.SavedRoute
			wps string
		)
		if err := rows.Scan(&r.ID, &r.Name, &wps, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan saved route: %w", err)
		}
		if err := json.Unmarshal([]byte(wps), &r.Waypoints); err != nil {
			return nil, fmt.Errorf("decode waypoints of route %d: %w", r.ID, err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRouteAnalysis stores a route analysis.
func (s *Store) SaveRouteAnalysis(ctx context.Context, a domain.RouteAnalysis) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode route analysis: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO route_analyses (id, created_at, total_distance_miles, max_risk_level, average_risk_score, analysis)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.CreatedAt.UTC(), a.TotalDistanceMiles, string(a.MaxRiskLevel), a.AverageRiskScore, string(body))
	if err != nil {
		return fmt.Errorf("insert route analysis: %w", err)
	}
	return nil
}

// RouteAnalysis loads a stored analysis by id.
func (s *Store) RouteAnalysis(ctx context.Context, id string) (domain.RouteAnalysis, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT analysis FROM route_analyses WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RouteAnalysis{}, false, nil
	}
	if err != nil {
		return domain.RouteAnalysis{}, false, fmt.Errorf("load route analysis: %w", err)
	}
	var a domain.RouteAnalysis
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return domain.RouteAnalysis{}, false, fmt.Errorf("decode route analysis: %w", err)
	}
	return a, true, nil
}

// Name identifies the store as an alert sink in metrics.
func (s *Store) Name() string { return "store" }

// PublishAlerts saves each alert.
func (s *Store) PublishAlerts(ctx context.Context, alerts []domain.Alert) error {
	for _, a := range alerts {
		if err := s.SaveAlert(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
