package http

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/black-ice-advisory/internal/advisory"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.svc.Health(r.Context())
	status := http.StatusOK
	if h.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	sharedobs.WriteJSON(w, status, h)
}

func (s *Server) handleCurrentWeather(w http.ResponseWriter, r *http.Request) {
	p, err := pointParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reading, err := s.svc.CurrentWeather(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, reading)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var in advisory.ConditionsInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	pred, err := s.svc.Predict(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, pred)
}

func (s *Server) handleBIFI(w http.ResponseWriter, r *http.Request) {
	var in advisory.BIFIInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.BIFI(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleCombinedHazard(w http.ResponseWriter, r *http.Request) {
	p, err := pointParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bridge, err := boolParam(r, "bridge")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.svc.CombinedHazard(r.Context(), p, bridge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, h)
}

type routeRequest struct {
	Waypoints []domain.Waypoint `json:"waypoints"`
	RouteID   *int64            `json:"route_id"`
}

func (s *Server) handleAnalyzeRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	waypoints := req.Waypoints
	if req.RouteID != nil {
		saved, err := s.savedRoute(r, *req.RouteID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		waypoints = saved.Waypoints
	}
	a, err := s.svc.AnalyzeRoute(r.Context(), waypoints)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, a)
}

func (s *Server) savedRoute(r *http.Request, id int64) (domain.SavedRoute, error) {
	routes, err := s.svc.Routes(r.Context())
	if err != nil {
		return domain.SavedRoute{}, err
	}
	for _, rt := range routes {
		if rt.ID == id {
			return rt, nil
		}
	}
	return domain.SavedRoute{}, advisoryNotFound("route %d", id)
}

func (s *Server) handleRouteAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.RouteAnalysis(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, a)
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var in advisory.FeedbackInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.svc.SubmitFeedback(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "report": report})
}

func (s *Server) handleFeedbackStats(w http.ResponseWriter, r *http.Request) {
	minConf, err := floatParam(r, "min_confidence", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	days, err := floatParam(r, "max_age_days", 30)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := s.svc.FeedbackStats(r.Context(), minConf, time.Duration(days*float64(24*time.Hour)))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) handleNearbyFeedback(w http.ResponseWriter, r *http.Request) {
	p, err := pointParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	radius, err := floatParam(r, "radius", advisory.DefaultNearbyRadiusMiles)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hours, err := floatParam(r, "max_age_hours", advisory.DefaultNearbyMaxAge.Hours())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reports, err := s.svc.NearbyFeedback(r.Context(), advisory.NearbyQuery{
		Lat:         p.Lat,
		Lon:         p.Lon,
		RadiusMiles: radius,
		MaxAge:      time.Duration(hours * float64(time.Hour)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"count": len(reports), "reports": reports})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, r, badRequest("report id must be an integer"))
		return
	}
	var body struct {
		Vote string `json:"vote"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Vote(r.Context(), id, body.Vote); err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.svc.Calibration(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, st)
}

func (s *Server) handleFreshness(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"sources": s.svc.Freshness()})
}

func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"sensors": s.svc.Sensors()})
}

func (s *Server) handlePredictionSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := s.svc.PredictionCounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"last_24h": counts})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	alerts, err := s.svc.Alerts(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.svc.Locations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

func (s *Server) handleAddLocation(w http.ResponseWriter, r *http.Request) {
	var loc domain.MonitoredLocation
	if err := decodeJSON(w, r, &loc); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.svc.AddLocation(r.Context(), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.svc.Routes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"routes": routes})
}

func (s *Server) handleSaveRoute(w http.ResponseWriter, r *http.Request) {
	var rt domain.SavedRoute
	if err := decodeJSON(w, r, &rt); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.svc.SaveRoute(r.Context(), rt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, saved)
}

func pointParam(r *http.Request) (domain.Point, error) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lon") == "" {
		return domain.Point{}, badRequest("lat and lon are required")
	}
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return domain.Point{}, badRequest("lat must be a number")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return domain.Point{}, badRequest("lon must be a number")
	}
	p := domain.Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return domain.Point{}, badRequest("coordinates out of range")
	}
	return p, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, badRequest("%s must be a finite number", name)
	}
	return v, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("%s must be a non-negative integer", name)
	}
	return v, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("%s must be true or false", name)
	}
	return v, nil
}
