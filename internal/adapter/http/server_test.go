package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/jszwec/csvutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/black-ice-advisory/internal/adapter/duckdb"
	httpadapter "github.com/couchcryptid/black-ice-advisory/internal/adapter/http"
	"github.com/couchcryptid/black-ice-advisory/internal/adapter/weather"
	"github.com/couchcryptid/black-ice-advisory/internal/advisory"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
)

var testNow = time.Date(2025, time.January, 14, 12, 0, 0, 0, time.UTC)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type stubWeather struct {
	reading domain.WeatherReading
	err     error
}

func (s *stubWeather) Current(context.Context, domain.Point) (domain.WeatherReading, error) {
	return s.reading, s.err
}

func icyWeather() *stubWeather {
	return &stubWeather{reading: domain.WeatherReading{
		Source:   domain.SourceWeatherAPI,
		Provider: "openmeteo",
		Conditions: domain.Conditions{
			TemperatureC: 0, Humidity: 95, DewPointC: -0.5, WindSpeedMS: 1, PrecipitationMM: 1,
			ObservedAt: time.Date(2025, time.January, 14, 5, 0, 0, 0, time.UTC),
		},
	}}
}

func downWeather() *stubWeather {
	return &stubWeather{
		reading: domain.WeatherReading{Conditions: domain.DefaultConditions(), Provider: "fallback", Degraded: true},
		err:     fmt.Errorf("%w: openmeteo: timeout", weather.ErrUnavailable),
	}
}

type testEnv struct {
	srv     *httpadapter.Server
	hub     *httpadapter.Hub
	store   *duckdb.Store
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T, w advisory.WeatherSource, readyErr error) testEnv {
	t.Helper()
	fc := clockwork.NewFakeClockAt(testNow)
	domain.SetClock(fc)
	t.Cleanup(func() { domain.SetClock(nil) })

	store, err := duckdb.Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	svc := advisory.New(advisory.Deps{
		Store:   store,
		Weather: w,
		Tracker: domain.NewTracker(fc),
		Metrics: metrics,
		Logger:  logger,
	})
	require.NoError(t, svc.Open(context.Background()))

	hub := httpadapter.NewHub(logger)
	srv := httpadapter.NewServer(":0", svc, hub, &mockReadiness{err: readyErr}, metrics, prometheus.NewRegistry(), logger)
	return testEnv{srv: srv, hub: hub, store: store, metrics: metrics}
}

func (e testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzReturns200(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	env := newTestEnv(t, icyWeather(), errors.New("monitor has not completed a cycle"))

	rec := env.do(t, http.MethodGet, "/readyz", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "monitor has not completed a cycle", body["error"])
}

func TestMetricsEndpointAndMiddleware(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	env.do(t, http.MethodGet, "/api/freshness", nil)
	env.do(t, http.MethodGet, "/nope", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("GET /api/freshness", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("unmatched", "404")))

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIHealth(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[advisory.HealthReport](t, rec)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, observability.ServiceName, body.Service)
	assert.Contains(t, body.Services, "database")
	assert.Contains(t, body.Services, "noaa_api")
	assert.Contains(t, body.Services, "openmeteo_api")
}

func TestCurrentWeather(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodGet, "/api/weather/current?lat=39.74&lon=-104.99", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "openmeteo", decode[domain.WeatherReading](t, rec).Provider)

	rec = env.do(t, http.MethodGet, "/api/weather/current?lat=abc&lon=-104.99", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad request: lat must be a number", decode[map[string]string](t, rec)["error"])
}

func TestCurrentWeather_Unavailable(t *testing.T) {
	env := newTestEnv(t, downWeather(), nil)

	rec := env.do(t, http.MethodGet, "/api/weather/current?lat=39.74&lon=-104.99", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "weather data is temporarily unavailable", decode[map[string]string](t, rec)["error"])
}

func TestPredict(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodPost, "/api/black-ice/predict", map[string]any{
		"temperature": 0, "humidity": 95, "dew_point": -0.5, "wind_speed": 1, "precipitation": 1,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Contains(t, []any{"high", "extreme"}, body["risk_level"])
	for _, key := range []string{"probability", "risk_score", "factors", "recommendations", "conditions"} {
		assert.Contains(t, body, key)
	}
}

func TestPredict_BadInput(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodPost, "/api/black-ice/predict", `{"temperature": 0`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/black-ice/predict", map[string]any{"temperature": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "humidity is required")

	rec = env.do(t, http.MethodPost, "/api/black-ice/predict", map[string]any{"temperature": 0, "humidity": 95})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "dew_point is required")
}

func TestBIFI_UnknownSourceIs400(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodPost, "/api/bifi", map[string]any{
		"temperature": -1, "humidity": 90, "dew_point": -2.4, "wind_speed": 2, "sources": []string{"rwis", "psychic"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "unknown data source")
}

func TestBIFI(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodPost, "/api/bifi", map[string]any{
		"temperature": -1, "humidity": 90, "dew_point": -2.4, "wind_speed": 2, "sources": []string{"rwis"},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "bifi_v3", body["model"])
	assert.Contains(t, body, "weights")
	assert.Contains(t, body, "freshness")
}

func TestCombinedHazard(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodGet, "/api/hazard/combined?lat=39.74&lon=-104.99&bridge=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Len(t, body["assessments"], 6)

	rec = env.do(t, http.MethodGet, "/api/hazard/combined?lat=39.74&lon=-104.99&bridge=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCombinedHazard_NonBridgeHasFiniteConfidence(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodGet, "/api/hazard/combined?lat=39.74&lon=-104.99", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.Bytes())
	body := decode[struct {
		Assessments []json.RawMessage       `json:"assessments"`
		Confidence  domain.ConfidenceResult `json:"confidence"`
	}](t, rec)
	assert.Len(t, body.Assessments, 5)
	assert.GreaterOrEqual(t, body.Confidence.BaseConfidence, 0.3)
	assert.LessOrEqual(t, body.Confidence.BaseConfidence, 1.0)
	assert.Positive(t, body.Confidence.OverallConfidence)
}

func TestQueryParams_RejectNonFinite(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	for _, q := range []string{"radius=NaN", "radius=Inf", "radius=-Inf"} {
		rec := env.do(t, http.MethodGet, "/api/feedback/nearby?lat=39.74&lon=-104.99&"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestFeedbackFlow(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodPost, "/api/feedback/submit", map[string]any{
		"lat": 39.7392, "lon": -104.9903, "actual_condition": "icy",
		"predicted_condition": "icy", "predicted_probability": 0.9, "comment": "glare ice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Success bool                  `json:"success"`
		Report  domain.FeedbackReport `json:"report"`
	}](t, rec)
	assert.True(t, created.Success)
	id := created.Report.ID

	rec = env.do(t, http.MethodGet, "/api/feedback/nearby?lat=39.74&lon=-104.99&radius=2&max_age_hours=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nearby := decode[struct {
		Count   int                     `json:"count"`
		Reports []domain.FeedbackReport `json:"reports"`
	}](t, rec)
	assert.Equal(t, 1, nearby.Count)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/feedback/%d/vote", id), map[string]string{"vote": "up"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/feedback/%d/vote", id+99), map[string]string{"vote": "up"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/feedback/abc/vote", map[string]string{"vote": "up"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/feedback/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[domain.AccuracyStats](t, rec)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 100.0, stats.Accuracy)
}

func TestSubmitFeedback_UnknownCondition(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodPost, "/api/feedback/submit", map[string]any{
		"lat": 39.7, "lon": -105, "actual_condition": "slush",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportFeedbackCSV(t *testing.T) {
	env := newTestEnv(t, downWeather(), nil)

	for _, c := range []string{"icy", "dry"} {
		rec := env.do(t, http.MethodPost, "/api/feedback/submit", map[string]any{"lat": 39.7, "lon": -105, "actual_condition": c})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/feedback/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))

	var rows []struct {
		ID              int64  `csv:"id"`
		ActualCondition string `csv:"actual_condition"`
	}
	require.NoError(t, csvutil.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "icy", rows[0].ActualCondition)
	assert.Equal(t, "dry", rows[1].ActualCondition)
}

func TestRouteAnalyze(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodPost, "/api/route/analyze", map[string]any{
		"waypoints": []map[string]any{
			{"lat": 39.7392, "lon": -104.9903, "name": "Denver"},
			{"lat": 39.6403, "lon": -106.3742, "name": "Vail"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decode[domain.RouteAnalysis](t, rec)
	assert.Len(t, a.Segments, 1)

	rec = env.do(t, http.MethodGet, "/api/route/analyses/"+a.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/route/analyze", map[string]any{"waypoints": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/route/analyze", map[string]any{"route_id": 404})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSavedRoutesAndLocations(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodPost, "/api/routes", map[string]any{
		"name":      "I-70",
		"waypoints": []map[string]any{{"name": "Denver", "lat": 39.74, "lon": -104.99}, {"name": "Vail", "lat": 39.64, "lon": -106.37}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[domain.SavedRoute](t, rec)

	rec = env.do(t, http.MethodPost, "/api/route/analyze", map[string]any{"route_id": saved.ID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/locations", map[string]any{
		"name": "Vail Pass", "location": map[string]float64{"lat": 39.53, "lon": -106.22}, "is_bridge": false,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/locations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]domain.MonitoredLocation](t, rec)["locations"], 1)

	rec = env.do(t, http.MethodGet, "/api/routes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]domain.SavedRoute](t, rec)["routes"], 1)
}

func TestAlertsAndWebsocket(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/alerts", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	alert := domain.Alert{ID: "a-1", LocationID: 3, Name: "Vail Pass", Level: domain.RiskExtreme, Score: 91, CreatedAt: testNow}
	require.NoError(t, env.store.PublishAlerts(context.Background(), []domain.Alert{alert}))
	require.NoError(t, env.hub.PublishAlerts(context.Background(), []domain.Alert{alert}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string       `json:"type"`
		Data domain.Alert `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alert", msg.Type)
	assert.Equal(t, "a-1", msg.Data.ID)

	rec := env.do(t, http.MethodGet, "/api/alerts?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]domain.Alert](t, rec)["alerts"], 1)

	env.hub.Close()
	assert.Equal(t, 0, env.hub.Clients())
}

func TestFreshnessAndCalibration(t *testing.T) {
	env := newTestEnv(t, icyWeather(), nil)

	rec := env.do(t, http.MethodGet, "/api/freshness", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]domain.FreshnessStatus](t, rec)["sources"], len(domain.AllSources))

	rec = env.do(t, http.MethodGet, "/api/calibration", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DefaultWeights(), decode[advisory.CalibrationStatus](t, rec).Weights)

	rec = env.do(t, http.MethodGet, "/api/calibration?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
