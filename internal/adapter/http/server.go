package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/black-ice-advisory/internal/advisory"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
)

// Server exposes the advisory JSON API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	svc        *advisory.Service
	hub        *Hub
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with every route registered. gatherer
// backs /metrics; pass nil for the default registry.
func NewServer(addr string, svc *advisory.Service, hub *Hub, ready sharedobs.ReadinessChecker, metrics *observability.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      instrument(mux, metrics),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:     svc,
		hub:     hub,
		metrics: metrics,
		logger:  logger,
	}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/weather/current", s.handleCurrentWeather)
	mux.HandleFunc("POST /api/black-ice/predict", s.handlePredict)
	mux.HandleFunc("POST /api/bifi", s.handleBIFI)
	mux.HandleFunc("GET /api/hazard/combined", s.handleCombinedHazard)
	mux.HandleFunc("POST /api/route/analyze", s.handleAnalyzeRoute)
	mux.HandleFunc("GET /api/route/analyses/{id}", s.handleRouteAnalysis)

	mux.HandleFunc("POST /api/feedback/submit", s.handleSubmitFeedback)
	mux.HandleFunc("GET /api/feedback/stats", s.handleFeedbackStats)
	mux.HandleFunc("GET /api/feedback/nearby", s.handleNearbyFeedback)
	mux.HandleFunc("POST /api/feedback/{id}/vote", s.handleVote)
	mux.HandleFunc("GET /api/feedback/export.csv", s.handleExportFeedback)
	mux.HandleFunc("GET /api/calibration", s.handleCalibration)

	mux.HandleFunc("GET /api/freshness", s.handleFreshness)
	mux.HandleFunc("GET /api/sensors", s.handleSensors)
	mux.HandleFunc("GET /api/predictions/summary", s.handlePredictionSummary)

	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /ws/alerts", hub.ServeWS)
	mux.HandleFunc("GET /api/locations", s.handleLocations)
	mux.HandleFunc("POST /api/locations", s.handleAddLocation)
	mux.HandleFunc("GET /api/routes", s.handleRoutes)
	mux.HandleFunc("POST /api/routes", s.handleSaveRoute)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown closes websocket clients and gracefully drains connections
// within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
