package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/black-ice-advisory/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/black-ice-advisory/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/black-ice-advisory/internal/adapter/kafka"
	"github.com/couchcryptid/black-ice-advisory/internal/adapter/mapbox"
	"github.com/couchcryptid/black-ice-advisory/internal/adapter/mqtt"
	"github.com/couchcryptid/black-ice-advisory/internal/adapter/weather"
	"github.com/couchcryptid/black-ice-advisory/internal/advisory"
	"github.com/couchcryptid/black-ice-advisory/internal/config"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
	"github.com/couchcryptid/black-ice-advisory/internal/pipeline"
)

// weatherCacheSize bounds the in-process weather cache when Redis is not configured.
const weatherCacheSize = 2000

var serveNoMonitor bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the location monitor",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveNoMonitor, "no-monitor", false, "Serve the API without running the location monitor")
}

// readiness is ready when every checker is.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // process is exiting

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close() //nolint:errcheck // process is exiting
		logger.Info("redis cache enabled")
	}

	clock := clockwork.NewRealClock()
	tracker := domain.NewTracker(clock)
	sensors := domain.NewSensorNetwork(tracker)

	weatherSvc := weather.NewService(
		[]weather.Provider{
			weather.NewOpenMeteo(cfg.OpenMeteoBaseURL, cfg.WeatherTimeout),
			weather.NewNOAA(cfg.NOAABaseURL, cfg.WeatherTimeout),
		},
		newStore[domain.WeatherReading](redisClient, "blackice:weather:", cfg.WeatherCacheTTL, weatherCacheSize, clock, logger),
		tracker, sensors, metrics, logger,
	)

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client,
			newStore[domain.Place](redisClient, "blackice:geocode:", 0, cfg.MapboxCacheSize, clock, logger), metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	svc := advisory.New(advisory.Deps{
		Store:    store,
		Weather:  weatherSvc,
		Tracker:  tracker,
		Sensors:  sensors,
		Geocoder: geocoder,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err := svc.Open(ctx); err != nil {
		return err
	}

	if cfg.MQTTBrokerURL != "" {
		sub := mqtt.NewSubscriber(cfg.MQTTBrokerURL, cfg.MQTTTopic, sensors, metrics, logger)
		if err := sub.Start(ctx); err != nil {
			logger.Error("mqtt unavailable, continuing without road sensors", "error", err)
		} else {
			defer sub.Close()
			logger.Info("road sensor feed enabled", "broker", cfg.MQTTBrokerURL, "topic", cfg.MQTTTopic)
		}
	}

	hub := httpadapter.NewHub(logger)
	sinks := []pipeline.AlertSink{store, hub}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		logger.Info("kafka alerts enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	}

	ready := readiness{svc}
	var monitor *pipeline.Pipeline
	if !serveNoMonitor {
		monitor = pipeline.New(svc, svc, sinks, svc, logger, metrics, pipeline.Options{
			Interval:        cfg.MonitorInterval,
			FreshnessMaxAge: cfg.FreshnessMaxAge,
		})
		ready = append(ready, monitor)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, hub, ready, metrics, prometheus.DefaultGatherer, logger)

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "version", advisory.Version)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	if monitor != nil {
		go func() {
			if err := monitor.Run(ctx); err != nil {
				logger.Error("monitor error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	shutdown(cfg, logger, srv, svc, writer)
	logger.Info("shutdown complete")
	return nil
}

func shutdown(cfg *config.Config, logger *slog.Logger, srv *httpadapter.Server, svc *advisory.Service, writer *kafkaadapter.Writer) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := svc.Close(ctx); err != nil {
		logger.Error("calibration flush error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
}

// newStore returns a Redis cache when a client is configured and an
// in-process LRU otherwise. ttl zero means entries never expire.
func newStore[V any](client *redis.Client, prefix string, ttl time.Duration, size int, clock clockwork.Clock, logger *slog.Logger) cache.Store[V] {
	if client != nil {
		return cache.NewRedis[V](client, prefix, ttl, logger)
	}
	return cache.NewLRU[V](size, ttl, clock)
}
