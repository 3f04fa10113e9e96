package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Environment     string // RAILWAY_ENVIRONMENT, empty when running locally

	DatabasePath string

	// Third-party API credentials. Only recorded; the providers in use are keyless.
	OpenWeatherAPIKey string
	GoogleMapsAPIKey  string
	MesoWestToken     string
	SentryDSN         string

	// Weather providers.
	OpenMeteoBaseURL string
	NOAABaseURL      string
	WeatherTimeout   time.Duration
	WeatherCacheTTL  time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Optional infrastructure; empty disables the integration.
	RedisURL        string
	KafkaBrokers    []string
	KafkaAlertTopic string
	MQTTBrokerURL   string
	MQTTTopic       string

	MonitorInterval time.Duration
	FreshnessMaxAge time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present; real environment variables take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var (
		weatherTimeout, weatherCacheTTL, mapboxTimeout time.Duration
		monitorInterval, freshnessMaxAge               time.Duration
	)
	for _, d := range []struct {
		key, def string
		dst      *time.Duration
	}{
		{"WEATHER_TIMEOUT", "10s", &weatherTimeout},
		{"WEATHER_CACHE_TTL", "5m", &weatherCacheTTL},
		{"MAPBOX_TIMEOUT", "5s", &mapboxTimeout},
		{"MONITOR_INTERVAL", "5m", &monitorInterval},
		{"FRESHNESS_MAX_AGE", "24h", &freshnessMaxAge},
	} {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	mapboxToken := sharedcfg.EnvOrDefault("MAPBOX_API_KEY", os.Getenv("MAPBOX_TOKEN"))
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	httpAddr := sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080")
	if port := os.Getenv("PORT"); port != "" {
		httpAddr = ":" + port
	}

	cfg := &Config{
		HTTPAddr:        httpAddr,
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		Environment:     os.Getenv("RAILWAY_ENVIRONMENT"),

		DatabasePath: sharedcfg.EnvOrDefault("DATABASE_PATH", "data/black_ice.duckdb"),

		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		GoogleMapsAPIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
		MesoWestToken:     os.Getenv("MESOWEST_API_TOKEN"),
		SentryDSN:         os.Getenv("SENTRY_DSN"),

		OpenMeteoBaseURL: sharedcfg.EnvOrDefault("OPENMETEO_BASE_URL", "https://api.open-meteo.com/v1"),
		NOAABaseURL:      sharedcfg.EnvOrDefault("NOAA_BASE_URL", "https://api.weather.gov"),
		WeatherTimeout:   weatherTimeout,
		WeatherCacheTTL:  weatherCacheTTL,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "black-ice-alerts"),
		MQTTBrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		MQTTTopic:       sharedcfg.EnvOrDefault("MQTT_TOPIC", "blackice/sensors/+/reading"),

		MonitorInterval: monitorInterval,
		FreshnessMaxAge: freshnessMaxAge,
	}

	if cfg.DatabasePath == "" {
		return nil, errors.New("DATABASE_PATH is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether alerts are published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Production reports whether the service runs in a production deployment.
func (c *Config) Production() bool { return c.Environment == "production" }

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
