package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // embedded zoneinfo for FORECAST_TIMEZONE

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Geocoder backends.
const (
	GeocoderMapbox = "mapbox"
	GeocoderGoogle = "google"
	GeocoderStatic = "static"
)

// Forecast backends.
const (
	ForecastSourceMeteoFrance = "meteofrance"
	ForecastSourceStatic      = "static"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	APIAddr         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Geocoding configuration.
	Geocoder     string
	MapboxToken  string
	GoogleAPIKey string
	GeoTolerance float64

	// Météo-France configuration.
	ForecastSource     string
	MeteoFranceBaseURL string
	ForecastTimezone   *time.Location
	FetchTimeout       time.Duration
	ForecastThrottle   time.Duration

	RefreshInterval time.Duration

	// Alerting configuration.
	AlertEnabled  bool
	AlertLevel    string
	AlertThrottle time.Duration
	AlertMinLead  time.Duration

	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaAlertTopic string

	// Optional coordinate to start from before any client reports one.
	InitialLatitude  *float64
	InitialLongitude *float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parsePositiveDuration("REFRESH_INTERVAL", "3m")
	if err != nil {
		return nil, err
	}
	forecastThrottle, err := parseDuration("FORECAST_THROTTLE", "1m")
	if err != nil {
		return nil, err
	}
	alertThrottle, err := parseDuration("ALERT_THROTTLE", "30m")
	if err != nil {
		return nil, err
	}
	alertMinLead, err := parseDuration("ALERT_MIN_LEAD", "5m")
	if err != nil {
		return nil, err
	}

	tolerance, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("GEO_TOLERANCE", "0.002"), 64)
	if err != nil || tolerance <= 0 {
		return nil, errors.New("invalid GEO_TOLERANCE")
	}

	tz, err := time.LoadLocation(sharedcfg.EnvOrDefault("FORECAST_TIMEZONE", "Europe/Paris"))
	if err != nil {
		return nil, fmt.Errorf("invalid FORECAST_TIMEZONE: %w", err)
	}

	lat, lon, err := parseInitialCoordinate()
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	googleKey := os.Getenv("GOOGLE_API_KEY")

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		APIAddr:         sharedcfg.EnvOrDefault("API_ADDR", ":8081"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Geocoder:     strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER", defaultGeocoder(mapboxToken, googleKey))),
		MapboxToken:  mapboxToken,
		GoogleAPIKey: googleKey,
		GeoTolerance: tolerance,

		ForecastSource:     strings.ToLower(sharedcfg.EnvOrDefault("FORECAST_SOURCE", ForecastSourceMeteoFrance)),
		MeteoFranceBaseURL: strings.TrimRight(sharedcfg.EnvOrDefault("METEOFRANCE_BASE_URL", "http://www.meteofrance.com"), "/"),
		ForecastTimezone:   tz,
		FetchTimeout:       fetchTimeout,
		ForecastThrottle:   forecastThrottle,
		RefreshInterval:    refreshInterval,

		AlertEnabled:  sharedcfg.EnvOrDefault("ALERT_ENABLED", "true") == "true",
		AlertLevel:    sharedcfg.EnvOrDefault("ALERT_LEVEL", "moderate"),
		AlertThrottle: alertThrottle,
		AlertMinLead:  alertMinLead,

		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "rain-alerts"),

		InitialLatitude:  lat,
		InitialLongitude: lon,
	}

	switch cfg.Geocoder {
	case GeocoderMapbox:
		if cfg.MapboxToken == "" {
			return nil, errors.New("GEOCODER is mapbox but MAPBOX_TOKEN is not set")
		}
	case GeocoderGoogle:
		if cfg.GoogleAPIKey == "" {
			return nil, errors.New("GEOCODER is google but GOOGLE_API_KEY is not set")
		}
	case GeocoderStatic:
	default:
		return nil, fmt.Errorf("unknown GEOCODER %q", cfg.Geocoder)
	}
	switch cfg.ForecastSource {
	case ForecastSourceMeteoFrance, ForecastSourceStatic:
	default:
		return nil, fmt.Errorf("unknown FORECAST_SOURCE %q", cfg.ForecastSource)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaAlertTopic == "" {
			return nil, errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func defaultGeocoder(mapboxToken, googleKey string) string {
	switch {
	case mapboxToken != "":
		return GeocoderMapbox
	case googleKey != "":
		return GeocoderGoogle
	default:
		return GeocoderStatic
	}
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := parseDuration(key, def)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInitialCoordinate() (*float64, *float64, error) {
	latStr, lonStr := os.Getenv("INITIAL_LATITUDE"), os.Getenv("INITIAL_LONGITUDE")
	if latStr == "" && lonStr == "" {
		return nil, nil, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, nil, errors.New("invalid INITIAL_LATITUDE")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, nil, errors.New("invalid INITIAL_LONGITUDE")
	}
	return &lat, &lon, nil
}
