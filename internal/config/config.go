// Package config loads process configuration from the environment, after an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuogn/logistics-front-sub000/internal/database"
)

// Reference data sources.
const (
	ReferenceHTTP     = "http"
	ReferenceFile     = "file"
	ReferencePostgres = "postgres"
	ReferenceEmbedded = "embedded"
)

// Route cache backends.
const (
	RouteCacheMemory = "memory"
	RouteCacheRedis  = "redis"
	RouteCacheNone   = "none"
)

// Config is the full process configuration.
type Config struct {
	ServiceName string
	Port        string
	Environment string

	// ReturnGeometry adds decoded route points to API quote responses.
	ReturnGeometry bool

	// RequireTLS rejects API requests a proxy forwarded over plain HTTP.
	RequireTLS bool

	Telemetry TelemetryConfig
	Providers ProviderConfig
	Pricing   PricingConfig
	Reference ReferenceConfig
	Routes    RouteCacheConfig
	Database  database.Config
	PubSub    PubSubConfig

	// Warnings lists values that were invalid and replaced by defaults.
	Warnings []string
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// ProviderConfig configures the HERE routing and geocoding clients.
type ProviderConfig struct {
	HereAPIKey       string
	RoutingBaseURL   string
	GeocodingBaseURL string
	Timeout          time.Duration
	TierTimeout      time.Duration
}

// Enabled reports whether an API key is configured.
func (p ProviderConfig) Enabled() bool {
	return p.HereAPIKey != ""
}

// PricingConfig configures the default fee rate.
type PricingConfig struct {
	DefaultRatePerKm float64
}

// ReferenceConfig selects and configures the reference dataset source.
type ReferenceConfig struct {
	Source        string
	CacheTTL      time.Duration
	ProvincesURL  string
	WardsURL      string
	ProvincesPath string
	WardsPath     string
}

// RouteCacheConfig selects the route response cache.
type RouteCacheConfig struct {
	Backend  string
	TTL      time.Duration
	RedisURL string
}

// PubSubConfig configures job subscriptions. Subscription is the worker's
// shared subscription. APISubscription, when set, is read by an API instance
// so that jobs reach its in-process caches; each instance needs its own.
type PubSubConfig struct {
	ProjectID       string
	Subscription    string
	APISubscription string
	WarmInterval    time.Duration
}

// Load reads the configuration for serviceName.
func Load(serviceName string) (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	l := &loader{}
	cfg := &Config{
		ServiceName:    serviceName,
		Port:           getEnvOrDefault("APP_PORT", "8080"),
		Environment:    getEnvOrDefault("APP_ENV", "development"),
		ReturnGeometry: os.Getenv("RETURN_GEOMETRY") == "true",
		RequireTLS:     os.Getenv("REQUIRE_TLS") == "true",
		Telemetry: TelemetryConfig{
			Enabled:      os.Getenv("OTEL_ENABLED") == "true",
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:  l.float("OTEL_SAMPLE_RATIO", 1),
		},
		Providers: ProviderConfig{
			HereAPIKey:       os.Getenv("HERE_API_KEY"),
			RoutingBaseURL:   os.Getenv("ROUTING_BASE_URL"),
			GeocodingBaseURL: os.Getenv("GEOCODING_BASE_URL"),
			Timeout:          l.duration("PROVIDER_TIMEOUT", 10*time.Second),
			TierTimeout:      l.duration("TIER_TIMEOUT", 8*time.Second),
		},
		Pricing: PricingConfig{
			DefaultRatePerKm: l.float("DEFAULT_RATE_PER_KM", 5000),
		},
		Reference: ReferenceConfig{
			Source:        getEnvOrDefault("REFERENCE_SOURCE", ""),
			CacheTTL:      l.duration("REFERENCE_CACHE_TTL", 5*time.Minute),
			ProvincesURL:  os.Getenv("REFERENCE_PROVINCES_URL"),
			WardsURL:      os.Getenv("REFERENCE_WARDS_URL"),
			ProvincesPath: os.Getenv("REFERENCE_PROVINCES_PATH"),
			WardsPath:     os.Getenv("REFERENCE_WARDS_PATH"),
		},
		Routes: RouteCacheConfig{
			Backend:  getEnvOrDefault("ROUTE_CACHE", RouteCacheMemory),
			TTL:      l.duration("ROUTE_CACHE_TTL", 5*time.Minute),
			RedisURL: os.Getenv("REDIS_URL"),
		},
		Database: database.ConfigFromEnv(),
		PubSub: PubSubConfig{
			ProjectID:       os.Getenv("PUBSUB_PROJECT_ID"),
			Subscription:    getEnvOrDefault("PUBSUB_SUBSCRIPTION", "route-jobs"),
			APISubscription: os.Getenv("PUBSUB_API_SUBSCRIPTION"),
			WarmInterval:    l.duration("WARM_INTERVAL", 30*time.Minute),
		},
	}

	if cfg.Reference.Source == "" {
		cfg.Reference.Source = defaultReferenceSource(cfg.Reference)
	}
	cfg.Warnings = l.warnings

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultReferenceSource picks the richest source the environment describes.
func defaultReferenceSource(r ReferenceConfig) string {
	switch {
	case r.ProvincesURL != "" || r.WardsURL != "":
		return ReferenceHTTP
	case r.ProvincesPath != "" || r.WardsPath != "":
		return ReferenceFile
	case database.Configured():
		return ReferencePostgres
	default:
		return ReferenceEmbedded
	}
}

// SharesRouteCache reports whether resolved routes live outside the process,
// so that a separate worker can warm and clear them.
func (c *Config) SharesRouteCache() bool {
	return c.Routes.Backend == RouteCacheRedis
}

func (c *Config) validate() error {
	switch c.Reference.Source {
	case ReferenceHTTP:
		if c.Reference.ProvincesURL == "" || c.Reference.WardsURL == "" {
			return fmt.Errorf("REFERENCE_SOURCE=http requires REFERENCE_PROVINCES_URL and REFERENCE_WARDS_URL")
		}
	case ReferenceFile:
		if c.Reference.ProvincesPath == "" || c.Reference.WardsPath == "" {
			return fmt.Errorf("REFERENCE_SOURCE=file requires REFERENCE_PROVINCES_PATH and REFERENCE_WARDS_PATH")
		}
	case ReferencePostgres, ReferenceEmbedded:
	default:
		return fmt.Errorf("invalid REFERENCE_SOURCE value: %q", c.Reference.Source)
	}

	switch c.Routes.Backend {
	case RouteCacheMemory, RouteCacheNone:
	case RouteCacheRedis:
		if c.Routes.RedisURL == "" {
			return fmt.Errorf("ROUTE_CACHE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("invalid ROUTE_CACHE value: %q", c.Routes.Backend)
	}

	if c.Pricing.DefaultRatePerKm < 0 {
		return fmt.Errorf("DEFAULT_RATE_PER_KM must not be negative")
	}
	return nil
}

// loader parses typed values and remembers which ones fell back to defaults.
type loader struct {
	warnings []string
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		l.warnings = append(l.warnings, fmt.Sprintf("%s=%q is not a positive duration, using %s", key, raw, def))
		return def
	}
	return d
}

func (l *loader) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("%s=%q is not a number, using %v", key, raw, def))
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
