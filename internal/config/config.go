// Package config holds the catalog service configuration.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/shopcatalog/pkg/config"
	"github.com/utafrali/shopcatalog/pkg/database"
	"github.com/utafrali/shopcatalog/pkg/tracing"
)

// Catalog sources.
const (
	SourceMemory   = "memory"
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
)

// Filter-state stores.
const (
	StateMemory = "memory"
	StateRedis  = "redis"
)

// ServiceName tags logs, metrics and traces.
const ServiceName = "catalog-service"

// Config holds all configuration for the catalog service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort            int           `env:"CATALOG_HTTP_PORT" envDefault:"8010"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	HTTPIdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	HealthCheckTimeout  time.Duration `env:"HEALTH_CHECK_TIMEOUT" envDefault:"3s"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs   []string      `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
	RateLimitRPS        float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst      int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	RateLimitIdleExpiry time.Duration `env:"RATE_LIMIT_IDLE_EXPIRY" envDefault:"10m"`

	// Catalog snapshot
	CatalogSource     string `env:"CATALOG_SOURCE" envDefault:"memory"`
	ProductServiceURL string `env:"PRODUCT_SERVICE_URL" envDefault:"http://localhost:8001"`
	ProductPageSize   int    `env:"PRODUCT_PAGE_SIZE" envDefault:"100"`
	CatalogSeedFile   string `env:"CATALOG_SEED_FILE"`
	CatalogSeedCount  int    `env:"CATALOG_SEED_COUNT" envDefault:"0"`
	DefaultPageSize   int    `env:"DEFAULT_PAGE_SIZE" envDefault:"24"`

	// Filter state
	StateStore         string        `env:"STATE_STORE" envDefault:"memory"`
	FilterStateTTL     time.Duration `env:"FILTER_STATE_TTL" envDefault:"720h"`
	FilterStateMaxAge  time.Duration `env:"FILTER_STATE_MAX_AGE" envDefault:"0s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	SessionSweepEvery  time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB   string `env:"PRODUCT_DB_NAME" envDefault:"product_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Auth
	JWTSecret string `env:"JWT_SECRET"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := pkgconfig.Load[Config]()
	if err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if !slices.Contains([]string{SourceMemory, SourcePostgres, SourceHTTP}, c.CatalogSource) {
		errs = append(errs, fmt.Errorf("CATALOG_SOURCE must be one of memory, postgres, http, got %q", c.CatalogSource))
	}
	if !slices.Contains([]string{StateMemory, StateRedis}, c.StateStore) {
		errs = append(errs, fmt.Errorf("STATE_STORE must be memory or redis, got %q", c.StateStore))
	}
	if c.CatalogSource == SourceHTTP && c.ProductServiceURL == "" {
		errs = append(errs, errors.New("PRODUCT_SERVICE_URL is required when CATALOG_SOURCE=http"))
	}
	if c.CatalogSource == SourcePostgres && c.PostgresHost == "" {
		errs = append(errs, errors.New("POSTGRES_HOST is required when CATALOG_SOURCE=postgres"))
	}
	if c.StateStore == StateRedis && c.RedisHost == "" {
		errs = append(errs, errors.New("REDIS_HOST is required when STATE_STORE=redis"))
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED=true"))
	}
	if c.CatalogSeedCount < 0 {
		errs = append(errs, fmt.Errorf("CATALOG_SEED_COUNT must not be negative, got %d", c.CatalogSeedCount))
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > 100 {
		errs = append(errs, fmt.Errorf("DEFAULT_PAGE_SIZE must be between 1 and 100, got %d", c.DefaultPageSize))
	}
	if c.FilterStateTTL < 0 || c.FilterStateMaxAge < 0 {
		errs = append(errs, errors.New("FILTER_STATE_TTL and FILTER_STATE_MAX_AGE must not be negative"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if c.SessionSweepEvery <= 0 || c.SessionIdleTimeout <= 0 || c.RateLimitIdleExpiry <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL, SESSION_IDLE_TIMEOUT and RATE_LIMIT_IDLE_EXPIRY must be positive"))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Postgres returns the connection settings for the product database.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the filter-state Redis settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:         c.RedisHost,
		Port:         c.RedisPort,
		Password:     c.RedisPassword,
		DB:           c.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}

// SlowQueryThreshold returns the slow query log threshold.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
