package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Authentication modes for bearer token verification
const (
	AuthModeJWKS   = "jwks"
	AuthModeHS256  = "hs256"
	AuthModeRemote = "remote"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"3000"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	CORSMaxAge      int           `envconfig:"CORS_MAX_AGE" default:"86400"`
}

// DatabaseConfig holds GORM database connection configuration
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            string        `envconfig:"DB_PORT" default:"5432"`
	Username        string        `envconfig:"DB_USERNAME" default:"postgres"`
	Password        string        `envconfig:"DB_PASSWORD" default:"password"`
	Database        string        `envconfig:"DB_NAME" default:"postgres"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"require"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"30m"`
	RunMigration    bool          `envconfig:"RUN_MIGRATION" default:"false"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	Mode         string        `envconfig:"AUTH_MODE" default:"jwks"`
	JWKSURL      string        `envconfig:"JWKS_URL"`
	JWTSecret    string        `envconfig:"JWT_SECRET"`
	Issuer       string        `envconfig:"JWT_ISSUER"`
	Audience     string        `envconfig:"JWT_AUDIENCE"`
	JWKSCacheTTL time.Duration `envconfig:"JWKS_CACHE_TTL" default:"1h"`
}

// IdPConfig holds identity provider admin API settings
type IdPConfig struct {
	Provider     string   `envconfig:"IDP_PROVIDER" default:"gotrue"`
	BaseURL      string   `envconfig:"IDP_BASE_URL"`
	ClientID     string   `envconfig:"IDP_CLIENT_ID"`
	ClientSecret string   `envconfig:"IDP_CLIENT_SECRET"`
	Scopes       []string `envconfig:"IDP_SCOPES"`
	ServiceKey   string   `envconfig:"IDP_SERVICE_KEY"`
}

// RedisConfig holds the lifecycle event stream settings
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Stream   string `envconfig:"LIFECYCLE_STREAM" default:"member-lifecycle-events"`
	// StreamMaxLen trims the stream approximately; zero keeps every entry
	StreamMaxLen int64 `envconfig:"LIFECYCLE_STREAM_MAXLEN" default:"100000"`
}

// TelemetryConfig holds metrics and tracing settings
type TelemetryConfig struct {
	ServiceName     string            `envconfig:"SERVICE_NAME" default:"admin-operations"`
	MetricsExporter string            `envconfig:"METRICS_EXPORTER" default:"prometheus"`
	OTLPEndpoint    string            `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool              `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"false"`
	OTLPHeaders     map[string]string `envconfig:"OTEL_EXPORTER_OTLP_HEADERS"`
}

// CleanupConfig points at an optional YAML cleanup plan
type CleanupConfig struct {
	PlanPath string `envconfig:"CLEANUP_PLAN_PATH"`
}

// Config is the full service configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	IdP       IdPConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Cleanup   CleanupConfig
}

// Load reads an optional .env file and binds environment variables
func Load() (*Config, error) {
	// .env is optional; real deployments inject the environment directly
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	var cfg Config
	// Sections are processed one by one so variable names carry no struct prefix.
	sections := []interface{}{
		&cfg.Server, &cfg.Database, &cfg.Auth, &cfg.IdP, &cfg.Redis, &cfg.Telemetry, &cfg.Cleanup,
	}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("failed to process environment configuration: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements
func (c *Config) Validate() error {
	switch strings.ToLower(c.Auth.Mode) {
	case AuthModeJWKS:
		if c.Auth.JWKSURL == "" {
			return fmt.Errorf("JWKS_URL is required when AUTH_MODE=%s", AuthModeJWKS)
		}
	case AuthModeHS256:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=%s", AuthModeHS256)
		}
	case AuthModeRemote:
	default:
		return fmt.Errorf("invalid AUTH_MODE %q: valid options are jwks, hs256, remote", c.Auth.Mode)
	}

	if c.IdP.BaseURL == "" {
		return fmt.Errorf("IDP_BASE_URL is required")
	}

	switch strings.ToLower(c.Telemetry.MetricsExporter) {
	case "", "prometheus", "none":
	case "otlp":
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when METRICS_EXPORTER=otlp")
		}
	default:
		return fmt.Errorf("invalid METRICS_EXPORTER %q: valid options are prometheus, otlp, none", c.Telemetry.MetricsExporter)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
