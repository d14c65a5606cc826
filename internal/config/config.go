// Package config provides service configuration loaded from environment variables and an
// optional .env file, using viper with defaults suitable for local development.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Profile store backends accepted by PROFILE_STORE.
const (
	ProfileStoreNone     = "none"
	ProfileStoreMemory   = "memory"
	ProfileStorePostgres = "postgres"
	ProfileStoreRedis    = "redis"
)

const defaultAdminAPIKey = "admin-123"

// Config holds all service configuration.
// Priority: environment variables > .env file > defaults.
type Config struct {
	AppEnv              string        // Application environment (dev, staging, prod)
	HTTPAddr            string        // HTTP server bind address
	MetricsAddr         string        // Metrics server bind address
	DatafilePath        string        // Datafile loaded at startup
	AdminAPIKey         string        // Key required for datafile and forced-variation writes
	ProfileStore        string        // Sticky bucketing backend (none, memory, postgres, redis)
	DatabaseDSN         string        // PostgreSQL connection string for the postgres store
	RedisURL            string        // Redis URL for the redis store
	ProfileStoreTimeout time.Duration // Upper bound on a single profile lookup or save
	ProfileTTL          time.Duration // Redis profile expiry; zero keeps profiles forever
	LogLevel            string        // zerolog level name
	LogFormat           string        // json or console
	RateLimitPerIP      int           // Requests per minute per client IP
	OTLPEndpoint        string        // OTLP/HTTP trace endpoint; empty disables tracing
}

// Load reads configuration from environment variables and .env file (if present).
// It does not check constraints between fields; call Validate for that.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	setConfigDefaults(v)

	return &Config{
		AppEnv:              v.GetString("APP_ENV"),
		HTTPAddr:            v.GetString("APP_HTTP_ADDR"),
		MetricsAddr:         v.GetString("METRICS_ADDR"),
		DatafilePath:        v.GetString("DATAFILE_PATH"),
		AdminAPIKey:         v.GetString("ADMIN_API_KEY"),
		ProfileStore:        v.GetString("PROFILE_STORE"),
		DatabaseDSN:         v.GetString("DB_DSN"),
		RedisURL:            v.GetString("REDIS_URL"),
		ProfileStoreTimeout: v.GetDuration("PROFILE_STORE_TIMEOUT"),
		ProfileTTL:          v.GetDuration("PROFILE_TTL"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogFormat:           v.GetString("LOG_FORMAT"),
		RateLimitPerIP:      v.GetInt("RATE_LIMIT_PER_IP"),
		OTLPEndpoint:        v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("DATAFILE_PATH", "datafile.json")
	v.SetDefault("ADMIN_API_KEY", defaultAdminAPIKey) // Change in production!
	v.SetDefault("PROFILE_STORE", ProfileStoreMemory)
	v.SetDefault("DB_DSN", "")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("PROFILE_STORE_TIMEOUT", "250ms")
	v.SetDefault("PROFILE_TTL", "720h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("RATE_LIMIT_PER_IP", 100)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

// ValidationError reports the first configuration field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// IsProduction reports whether AppEnv names a production environment.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production"
}

// Validate checks the configuration is usable and returns the first failure
// as a ValidationError.
//
// Rules:
//  1. ProfileStore is one of none, memory, postgres, redis
//  2. postgres needs DB_DSN, redis needs REDIS_URL
//  3. HTTPAddr, MetricsAddr and DatafilePath are non-empty
//  4. ProfileStoreTimeout is positive and ProfileTTL is not negative
//  5. RateLimitPerIP is positive
//  6. In production the default admin key is rejected
func (c *Config) Validate() error {
	switch c.ProfileStore {
	case ProfileStoreNone, ProfileStoreMemory:
	case ProfileStorePostgres:
		if c.DatabaseDSN == "" {
			return ValidationError{Field: "DB_DSN", Message: "database DSN is required when PROFILE_STORE=postgres"}
		}
	case ProfileStoreRedis:
		if c.RedisURL == "" {
			return ValidationError{Field: "REDIS_URL", Message: "redis URL is required when PROFILE_STORE=redis"}
		}
	default:
		return ValidationError{
			Field:   "PROFILE_STORE",
			Message: fmt.Sprintf("must be one of none, memory, postgres, redis, got '%s'", c.ProfileStore),
		}
	}

	if c.HTTPAddr == "" {
		return ValidationError{Field: "APP_HTTP_ADDR", Message: "HTTP server address cannot be empty"}
	}
	if c.MetricsAddr == "" {
		return ValidationError{Field: "METRICS_ADDR", Message: "metrics server address cannot be empty"}
	}
	if c.DatafilePath == "" {
		return ValidationError{Field: "DATAFILE_PATH", Message: "datafile path cannot be empty"}
	}
	if c.ProfileStoreTimeout <= 0 {
		return ValidationError{Field: "PROFILE_STORE_TIMEOUT", Message: "must be positive"}
	}
	if c.ProfileTTL < 0 {
		return ValidationError{Field: "PROFILE_TTL", Message: "cannot be negative"}
	}
	if c.RateLimitPerIP <= 0 {
		return ValidationError{Field: "RATE_LIMIT_PER_IP", Message: "must be positive"}
	}

	if c.IsProduction() && c.AdminAPIKey == defaultAdminAPIKey {
		return ValidationError{
			Field:   "ADMIN_API_KEY",
			Message: "default admin API key 'admin-123' is not allowed in production",
		}
	}
	return nil
}
