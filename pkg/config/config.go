package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/schemacompat/pkg/cache"
	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/engine"
	"github.com/platinummonkey/schemacompat/pkg/history"
	"github.com/platinummonkey/schemacompat/pkg/observability"
)

// History backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all application configuration
type Config struct {
	Engine        EngineConfig        `yaml:"engine"`
	Cache         cache.Config        `yaml:"cache"`
	History       HistoryConfig       `yaml:"history"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// EngineConfig holds checker engine settings
type EngineConfig struct {
	// DefaultMode applies when a caller does not name a mode.
	DefaultMode           compatibility.CompatibilityMode `yaml:"default_mode"`
	MaxTransitiveVersions int                             `yaml:"max_transitive_versions"`
	CacheEnabled          bool                            `yaml:"cache_enabled"`
	Concurrency           int                             `yaml:"concurrency"`
	BatchTimeout          time.Duration                   `yaml:"batch_timeout"`
}

// HistoryConfig selects where registered versions live.
type HistoryConfig struct {
	Backend  string                 `yaml:"backend"`
	Postgres history.PostgresConfig `yaml:"postgres"`
	Redis    history.RedisConfig    `yaml:"redis"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	engineDefaults := engine.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			DefaultMode:           compatibility.CompatibilityModeBackward,
			MaxTransitiveVersions: engineDefaults.MaxTransitiveVersions,
			CacheEnabled:          engineDefaults.CacheEnabled,
			Concurrency:           engineDefaults.Concurrency,
		},
		Cache: cache.DefaultConfig(),
		History: HistoryConfig{
			Backend: BackendMemory,
			Postgres: history.PostgresConfig{
				MaxOpenConns: 20,
				MaxIdleConns: 5,
				Timeout:      5 * time.Second,
			},
			Redis: history.RedisConfig{
				KeyPrefix: "schemacompat",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.InfoLevel,
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "schemacompat",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFile loads a YAML configuration file. Environment variables override values
// from the file, which override the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides cfg with any SCHEMACOMPAT_* variables that are set.
func applyEnv(cfg *Config) {
	// Engine config
	if mode := getEnv("SCHEMACOMPAT_DEFAULT_MODE", ""); mode != "" {
		if parsed, err := compatibility.ParseCompatibilityMode(mode); err == nil {
			cfg.Engine.DefaultMode = parsed
		}
	}
	cfg.Engine.MaxTransitiveVersions = getEnvInt("SCHEMACOMPAT_MAX_TRANSITIVE_VERSIONS", cfg.Engine.MaxTransitiveVersions)
	cfg.Engine.CacheEnabled = getEnvBool("SCHEMACOMPAT_CACHE_ENABLED", cfg.Engine.CacheEnabled)
	cfg.Engine.Concurrency = getEnvInt("SCHEMACOMPAT_CONCURRENCY", cfg.Engine.Concurrency)
	cfg.Engine.BatchTimeout = getEnvDuration("SCHEMACOMPAT_BATCH_TIMEOUT", cfg.Engine.BatchTimeout)

	// Cache config
	cfg.Cache.MaxEntries = getEnvInt("SCHEMACOMPAT_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.TTL = getEnvDuration("SCHEMACOMPAT_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Shards = getEnvInt("SCHEMACOMPAT_CACHE_SHARDS", cfg.Cache.Shards)

	// History config
	cfg.History.Backend = strings.ToLower(getEnv("SCHEMACOMPAT_HISTORY_BACKEND", cfg.History.Backend))
	cfg.History.Postgres.URL = getEnv("SCHEMACOMPAT_POSTGRES_URL", cfg.History.Postgres.URL)
	cfg.History.Postgres.MaxOpenConns = getEnvInt("SCHEMACOMPAT_POSTGRES_MAX_CONNS", cfg.History.Postgres.MaxOpenConns)
	cfg.History.Postgres.MaxIdleConns = getEnvInt("SCHEMACOMPAT_POSTGRES_MIN_CONNS", cfg.History.Postgres.MaxIdleConns)
	cfg.History.Postgres.Timeout = getEnvDuration("SCHEMACOMPAT_POSTGRES_TIMEOUT", cfg.History.Postgres.Timeout)
	cfg.History.Redis.URL = getEnv("SCHEMACOMPAT_REDIS_URL", cfg.History.Redis.URL)
	cfg.History.Redis.Password = getEnv("SCHEMACOMPAT_REDIS_PASSWORD", cfg.History.Redis.Password)
	if redisDB := getEnvInt("SCHEMACOMPAT_REDIS_DB", -1); redisDB >= 0 {
		cfg.History.Redis.DB = redisDB
	}
	cfg.History.Redis.MaxRetries = getEnvInt("SCHEMACOMPAT_REDIS_MAX_RETRIES", cfg.History.Redis.MaxRetries)
	cfg.History.Redis.PoolSize = getEnvInt("SCHEMACOMPAT_REDIS_POOL_SIZE", cfg.History.Redis.PoolSize)
	cfg.History.Redis.KeyPrefix = getEnv("SCHEMACOMPAT_REDIS_KEY_PREFIX", cfg.History.Redis.KeyPrefix)

	// Observability config
	if level := getEnv("SCHEMACOMPAT_LOG_LEVEL", ""); level != "" {
		cfg.Observability.LogLevel = observability.ParseLogLevel(level)
	}
	cfg.Observability.MetricsEnabled = getEnvBool("SCHEMACOMPAT_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("SCHEMACOMPAT_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("SCHEMACOMPAT_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("SCHEMACOMPAT_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("SCHEMACOMPAT_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("SCHEMACOMPAT_OTEL_INSECURE", cfg.Observability.OTelInsecure)
	cfg.Observability.OTelSampleRatio = getEnvFloat("SCHEMACOMPAT_OTEL_SAMPLE_RATIO", cfg.Observability.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Engine.DefaultMode.Valid() {
		return fmt.Errorf("invalid default compatibility mode: %s", c.Engine.DefaultMode)
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	switch c.History.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.History.Postgres.URL == "" {
			return fmt.Errorf("postgres URL is required for postgres history")
		}
	case BackendRedis:
		if c.History.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for redis history")
		}
	default:
		return fmt.Errorf("invalid history backend: %s (must be memory, postgres, or redis)", c.History.Backend)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// EngineConfig converts the engine and cache sections into an engine.Config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		MaxTransitiveVersions: c.Engine.MaxTransitiveVersions,
		CacheEnabled:          c.Engine.CacheEnabled,
		Cache:                 c.CacheConfig(),
		Concurrency:           c.Engine.Concurrency,
		BatchTimeout:          c.Engine.BatchTimeout,
	}
}

// CacheConfig returns the matrix cache section.
func (c *Config) CacheConfig() cache.Config {
	return c.Cache
}

// OTelConfig converts the observability section into tracing settings.
func (c *Config) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}

// OpenHistory connects to the configured history backend.
func (c *Config) OpenHistory(ctx context.Context) (history.Store, error) {
	switch c.History.Backend {
	case BackendPostgres:
		return history.OpenPostgres(ctx, c.History.Postgres)
	case BackendRedis:
		return history.OpenRedis(ctx, c.History.Redis)
	case BackendMemory, "":
		return history.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("invalid history backend: %s", c.History.Backend)
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
