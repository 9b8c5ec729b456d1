package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/benvon/eisenhower-todo/internal/database"
)

// DefaultEnvFile is read before the environment, when present
const DefaultEnvFile = ".env"

// Config holds application configuration
type Config struct {
	DatabaseURL        string
	ServerPort         string
	BaseURL            string
	FrontendURL        string
	EnableHSTS         bool
	OIDCProvider       string
	RedisURL           string
	RabbitMQURL        string
	RabbitMQPrefetch   int
	WorkerDebugMode    bool
	ServerDebugMode    bool
	OTELEnabled        bool
	OTELEndpoint       string
	MigrateOnStart     bool
	ReclassifyInterval time.Duration
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DefaultRateLimit   string
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	return LoadFrom(DefaultEnvFile)
}

// LoadFrom is Load with an explicit env file path
func LoadFrom(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	pool := database.DefaultPoolConfig
	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:         getEnvBool("ENABLE_HSTS", false),
		OIDCProvider:       getEnv("OIDC_PROVIDER", "cognito"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:   getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:    getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:    getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MigrateOnStart:     getEnvBool("MIGRATE_ON_START", false),
		ReclassifyInterval: getEnvDuration("RECLASSIFY_INTERVAL", time.Hour),
		DBMaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", pool.MaxOpenConns),
		DBMaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", pool.MaxIdleConns),
		DefaultRateLimit:   getEnv("DEFAULT_RATE_LIMIT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ReclassifyInterval <= 0 {
		return nil, fmt.Errorf("RECLASSIFY_INTERVAL must be positive, got %s", cfg.ReclassifyInterval)
	}
	if cfg.RabbitMQPrefetch < 1 {
		cfg.RabbitMQPrefetch = 1
	}

	return cfg, nil
}

// RequireQueue reports whether the job queue is configured. Only the worker needs it.
func (c *Config) RequireQueue() error {
	if c.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required for the reclassification worker")
	}
	return nil
}

// PoolConfig returns the database pool settings
func (c *Config) PoolConfig() database.PoolConfig {
	pool := database.DefaultPoolConfig
	if c.DBMaxOpenConns > 0 {
		pool.MaxOpenConns = c.DBMaxOpenConns
	}
	if c.DBMaxIdleConns >= 0 {
		pool.MaxIdleConns = c.DBMaxIdleConns
	}
	if pool.MaxIdleConns > pool.MaxOpenConns {
		pool.MaxIdleConns = pool.MaxOpenConns
	}
	return pool
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
