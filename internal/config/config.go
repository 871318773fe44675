package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// CricAPI feed
	CricAPIKey      string        `envconfig:"CRICAPI_KEY" required:"true"`
	CricAPIBaseURL  string        `envconfig:"CRICAPI_BASE_URL" default:"https://api.cricapi.com/v1"`
	CricAPISeriesID string        `envconfig:"CRICAPI_SERIES_ID" required:"true"`
	SeriesName      string        `envconfig:"SERIES_NAME" default:"ICC Men's T20 World Cup 2026"`
	FeedTimeout     time.Duration `envconfig:"FEED_TIMEOUT" default:"10s"`
	FeedMaxRetries  int           `envconfig:"FEED_MAX_RETRIES" default:"2"`

	// Sync policy
	DetailStaleness   time.Duration `envconfig:"DETAIL_STALENESS" default:"4h"`
	DetailConcurrency int           `envconfig:"DETAIL_CONCURRENCY" default:"4"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"wcpickem"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"wcpickem_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`

	// Scheduler
	EnableScheduler    bool          `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool          `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	SyncInterval       time.Duration `envconfig:"SYNC_INTERVAL" default:"5m"`
	NightlyRepairCron  string        `envconfig:"NIGHTLY_REPAIR_CRON" default:"0 3 * * *"`

	// Trigger auth and rate limiting
	SyncSecret          string        `envconfig:"SYNC_SECRET" default:""`
	CronSecret          string        `envconfig:"CRON_SECRET" default:""`
	SessionJWTSecret    string        `envconfig:"SESSION_JWT_SECRET" required:"true"`
	LiveTriggerCooldown time.Duration `envconfig:"LIVE_TRIGGER_COOLDOWN" default:"60s"`
	LiveWindow          time.Duration `envconfig:"LIVE_WINDOW" default:"30m"`

	// Caching TTL
	FeedCacheTTL time.Duration `envconfig:"FEED_CACHE_TTL" default:"30s"`

	// Feature Flags
	LockStartedMatches bool `envconfig:"LOCK_STARTED_MATCHES" default:"false"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CricAPIKey == "" {
		return fmt.Errorf("CRICAPI_KEY is required")
	}

	if c.CricAPISeriesID == "" {
		return fmt.Errorf("CRICAPI_SERIES_ID is required")
	}

	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if len(c.SessionJWTSecret) < 16 {
		return fmt.Errorf("SESSION_JWT_SECRET must be at least 16 characters")
	}

	if c.DetailConcurrency < 1 {
		return fmt.Errorf("DETAIL_CONCURRENCY must be at least 1")
	}

	if c.SyncInterval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1m to protect the API quota")
	}

	if c.IsProduction() && c.SyncSecret == "" && c.CronSecret == "" {
		return fmt.Errorf("SYNC_SECRET or CRON_SECRET must be set in production")
	}

	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// TriggerSecrets returns the bearer tokens accepted by the manual trigger
func (c *Config) TriggerSecrets() []string {
	var secrets []string
	for _, s := range []string{c.SyncSecret, c.CronSecret} {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	return secrets
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
