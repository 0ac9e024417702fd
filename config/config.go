package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"raffle/database"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Messaging and cache
	NATSServers string
	RedisAddr   string // empty disables the shared dedup cache

	// Settlement timing
	PendingOrderTimeout time.Duration // pending orders older than this are swept
	SweepInterval       time.Duration
	SweepBatchSize      int
	DrawInterval        time.Duration
	WebhookDedupWindow  time.Duration

	// Lock discipline
	LockTimeout         time.Duration // per-transaction lock_timeout
	LockRetryMaxElapsed time.Duration // total time spent retrying lock failures

	// Logging
	LogLevel string

	// OpenTelemetry metrics
	OTelEnabled        bool
	OTelExporterType   string // "console", "otlp" or "none"
	OTelOTLPEndpoint   string
	OTelServiceName    string
	OTelExportInterval time.Duration

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction returns true when running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// load loads configuration from environment variables, after an optional .env file
func load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: os.Getenv("ENVIRONMENT"),

		OTelEnabled:      os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType: getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint: getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelServiceName:  getEnvWithDefault("OTEL_SERVICE_NAME", "raffle"),
	}

	var err error
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"PENDING_ORDER_TIMEOUT", 10 * time.Minute, &config.PendingOrderTimeout},
		{"SWEEP_INTERVAL", time.Minute, &config.SweepInterval},
		{"DRAW_INTERVAL", 5 * time.Minute, &config.DrawInterval},
		{"WEBHOOK_DEDUP_WINDOW", 5 * time.Minute, &config.WebhookDedupWindow},
		{"LOCK_TIMEOUT", 3 * time.Second, &config.LockTimeout},
		{"LOCK_RETRY_MAX_ELAPSED", 5 * time.Second, &config.LockRetryMaxElapsed},
		{"OTEL_EXPORT_INTERVAL", 30 * time.Second, &config.OTelExportInterval},
	}
	for _, d := range durations {
		if *d.dest, err = getDurationWithDefault(d.key, d.def); err != nil {
			return nil, err
		}
	}

	config.SweepBatchSize = 100
	if size := os.Getenv("SWEEP_BATCH_SIZE"); size != "" {
		parsed, err := strconv.Atoi(size)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("SWEEP_BATCH_SIZE must be a positive integer, got %q", size)
		}
		config.SweepBatchSize = parsed
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationWithDefault parses a Go duration string such as "90s" or "10m"
func getDurationWithDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return parsed, nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		PendingOrderTimeout: 10 * time.Minute,
		SweepInterval:       time.Minute,
		SweepBatchSize:      100,
		DrawInterval:        5 * time.Minute,
		WebhookDedupWindow:  5 * time.Minute,
		LockTimeout:         time.Second,
		LockRetryMaxElapsed: 2 * time.Second,
		LogLevel:            "debug",
		Environment:         "test",
		OTelExporterType:    "none",
		OTelServiceName:     "raffle-test",
		OTelExportInterval:  time.Second,
	}
}
