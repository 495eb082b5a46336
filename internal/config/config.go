package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for both binaries. The server requires
// DATABASE_URL and REDIS_URL; the worker requires DATABASE_URL and
// SENDER_GATEWAY_URL.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// Ingestion rate limit per source address: at most PostbackRateLimit
	// requests per PostbackRateWindow. Zero disables limiting.
	PostbackRateLimit  int
	PostbackRateWindow time.Duration

	// Local directory backing the admin upload endpoint; the sender pool
	// resolves upload image references against it.
	UploadsDir string

	SenderGatewayURL string

	QueueInterval  time.Duration
	SweepInterval  time.Duration
	QueueBatchSize int
	DispatchPacing time.Duration
}

// Load reads server configuration from environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	return cfg, nil
}

// LoadWorker reads worker configuration from environment variables.
func LoadWorker() (*Config, error) {
	cfg := defaults()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SenderGatewayURL == "" {
		return nil, fmt.Errorf("SENDER_GATEWAY_URL is required")
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		PostbackRateLimit:  getEnvInt("POSTBACK_RATE_LIMIT", 120),
		PostbackRateWindow: getEnvDuration("POSTBACK_RATE_WINDOW", time.Minute),
		UploadsDir:         getEnv("UPLOADS_DIR", "uploads"),
		SenderGatewayURL:   getEnv("SENDER_GATEWAY_URL", ""),
		QueueInterval:      getEnvDuration("QUEUE_CHECK_INTERVAL", 5*time.Minute),
		SweepInterval:      getEnvDuration("QUEUE_SWEEP_INTERVAL", 24*time.Hour),
		QueueBatchSize:     getEnvInt("QUEUE_BATCH_SIZE", 50),
		DispatchPacing:     getEnvDuration("DISPATCH_PACING", 2*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
