// Package config loads client configuration from the environment, with
// optional .env file support for local development.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/parcelio/feas-client/pkg/client"
	"github.com/parcelio/feas-client/pkg/logging"
)

// Config holds the full client configuration.
type Config struct {
	// BaseURL is the platform origin, defaulted to "/" when absent or
	// blank so the client works against the hosting origin.
	BaseURL string

	// Identity is the acting user's context, injected into every call.
	Identity client.Identity

	// RedisAddr is the address of the Redis used for the import status
	// cache. Empty disables the cache.
	RedisAddr string

	// LogLevel is the minimum log level.
	LogLevel logging.LogLevel

	// PollInterval is the wait between import status checks.
	PollInterval time.Duration

	// PollTimeout bounds an import poll session.
	PollTimeout time.Duration
}

// Load reads configuration from the environment. When envFilePath names
// an existing .env file it is loaded first; a missing file is not an
// error so the same binary runs with environment variables alone.
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		BaseURL: baseURL(),
		Identity: client.Identity{
			Role:      getEnv("FEAS_USER_ROLE", ""),
			UserID:    getEnv("FEAS_USER_ID", ""),
			UserEmail: getEnv("FEAS_USER_EMAIL", ""),
		},
		RedisAddr:    getEnv("FEAS_REDIS_ADDR", ""),
		LogLevel:     logging.LogLevel(getEnv("FEAS_LOG_LEVEL", string(logging.LevelInfo))),
		PollInterval: getEnvAsDuration("FEAS_POLL_INTERVAL", 2*time.Second),
		PollTimeout:  getEnvAsDuration("FEAS_POLL_TIMEOUT", 2*time.Minute),
	}

	return cfg, nil
}

// baseURL reads the single base-address value, defaulting to "/" when
// absent or blank.
func baseURL() string {
	value := strings.TrimSpace(os.Getenv("FEAS_BASE_URL"))
	if value == "" {
		return "/"
	}
	return value
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}
