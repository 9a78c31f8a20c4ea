// Package config handles configuration loading and management
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	ConnectionString string
	Username         string
	Password         string
	Bucket           string
	Scope            string
	QueryTimeout     time.Duration
	ConnectTimeout   time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if the file doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		ConnectionString: getEnv("COUCHBASE_CONNSTR", "couchbase://localhost"),
		Username:         getEnv("COUCHBASE_USERNAME", "Administrator"),
		Password:         getEnv("COUCHBASE_PASSWORD", ""),
		Bucket:           getEnv("COUCHBASE_BUCKET", "travel-sample"),
		Scope:            getEnv("COUCHBASE_SCOPE", "inventory"),
	}

	queryTimeout, err := parseDuration("QUERY_TIMEOUT", "75s")
	if err != nil {
		return nil, err
	}
	cfg.QueryTimeout = queryTimeout

	connectTimeout, err := parseDuration("CONNECT_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cfg.ConnectTimeout = connectTimeout

	retryDelay, err := parseDuration("QUERY_RETRY_DELAY", "2s")
	if err != nil {
		return nil, err
	}
	cfg.RetryDelay = retryDelay

	maxRetries, err := strconv.Atoi(getEnv("QUERY_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUERY_MAX_RETRIES: %w", err)
	}
	cfg.MaxRetries = maxRetries

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func (c *Config) String() string {
	passwordDisplay := "(not set)"
	if c.Password != "" {
		passwordDisplay = "********"
	}

	return fmt.Sprintf(`Current Configuration:
======================
Connection String:  %s
Username:           %s
Password:           %s
Bucket:             %s
Scope:              %s
Query Timeout:      %s
Connect Timeout:    %s
Max Retries:        %d
Retry Delay:        %s`,
		c.ConnectionString,
		c.Username,
		passwordDisplay,
		c.Bucket,
		c.Scope,
		c.QueryTimeout,
		c.ConnectTimeout,
		c.MaxRetries,
		c.RetryDelay,
	)
}
