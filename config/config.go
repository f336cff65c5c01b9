package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port                   string        // Service port
	KratosURL              string        // Kratos Frontend API URL
	KratosTimeout          time.Duration // Per-request timeout for Kratos whoami calls
	DatabaseURL            string        // Postgres DSN for the profile store
	CacheTTL               time.Duration // Session cache TTL
	ProfileCacheTTL        time.Duration // Profile cache TTL
	SessionFallbackTimeout time.Duration // Signed-out fallback while the session is unresolved; 0 disables
	CSRFSecret             string        // CSRF secret for token generation
	AuthSharedSecret       string        // Shared secret for internal hooks
	BackendTokenSecret     string        // Secret for signing backend JWT tokens
	BackendTokenIssuer     string        // JWT issuer claim
	BackendTokenAudience   string        // JWT audience claim
	BackendTokenTTL        time.Duration // JWT token TTL
	LogLevel               string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honoured when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{
		Port:                 getEnv("PORT", "8888"),
		KratosURL:            getEnv("KRATOS_URL", "http://kratos:4433"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		CSRFSecret:           getEnv("CSRF_SECRET", ""),
		AuthSharedSecret:     getEnv("AUTH_SHARED_SECRET", ""),
		BackendTokenSecret:   getEnv("BACKEND_TOKEN_SECRET", ""),
		BackendTokenIssuer:   getEnv("BACKEND_TOKEN_ISSUER", "passforge"),
		BackendTokenAudience: getEnv("BACKEND_TOKEN_AUDIENCE", "passforge-api"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"KRATOS_TIMEOUT", 5 * time.Second, &config.KratosTimeout},
		{"CACHE_TTL", 5 * time.Minute, &config.CacheTTL},
		{"PROFILE_CACHE_TTL", time.Minute, &config.ProfileCacheTTL},
		{"SESSION_FALLBACK_TIMEOUT", 5 * time.Second, &config.SessionFallbackTimeout},
		{"BACKEND_TOKEN_TTL", 5 * time.Minute, &config.BackendTokenTTL},
	}
	for _, d := range durations {
		value, err := getDuration(d.key, d.fallback)
		if err != nil {
			return nil, err
		}
		*d.dst = value
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.KratosURL == "" {
		return fmt.Errorf("KRATOS_URL cannot be empty")
	}

	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	if c.ProfileCacheTTL <= 0 {
		return fmt.Errorf("PROFILE_CACHE_TTL must be positive")
	}

	if c.KratosTimeout <= 0 {
		return fmt.Errorf("KRATOS_TIMEOUT must be positive")
	}

	if c.SessionFallbackTimeout < 0 {
		return fmt.Errorf("SESSION_FALLBACK_TIMEOUT cannot be negative")
	}

	if c.BackendTokenSecret != "" && len(c.BackendTokenSecret) < 32 {
		return fmt.Errorf("BACKEND_TOKEN_SECRET must be at least 32 bytes")
	}

	return nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return d, nil
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	// Check for _FILE suffix
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
