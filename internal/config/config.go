package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	JWTSecret   string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// TrustedProxies is the number of reverse proxies in front of the
	// application; it controls how the client IP is resolved from
	// X-Forwarded-For. 0 means the transport peer address is used as-is.
	TrustedProxies int

	// ThrottlePerMin is the per-key quota applied to token endpoints.
	ThrottlePerMin int

	// ThrottleFailOpen admits requests when the counter store is
	// unreachable. Default is fail-closed: store errors count as limited.
	ThrottleFailOpen bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:            "8080",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		TrustedProxies:  0,
		ThrottlePerMin:  10,
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is required")
	}
	cfg.RedisURL = redisURL

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if v := os.Getenv("ACCESS_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ACCESS_TOKEN_TTL: %w", err)
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("REFRESH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_TOKEN_TTL: %w", err)
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %q", v)
		}
		cfg.TrustedProxies = n
	}

	if v := os.Getenv("THROTTLE_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid THROTTLE_PER_MIN: %q", v)
		}
		cfg.ThrottlePerMin = n
	}

	cfg.ThrottleFailOpen = os.Getenv("THROTTLE_FAIL_OPEN") == "true"

	return cfg, nil
}
