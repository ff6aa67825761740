package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/beaverio/beaver-core/pkg/jwtx"
	"github.com/joho/godotenv"
)

type Config struct {
	AccessSecret  string        // Required: HMAC secret for access tokens
	RefreshSecret string        // Required: HMAC secret for refresh tokens, must differ from AccessSecret
	AccessTTL     time.Duration // Access token lifetime (default: 15m)
	RefreshTTL    time.Duration // Refresh token and session lifetime (default: 7d)

	StoreDriver  string // sqlite or postgres (default: sqlite)
	DatabaseFile string // Path to SQLite database file (default: ./auth.db)
	DatabaseURL  string // Postgres DSN, required for the postgres driver

	CacheDriver     string        // memory or redis (default: memory)
	RedisURL        string        // Redis URL, required for the redis driver
	CacheDefaultTTL time.Duration // TTL for cache entries written without one (default: 60s)
	UserCacheTTL    time.Duration // Cache-aside TTL for user lookups (default: 5m)

	PepperFile string // Path to file containing pepper for password hashing (default: ./pepper)

	RateLimitWindow time.Duration // Window for credential endpoints (default: 60s)
	RateLimitLimit  int           // Requests per window for credential endpoints (default: 100)

	Env                  string        // Environment (dev, staging, production) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text, pretty) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired refresh token sweep interval (default: 1h)
}

// LoadConfig reads the configuration from the environment. Variables in a
// .env file in the working directory are loaded first but never override
// the real environment.
func LoadConfig() Config {
	_ = godotenv.Load()

	env := os.Getenv("ENV")
	if env == "" {
		env = getEnvOrDefault("NODE_ENV", "dev")
	}

	return Config{
		AccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		AccessTTL:     getEnvSecondsOrDefault("JWT_ACCESS_EXPIRATION", 15*time.Minute),
		RefreshTTL:    getEnvSecondsOrDefault("JWT_REFRESH_EXPIRATION", 7*24*time.Hour),

		StoreDriver:  getEnvOrDefault("STORE_DRIVER", "sqlite"),
		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "auth.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		CacheDriver:     getEnvOrDefault("CACHE_DRIVER", "memory"),
		RedisURL:        os.Getenv("REDIS_URL"),
		CacheDefaultTTL: getEnvDurationOrDefault("CACHE_DEFAULT_TTL", 60*time.Second),
		UserCacheTTL:    getEnvDurationOrDefault("USER_CACHE_TTL", 5*time.Minute),

		PepperFile: getEnvOrDefault("PEPPER_FILE", "pepper"),

		RateLimitWindow: getEnvSecondsOrDefault("RATE_LIMIT_TTL", 60*time.Second),
		RateLimitLimit:  getEnvIntOrDefault("RATE_LIMIT_LIMIT", 100),

		Env:                  env,
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	switch {
	case c.AccessSecret == "":
		errs = append(errs, errors.New("JWT_ACCESS_SECRET is required"))
	case len(c.AccessSecret) < jwtx.MinSecretLength:
		errs = append(errs, fmt.Errorf("JWT_ACCESS_SECRET must be at least %d bytes", jwtx.MinSecretLength))
	}
	switch {
	case c.RefreshSecret == "":
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	case len(c.RefreshSecret) < jwtx.MinSecretLength:
		errs = append(errs, fmt.Errorf("JWT_REFRESH_SECRET must be at least %d bytes", jwtx.MinSecretLength))
	case c.RefreshSecret == c.AccessSecret:
		errs = append(errs, errors.New("JWT_REFRESH_SECRET must differ from JWT_ACCESS_SECRET"))
	}

	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_EXPIRATION must be positive"))
	}
	if c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("JWT_REFRESH_EXPIRATION must be positive"))
	}

	switch c.StoreDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.CacheDriver {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_DRIVER %q", c.CacheDriver))
	}

	if c.RateLimitWindow <= 0 || c.RateLimitLimit <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_TTL and RATE_LIMIT_LIMIT must be positive"))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

// getEnvSecondsOrDefault reads an integer number of seconds. Unparsable
// values keep the default; zero and negative values are kept so Validate
// can reject them.
func getEnvSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Accept Go durations as well (e.g. "15m")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
