package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./grantd.db)

	AccessTokenTTL  time.Duration // Access token lifetime (default: 1h)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 720h / 30 days)
	AuthCodeTTL     time.Duration // Authorization code lifetime (default: 5m)

	// The password and implicit grants are deprecated by current OAuth2
	// guidance; both can be switched off per deployment.
	EnablePasswordGrant bool
	EnableImplicitGrant bool

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired row sweep interval (default: 1h)
}

func LoadConfig() Config {
	// A missing .env file is fine; env vars win either way.
	_ = godotenv.Load()

	return Config{
		DatabaseFile:         getEnvOrDefault("GRANTD_DATABASE_FILE", "grantd.db"),
		AccessTokenTTL:       getEnvDurationOrDefault("GRANTD_ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:      getEnvDurationOrDefault("GRANTD_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		AuthCodeTTL:          getEnvDurationOrDefault("GRANTD_AUTH_CODE_TTL", 5*time.Minute),
		EnablePasswordGrant:  getEnvBoolOrDefault("GRANTD_ENABLE_PASSWORD_GRANT", true),
		EnableImplicitGrant:  getEnvBoolOrDefault("GRANTD_ENABLE_IMPLICIT_GRANT", true),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
	}
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer values are taken as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
