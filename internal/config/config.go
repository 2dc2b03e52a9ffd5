// Package config handles application configuration loading and validation
// from environment variables, providing a type-safe configuration structure.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration values loaded from environment variables.
// It provides a centralized, type-safe way to access configuration throughout the application.
type Config struct {
	// Server configuration
	ListenAddr     string        // Address to listen on (e.g., ":8080")
	RequestTimeout time.Duration // Per-request read/write timeout
	MaxRequestSize int64         // Maximum size of incoming request bodies in bytes

	// Environment
	APIEnv string // 'production', 'development', 'test'

	// Database configuration
	DatabasePath     string // Path to the SQLite database file
	DatabasePoolSize int    // Number of connections in the database pool

	// Authentication
	ManagementToken string        // Token for the admin management API
	SessionTTL      time.Duration // Lifetime of extension session tokens

	// Accounts
	DefaultCredits   int // Credits granted to newly created users
	MaxDailyLikes    int // Advisory daily like cap for new users
	MaxDailyMessages int // Advisory daily message cap for new users

	// Site configurations
	SitesConfigPath string // Optional YAML file seeding site_configurations

	// Logging
	LogLevel  string // Log level (debug, info, warn, error)
	LogFormat string // Log format (json, console)
	LogFile   string // Path to log file (empty for stdout)

	// CORS settings
	CORSOriginPrefixes []string // Allowed origin prefixes (extension schemes, localhost)

	// Rate limiting
	APIRateLimit       int           // Requests per window per IP for general API endpoints
	APIRateWindow      time.Duration // Window for the general API limit
	LoginRateLimit     int           // Login attempts per window per IP
	LoginRateWindow    time.Duration // Window for the login limit
	ErrorLogRateLimit  int           // Error-log submissions per window per IP
	ErrorLogRateWindow time.Duration // Window for the error-log limit

	// Distributed rate limiting
	RedisRateLimitEnabled bool   // Use Redis-backed windows instead of in-process memory
	RedisAddr             string // Redis server address (e.g., "localhost:6379")
	RedisDB               int    // Redis database number
	RateLimitKeyPrefix    string // Redis key prefix for rate limit counters
	RateLimitKeySecret    string // HMAC secret for hashing identifiers in Redis keys
}

// New creates a new configuration with values from environment variables.
// It applies default values where environment variables are not set,
// and validates required configuration settings.
func New() (*Config, error) {
	config := &Config{
		// Server defaults
		ListenAddr:     getEnvString("LISTEN_ADDR", ":8080"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxRequestSize: getEnvInt64("MAX_REQUEST_SIZE", 1024*1024), // 1MB

		// Environment
		APIEnv: getEnvString("API_ENV", "development"),

		// Database defaults
		DatabasePath:     getEnvString("DATABASE_PATH", "./data/swipeflow.db"),
		DatabasePoolSize: getEnvInt("DATABASE_POOL_SIZE", 10),

		// Authentication
		ManagementToken: getEnvString("MANAGEMENT_TOKEN", ""),
		SessionTTL:      getEnvDuration("SESSION_TTL", 24*time.Hour),

		// Account defaults
		DefaultCredits:   getEnvInt("DEFAULT_CREDITS", 1000),
		MaxDailyLikes:    getEnvInt("MAX_DAILY_LIKES", 100),
		MaxDailyMessages: getEnvInt("MAX_DAILY_MESSAGES", 50),

		// Site configurations
		SitesConfigPath: getEnvString("SITES_CONFIG_PATH", ""),

		// Logging defaults
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "json"),
		LogFile:   getEnvString("LOG_FILE", ""),

		// CORS defaults cover the extension schemes plus local development.
		CORSOriginPrefixes: getEnvStringSlice("CORS_ORIGIN_PREFIXES", []string{
			"chrome-extension://",
			"moz-extension://",
			"http://localhost",
			"https://localhost",
		}),

		// Rate limiting defaults
		APIRateLimit:       getEnvInt("API_RATE_LIMIT", 100),
		APIRateWindow:      getEnvDuration("API_RATE_WINDOW", time.Minute),
		LoginRateLimit:     getEnvInt("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow:    getEnvDuration("LOGIN_RATE_WINDOW", 5*time.Minute),
		ErrorLogRateLimit:  getEnvInt("ERROR_LOG_RATE_LIMIT", 50),
		ErrorLogRateWindow: getEnvDuration("ERROR_LOG_RATE_WINDOW", time.Minute),

		// Distributed rate limiting defaults
		RedisRateLimitEnabled: getEnvBool("REDIS_RATE_LIMIT_ENABLED", false),
		RedisAddr:             getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		RateLimitKeyPrefix:    getEnvString("RATE_LIMIT_KEY_PREFIX", "ratelimit:"),
		RateLimitKeySecret:    getEnvString("RATE_LIMIT_KEY_SECRET", ""),
	}

	// Validate required settings
	if config.ManagementToken == "" {
		return nil, fmt.Errorf("MANAGEMENT_TOKEN environment variable is required")
	}

	return config, nil
}

// getEnvString retrieves a string value from an environment variable,
// falling back to the provided default value if the variable is not set.
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean value from an environment variable,
// falling back to the provided default value if the variable is not set
// or cannot be parsed as a boolean.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		parsedValue, err := strconv.ParseBool(value)
		if err == nil {
			return parsedValue
		}
	}
	return defaultValue
}

// getEnvInt retrieves an integer value from an environment variable,
// falling back to the provided default value if the variable is not set
// or cannot be parsed as an integer.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		parsedValue, err := strconv.Atoi(value)
		if err == nil {
			return parsedValue
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves a 64-bit integer value from an environment variable,
// falling back to the provided default value if the variable is not set
// or cannot be parsed as a 64-bit integer.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		parsedValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsedValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration value from an environment variable,
// falling back to the provided default value if the variable is not set
// or cannot be parsed as a duration.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		parsedValue, err := time.ParseDuration(value)
		if err == nil {
			return parsedValue
		}
	}
	return defaultValue
}

// getEnvStringSlice retrieves a comma-separated string value from an environment variable
// and splits it into a slice of strings, falling back to the provided default value
// if the variable is not set or is empty.
func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
