package app

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session backends.
const (
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
)

var (
	ErrMissingSecret = errors.New("app: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	ErrSharedSecret  = errors.New("app: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	ErrBackend       = errors.New("app: SESSION_BACKEND must be sqlite or redis")
)

type Config struct {
	AccessSecret  string        // Required: HMAC key for access tokens
	RefreshSecret string        // Required: HMAC key for refresh tokens, distinct from AccessSecret
	Issuer        string        // Optional: iss claim (default: herdwatch)
	AccessTTL     time.Duration // Optional: access token lifetime (default: 15m)

	DatabaseFile string // Optional: SQLite file (default: herdwatch.db)
	PepperFile   string // Optional: password pepper file, created if missing (default: pepper)
	StoreTimeout time.Duration

	SessionBackend string // sqlite or redis (default: sqlite)
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	AllowAdminSignup       bool
	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	Env                  string // dev, test, production (default: dev)
	LogLevel             string
	LogFormat            string
	Port                 int
	ShutdownGracePeriod  time.Duration
	HousekeepingInterval time.Duration
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

func LoadConfig() Config {
	return Config{
		AccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		Issuer:        getEnvOrDefault("JWT_ISSUER", "herdwatch"),
		AccessTTL:     getEnvDurationOrDefault("JWT_EXPIRES_IN", 15*time.Minute),

		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "herdwatch.db"),
		PepperFile:   getEnvOrDefault("PEPPER_FILE", "pepper"),
		StoreTimeout: getEnvDurationOrDefault("STORE_TIMEOUT", 3*time.Second),

		SessionBackend: strings.ToLower(getEnvOrDefault("SESSION_BACKEND", SessionBackendSQLite)),
		RedisAddr:      getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvIntOrDefault("REDIS_DB", 0),

		AllowAdminSignup:       getEnvBoolOrDefault("ALLOW_ADMIN_SIGNUP", false),
		BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
	}
}

// Validate rejects configurations the service must not start with.
func (c Config) Validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return ErrMissingSecret
	}
	if c.AccessSecret == c.RefreshSecret {
		return ErrSharedSecret
	}
	switch c.SessionBackend {
	case SessionBackendSQLite, SessionBackendRedis:
	default:
		return ErrBackend
	}
	return nil
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

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "15m", "1h", "90s"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
