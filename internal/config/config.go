// Package config loads application configuration from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all runtime settings.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	Store     string

	Database Database
	Booking  Booking
	Auth     Auth
	Redis    Redis

	AMQPURL        string
	MetricsEnabled bool
}

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// Booking holds reservation engine tuning.
type Booking struct {
	MaxAttempts int
	LockTimeout time.Duration

	// ReviewRequiresActiveBooking excludes cancelled bookings from review
	// eligibility. Off by default: any booking qualifies.
	ReviewRequiresActiveBooking bool
}

// Auth holds token and admin credential settings.
type Auth struct {
	JWTSecret         string
	TokenTTL          time.Duration
	AdminEmail        string
	AdminPasswordHash string
}

// Redis holds the seats-left cache connection. An empty Addr disables it.
type Redis struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Load reads configuration, falling back to local-development defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		Store:     strings.ToLower(getEnv("STORE", StorePostgres)),

		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "eventbooking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(max(getEnvInt("DB_MAX_CONNS", 20), 1)),
		},

		Booking: Booking{
			MaxAttempts:                 getEnvInt("ADMIT_MAX_ATTEMPTS", 5),
			LockTimeout:                 getEnvDuration("LOCK_TIMEOUT", 2*time.Second),
			ReviewRequiresActiveBooking: getEnvBool("REVIEW_REQUIRES_ACTIVE_BOOKING", false),
		},

		Auth: Auth{
			JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
			TokenTTL:          getEnvDuration("JWT_TTL", 24*time.Hour),
			AdminEmail:        getEnv("ADMIN_EMAIL", "admin@event.com"),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},

		Redis: Redis{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("SEATS_CACHE_TTL", 5*time.Second),
		},

		AMQPURL:        getEnv("AMQP_URL", ""),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("1500ms", "2s").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
