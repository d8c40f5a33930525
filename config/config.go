package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Email    EmailConfig
	XAPI     XAPIConfig
	Claims   ClaimsConfig
	Notify   NotifyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// EmailConfig for the SMTP relay used by article sharing.
type EmailConfig struct {
	FromName string
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
}

// XAPIConfig points at the learning record store. Empty Endpoint disables statements.
type XAPIConfig struct {
	Endpoint string
	Username string
	Password string
	Platform string
	// IRI prefix used to build activity ids, e.g. https://gallery.example.com
	ActivityBase string
}

// ClaimsConfig controls the per-user permission cache.
type ClaimsConfig struct {
	TTL           time.Duration
	SweepSchedule string // cron spec
}

// NotifyConfig controls notification fan-out.
type NotifyConfig struct {
	MaxConcurrentSends int
	SendTimeout        time.Duration
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:4200"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "gallery"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 0)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Email: EmailConfig{
			FromName: getEnv("EMAIL_FROM_NAME", "Gallery"),
			SMTPHost: getEnv("SMTP_HOST", ""),
			SMTPPort: getEnvInt("SMTP_PORT", 587),
			SMTPUser: getEnv("SMTP_USER", ""),
			SMTPPass: getEnv("SMTP_PASS", ""),
		},
		XAPI: XAPIConfig{
			Endpoint:     strings.TrimRight(getEnv("XAPI_ENDPOINT", ""), "/"),
			Username:     getEnv("XAPI_USERNAME", ""),
			Password:     getEnv("XAPI_PASSWORD", ""),
			Platform:     getEnv("XAPI_PLATFORM", "Gallery"),
			ActivityBase: strings.TrimRight(getEnv("XAPI_ACTIVITY_BASE", "http://localhost:4200"), "/"),
		},
		Claims: ClaimsConfig{
			TTL:           getEnvDuration("CLAIMS_CACHE_TTL", 5*time.Minute),
			SweepSchedule: getEnv("CLAIMS_SWEEP_SCHEDULE", "@every 10m"),
		},
		Notify: NotifyConfig{
			MaxConcurrentSends: getEnvInt("NOTIFY_MAX_CONCURRENT_SENDS", 16),
			SendTimeout:        getEnvDuration("NOTIFY_SEND_TIMEOUT", 5*time.Second),
		},
	}
	if cfg.Notify.MaxConcurrentSends <= 0 {
		return nil, fmt.Errorf("NOTIFY_MAX_CONCURRENT_SENDS must be positive, got %d", cfg.Notify.MaxConcurrentSends)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// SplitTrim splits a comma-separated list and drops blanks.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
