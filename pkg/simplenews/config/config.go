// Package config builds a simplenews Portal and its backends from server
// configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:            "8080",
		Environment:     "development",
		LogLevel:        "info",
		LogFormat:       "text",
		DatabaseType:    "memory",
		DBMigrate:       true,
		NewsTable:       "news",
		SliderTable:     "slider_images",
		SQLitePath:      "./data/news.db",
		StorageType:     "memory",
		FSBaseDir:       "./data/media",
		S3Region:        "us-east-1",
		S3SSEAlgorithm:  "AES256",
		MediaMountPath:  "/media",
		JWTIssuer:       "simple-news",
		RefreshSchedule: "@every 1m",
		RefreshTimeout:  30 * time.Second,
		SweepGrace:      15 * time.Minute,
		EventLogging:    true,
	}
}

// ServerConfig represents server configuration for the simple-news service.
// Env tags carry no defaults so that WithEnv only overrides variables that are set.
type ServerConfig struct {
	Port        string `env:"PORT" env-description:"HTTP listen port"`
	Environment string `env:"ENVIRONMENT" env-description:"development, production, testing"`
	LogLevel    string `env:"LOG_LEVEL" env-description:"debug, info, warn, error"`
	LogFormat   string `env:"LOG_FORMAT" env-description:"text or json"`

	// Record store
	DatabaseType    string `env:"DATABASE_TYPE" env-description:"memory, postgres, postgrest or sqlite"`
	DatabaseURL     string `env:"DATABASE_URL" env-description:"Postgres connection string"`
	DBSchema        string `env:"DB_SCHEMA" env-description:"Postgres search_path"`
	DBMigrate       bool   `env:"DB_MIGRATE" env-description:"apply the Postgres schema on start"`
	PostgRESTURL    string `env:"POSTGREST_URL" env-description:"PostgREST root URL"`
	PostgRESTAPIKey string `env:"POSTGREST_API_KEY" env-description:"PostgREST API key"`
	NewsTable       string `env:"NEWS_TABLE" env-description:"PostgREST table for content items"`
	SliderTable     string `env:"SLIDER_TABLE" env-description:"PostgREST table for slider entries"`
	SQLitePath      string `env:"SQLITE_PATH" env-description:"SQLite database file"`

	// Blob store
	StorageType       string `env:"STORAGE_TYPE" env-description:"memory, fs or s3"`
	FSBaseDir         string `env:"FS_BASE_DIR" env-description:"filesystem storage directory"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE"`
	S3EnableSSE       bool   `env:"S3_ENABLE_SSE"`
	S3SSEAlgorithm    string `env:"S3_SSE_ALGORITHM"`
	S3SSEKMSKeyID     string `env:"S3_SSE_KMS_KEY_ID"`
	S3CreateBucket    bool   `env:"S3_CREATE_BUCKET"`

	// Media URLs
	MediaBaseURL   string `env:"MEDIA_BASE_URL" env-description:"public base URL of stored media"`
	PublicOrigin   string `env:"PUBLIC_ORIGIN" env-description:"origin prefixed to app-routed media URLs"`
	MediaMountPath string `env:"MEDIA_MOUNT_PATH" env-description:"route serving media from memory or fs storage"`

	// Admin credentials
	AdminTokenSHA256 string `env:"ADMIN_TOKEN_SHA256" env-description:"hex SHA-256 of the admin token"`
	JWTSecret        string `env:"JWT_SECRET" env-description:"HS256 secret for admin JWTs"`
	JWTIssuer        string `env:"JWT_ISSUER"`

	// Background work
	RefreshSchedule string        `env:"REFRESH_SCHEDULE" env-description:"cron schedule for catalog refresh"`
	RefreshTimeout  time.Duration `env:"REFRESH_TIMEOUT"`
	AtomicCounters  bool          `env:"ATOMIC_COUNTERS" env-description:"use the store's atomic increment"`
	SweepSchedule   string        `env:"SWEEP_SCHEDULE" env-description:"cron schedule for orphan sweeps, empty to disable"`
	SweepGrace      time.Duration `env:"SWEEP_GRACE"`
	EventLogging    bool          `env:"EVENT_LOGGING"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be 'text' or 'json', got: %s", c.LogFormat)
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case "postgrest":
		if c.PostgRESTURL == "" {
			return errors.New("postgrest_url is required when using postgrest")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("sqlite_path is required when using sqlite")
		}
	default:
		return fmt.Errorf("database_type must be one of memory, postgres, postgrest, sqlite, got: %s", c.DatabaseType)
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.FSBaseDir == "" {
			return errors.New("fs_base_dir is required when using fs storage")
		}
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("s3_bucket is required when using s3 storage")
		}
	default:
		return fmt.Errorf("storage_type must be one of memory, fs, s3, got: %s", c.StorageType)
	}

	if c.MediaBaseURL != "" {
		u, err := url.Parse(c.MediaBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("media_base_url must be an absolute URL, got: %s", c.MediaBaseURL)
		}
	}
	if c.SweepGrace < 0 {
		return errors.New("sweep_grace cannot be negative")
	}

	return nil
}

// IsProduction reports whether the server runs in production.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ParseLogLevel parses debug, info, warn or error.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
