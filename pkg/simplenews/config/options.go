package config

import (
	"fmt"
	"time"

	"github.com/tendant/simple-news/pkg/simplenews"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithLogging sets the log level and format
func WithLogging(level, format string) Option {
	return func(c *ServerConfig) error {
		if _, err := ParseLogLevel(level); err != nil {
			return err
		}
		c.LogLevel = level
		c.LogFormat = format
		return nil
	}
}

// WithDatabase configures a memory or postgres record store
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithPostgREST configures a hosted PostgREST record store
func WithPostgREST(baseURL, apiKey string) Option {
	return func(c *ServerConfig) error {
		if baseURL == "" {
			return fmt.Errorf("PostgREST URL cannot be empty")
		}
		c.DatabaseType = "postgrest"
		c.PostgRESTURL = baseURL
		c.PostgRESTAPIKey = apiKey
		return nil
	}
}

// WithSQLite configures an embedded SQLite record store
func WithSQLite(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
		c.DatabaseType = "sqlite"
		c.SQLitePath = path
		return nil
	}
}

// WithMemoryStorage stores media in memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithFilesystemStorage stores media under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = "fs"
		c.FSBaseDir = baseDir
		return nil
	}
}

// WithS3Storage stores media in an S3 bucket. Endpoint selects MinIO or
// another S3-compatible service.
func WithS3Storage(bucket, region, endpoint string, pathStyle bool) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		c.StorageType = "s3"
		c.S3Bucket = bucket
		if region != "" {
			c.S3Region = region
		}
		c.S3Endpoint = endpoint
		c.S3UsePathStyle = pathStyle
		return nil
	}
}

// WithMediaBaseURL sets the public base URL of stored media
func WithMediaBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		c.MediaBaseURL = baseURL
		return nil
	}
}

// WithAdminToken sets the admin token. Only its digest is kept.
func WithAdminToken(token string) Option {
	return func(c *ServerConfig) error {
		if token == "" {
			return fmt.Errorf("admin token cannot be empty")
		}
		c.AdminTokenSHA256 = simplenews.TokenDigest(token)
		return nil
	}
}

// WithJWTSecret enables admin JWTs signed with secret
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithRefresh sets the catalog refresh schedule and timeout
func WithRefresh(schedule string, timeout time.Duration) Option {
	return func(c *ServerConfig) error {
		c.RefreshSchedule = schedule
		c.RefreshTimeout = timeout
		return nil
	}
}

// WithAtomicCounters switches engagement counters to atomic increments
func WithAtomicCounters(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AtomicCounters = enabled
		return nil
	}
}

// WithSweep sets the orphan sweep schedule and grace period
func WithSweep(schedule string, grace time.Duration) Option {
	return func(c *ServerConfig) error {
		if grace < 0 {
			return fmt.Errorf("sweep grace cannot be negative")
		}
		c.SweepSchedule = schedule
		c.SweepGrace = grace
		return nil
	}
}

// WithEventLogging toggles the logging event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EventLogging = enabled
		return nil
	}
}
