package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-news/pkg/simplenews/config"
)

func TestWithEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_TYPE", "postgrest")
	t.Setenv("POSTGREST_URL", "https://project.supabase.co/rest/v1")
	t.Setenv("POSTGREST_API_KEY", "anon")
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("S3_BUCKET", "news-media")
	t.Setenv("S3_USE_PATH_STYLE", "true")
	t.Setenv("ATOMIC_COUNTERS", "true")
	t.Setenv("SWEEP_GRACE", "30m")
	t.Setenv("DB_MIGRATE", "false")

	cfg, err := config.Load(config.WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgrest", cfg.DatabaseType)
	assert.Equal(t, "https://project.supabase.co/rest/v1", cfg.PostgRESTURL)
	assert.Equal(t, "anon", cfg.PostgRESTAPIKey)
	assert.Equal(t, "s3", cfg.StorageType)
	assert.Equal(t, "news-media", cfg.S3Bucket)
	assert.True(t, cfg.S3UsePathStyle)
	assert.True(t, cfg.AtomicCounters)
	assert.Equal(t, 30*time.Minute, cfg.SweepGrace)
	assert.False(t, cfg.DBMigrate)

	// unset variables keep their defaults
	assert.Equal(t, "news", cfg.NewsTable)
	assert.Equal(t, "us-east-1", cfg.S3Region)
}

func TestWithEnv_InvalidValue(t *testing.T) {
	t.Setenv("SWEEP_GRACE", "soon")
	_, err := config.Load(config.WithEnv())
	assert.Error(t, err)
}

func TestWithDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("# local overrides\nLOG_FORMAT=json\n"), 0o600))
	// t.Setenv restores the variable after godotenv has set it
	t.Setenv("LOG_FORMAT", "")
	require.NoError(t, os.Unsetenv("LOG_FORMAT"))

	cfg, err := config.Load(config.WithDotEnv(path), config.WithEnv())
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)

	_, err = config.Load(config.WithDotEnv(filepath.Join(t.TempDir(), "missing.env")))
	assert.Error(t, err)
}

func TestUsage(t *testing.T) {
	usage, err := config.Usage()
	require.NoError(t, err)
	assert.Contains(t, usage, "DATABASE_TYPE")
	assert.Contains(t, usage, "ADMIN_TOKEN_SHA256")
}
