package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/trailweather/internal/config"
)

var allKeys = []string{
	"STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "REDIS_URL", "BEARER_TOKEN", "PORT",
	"DICE_SEED", "CACHE_TTL", "RATE_LIMIT_PER_MINUTE", "SHUTDOWN_TIMEOUT",
}

// clearEnv blanks every variable Parse reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BEARER_TOKEN", "tok")
	t.Setenv("DATABASE_URL", "postgres://localhost/trail")

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, config.DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "trailweather.db", cfg.SQLitePath)
	assert.Equal(t, "8080", cfg.Port)
	assert.Zero(t, cfg.DiceSeed)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.CacheEnabled())
}

func TestParse_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BEARER_TOKEN", "tok")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/var/lib/trail.db")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DICE_SEED", "42")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "10")

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, config.DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "/var/lib/trail.db", cfg.SQLitePath)
	assert.Equal(t, int64(42), cfg.DiceSeed)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 10, cfg.RateLimitPerMinute)
	assert.True(t, cfg.CacheEnabled())
}

func TestParse_MissingToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/trail")

	_, err := config.Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BEARER_TOKEN")
}

func TestParse_PostgresNeedsURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("BEARER_TOKEN", "tok")

	_, err := config.Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestParse_UnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("BEARER_TOKEN", "tok")
	t.Setenv("STORE_DRIVER", "mysql")

	_, err := config.Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

func TestParse_BadSeed(t *testing.T) {
	clearEnv(t)
	t.Setenv("BEARER_TOKEN", "tok")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DICE_SEED", "not-a-number")

	_, err := config.Parse()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := config.Config{
		StoreDriver:        config.DriverSQLite,
		SQLitePath:         "x.db",
		CacheTTL:           time.Hour,
		RateLimitPerMinute: 60,
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.CacheTTL = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.RateLimitPerMinute = -1
	assert.Error(t, bad.Validate())

	bad = base
	bad.SQLitePath = ""
	assert.Error(t, bad.Validate())
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("BEARER_TOKEN=from-file\nSTORE_DRIVER=sqlite\n"), 0o600))
	t.Chdir(dir)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.BearerToken)
	assert.Equal(t, config.DriverSQLite, cfg.StoreDriver)
}

func TestLoad_NoDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BEARER_TOKEN", "tok")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.BearerToken)
}
