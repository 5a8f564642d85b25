package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("METRICS_TIMEZONE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 7, cfg.Metrics.DefaultWindowDays)

	loc, err := cfg.Metrics.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/desk.sqlite")
	t.Setenv("METRICS_DEFAULT_WINDOW_DAYS", "30")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/desk.sqlite", cfg.SQLite.Path)
	assert.Equal(t, 30, cfg.Metrics.DefaultWindowDays)
	assert.Zero(t, cfg.App.RequestTimeout())
}

func TestLoadRejectsBadSettings(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "cassandra")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown STORAGE_DRIVER")
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "postgres")
		t.Setenv("POSTGRES_DSN", "")
		_, err := Load()
		assert.ErrorContains(t, err, "POSTGRES_DSN")
	})

	t.Run("bad redis db", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "")
		t.Setenv("REDIS_DB", "zero")
		_, err := Load()
		assert.ErrorContains(t, err, "REDIS_DB")
	})

	t.Run("bad timezone", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "")
		t.Setenv("METRICS_TIMEZONE", "Mars/Olympus_Mons")
		_, err := Load()
		assert.ErrorContains(t, err, "METRICS_TIMEZONE")
	})
}
