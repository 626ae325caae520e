package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("POSTGRES_USER", "yoyaku")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "yoyaku")
}

func TestNew_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3*time.Second, cfg.Locks.Timeout)
	assert.Equal(t, 2, cfg.Dispatcher.Workers)
	assert.Equal(t, 256, cfg.Dispatcher.QueueSize)
	assert.Equal(t, 30*time.Second, cfg.Calendar.CacheTTL)
	assert.Equal(t, 30, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestNew_MissingRequired(t *testing.T) {
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "yoyaku")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_USER")
}

func TestNew_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOCK_TIMEOUT", "500ms")
	t.Setenv("DISPATCHER_WORKERS", "8")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Locks.Timeout)
	assert.Equal(t, 8, cfg.Dispatcher.Workers)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}

func TestNew_InvalidPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "not-a-port")

	_, err := New()
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		User:     "u",
		Password: "p",
		Name:     "db",
		Host:     "pg",
		Port:     5433,
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://u:p@pg:5433/db?sslmode=require", cfg.DSN())
}
