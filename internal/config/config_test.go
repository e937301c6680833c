package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/letterpress/internal/config"
)

func TestLoadFrom(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
			"ADMIN_TOKEN":  "secret",
			"DATABASE_URL": "postgres://localhost/letterpress",
		}))
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:8080", cfg.App.BaseURL)
		assert.Equal(t, []string{"*"}, cfg.App.AllowedOrigins)
		assert.Equal(t, 30*time.Second, cfg.App.StatsCacheTTL)
		assert.Equal(t, ":8080", cfg.HTTP.Addr)
		assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
		assert.Equal(t, 120*time.Second, cfg.HTTP.IdleTimeout)
		assert.Equal(t, 4, cfg.Delivery.Concurrency)
		assert.InDelta(t, 10.0, cfg.Delivery.RatePerSecond, 0.001)
		assert.Equal(t, "@every 60s", cfg.Scheduler.Schedule)
		assert.Equal(t, int32(10), cfg.Database.MaxOpenConns)
		assert.False(t, cfg.Redis.Enabled())
		assert.False(t, cfg.Storage.Enabled())
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.App.IsProduction())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()

		cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
			"ADMIN_TOKEN":          "secret",
			"DATABASE_URL":         "postgres://localhost/letterpress",
			"APP_ENV":              "production",
			"CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example",
			"DELIVERY_CONCURRENCY": "16",
			"REDIS_URL":            "redis://localhost:6379/0",
			"S3_BUCKET":            "archive",
			"SCHEDULER_SCHEDULE":   "*/5 * * * *",
		}))
		require.NoError(t, err)

		assert.True(t, cfg.App.IsProduction())
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.AllowedOrigins)
		assert.Equal(t, 16, cfg.Delivery.Concurrency)
		assert.True(t, cfg.Redis.Enabled())
		assert.True(t, cfg.Storage.Enabled())
		assert.Equal(t, "*/5 * * * *", cfg.Scheduler.Schedule)
	})

	t.Run("admin token required", func(t *testing.T) {
		t.Parallel()

		_, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
			"DATABASE_URL": "postgres://localhost/letterpress",
		}))
		require.Error(t, err)
	})
}
