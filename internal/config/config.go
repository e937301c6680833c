// Package config loads application settings from the environment.
// A .env file in the working directory is read first when present;
// variables already set in the process win over it.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/dmitrymomot/letterpress/pkg/db"
	"github.com/dmitrymomot/letterpress/pkg/logger"
	"github.com/dmitrymomot/letterpress/pkg/mailer"
	"github.com/dmitrymomot/letterpress/pkg/mailer/resend"
	"github.com/dmitrymomot/letterpress/pkg/redis"
	"github.com/dmitrymomot/letterpress/pkg/storage"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Delivery  DeliveryConfig
	Scheduler SchedulerConfig
	Jobs      JobsConfig
	Database  db.Config
	Redis     redis.Config
	Storage   storage.Config
	Log       logger.Config
	Resend    resend.Config
	Mailer    mailer.Config
}

// AppConfig holds application-wide settings.
type AppConfig struct {
	// BaseURL prefixes tracking, unsubscribe and archive links.
	BaseURL    string `env:"APP_BASE_URL, default=http://localhost:8080"`
	AdminToken string `env:"ADMIN_TOKEN, required"`
	Env        string `env:"APP_ENV, default=development"`

	// AllowedOrigins may embed the public subscribe form.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*"`

	StatsCacheTTL time.Duration `env:"STATS_CACHE_TTL, default=30s"`
}

// IsProduction reports whether APP_ENV is production.
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Addr              string        `env:"HTTP_ADDR, default=:8080"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT, default=15s"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT, default=5s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT, default=30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT, default=120s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT, default=30s"`

	// RequestTimeout bounds each handler except the edition send.
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT, default=25s"`
}

// DeliveryConfig tunes the fan-out worker pool.
type DeliveryConfig struct {
	Concurrency   int     `env:"DELIVERY_CONCURRENCY, default=4"`
	RatePerSecond float64 `env:"DELIVERY_RATE_PER_SEC, default=10"`
	Burst         int     `env:"DELIVERY_BURST, default=1"`
}

// SchedulerConfig holds the due-edition poll schedule.
type SchedulerConfig struct {
	Schedule string `env:"SCHEDULER_SCHEDULE, default=@every 60s"`
	Disabled bool   `env:"SCHEDULER_DISABLED, default=false"`
}

// JobsConfig sizes the background job manager.
type JobsConfig struct {
	MaxWorkers   int `env:"JOBS_MAX_WORKERS, default=10"`
	EmailWorkers int `env:"JOBS_EMAIL_WORKERS, default=5"`
}

// Load reads .env when present and then processes the environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom processes configuration from an explicit lookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	return &cfg, nil
}
