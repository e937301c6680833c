package redis

import "time"

// Config holds Redis connection parameters, loaded with go-envconfig.
// An empty URL disables Redis; callers fall back to in-process caching.
type Config struct {
	URL string `env:"REDIS_URL"`

	PoolSize      int           `env:"REDIS_POOL_SIZE, default=10"`
	MinIdleConns  int           `env:"REDIS_MIN_IDLE_CONNS, default=2"`
	MaxIdleTime   time.Duration `env:"REDIS_MAX_IDLE_TIME, default=10m"`
	MaxActiveTime time.Duration `env:"REDIS_MAX_ACTIVE_TIME, default=30m"`
	ReadTimeout   time.Duration `env:"REDIS_READ_TIMEOUT, default=3s"`
	WriteTimeout  time.Duration `env:"REDIS_WRITE_TIMEOUT, default=3s"`
	DialTimeout   time.Duration `env:"REDIS_DIAL_TIMEOUT, default=5s"`
	RetryAttempts int           `env:"REDIS_RETRY_ATTEMPTS, default=3"`
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL, default=2s"`
}

// Enabled reports whether a connection URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}
