package delivery

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Defaults for the recipient worker pool.
const (
	DefaultConcurrency = 4
	DefaultRatePerSec  = 10
	DefaultBurst       = 1
)

// Option configures a Service.
type Option func(*Service)

// WithConcurrency sets how many recipients are processed at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRateLimit caps provider calls per second across all sends of the Service.
// A non-positive perSecond disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Service) {
		limit := rate.Limit(perSecond)
		if perSecond <= 0 {
			limit = rate.Inf
		}
		s.limiter = rate.NewLimiter(limit, max(burst, 1))
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithArchiver uploads the web version of every successfully sent edition.
func WithArchiver(a Archiver) Option {
	return func(s *Service) {
		s.archiver = a
	}
}
