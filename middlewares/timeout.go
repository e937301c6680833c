package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 30 * time.Second

// TimeoutConfig configures the timeout middleware.
type TimeoutConfig struct {
	ErrorHandler ErrorHandler
	Logger       *slog.Logger
	Timeout      time.Duration
}

// TimeoutOption configures TimeoutConfig.
type TimeoutOption func(*TimeoutConfig)

// WithTimeoutErrorHandler replaces DefaultErrorHandler.
func WithTimeoutErrorHandler(h ErrorHandler) TimeoutOption {
	return func(cfg *TimeoutConfig) {
		if h != nil {
			cfg.ErrorHandler = h
		}
	}
}

// WithTimeoutLogger sets the logger used to report exceeded deadlines.
func WithTimeoutLogger(log *slog.Logger) TimeoutOption {
	return func(cfg *TimeoutConfig) {
		if log != nil {
			cfg.Logger = log
		}
	}
}

// Timeout returns middleware that puts a deadline on the request context.
// Handlers are expected to honour ctx.Done(). When the deadline passes before
// the handler wrote anything, a TimeoutError goes to the ErrorHandler.
func Timeout(timeout time.Duration, opts ...TimeoutOption) func(http.Handler) http.Handler {
	cfg := &TimeoutConfig{
		Timeout:      timeout,
		ErrorHandler: DefaultErrorHandler,
		Logger:       slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), cfg.Timeout)
			defer cancel()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) && ww.Status() == 0 {
				cfg.Logger.WarnContext(ctx, "request timeout", slog.String("timeout", cfg.Timeout.String()))
				cfg.ErrorHandler(w, r, &TimeoutError{Duration: cfg.Timeout})
			}
		})
	}
}
