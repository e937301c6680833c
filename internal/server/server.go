// Package server runs the HTTP server with startup hooks and graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Defaults for http.Server.
const (
	DefaultAddress           = ":8080"
	DefaultReadTimeout       = 15 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20
)

// Hook runs during startup or shutdown.
type Hook func(context.Context) error

// Server wraps http.Server with lifecycle hooks.
type Server struct {
	handler           http.Handler
	baseCtx           context.Context
	listener          net.Listener
	logger            *slog.Logger
	address           string
	startupHooks      []Hook
	shutdownHooks     []Hook
	readTimeout       time.Duration
	readHeaderTimeout time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	shutdownTimeout   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithAddress sets the listen address.
func WithAddress(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.address = addr
		}
	}
}

// WithListener serves on an existing listener instead of WithAddress.
func WithListener(ln net.Listener) Option {
	return func(s *Server) {
		s.listener = ln
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeouts overrides the http.Server timeouts. Zero values keep the defaults.
func WithTimeouts(read, readHeader, write, idle time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if readHeader > 0 {
			s.readHeaderTimeout = readHeader
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if idle > 0 {
			s.idleTimeout = idle
		}
	}
}

// WithShutdownTimeout bounds the whole shutdown sequence.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithStartupHook runs fn before the server accepts connections.
// Hooks run in registration order; the first error aborts startup.
func WithStartupHook(fn Hook) Option {
	return func(s *Server) {
		if fn != nil {
			s.startupHooks = append(s.startupHooks, fn)
		}
	}
}

// WithShutdownHook runs fn after the HTTP server stopped.
// Hooks run in registration order and all of them run even when one fails.
func WithShutdownHook(fn Hook) Option {
	return func(s *Server) {
		if fn != nil {
			s.shutdownHooks = append(s.shutdownHooks, fn)
		}
	}
}

// WithContext sets the parent context. Cancelling it triggers shutdown
// the same way SIGINT or SIGTERM does.
func WithContext(ctx context.Context) Option {
	return func(s *Server) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

// New creates a Server for handler.
func New(handler http.Handler, opts ...Option) *Server {
	s := &Server{
		handler:           handler,
		baseCtx:           context.Background(),
		logger:            slog.New(slog.DiscardHandler),
		address:           DefaultAddress,
		readTimeout:       DefaultReadTimeout,
		readHeaderTimeout: DefaultReadHeaderTimeout,
		writeTimeout:      DefaultWriteTimeout,
		idleTimeout:       DefaultIdleTimeout,
		shutdownTimeout:   DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the server and blocks until a signal, context cancellation or
// serve error, then shuts down gracefully.
func (s *Server) Run() error {
	ctx, cancel := signal.NotifyContext(s.baseCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, hook := range s.startupHooks {
		if err := hook(ctx); err != nil {
			s.logger.Error("startup hook failed", slog.Any("error", err))
			return errors.Join(err, s.runShutdownHooks())
		}
	}

	ln := s.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.address)
		if err != nil {
			return errors.Join(err, s.runShutdownHooks())
		}
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readHeaderTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       s.idleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer shutdownCancel()

	errs := []error{serveErr}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, s.hooks(shutdownCtx))

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("shutdown completed with errors", slog.Any("error", err))
		return err
	}
	s.logger.Info("shutdown completed")
	return nil
}

func (s *Server) runShutdownHooks() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.hooks(ctx)
}

func (s *Server) hooks(ctx context.Context) error {
	var errs []error
	for _, hook := range s.shutdownHooks {
		if err := hook(ctx); err != nil {
			s.logger.Error("shutdown hook failed", slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
