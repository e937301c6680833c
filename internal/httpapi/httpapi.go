// Package httpapi exposes the public subscriber endpoints (tracking pixel,
// subscribe, unsubscribe) and the bearer-protected admin API on a chi router.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/letterpress/internal/delivery"
	"github.com/dmitrymomot/letterpress/internal/newsletter"
	"github.com/dmitrymomot/letterpress/internal/tracking"
	"github.com/dmitrymomot/letterpress/middlewares"
	"github.com/dmitrymomot/letterpress/pkg/cache"
	"github.com/dmitrymomot/letterpress/pkg/health"
)

// DefaultStatsTTL is how long edition stats are served from cache.
const DefaultStatsTTL = 30 * time.Second

// Editions drives sends; *delivery.Service implements it.
type Editions interface {
	SendNow(ctx context.Context, editionID int64, baseURL string) (*delivery.Result, error)
	Schedule(ctx context.Context, editionID int64, at time.Time) (*newsletter.Edition, error)
	SendTest(ctx context.Context, editionID int64, to, baseURL string) error
	Preview(ctx context.Context, editionID int64, baseURL string) (string, error)
}

// StatsReader reports engagement; *tracking.Service implements it.
type StatsReader interface {
	Stats(ctx context.Context, editionID int64) (tracking.Stats, error)
}

// Store is the persistence the handlers touch directly.
type Store interface {
	GetNewsletter(ctx context.Context, id int64) (*newsletter.Newsletter, error)
	GetEdition(ctx context.Context, id int64) (*newsletter.Edition, error)
	Subscribe(ctx context.Context, newsletterID int64, email, name string) (*newsletter.Subscriber, bool, error)
	Unsubscribe(ctx context.Context, subscriberID, newsletterID int64) error
}

// Config holds the settings the router needs.
type Config struct {
	BaseURL        string
	AdminToken     string
	AllowedOrigins []string
	RequestTimeout time.Duration
	StatsTTL       time.Duration
}

// Handler serves the HTTP surface.
type Handler struct {
	store    Store
	editions Editions
	stats    *cache.Loader[tracking.Stats]
	reader   StatsReader
	pixel    http.Handler
	checks   health.Checks
	logger   *slog.Logger
	config   Config
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithStatsCache replaces the in-process stats cache, e.g. with Redis.
func WithStatsCache(c cache.Cache[tracking.Stats]) Option {
	return func(h *Handler) {
		if c != nil {
			h.stats = cache.NewLoader(c, h.config.StatsTTL)
		}
	}
}

// WithHealthChecks sets the readiness checks served on /health/ready.
func WithHealthChecks(checks health.Checks) Option {
	return func(h *Handler) {
		h.checks = checks
	}
}

// New creates a Handler. pixel serves GET /track/{token}.
func New(cfg Config, store Store, editions Editions, stats StatsReader, pixel http.Handler, opts ...Option) *Handler {
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = DefaultStatsTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = middlewares.DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	h := &Handler{
		store:    store,
		editions: editions,
		reader:   stats,
		pixel:    pixel,
		logger:   slog.New(slog.DiscardHandler),
		config:   cfg,
	}
	h.stats = cache.NewLoader[tracking.Stats](cache.NewMemory[tracking.Stats](), cfg.StatsTTL)

	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middlewares.RequestID(),
		middlewares.AccessLog(h.logger),
		middlewares.Recover(h.logger),
	)

	r.Get("/health/live", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(h.checks, health.WithLogger(h.logger)))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/track/{token}", h.pixel.ServeHTTP)

	timeout := middlewares.Timeout(h.config.RequestTimeout, middlewares.WithTimeoutLogger(h.logger))

	r.Group(func(r chi.Router) {
		r.Use(timeout)

		r.Get("/unsubscribe", h.unsubscribe)
		r.Get("/edition/{id}", h.handle(h.webEdition))
		r.Get("/edition/{id}/article/{slug}", h.handle(h.articleLink))

		r.Group(func(r chi.Router) {
			r.Use(middlewares.CORS(middlewares.WithAllowOrigins(h.config.AllowedOrigins...)))
			r.Post("/subscribe", h.handle(h.subscribe))
			r.Options("/subscribe", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})

	r.Route("/api/editions/{id}", func(r chi.Router) {
		r.Use(h.requireAdmin)

		// a send lasts as long as the fan-out; no request deadline
		r.Post("/send", h.handle(h.sendEdition))

		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Post("/schedule", h.handle(h.scheduleEdition))
			r.Post("/test", h.handle(h.testEdition))
			r.Get("/stats", h.handle(h.editionStats))
			r.Get("/preview", h.handle(h.previewEdition))
		})
	})

	return r
}

func statsKey(editionID int64) string {
	return "stats:edition:" + strconv.FormatInt(editionID, 10)
}
