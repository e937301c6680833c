// Command letterpress runs the newsletter publishing service: the public and
// admin HTTP API, the edition scheduler and the background job workers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/letterpress/internal/archive"
	"github.com/dmitrymomot/letterpress/internal/config"
	"github.com/dmitrymomot/letterpress/internal/delivery"
	"github.com/dmitrymomot/letterpress/internal/httpapi"
	"github.com/dmitrymomot/letterpress/internal/newsletter"
	"github.com/dmitrymomot/letterpress/internal/render"
	"github.com/dmitrymomot/letterpress/internal/scheduler"
	"github.com/dmitrymomot/letterpress/internal/server"
	"github.com/dmitrymomot/letterpress/internal/store/postgres"
	"github.com/dmitrymomot/letterpress/internal/tasks"
	"github.com/dmitrymomot/letterpress/internal/tracking"
	"github.com/dmitrymomot/letterpress/middlewares"
	"github.com/dmitrymomot/letterpress/pkg/cache"
	"github.com/dmitrymomot/letterpress/pkg/db"
	"github.com/dmitrymomot/letterpress/pkg/health"
	"github.com/dmitrymomot/letterpress/pkg/job"
	"github.com/dmitrymomot/letterpress/pkg/logger"
	"github.com/dmitrymomot/letterpress/pkg/mailer"
	"github.com/dmitrymomot/letterpress/pkg/mailer/resend"
	"github.com/dmitrymomot/letterpress/pkg/redis"
	"github.com/dmitrymomot/letterpress/pkg/storage"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "letterpress: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log, middlewares.RequestIDExtractor())
	slog.SetDefault(log)

	// Database and migrations
	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx, pool, postgres.Migrations, postgres.MigrationsDir, cfg.Database.MigrationsTable, log); err != nil {
		pool.Close()
		return err
	}
	if err := job.Migrate(ctx, pool); err != nil {
		pool.Close()
		return err
	}

	// jobs is assigned below; the hook only runs once requests are served.
	var jobs *job.Manager
	store := postgres.New(pool, postgres.WithWelcomeHook(
		func(ctx context.Context, tx pgx.Tx, newsletterID int64, sub *newsletter.Subscriber) error {
			return tasks.EnqueueWelcomeTx(ctx, jobs, tx, newsletterID, sub)
		},
	))
	sender := resend.New(cfg.Resend)

	// Delivery pipeline
	deliveryOpts := []delivery.Option{
		delivery.WithLogger(log.With(slog.String("component", "delivery"))),
		delivery.WithConcurrency(cfg.Delivery.Concurrency),
		delivery.WithRateLimit(cfg.Delivery.RatePerSecond, cfg.Delivery.Burst),
	}
	if cfg.Storage.Enabled() {
		s3, err := storage.New(cfg.Storage)
		if err != nil {
			pool.Close()
			return err
		}
		deliveryOpts = append(deliveryOpts, delivery.WithArchiver(archive.New(s3)))
	}
	editions := delivery.New(store, sender, render.New(), deliveryOpts...)

	// Tracking
	trackingSvc := tracking.NewService(store, tracking.WithLogger(log.With(slog.String("component", "tracking"))))
	pixel := tracking.NewRecorder(trackingSvc, tracking.WithRecorderLogger(log))

	// Background jobs
	welcomeMailer := mailer.New(sender, mailer.NewRenderer(tasks.Templates()), mailer.Config{
		DefaultLayout:   tasks.DefaultLayout,
		FallbackSubject: cfg.Mailer.FallbackSubject,
	})
	jobs, err = job.NewManager(pool,
		job.WithLogger(log.With(slog.String("component", "jobs"))),
		job.WithMaxWorkers(cfg.Jobs.MaxWorkers),
		job.WithQueue(tasks.EmailQueue, cfg.Jobs.EmailWorkers),
		job.WithTask[tasks.WelcomePayload](tasks.NewSendWelcome(store, welcomeMailer, cfg.App.BaseURL, log)),
	)
	if err != nil {
		pool.Close()
		return err
	}

	sched, err := scheduler.New(store, editions, cfg.App.BaseURL,
		scheduler.WithSchedule(cfg.Scheduler.Schedule),
		scheduler.WithLogger(log.With(slog.String("component", "scheduler"))),
	)
	if err != nil {
		pool.Close()
		return err
	}

	checks := health.Checks{
		"database": db.Healthcheck(pool),
		"jobs":     job.Healthcheck(jobs),
	}
	if !cfg.Scheduler.Disabled {
		checks["scheduler"] = sched.Healthcheck
	}

	apiOpts := []httpapi.Option{
		httpapi.WithLogger(log),
		httpapi.WithHealthChecks(checks),
	}

	// Shutdown hooks run in order: stop taking work, drain, then close connections.
	var shutdownHooks []server.Hook
	if !cfg.Scheduler.Disabled {
		shutdownHooks = append(shutdownHooks, sched.Shutdown())
	}
	shutdownHooks = append(shutdownHooks, pixel.Wait, jobs.Shutdown())

	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			pool.Close()
			return err
		}
		checks["redis"] = redis.Healthcheck(client)
		apiOpts = append(apiOpts, httpapi.WithStatsCache(
			cache.NewRedis[tracking.Stats](client, cache.WithPrefix("letterpress:")),
		))
		shutdownHooks = append(shutdownHooks, redis.Shutdown(client))
	}
	shutdownHooks = append(shutdownHooks, db.Shutdown(pool), logger.Flush())

	api := httpapi.New(httpapi.Config{
		BaseURL:        cfg.App.BaseURL,
		AdminToken:     cfg.App.AdminToken,
		AllowedOrigins: cfg.App.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		StatsTTL:       cfg.App.StatsCacheTTL,
	}, store, editions, trackingSvc, pixel, apiOpts...)

	opts := []server.Option{
		server.WithAddress(cfg.HTTP.Addr),
		server.WithLogger(log),
		server.WithTimeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.ReadHeaderTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.IdleTimeout),
		server.WithShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		// workers outlive the signal context; their shutdown hooks stop them
		server.WithStartupHook(func(ctx context.Context) error {
			return jobs.Start(context.WithoutCancel(ctx))
		}),
	}
	if !cfg.Scheduler.Disabled {
		opts = append(opts, server.WithStartupHook(func(ctx context.Context) error {
			return sched.Start(context.WithoutCancel(ctx))
		}))
	}
	for _, hook := range shutdownHooks {
		opts = append(opts, server.WithShutdownHook(hook))
	}

	return server.New(api.Routes(), opts...).Run()
}
