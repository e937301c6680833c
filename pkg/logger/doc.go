// Package logger builds the application's *slog.Logger.
//
// Output is JSON (or text) on stdout at the configured level. Context
// extractors add request-scoped attributes to every record logged with a
// context, and a non-empty SENTRY_DSN fans records out to Sentry: errors
// become issues, warnings and errors are kept as searchable logs.
//
//	log := logger.New(cfg.Log, middlewares.RequestIDExtractor())
//	log.InfoContext(ctx, "edition sent", slog.Int64("edition_id", id))
//
// Use NewNope in tests and as a component default.
package logger
