// Package middlewares provides net/http middleware shared by the public
// and admin routers.
//
// # Request ID
//
// RequestID assigns an ID to each request, reusing X-Request-ID or
// X-Correlation-ID when an upstream proxy already set one, and otherwise
// generating a ULID. Pair it with RequestIDExtractor so every log record
// written with the request context carries request_id:
//
//	log := logger.New(cfg.Log, middlewares.RequestIDExtractor())
//	r := chi.NewRouter()
//	r.Use(middlewares.RequestID())
//
// # Recover
//
// Recover catches panics, logs them with a stack trace and hands a
// PanicError to an ErrorHandler (500 by default).
//
// # Timeout
//
// Timeout puts a deadline on the request context. Handlers must honour
// ctx.Done(); if the deadline passes before anything was written the
// ErrorHandler receives a TimeoutError (503 by default).
//
// # CORS
//
// CORS answers preflight requests and sets Access-Control headers. The
// public subscribe endpoint uses it so signup forms can be embedded on
// other sites:
//
//	r.With(middlewares.CORS(middlewares.WithAllowOrigins(origins...))).
//	    Post("/subscribe", h.subscribe)
//
// # Access log
//
// AccessLog writes one record per request with method, path, status,
// bytes and duration.
//
// # Order
//
//	r.Use(
//	    middlewares.RequestID(),
//	    middlewares.AccessLog(log),
//	    middlewares.Recover(log),
//	    middlewares.Timeout(30*time.Second),
//	)
package middlewares
