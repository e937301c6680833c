// Package health serves liveness and readiness probes.
//
// LivenessHandler always answers 200. ReadinessHandler runs every named
// CheckFunc concurrently under one timeout (default 5s) and answers 503 when
// any fails. Both reply with plain text, or JSON when the client sends
// Accept: application/json or ?format=json:
//
//	{"status":"unhealthy","checks":{"database":{"status":"healthy"},"redis":{"status":"unhealthy","error":"..."}}}
//
// Wiring:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//		"database":  db.Healthcheck(pool),
//		"scheduler": sched.Healthcheck,
//	}, health.WithLogger(log)))
package health
