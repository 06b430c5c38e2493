// Package health serves the liveness and readiness probes of permalinkd.
//
// Readiness runs the named checks concurrently under one deadline:
//
//	r.Get("/healthz", health.LivenessHandler())
//	r.Get("/readyz", health.ReadinessHandler(health.Checks{
//		"postgres": db.Healthcheck(pool),
//		"redis":    redis.Healthcheck(client),
//		"backfill": manager.Healthcheck,
//	}, health.WithTimeout(3*time.Second), health.WithLogger(log)))
//
// Probes answer in plain text ("OK" or "Service Unavailable") unless the
// client asks for JSON with ?format=json or an Accept header:
//
//	{"status":"unhealthy","checks":{"postgres":{"status":"healthy","duration":"2ms"},
//	 "redis":{"status":"unhealthy","error":"connection refused","duration":"1ms"}}}
//
// [Run] exposes the same aggregation for startup gating; [Report.Err] joins
// [ErrCheckFailed] with a [CheckError] per failing dependency.
package health
