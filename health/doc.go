// Package health aggregates component health into one periodic rollup.
//
// A Monitor runs registered Checkers on an interval and caches the
// results; readers always get the last known state, never a fresh probe.
// The overall status is the worst component status, with never-checked
// components counting as degraded.
//
//	mon := health.NewMonitor(health.Config{Interval: 30 * time.Second})
//	mon.Register(health.BreakerChecker("breakers", breakers))
//	mon.Register(health.BulkheadChecker("pools", pools))
//	_ = mon.Start(ctx)
//	defer mon.Stop()
//
//	status, results := mon.Health()
//
// BreakerChecker and BulkheadChecker translate the core registries into
// health terms: an open breaker is unhealthy, a half-open breaker or a
// saturated pool is degraded.
//
// # HTTP Endpoints
//
// The package provides handlers for common probe patterns:
//
//	// Liveness probe (for Kubernetes)
//	http.Handle("/healthz", health.LivenessHandler())
//
//	// Readiness probe from cached results
//	http.Handle("/readyz", health.ReadinessHandler(mon))
//
//	// Detailed health status
//	http.Handle("/health", health.DetailedHandler(mon))
package health
