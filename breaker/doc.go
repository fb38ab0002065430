// Package breaker implements a named circuit breaker state machine.
//
// A Breaker protects one unreliable dependency. It starts closed and runs
// operations directly; after a streak of failures it opens and rejects
// calls with ErrOpen; after the open timeout it half-opens and admits probe
// calls, closing again only after a streak of successes. Any failure while
// half-open reopens it immediately.
//
// # Usage
//
//	cb := breaker.New("payments-db", breaker.Config{
//	    FailureThreshold: 5,
//	    SuccessThreshold: 3,
//	    OpenTimeout:      30 * time.Second,
//	})
//
//	err := cb.Do(ctx, func(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	})
//	if errors.Is(err, breaker.ErrOpen) {
//	    // dependency is known bad, serve a fallback
//	}
//
// Panics inside the operation are recovered and counted as failures, so a
// crashing dependency cannot bypass the breaker's accounting.
//
// Breakers for many dependencies live in a Registry, which the health
// monitor reads through Snapshots. Each breaker serializes its own state
// behind a mutex; no state is shared between names.
package breaker
