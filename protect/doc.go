// Package protect composes the bulkhead, breaker, and retry layers into
// one guarded call path.
//
// The layering is deliberate: the bulkhead protects local resources
// regardless of the remote dependency's health, so it admits or rejects
// first; the breaker decides whether an admitted call is worth attempting;
// retry absorbs transient blips within a call that is already admitted and
// allowed.
//
//	guard := protect.New("payments",
//	    protect.WithBulkhead(pools.Get("payments")),
//	    protect.WithBreaker(breakers.Get("payments")),
//	    protect.WithRetry(retry.Policy{MaxAttempts: 3}),
//	    protect.WithTimeout(2*time.Second),
//	)
//
//	err := guard.Call(ctx, func(ctx context.Context) error {
//	    return client.Charge(ctx, order)
//	})
//
// A fallback, when configured, runs only when the stack itself sheds the
// call (open circuit, full pool, checkout timeout, exhausted retries); the
// operation's own errors always reach the caller unchanged.
package protect
