// Package bulkhead implements a named fixed-size resource pool with a FIFO
// waiting queue.
//
// A Bulkhead isolates one dependency's concurrency: callers check out a
// Slot before doing work and check it back in afterwards. When the pool is
// exhausted, callers queue FIFO up to a bounded depth with a per-waiter
// deadline; once the queue is also full, checkout fails fast with ErrFull
// rather than blocking.
//
// # Usage
//
//	pool := bulkhead.New("llm-api", bulkhead.Config{
//	    MaxConcurrent:   10,
//	    MaxWaiting:      50,
//	    CheckoutTimeout: 5 * time.Second,
//	})
//	defer pool.Close()
//
//	err := pool.Do(ctx, func(ctx context.Context) error {
//	    return client.Complete(ctx, prompt)
//	})
//
// Do releases the slot on every exit path including panics. For callers
// that must hold a slot across a scope Do cannot express, Checkout/Checkin
// are available directly, backed by a lease: when LeaseTTL is set, a
// janitor reclaims slots whose holder died without checking in.
//
// Freed slots are handed directly to the head of the waiting queue, never
// through the free list, so waiters are served strictly in arrival order.
package bulkhead
