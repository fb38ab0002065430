package protect

import (
	"context"
	"errors"
	"time"

	"github.com/mbright-io/guardrail/breaker"
	"github.com/mbright-io/guardrail/bulkhead"
	"github.com/mbright-io/guardrail/retry"
)

// Guard composes the protection layers around one dependency's calls.
// Every layer is optional; a zero Guard is a plain pass-through.
type Guard struct {
	name     string
	pool     *bulkhead.Bulkhead
	brk      *breaker.Breaker
	policy   *retry.Policy
	timeout  time.Duration
	fallback func(ctx context.Context, err error) error
}

// Option configures a Guard.
type Option func(*Guard)

// New creates a guard for the named dependency.
func New(name string, opts ...Option) *Guard {
	g := &Guard{name: name}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithBulkhead adds slot-pool admission to the guard.
func WithBulkhead(p *bulkhead.Bulkhead) Option {
	return func(g *Guard) {
		g.pool = p
	}
}

// WithBreaker adds a circuit breaker to the guard.
func WithBreaker(b *breaker.Breaker) Option {
	return func(g *Guard) {
		g.brk = b
	}
}

// WithRetry adds a retry loop to the guard.
func WithRetry(p retry.Policy) Option {
	return func(g *Guard) {
		g.policy = &p
	}
}

// WithTimeout bounds the whole admitted call with a context deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *Guard) {
		g.timeout = d
	}
}

// WithFallback substitutes fn's result when the protection stack itself
// rejects or exhausts the call. The operation's own errors pass through
// untouched.
func WithFallback(fn func(ctx context.Context, err error) error) Option {
	return func(g *Guard) {
		g.fallback = fn
	}
}

// Name returns the dependency name.
func (g *Guard) Name() string {
	return g.name
}

// Call runs op through the guard's layers, outermost first:
//
//  1. Bulkhead checkout. A rejection or checkout timeout returns
//     immediately; the breaker and retry layers never see the call.
//  2. Circuit breaker. An open circuit returns breaker.ErrOpen.
//  3. Retry loop around the operation itself.
//
// The slot is checked in on every exit path. When a fallback is
// configured it runs only for Rejected errors; everything else, including
// the operation's own failures, is returned unchanged.
func (g *Guard) Call(ctx context.Context, op func(context.Context) error) error {
	err := g.run(ctx, op)
	if err != nil && g.fallback != nil && Rejected(err) {
		return g.fallback(ctx, err)
	}
	return err
}

// Do is an alias for Call, matching the layer packages' naming.
func (g *Guard) Do(ctx context.Context, op func(context.Context) error) error {
	return g.Call(ctx, op)
}

func (g *Guard) run(ctx context.Context, op func(context.Context) error) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.pool != nil {
		slot, err := g.pool.Checkout(ctx)
		if err != nil {
			return err
		}
		defer g.pool.Checkin(slot)
	}

	exec := op
	if g.policy != nil {
		inner := exec
		policy := *g.policy
		exec = func(ctx context.Context) error {
			return retry.Do(ctx, policy, inner)
		}
	}
	if g.brk != nil {
		inner := exec
		exec = func(ctx context.Context) error {
			return g.brk.Do(ctx, inner)
		}
	}

	return exec(ctx)
}

// Rejected reports whether err is the protection stack shedding load
// rather than the operation failing on its own: an open circuit, a full
// pool, a checkout timeout, or an exhausted retry budget.
func Rejected(err error) bool {
	return errors.Is(err, breaker.ErrOpen) ||
		errors.Is(err, bulkhead.ErrFull) ||
		errors.Is(err, bulkhead.ErrCheckoutTimeout) ||
		errors.Is(err, retry.ErrMaxAttempts)
}
