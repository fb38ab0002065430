package telemetry

import (
	"context"
	"time"
)

// EventKind identifies what happened inside the core.
type EventKind string

const (
	// EventStateChange fires on every circuit breaker transition.
	EventStateChange EventKind = "breaker.state_change"
	// EventThresholdAdjusted fires when the adaptive tuner retunes a breaker.
	EventThresholdAdjusted EventKind = "breaker.threshold_adjusted"
	// EventCheckoutRejected fires when a bulkhead rejects with a full queue.
	EventCheckoutRejected EventKind = "bulkhead.checkout_rejected"
	// EventCheckoutTimeout fires when a queued waiter's deadline elapses.
	EventCheckoutTimeout EventKind = "bulkhead.checkout_timeout"
	// EventLeaseReclaimed fires when the janitor recovers a leaked slot.
	EventLeaseReclaimed EventKind = "bulkhead.lease_reclaimed"
	// EventRetryAttempt fires before each retry sleep.
	EventRetryAttempt EventKind = "retry.attempt"
	// EventRetryStopped fires when the adaptive record stops a retry early.
	EventRetryStopped EventKind = "retry.stopped_early"
	// EventHealthChange fires when a monitored component changes status.
	EventHealthChange EventKind = "health.status_change"
)

// Event is one observable occurrence inside the core.
type Event struct {
	// Kind identifies the occurrence.
	Kind EventKind

	// Name is the breaker/bulkhead/component the event belongs to.
	Name string

	// Time is when the event happened.
	Time time.Time

	// Attrs carries kind-specific attributes.
	Attrs map[string]any
}

// Emitter consumes events from the core.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: emission is best-effort and must not panic or block the caller.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// EmitterFunc is an adapter to allow ordinary functions to be used as Emitters.
type EmitterFunc func(ctx context.Context, ev Event)

// Emit calls the function.
func (f EmitterFunc) Emit(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Nop returns an emitter that discards every event.
func Nop() Emitter {
	return EmitterFunc(func(context.Context, Event) {})
}

// Multi fans one event out to several emitters in order.
func Multi(emitters ...Emitter) Emitter {
	return EmitterFunc(func(ctx context.Context, ev Event) {
		for _, e := range emitters {
			if e != nil {
				e.Emit(ctx, ev)
			}
		}
	})
}

// Stamp fills in the event time if the caller left it zero.
func Stamp(ev Event) Event {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	return ev
}
