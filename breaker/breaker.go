package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/mbright-io/guardrail/fault"
	"github.com/mbright-io/guardrail/telemetry"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow through normally.
	StateClosed State = iota
	// StateOpen means calls are rejected without running.
	StateOpen
	// StateHalfOpen means probe calls are admitted to test recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit from closed. Default: 5
	FailureThreshold int

	// SuccessThreshold is the consecutive-success count that closes the
	// circuit from half-open. Default: 3
	SuccessThreshold int

	// OpenTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// FailureResetWindow bounds a failure streak in closed state: a streak
	// whose first failure is older than the window starts over.
	// Default: 60 seconds
	FailureResetWindow time.Duration

	// IsFailure determines whether an error counts as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// OnStateChange is called on every transition.
	OnStateChange func(name string, from, to State)

	// Emitter receives transition and tuning events. Default: discard.
	Emitter telemetry.Emitter

	// Adaptive enables runtime tuning of the failure threshold.
	Adaptive *AdaptiveConfig
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 3
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.FailureResetWindow <= 0 {
		c.FailureResetWindow = 60 * time.Second
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool { return err != nil }
	}
	if c.Emitter == nil {
		c.Emitter = telemetry.Nop()
	}
	return c
}

// Breaker is a circuit breaker for one named dependency.
type Breaker struct {
	name   string
	config Config

	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	threshold    int // effective failure threshold, may differ from config under adaptation
	firstFailure time.Time
	lastFailure  time.Time
	tuner        *tuner
}

// New creates a breaker for the named dependency.
func New(name string, config Config) *Breaker {
	config = config.withDefaults()

	b := &Breaker{
		name:      name,
		config:    config,
		state:     StateClosed,
		threshold: config.FailureThreshold,
	}
	if config.Adaptive != nil {
		b.tuner = newTuner(config.FailureThreshold, *config.Adaptive)
	}
	return b
}

// Name returns the dependency name.
func (b *Breaker) Name() string {
	return b.name
}

// Do runs the operation through the breaker.
//
// In closed and half-open states the operation executes inline; the breaker
// imposes no timeout of its own. In open state Do returns ErrOpen without
// running the operation. A panic inside the operation is recovered, counted
// as a failure, and returned as a *fault.CrashError.
func (b *Breaker) Do(ctx context.Context, op func(context.Context) error) error {
	if err := b.beforeCall(ctx); err != nil {
		return err
	}

	err := fault.Capture(ctx, op)
	b.afterCall(ctx, err)
	return err
}

// State returns the current state, accounting for open-timeout expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked(context.Background())
}

// Snapshot describes a breaker at a point in time.
type Snapshot struct {
	Name             string
	State            State
	Failures         int
	Successes        int
	FailureThreshold int
	SuccessThreshold int
	LastFailure      time.Time
}

// Snapshot returns the current state and counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:             b.name,
		State:            b.currentStateLocked(context.Background()),
		Failures:         b.failures,
		Successes:        b.successes,
		FailureThreshold: b.threshold,
		SuccessThreshold: b.config.SuccessThreshold,
		LastFailure:      b.lastFailure,
	}
}

// Reset forces the breaker closed with zeroed counters, from any state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.firstFailure = time.Time{}

	if from != StateClosed {
		b.notifyLocked(context.Background(), from, StateClosed)
	}
}

// Limits are the runtime-tunable breaker parameters.
type Limits struct {
	FailureThreshold   int
	SuccessThreshold   int
	OpenTimeout        time.Duration
	FailureResetWindow time.Duration
}

// SetLimits applies new limits, used by configuration hot reload.
// Zero fields are left unchanged. Counters are not reset.
func (b *Breaker) SetLimits(l Limits) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l.FailureThreshold > 0 {
		b.config.FailureThreshold = l.FailureThreshold
		b.threshold = l.FailureThreshold
		if b.tuner != nil {
			b.tuner.rebase(l.FailureThreshold)
		}
	}
	if l.SuccessThreshold > 0 {
		b.config.SuccessThreshold = l.SuccessThreshold
	}
	if l.OpenTimeout > 0 {
		b.config.OpenTimeout = l.OpenTimeout
	}
	if l.FailureResetWindow > 0 {
		b.config.FailureResetWindow = l.FailureResetWindow
	}
}

func (b *Breaker) beforeCall(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tuner != nil {
		if next, adjusted := b.tuner.adjust(time.Now()); adjusted && next != b.threshold {
			prev := b.threshold
			b.threshold = next
			b.config.Emitter.Emit(ctx, telemetry.Stamp(telemetry.Event{
				Kind: telemetry.EventThresholdAdjusted,
				Name: b.name,
				Attrs: map[string]any{
					"from": prev,
					"to":   next,
				},
			}))
		}
	}

	if b.currentStateLocked(ctx) == StateOpen {
		return ErrOpen
	}
	return nil
}

func (b *Breaker) afterCall(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := b.config.IsFailure(err)
	now := time.Now()

	if failed && b.tuner != nil {
		b.tuner.recordFailure(fault.Signature(err), now)
	}

	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			b.firstFailure = time.Time{}
			return
		}

		// A streak older than the reset window starts over.
		if b.firstFailure.IsZero() || now.Sub(b.firstFailure) > b.config.FailureResetWindow {
			b.failures = 0
			b.firstFailure = now
		}

		b.failures++
		b.lastFailure = now
		if b.failures >= b.threshold {
			b.transitionLocked(ctx, StateOpen)
		}

	case StateHalfOpen:
		if failed {
			// No partial credit: one failed probe reopens the circuit.
			b.lastFailure = now
			b.transitionLocked(ctx, StateOpen)
			return
		}

		b.successes++
		if b.tuner != nil {
			b.tuner.recordRecovery(now)
		}
		if b.successes >= b.config.SuccessThreshold {
			b.transitionLocked(ctx, StateClosed)
			b.failures = 0
			b.successes = 0
			b.firstFailure = time.Time{}
		}
	}
}

func (b *Breaker) currentStateLocked(ctx context.Context) State {
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.config.OpenTimeout {
		b.transitionLocked(ctx, StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) transitionLocked(ctx context.Context, to State) {
	from := b.state
	b.state = to
	if to == StateHalfOpen {
		b.successes = 0
	}
	b.notifyLocked(ctx, from, to)
}

func (b *Breaker) notifyLocked(ctx context.Context, from, to State) {
	b.config.Emitter.Emit(ctx, telemetry.Stamp(telemetry.Event{
		Kind: telemetry.EventStateChange,
		Name: b.name,
		Attrs: map[string]any{
			"from": from.String(),
			"to":   to.String(),
		},
	}))

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, from, to)
	}
}
