package retry

import (
	"time"

	"github.com/mbright-io/guardrail/fault"
	"github.com/mbright-io/guardrail/telemetry"
)

// Policy configures a retry loop. The zero value gets sane defaults from
// Do; policies are plain values with no shared state.
type Policy struct {
	// Name labels emitted events. Default: "retry"
	Name string

	// MaxAttempts is the maximum number of tries, including the first.
	// Default: 5
	MaxAttempts int

	// BaseBackoff is the wait before the second attempt. Default: 100ms
	BaseBackoff time.Duration

	// MaxBackoff caps the computed wait. Default: 30 seconds
	MaxBackoff time.Duration

	// Multiplier grows the wait each attempt. Default: 2.0
	Multiplier float64

	// DisableJitter turns off the random [0, 0.2*wait] addition to each
	// wait. Jitter is on by default to avoid synchronized retry storms.
	DisableJitter bool

	// RetryableKinds is the set of error kinds worth another attempt.
	// Default: every kind except fault.KindInvalid.
	RetryableKinds []fault.Kind

	// Classify maps errors to kinds. Default: fault.Classify.
	Classify fault.Classifier

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Emitter receives retry events. Default: discard.
	Emitter telemetry.Emitter

	// Adaptive enables the per-invocation failure record: stop early on a
	// recurring signature, extra attempts and longer waits for timeouts,
	// fewer attempts and shorter waits for crashes.
	Adaptive bool

	// StopAfterRepeats stops the loop once one signature has occurred this
	// many times within the last RepeatWindow attempts. Only used when
	// Adaptive is set. Default: 2
	StopAfterRepeats int

	// RepeatWindow is the number of recent attempts inspected for
	// repeats. Only used when Adaptive is set. Default: 3
	RepeatWindow int
}

// DefaultRetryableKinds is the retryable set used when a policy names none.
var DefaultRetryableKinds = []fault.Kind{
	fault.KindUnknown,
	fault.KindTimeout,
	fault.KindUnavailable,
	fault.KindCrash,
	fault.KindRateLimited,
}

func (p Policy) withDefaults() Policy {
	if p.Name == "" {
		p.Name = "retry"
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if len(p.RetryableKinds) == 0 {
		p.RetryableKinds = DefaultRetryableKinds
	}
	if p.Classify == nil {
		p.Classify = fault.Classify
	}
	if p.Emitter == nil {
		p.Emitter = telemetry.Nop()
	}
	if p.StopAfterRepeats <= 0 {
		p.StopAfterRepeats = 2
	}
	if p.RepeatWindow <= 0 {
		p.RepeatWindow = 3
	}
	return p
}

func (p Policy) retryable(kind fault.Kind) bool {
	for _, k := range p.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}
