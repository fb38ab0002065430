package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/mbright-io/guardrail/fault"
	"github.com/mbright-io/guardrail/telemetry"
)

// Do runs op under the policy until it succeeds, its error kind is not
// retryable, or attempts are exhausted.
//
// The last failure is always surfaced: exhaustion returns ErrMaxAttempts
// wrapping it, a non-retryable kind returns ErrNonRetryable wrapping it.
// Panics in op are recovered into *fault.CrashError and classified as
// crashes. Adaptive bookkeeping is local to this one call.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	p = p.withDefaults()

	var rec *record
	if p.Adaptive {
		rec = newRecord(p.StopAfterRepeats, p.RepeatWindow)
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := fault.Capture(ctx, op)
		if err == nil {
			return nil
		}
		lastErr = err

		kind := p.Classify(err)
		if !p.retryable(kind) {
			return fmt.Errorf("%w: %w", ErrNonRetryable, err)
		}

		if rec != nil && rec.observe(fault.Signature(err)) {
			p.Emitter.Emit(ctx, telemetry.Stamp(telemetry.Event{
				Kind: telemetry.EventRetryStopped,
				Name: p.Name,
				Attrs: map[string]any{
					"attempt":   attempt,
					"signature": fault.Signature(err),
				},
			}))
			return fmt.Errorf("%w: %w", ErrMaxAttempts, lastErr)
		}

		if attempt >= p.allowedAttempts(rec, kind) {
			return fmt.Errorf("%w: %w", ErrMaxAttempts, lastErr)
		}

		delay := p.backoff(attempt, rec, kind)

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		p.Emitter.Emit(ctx, telemetry.Stamp(telemetry.Event{
			Kind: telemetry.EventRetryAttempt,
			Name: p.Name,
			Attrs: map[string]any{
				"attempt": attempt,
				"kind":    kind.String(),
				"delay":   delay.String(),
			},
		}))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// allowedAttempts is MaxAttempts adjusted by the adaptive record for the
// current error kind, never below one.
func (p Policy) allowedAttempts(rec *record, kind fault.Kind) int {
	allowed := p.MaxAttempts
	if rec != nil {
		allowed += rec.extraAttempts(kind)
	}
	if allowed < 1 {
		allowed = 1
	}
	return allowed
}

// backoff computes the wait before the next attempt:
// min(MaxBackoff, BaseBackoff * Multiplier^(attempt-1)), then the adaptive
// kind factor, then up to 20% jitter.
func (p Policy) backoff(attempt int, rec *record, kind fault.Kind) time.Duration {
	mult := math.Pow(p.Multiplier, float64(attempt-1))
	delay := time.Duration(float64(p.BaseBackoff) * mult)

	if delay > p.MaxBackoff || delay <= 0 {
		// The power can overflow for large attempts; the cap covers both.
		delay = p.MaxBackoff
	}

	if rec != nil {
		delay = time.Duration(float64(delay) * rec.backoffFactor(kind))
	}

	if !p.DisableJitter && delay > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay)/5 + 1))
	}

	return delay
}
