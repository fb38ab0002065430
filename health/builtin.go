package health

import (
	"context"
	"fmt"

	"github.com/mbright-io/guardrail/breaker"
	"github.com/mbright-io/guardrail/bulkhead"
)

// BreakerChecker reports on a breaker registry: any open breaker makes the
// component unhealthy, any half-open breaker makes it degraded.
func BreakerChecker(name string, reg *breaker.Registry) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		snaps := reg.Snapshots()

		details := make(map[string]any, len(snaps))
		var open, halfOpen []string
		for n, s := range snaps {
			details[n] = s.State.String()
			switch s.State {
			case breaker.StateOpen:
				open = append(open, n)
			case breaker.StateHalfOpen:
				halfOpen = append(halfOpen, n)
			}
		}

		switch {
		case len(open) > 0:
			return Unhealthy(fmt.Sprintf("%d breaker(s) open", len(open)), nil).
				WithDetails(details)
		case len(halfOpen) > 0:
			return Degraded(fmt.Sprintf("%d breaker(s) half-open", len(halfOpen))).
				WithDetails(details)
		default:
			return Healthy(fmt.Sprintf("%d breaker(s) closed", len(snaps))).
				WithDetails(details)
		}
	})
}

// saturationThreshold is the pool utilization above which a bulkhead is
// reported degraded. Saturation alone never reports unhealthy: a full pool
// is doing its job, not failing.
const saturationThreshold = 0.9

// BulkheadChecker reports on a bulkhead registry: a pool running above 90%
// utilization makes the component degraded.
func BulkheadChecker(name string, reg *bulkhead.Registry) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		snaps := reg.Snapshots()

		details := make(map[string]any, len(snaps))
		var saturated []string
		for n, s := range snaps {
			details[n] = map[string]any{
				"busy":        s.Busy,
				"waiting":     s.Waiting,
				"utilization": s.Utilization,
			}
			if s.Utilization > saturationThreshold {
				saturated = append(saturated, n)
			}
		}

		if len(saturated) > 0 {
			return Degraded(fmt.Sprintf("%d pool(s) saturated", len(saturated))).
				WithDetails(details)
		}
		return Healthy(fmt.Sprintf("%d pool(s) within capacity", len(snaps))).
			WithDetails(details)
	})
}
