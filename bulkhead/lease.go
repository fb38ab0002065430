package bulkhead

import (
	"context"
	"time"

	"github.com/mbright-io/guardrail/telemetry"
)

// The janitor is the secondary defense against leaked slots. The primary
// one is Do's deferred checkin; the janitor covers holders that bypass Do
// and then die without checking in.

func (b *Bulkhead) janitor() {
	defer close(b.janitorDone)

	ticker := time.NewTicker(b.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopJanitor:
			return
		case <-ticker.C:
			b.reclaimExpired(time.Now())
		}
	}
}

// reclaimExpired force-checkins every busy slot whose lease has lapsed.
func (b *Bulkhead) reclaimExpired(now time.Time) {
	type reclaimed struct {
		slotID  string
		holder  string
		heldFor time.Duration
	}

	b.mu.Lock()

	var expired []*Slot
	var events []reclaimed
	for _, s := range b.busy {
		if !s.leaseExp.IsZero() && now.After(s.leaseExp) {
			expired = append(expired, s)
			events = append(events, reclaimed{
				slotID:  s.id,
				holder:  s.holder,
				heldFor: now.Sub(s.checkedOut),
			})
		}
	}
	for _, s := range expired {
		b.checkinLocked(s)
	}

	b.mu.Unlock()

	for _, r := range events {
		b.emit(context.Background(), telemetry.EventLeaseReclaimed, map[string]any{
			"slot":     r.slotID,
			"holder":   r.holder,
			"held_for": r.heldFor.String(),
		})
	}
}
