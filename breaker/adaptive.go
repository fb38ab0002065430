package breaker

import (
	"math"
	"time"
)

// AdaptiveConfig enables runtime tuning of the failure threshold.
//
// The tuner watches a rolling window of failure signatures and probe
// recoveries. Once per window it nudges the effective threshold one step:
// a high error volume lowers it (open sooner), a quiet or cleanly
// recovering window raises it (tolerate more). The effective threshold
// always stays within [max(2, round(0.7*base)), 2*base].
type AdaptiveConfig struct {
	// Window is the adaptation interval. The threshold is re-evaluated at
	// most once per window, and never before one full window has elapsed.
	// Default: 5 minutes
	Window time.Duration

	// HighErrorVolume is the failure count within a window considered high.
	// Default: 10
	HighErrorVolume int

	// MaxRecords caps the number of retained failure records.
	// Default: 64
	MaxRecords int
}

func (c AdaptiveConfig) withDefaults() AdaptiveConfig {
	if c.Window <= 0 {
		c.Window = 5 * time.Minute
	}
	if c.HighErrorVolume <= 0 {
		c.HighErrorVolume = 10
	}
	if c.MaxRecords <= 0 {
		c.MaxRecords = 64
	}
	return c
}

type failureRecord struct {
	signature string
	at        time.Time
}

// tuner tracks recent failures and recoveries for one breaker.
// All methods are called with the breaker's mutex held.
type tuner struct {
	cfg        AdaptiveConfig
	base       int
	current    int
	lastAdjust time.Time
	failures   []failureRecord
	recoveries []time.Time
}

func newTuner(base int, cfg AdaptiveConfig) *tuner {
	return &tuner{
		cfg:        cfg.withDefaults(),
		base:       base,
		current:    base,
		lastAdjust: time.Now(),
	}
}

// rebase resets the tuner around a new configured threshold.
func (t *tuner) rebase(base int) {
	t.base = base
	t.current = base
	t.failures = nil
	t.recoveries = nil
	t.lastAdjust = time.Now()
}

func (t *tuner) recordFailure(signature string, at time.Time) {
	t.failures = append(t.failures, failureRecord{signature: signature, at: at})
	if len(t.failures) > t.cfg.MaxRecords {
		t.failures = t.failures[len(t.failures)-t.cfg.MaxRecords:]
	}
}

func (t *tuner) recordRecovery(at time.Time) {
	t.recoveries = append(t.recoveries, at)
	if len(t.recoveries) > t.cfg.MaxRecords {
		t.recoveries = t.recoveries[len(t.recoveries)-t.cfg.MaxRecords:]
	}
}

// adjust re-evaluates the effective threshold. It reports the threshold to
// use and whether a full adaptation window has elapsed since the last
// evaluation.
func (t *tuner) adjust(now time.Time) (int, bool) {
	if now.Sub(t.lastAdjust) < t.cfg.Window {
		return t.current, false
	}
	t.lastAdjust = now

	cutoff := now.Add(-t.cfg.Window)
	t.prune(cutoff)

	errs := len(t.failures)
	recs := len(t.recoveries)

	lower := int(math.Round(0.7 * float64(t.base)))
	if lower < 2 {
		lower = 2
	}
	upper := t.base * 2

	next := t.current
	switch {
	case errs >= t.cfg.HighErrorVolume:
		// Heavy failure volume: open sooner.
		next = t.current - 1
	case errs == 0, recs > 0 && errs <= t.cfg.HighErrorVolume/2:
		// Clean or recovering window: tolerate more.
		next = t.current + 1
	case t.current > t.base:
		next = t.current - 1
	case t.current < t.base:
		next = t.current + 1
	}

	if next < lower {
		next = lower
	}
	if next > upper {
		next = upper
	}
	t.current = next

	return t.current, true
}

func (t *tuner) prune(cutoff time.Time) {
	kept := t.failures[:0]
	for _, f := range t.failures {
		if f.at.After(cutoff) {
			kept = append(kept, f)
		}
	}
	t.failures = kept

	keptRecs := t.recoveries[:0]
	for _, r := range t.recoveries {
		if r.After(cutoff) {
			keptRecs = append(keptRecs, r)
		}
	}
	t.recoveries = keptRecs
}
