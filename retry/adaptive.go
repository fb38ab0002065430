package retry

import "github.com/mbright-io/guardrail/fault"

// record is the adaptive bookkeeping for one Do invocation. It is never
// shared: a fresh record is built per call so unrelated operations cannot
// influence each other's retry behavior.
type record struct {
	threshold int
	window    int
	recent    []string // signatures of the most recent failed attempts
}

func newRecord(threshold, window int) *record {
	return &record{threshold: threshold, window: window}
}

// observe registers a failure signature and reports whether the loop
// should stop early: the same signature recurring in threshold of the last
// window attempts is a systemic pattern, not a transient blip.
func (r *record) observe(signature string) bool {
	r.recent = append(r.recent, signature)
	if len(r.recent) > r.window {
		r.recent = r.recent[len(r.recent)-r.window:]
	}

	count := 0
	for _, s := range r.recent {
		if s == signature {
			count++
		}
	}
	return count >= r.threshold
}

// extraAttempts adjusts the attempt budget by error kind: the network may
// still recover from timeouts, a crashed dependency will not self-heal on
// this timescale.
func (r *record) extraAttempts(kind fault.Kind) int {
	switch kind {
	case fault.KindTimeout:
		return 2
	case fault.KindCrash:
		return -1
	default:
		return 0
	}
}

// backoffFactor scales the wait by error kind.
func (r *record) backoffFactor(kind fault.Kind) float64 {
	switch kind {
	case fault.KindTimeout:
		return 1.5
	case fault.KindCrash:
		return 0.7
	default:
		return 1.0
	}
}
