// Package fault provides the shared error classification used by the
// guardrail components.
//
// Both the circuit breaker and the retry loop need to agree on what a
// failure looks like: a returned error, a recovered panic, a deadline.
// This package defines the error Kind taxonomy, the CrashError wrapper for
// recovered panics, and a Capture helper that turns a panicking operation
// into one that returns a classified error. Keeping classification in one
// place guarantees a crashing dependency is counted the same way no matter
// which component observes it first.
package fault
