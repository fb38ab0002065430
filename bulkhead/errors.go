package bulkhead

import "errors"

var (
	// ErrFull is returned when both the pool and its waiting queue are saturated.
	ErrFull = errors.New("bulkhead: pool and waiting queue are full")

	// ErrCheckoutTimeout is returned when a queued checkout's deadline elapses
	// before a slot frees.
	ErrCheckoutTimeout = errors.New("bulkhead: checkout timed out waiting for a slot")

	// ErrClosed is returned when checking out from a closed pool.
	ErrClosed = errors.New("bulkhead: pool is closed")
)
