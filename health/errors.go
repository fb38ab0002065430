package health

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the monitor loop is live.
	ErrAlreadyRunning = errors.New("health: monitor already running")

	// ErrUnknownCheck is returned when no checker is registered under a name.
	ErrUnknownCheck = errors.New("health: unknown check")
)
