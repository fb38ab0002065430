package breaker

import "errors"

// ErrOpen is returned when the breaker is open and rejecting calls.
var ErrOpen = errors.New("breaker: circuit is open")
