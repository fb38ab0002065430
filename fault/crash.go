package fault

import (
	"context"
	"fmt"
	"runtime/debug"
)

// CrashError wraps a panic recovered from a protected operation.
type CrashError struct {
	// Value is the recovered panic value.
	Value any

	// Stack is the goroutine stack captured at recovery time.
	Stack []byte
}

// Error implements the error interface.
func (e *CrashError) Error() string {
	return fmt.Sprintf("fault: operation panicked: %v", e.Value)
}

// Capture runs op and converts a panic into a *CrashError return.
//
// The panic is not re-raised: the breaker and retry loop treat a crashed
// dependency as an ordinary failure so it cannot bypass their accounting.
func Capture(ctx context.Context, op func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CrashError{Value: r, Stack: debug.Stack()}
		}
	}()

	return op(ctx)
}
