package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind categorizes an error for retry and breaker decisions.
type Kind int

const (
	// KindUnknown is the fallback for errors no rule recognizes.
	KindUnknown Kind = iota
	// KindTimeout covers deadline and network timeout errors.
	KindTimeout
	// KindUnavailable covers connection refusal and dropped connections.
	KindUnavailable
	// KindCrash covers recovered panics and process-exit equivalents.
	KindCrash
	// KindRateLimited covers explicit throttling by the dependency.
	KindRateLimited
	// KindInvalid covers caller errors that will never succeed on retry.
	KindInvalid
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindCrash:
		return "crash"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Classifier maps an error to a Kind.
type Classifier func(err error) Kind

// Classify is the default classifier.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var crash *CrashError
	if errors.As(err, &crash) {
		return KindCrash
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindUnavailable
	}

	return KindUnknown
}

// Signature returns a stable identity for an error, used by the adaptive
// retry and breaker records to detect recurring failures. Two errors with
// the same kind and message collapse to the same signature.
func Signature(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	// Cap the message so unbounded error text cannot bloat the records.
	if len(msg) > 80 {
		msg = msg[:80]
	}
	msg = strings.ToLower(msg)

	return fmt.Sprintf("%s:%s", Classify(err), msg)
}
