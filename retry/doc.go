// Package retry implements backoff-based retry with error classification.
//
// A Policy is a value object: it carries no state and can be shared freely.
// Do runs an operation under a policy, sleeping between attempts with
// exponential backoff, a cap, and optional jitter. Errors are classified
// into fault kinds; kinds outside the policy's retryable set surface
// immediately without a second attempt.
//
//	err := retry.Do(ctx, retry.Policy{
//	    MaxAttempts: 3,
//	    BaseBackoff: 100 * time.Millisecond,
//	}, func(ctx context.Context) error {
//	    return client.Publish(ctx, msg)
//	})
//
// With Adaptive enabled, each invocation additionally keeps a private
// record of failure signatures: an error recurring in most recent attempts
// stops the loop early, timeouts earn extra patience, and crashes fail
// fast. The record never outlives the Do call, so unrelated operations
// cannot influence each other.
package retry
