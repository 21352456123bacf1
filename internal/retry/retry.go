// Package retry decides whether a failed remote mutation should be attempted
// again and how long to wait before doing so.
package retry

import (
	"errors"
	"time"
)

const (
	// MaxAttempts is the number of retries allowed after the first call
	MaxAttempts = 3

	// BaseUnit is the initial backoff duration for exponential backoff
	BaseUnit = 1 * time.Second
)

// Decision is the outcome of ShouldRetry
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Retryable is implemented by errors that know whether a retry can help
type Retryable interface {
	IsRetryable() bool
}

// Delayer is implemented by errors that carry a server-requested wait,
// such as the Retry-After of a 429
type Delayer interface {
	RetryDelay() time.Duration
}

// MaxDelay caps a server-requested wait at the last step of the backoff schedule
const MaxDelay = BaseUnit << (MaxAttempts - 1)

// ShouldRetry reports whether the call that produced err should be retried.
// attempt is the number of retries already performed (0 after the first failure).
// Errors that do not implement Retryable are treated as transient.
// A Delayer hint longer than the backoff wins, up to MaxDelay.
func ShouldRetry(attempt int, err error) Decision {
	if attempt >= MaxAttempts || attempt < 0 {
		return Decision{}
	}

	var r Retryable
	if errors.As(err, &r) && !r.IsRetryable() {
		return Decision{}
	}

	delay := Backoff(attempt)
	var d Delayer
	if errors.As(err, &d) {
		if hint := min(d.RetryDelay(), MaxDelay); hint > delay {
			delay = hint
		}
	}
	return Decision{Retry: true, Delay: delay}
}

// Backoff returns 2^attempt * BaseUnit
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return BaseUnit * time.Duration(1<<attempt)
}
