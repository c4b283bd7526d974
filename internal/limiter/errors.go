package limiter

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrThrottled marks an admission denied because the window is full.
	ErrThrottled = errors.New("rate limit exceeded")
	// ErrStoreUnavailable marks a failure of the counter store itself.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
	// ErrBreakerOpen is returned while the store circuit breaker is open.
	ErrBreakerOpen = errors.New("rate limit store circuit open")
)

// ThrottledError is a denied admission. It is the caller's problem and is
// recoverable by retrying after RetryAfter.
type ThrottledError struct {
	Identity   string
	Limit      int64
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q (limit %d)", e.Identity, e.Limit)
}

func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

// StoreUnavailableError wraps whatever the counter store returned. It is a
// service health problem, never a throttling decision.
type StoreUnavailableError struct {
	Identity string
	Err      error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("rate limit store unavailable for %q: %v", e.Identity, e.Err)
}

func (e *StoreUnavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
