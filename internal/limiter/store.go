package limiter

import (
	"context"
	"time"
)

// WindowCount is what a counter store reports for one sliding-window check.
type WindowCount struct {
	Admitted bool  // the attempt was recorded
	Count    int64 // entries inside the window after the call
	OldestMs int64 // timestamp of the oldest entry still in the window, 0 if empty
	NowMs    int64 // clock the window was placed on, 0 if the caller's now was used
}

// CounterStore records attempts for an identity inside a sliding window.
//
// RecordAndCount must be atomic with respect to every other caller sharing the
// same backing state: prune entries at or before now-window, count what is
// left, and record the attempt only when that count is below limit. Denied
// attempts are never recorded. Implementations report failures as errors and
// must not guess a result.
//
// now is a hint. A store shared between processes should use its own clock so
// that instances with skewed clocks still agree on the window, and report that
// clock in WindowCount.NowMs.
type CounterStore interface {
	RecordAndCount(ctx context.Context, identity string, limit int64, window time.Duration, now time.Time) (WindowCount, error)
}
