package types

// Decision is the outcome of one admission check. It is computed per request
// and never reused.
type Decision struct {
	Allowed      bool   // request may proceed
	Identity     string // bucket the request was counted under
	Limit        int64  // admitted requests per window
	WindowMs     int64  // sliding window length
	Count        int64  // entries in the window after this check
	Remaining    int64  // admissions left in the window
	RetryAfterMs int64  // when denied: until the oldest entry ages out
	Reason       string
}
