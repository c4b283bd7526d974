package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

import (
	"github.com/nanjiek/pixiu-notes/internal/rcu"
	"github.com/nanjiek/pixiu-notes/internal/types"
)

// Policy is the admission budget applied to every identity.
type Policy struct {
	Limit  int64
	Window time.Duration
}

func (p Policy) validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("limiter: limit must be positive, got %d", p.Limit)
	}
	if p.Window < time.Millisecond {
		return fmt.Errorf("limiter: window must be at least 1ms, got %s", p.Window)
	}
	return nil
}

// SlidingWindow admits at most Policy.Limit requests per identity inside any
// trailing Policy.Window. All counting happens in the CounterStore; nothing
// about past requests is remembered here, so any number of processes sharing
// one store enforce one limit.
type SlidingWindow struct {
	store  CounterStore
	policy *rcu.Snapshot[Policy]
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*SlidingWindow)

// WithClock overrides time.Now. Stores with their own clock ignore it.
func WithClock(now func() time.Time) Option {
	return func(s *SlidingWindow) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *SlidingWindow) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSlidingWindow(store CounterStore, p Policy, opts ...Option) (*SlidingWindow, error) {
	if store == nil {
		return nil, errors.New("limiter: nil counter store")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	s := &SlidingWindow{
		store:  store,
		policy: rcu.NewSnapshot(&p),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Policy returns the policy currently in force.
func (s *SlidingWindow) Policy() Policy {
	return *s.policy.Load()
}

// UpdatePolicy swaps the policy for subsequent checks. Entries already in the
// store keep counting against the new window.
func (s *SlidingWindow) UpdatePolicy(p Policy) error {
	if err := p.validate(); err != nil {
		return err
	}
	old := s.policy.Replace(&p)
	s.logger.Info("rate limit policy updated",
		"old_limit", old.Limit, "old_window", old.Window,
		"limit", p.Limit, "window", p.Window)
	return nil
}

// CheckAndAdmit counts this attempt against identity. A full window yields
// Allowed=false with a nil error. Any store failure yields a
// *StoreUnavailableError and a zero Decision; it is never turned into a
// decision either way.
func (s *SlidingWindow) CheckAndAdmit(ctx context.Context, identity string) (types.Decision, error) {
	if strings.TrimSpace(identity) == "" {
		return types.Decision{}, errors.New("limiter: empty identity")
	}
	p := s.policy.Load()
	now := s.now()

	wc, err := s.store.RecordAndCount(ctx, identity, p.Limit, p.Window, now)
	if err != nil {
		return types.Decision{}, &StoreUnavailableError{Identity: identity, Err: err}
	}

	dec := types.Decision{
		Allowed:  wc.Admitted,
		Identity: identity,
		Limit:    p.Limit,
		WindowMs: p.Window.Milliseconds(),
		Count:    wc.Count,
	}
	if wc.Admitted {
		dec.Remaining = max(p.Limit-wc.Count, 0)
		dec.Reason = "sliding_window_allowed"
		return dec, nil
	}

	// the oldest entry is on the store's clock, so measure against it too
	if wc.NowMs > 0 {
		now = time.UnixMilli(wc.NowMs)
	}
	dec.Reason = "sliding_window_exceeded"
	dec.RetryAfterMs = retryAfterMs(wc.OldestMs, p.Window, now)
	return dec, nil
}

// Admit is CheckAndAdmit with denial reported as a *ThrottledError, for
// callers that route on error type.
func (s *SlidingWindow) Admit(ctx context.Context, identity string) (types.Decision, error) {
	dec, err := s.CheckAndAdmit(ctx, identity)
	if err != nil {
		return dec, err
	}
	if !dec.Allowed {
		return dec, &ThrottledError{
			Identity:   identity,
			Limit:      dec.Limit,
			RetryAfter: time.Duration(dec.RetryAfterMs) * time.Millisecond,
		}
	}
	return dec, nil
}

// retryAfterMs is the time until the oldest entry leaves the window, which is
// when the next slot frees up. Unknown oldest falls back to a full window.
func retryAfterMs(oldestMs int64, window time.Duration, now time.Time) int64 {
	windowMs := window.Milliseconds()
	if oldestMs <= 0 {
		return windowMs
	}
	wait := oldestMs + windowMs - now.UnixMilli()
	if wait < 1 {
		return 1
	}
	if wait > windowMs {
		return windowMs
	}
	return wait
}
