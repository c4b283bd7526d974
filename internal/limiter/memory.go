package limiter

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryCounter is an in-process CounterStore. State is not shared between
// processes, so it only enforces a global limit for single-instance
// deployments and tests.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string][]int64 // ascending timestamps (ms)
	windows map[string]int64   // last window seen per identity, for Sweep
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string][]int64),
		windows: make(map[string]int64),
	}
}

func (m *MemoryCounter) RecordAndCount(ctx context.Context, identity string, limit int64, window time.Duration, now time.Time) (WindowCount, error) {
	if err := ctx.Err(); err != nil {
		return WindowCount{}, err
	}
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	ts := prune(m.entries[identity], nowMs-windowMs)
	m.windows[identity] = windowMs

	if int64(len(ts)) >= limit {
		m.store(identity, ts)
		return WindowCount{Admitted: false, Count: int64(len(ts)), OldestMs: oldest(ts), NowMs: nowMs}, nil
	}

	// keep ascending order even if the caller's clock stepped backwards
	i := sort.Search(len(ts), func(i int) bool { return ts[i] > nowMs })
	ts = append(ts, 0)
	copy(ts[i+1:], ts[i:])
	ts[i] = nowMs
	m.store(identity, ts)
	return WindowCount{Admitted: true, Count: int64(len(ts)), OldestMs: oldest(ts), NowMs: nowMs}, nil
}

// Sweep drops identities whose entries have all aged out.
func (m *MemoryCounter) Sweep(now time.Time) int {
	nowMs := now.UnixMilli()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, ts := range m.entries {
		ts = prune(ts, nowMs-m.windows[id])
		if len(ts) == 0 {
			removed++
		}
		m.store(id, ts)
	}
	return removed
}

// StartJanitor runs Sweep every interval until ctx is done.
func (m *MemoryCounter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				m.Sweep(now)
			}
		}
	}()
}

func (m *MemoryCounter) store(identity string, ts []int64) {
	if len(ts) == 0 {
		delete(m.entries, identity)
		delete(m.windows, identity)
		return
	}
	m.entries[identity] = ts
}

// prune drops timestamps at or before cutoff.
func prune(ts []int64, cutoff int64) []int64 {
	i := sort.Search(len(ts), func(i int) bool { return ts[i] > cutoff })
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

func oldest(ts []int64) int64 {
	if len(ts) == 0 {
		return 0
	}
	return ts[0]
}
