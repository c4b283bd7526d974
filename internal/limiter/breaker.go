package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

import (
	sentinel "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"github.com/alibaba/sentinel-golang/core/circuitbreaker"
)

import (
	"github.com/nanjiek/pixiu-notes/internal/config"
)

var sentinelInit struct {
	once sync.Once
	err  error
}

// BreakerCounter guards a CounterStore with a sentinel error-count circuit
// breaker. While open, calls fail immediately with ErrBreakerOpen instead of
// waiting on a store that is known to be down. It never retries.
type BreakerCounter struct {
	inner    CounterStore
	resource string
}

func NewBreakerCounter(inner CounterStore, resource string, cfg config.BreakerCfg) (*BreakerCounter, error) {
	if inner == nil {
		return nil, fmt.Errorf("limiter: nil counter store")
	}
	sentinelInit.once.Do(func() {
		sentinelInit.err = sentinel.InitDefault()
	})
	if sentinelInit.err != nil {
		return nil, fmt.Errorf("init sentinel: %w", sentinelInit.err)
	}

	_, err := circuitbreaker.LoadRulesOfResource(resource, []*circuitbreaker.Rule{
		{
			Resource:         resource,
			Strategy:         circuitbreaker.ErrorCount,
			RetryTimeoutMs:   cfg.RetryTimeoutMs,
			MinRequestAmount: uint64(cfg.MinRequestAmount),
			StatIntervalMs:   cfg.StatIntervalMs,
			Threshold:        float64(cfg.ErrorThreshold),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load breaker rule for %s: %w", resource, err)
	}
	return &BreakerCounter{inner: inner, resource: resource}, nil
}

func (b *BreakerCounter) RecordAndCount(ctx context.Context, identity string, limit int64, window time.Duration, now time.Time) (WindowCount, error) {
	entry, blockErr := sentinel.Entry(b.resource, sentinel.WithTrafficType(base.Outbound))
	if blockErr != nil {
		return WindowCount{}, fmt.Errorf("%w: %s", ErrBreakerOpen, blockErr.Error())
	}
	defer entry.Exit()

	wc, err := b.inner.RecordAndCount(ctx, identity, limit, window, now)
	// a caller that gave up says nothing about the store's health
	if err != nil && ctx.Err() == nil {
		sentinel.TraceError(entry, err)
	}
	return wc, err
}
