package repo

import (
	"context"
	"errors"
	"fmt"
	"time"
)

import (
	"github.com/google/uuid"
)

import (
	"github.com/nanjiek/pixiu-notes/internal/limiter"
	"github.com/nanjiek/pixiu-notes/internal/util"
)

var _ limiter.CounterStore = (*RedisRepo)(nil)

// RecordAndCount implements limiter.CounterStore on a sorted set per identity.
// The caller's now is ignored: the window is placed on the Redis server clock,
// which is shared by every instance, and reported back in NowMs.
func (r *RedisRepo) RecordAndCount(parentCtx context.Context, identity string, limit int64, window time.Duration, _ time.Time) (limiter.WindowCount, error) {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()

	key := r.KeySW(identity)
	windowMs := window.Milliseconds()

	res, err := ScriptSliding.Run(ctx, r.Cli, []string{key},
		windowMs, limit, uuid.New().String(), windowMs+1000).Result()
	if err != nil {
		return limiter.WindowCount{}, fmt.Errorf("sliding window script for %s: %w", key, err)
	}

	results, ok := res.([]interface{})
	if !ok || len(results) < 4 {
		return limiter.WindowCount{}, errors.New("invalid sliding window script response")
	}
	return limiter.WindowCount{
		Admitted: util.ToInt64(results[0]) == 1,
		Count:    util.ToInt64(results[1]),
		OldestMs: util.ToInt64(results[2]),
		NowMs:    util.ToInt64(results[3]),
	}, nil
}
