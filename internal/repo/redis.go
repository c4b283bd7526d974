package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

import (
	"github.com/redis/go-redis/v9"
)

import (
	"github.com/nanjiek/pixiu-notes/internal/config"
	"github.com/nanjiek/pixiu-notes/internal/util"
)

// Key templates. Note keys share the {notes} hash tag so a note and the index
// land in one cluster slot and can go through one MULTI.
const (
	keySWTmpl        = "%s:sw:{%s}"
	keyNoteTmpl      = "%s:{notes}:note:%s"
	keyNoteIndexTmpl = "%s:{notes}:index"
)

// RedisRepo is the single Redis access point: the shared sliding-window
// counter and the notes collection.
type RedisRepo struct {
	Prefix         string
	Cli            redis.UniversalClient
	logger         *slog.Logger
	defaultTimeout time.Duration
}

type Option func(*RedisRepo)

func WithDefaultTimeout(d time.Duration) Option {
	return func(r *RedisRepo) {
		if d > 0 {
			r.defaultTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *RedisRepo) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRedis dials Redis from config and pings it.
func NewRedis(cfg config.RedisCfg, opts ...Option) (*RedisRepo, error) {
	cli, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithDefaultTimeout(time.Duration(cfg.OpTimeoutMs) * time.Millisecond)}, opts...)
	r := NewWithClient(cli, cfg.Prefix, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		r.logger.Error("redis ping failed", "err", err)
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}
	return r, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(cli redis.UniversalClient, prefix string, opts ...Option) *RedisRepo {
	r := &RedisRepo{
		Prefix:         prefix,
		Cli:            cli,
		logger:         slog.Default(),
		defaultTimeout: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRepo) withTimeout(ctx context.Context, opTimeout time.Duration) (context.Context, context.CancelFunc) {
	if opTimeout == 0 {
		opTimeout = r.defaultTimeout
	}
	return context.WithTimeout(ctx, opTimeout)
}

// KeySW hashes the identity so raw client identifiers (API keys) never
// appear in Redis.
func (r *RedisRepo) KeySW(identity string) string {
	return fmt.Sprintf(keySWTmpl, r.Prefix, util.FNV64(identity))
}

func (r *RedisRepo) KeyNote(id string) string {
	return fmt.Sprintf(keyNoteTmpl, r.Prefix, id)
}

func (r *RedisRepo) KeyNoteIndex() string {
	return fmt.Sprintf(keyNoteIndexTmpl, r.Prefix)
}

func (r *RedisRepo) Ping(parentCtx context.Context) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	return r.Cli.Ping(ctx).Err()
}

func (r *RedisRepo) Close() error {
	return r.Cli.Close()
}

func buildClient(cfg config.RedisCfg) (redis.UniversalClient, error) {
	if cfg.URL != "" {
		opt, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if cfg.Token != "" {
			opt.Password = cfg.Token
		}
		if cfg.PoolSize > 0 {
			opt.PoolSize = cfg.PoolSize
		}
		if cfg.MinIdleConns > 0 {
			opt.MinIdleConns = cfg.MinIdleConns
		}
		if cfg.MaxRetries != 0 {
			opt.MaxRetries = cfg.MaxRetries
		}
		opt.DialTimeout = durationOrDefault(cfg.DialTimeoutMs, 800)
		opt.ReadTimeout = durationOrDefault(cfg.ReadTimeoutMs, 800)
		opt.WriteTimeout = durationOrDefault(cfg.WriteTimeoutMs, 800)
		if cfg.ConnMaxIdleTimeSec > 0 {
			opt.ConnMaxIdleTime = time.Duration(cfg.ConnMaxIdleTimeSec) * time.Second
		}
		return redis.NewClient(opt), nil
	}

	addrs := normalizeAddrs(cfg)
	if len(addrs) == 0 {
		return nil, errors.New("no redis addresses configured")
	}
	return redis.NewUniversalClient(buildUniversalOptions(cfg, addrs)), nil
}

// buildUniversalOptions yields a plain client for one address and a cluster
// client for several.
func buildUniversalOptions(cfg config.RedisCfg, addrs []string) *redis.UniversalOptions {
	opts := &redis.UniversalOptions{
		Addrs:        addrs,
		Password:     cfg.Token,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  durationOrDefault(cfg.DialTimeoutMs, 800),
		ReadTimeout:  durationOrDefault(cfg.ReadTimeoutMs, 800),
		WriteTimeout: durationOrDefault(cfg.WriteTimeoutMs, 800),
	}
	if cfg.ConnMaxIdleTimeSec > 0 {
		opts.ConnMaxIdleTime = time.Duration(cfg.ConnMaxIdleTimeSec) * time.Second
	}
	if len(addrs) > 1 {
		opts.RouteByLatency = true
	}
	return opts
}

func normalizeAddrs(cfg config.RedisCfg) []string {
	if len(cfg.Addrs) > 0 {
		return cfg.Addrs
	}
	if cfg.Addr == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(cfg.Addr, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func durationOrDefault(ms int, defMs int) time.Duration {
	if ms <= 0 {
		ms = defMs
	}
	return time.Duration(ms) * time.Millisecond
}
