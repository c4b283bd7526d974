package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

import (
	"github.com/nanjiek/pixiu-notes/internal/api"
	"github.com/nanjiek/pixiu-notes/internal/config"
	"github.com/nanjiek/pixiu-notes/internal/identity"
	"github.com/nanjiek/pixiu-notes/internal/limiter"
	"github.com/nanjiek/pixiu-notes/internal/notes"
	"github.com/nanjiek/pixiu-notes/internal/repo"
)

func main() {
	confPath := flag.String("c", "configs/notes.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	rdb, err := repo.NewRedis(cfg.Redis, repo.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	store, err := newCounterStore(rootCtx, cfg.RateLimit, rdb)
	if err != nil {
		log.Fatalf("failed to build rate limit store: %v", err)
	}

	gate, err := limiter.NewSlidingWindow(store, policyOf(cfg.RateLimit), limiter.WithLogger(logger))
	if err != nil {
		log.Fatalf("invalid rate limit policy: %v", err)
	}
	if cfg.RateLimit.IdentityMode == config.IdentityGlobal {
		logger.Warn("rate limit identity is shared by all clients; one busy client can exhaust the budget for everyone",
			"identity", cfg.RateLimit.Identity)
	}

	svc := notes.NewService(rdb.Notes(), notes.WithLogger(logger))
	httpServer := api.NewServer(cfg.Server, svc, gate,
		api.WithLogger(logger),
		api.WithKeyFunc(identity.FromConfig(cfg.RateLimit)))

	go func() {
		logger.Info("server is running",
			"addr", cfg.Server.HTTPAddr, "pid", os.Getpid(),
			"limit", cfg.RateLimit.Limit, "window_ms", cfg.RateLimit.WindowMs,
			"store", cfg.RateLimit.Store)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for s := range sig {
		if s == syscall.SIGHUP {
			reload(*confPath, gate, cfg.RateLimit, logger)
			continue
		}
		break
	}

	logger.Info("shutting down server...")
	cancelRoot()

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutMs)*time.Millisecond)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}
	logger.Info("server exited properly")
}

// newCounterStore picks where window entries live. Memory only limits a
// single process; redis is shared by every replica.
func newCounterStore(ctx context.Context, cfg config.RateLimitCfg, rdb *repo.RedisRepo) (limiter.CounterStore, error) {
	var store limiter.CounterStore
	switch cfg.Store {
	case config.StoreMemory:
		mem := limiter.NewMemoryCounter()
		mem.StartJanitor(ctx, time.Duration(cfg.WindowMs)*time.Millisecond)
		store = mem
	default:
		store = rdb
	}
	if !cfg.Breaker.Enabled {
		return store, nil
	}
	return limiter.NewBreakerCounter(store, "notes_rate_limit", cfg.Breaker)
}

func policyOf(cfg config.RateLimitCfg) limiter.Policy {
	return limiter.Policy{
		Limit:  cfg.Limit,
		Window: time.Duration(cfg.WindowMs) * time.Millisecond,
	}
}

// reload re-reads the config file and swaps the limit and window. Identity,
// store and breaker settings need a restart.
func reload(path string, gate *limiter.SlidingWindow, running config.RateLimitCfg, logger *slog.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("config reload failed, keeping current policy", "err", err)
		return
	}
	if fields := running.RestartFields(cfg.RateLimit); len(fields) > 0 {
		logger.Warn("config reload ignores settings that need a restart", "fields", fields)
	}
	if err := gate.UpdatePolicy(policyOf(cfg.RateLimit)); err != nil {
		logger.Error("config reload rejected", "err", err)
	}
}

func newLogger(cfg config.LogCfg) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
