package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

import (
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLimit    int64 = 100
	DefaultWindowMs int64 = 60_000
	DefaultIdentity       = "notes-api"

	IdentityGlobal = "global"
	IdentityClient = "client"

	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// ServerCfg HTTP listener settings.
type ServerCfg struct {
	HTTPAddr            string `yaml:"httpAddr"`            // e.g. ":5001"
	CORSOrigin          string `yaml:"corsOrigin"`          // allowed browser origin in development, empty disables CORS
	StaticDir           string `yaml:"staticDir"`           // built frontend, empty disables static serving
	ReadHeaderTimeoutMs int    `yaml:"readHeaderTimeoutMs"` // default 5000
	ShutdownTimeoutMs   int    `yaml:"shutdownTimeoutMs"`   // default 5000
}

// RedisCfg connection to the shared counter store (also holds notes).
type RedisCfg struct {
	URL                string   `yaml:"url"`                // redis:// or rediss:// URL, wins over addr/addrs
	Token              string   `yaml:"token"`              // password / access token
	Addr               string   `yaml:"addr"`               // "127.0.0.1:6379", comma separated for cluster
	Addrs              []string `yaml:"addrs"`              // cluster seed addresses
	DB                 int      `yaml:"db"`                 // ignored in cluster mode
	Prefix             string   `yaml:"prefix"`             // key prefix
	PoolSize           int      `yaml:"poolSize"`           // connection pool size
	MinIdleConns       int      `yaml:"minIdleConns"`       // minimum idle connections
	MaxRetries         int      `yaml:"maxRetries"`         // client-level command retries
	ReadTimeoutMs      int      `yaml:"readTimeoutMs"`      // read timeout (ms)
	WriteTimeoutMs     int      `yaml:"writeTimeoutMs"`     // write timeout (ms)
	DialTimeoutMs      int      `yaml:"dialTimeoutMs"`      // dial timeout (ms)
	OpTimeoutMs        int      `yaml:"opTimeoutMs"`        // per-operation deadline (ms)
	ConnMaxIdleTimeSec int      `yaml:"connMaxIdleTimeSec"` // max idle time (sec)
}

// BreakerCfg circuit breaker around the counter store.
type BreakerCfg struct {
	Enabled          bool   `yaml:"enabled"`
	ErrorThreshold   int    `yaml:"errorThreshold"`   // store errors inside the stat interval that open the breaker
	MinRequestAmount int    `yaml:"minRequestAmount"` // calls needed before the breaker may open
	StatIntervalMs   uint32 `yaml:"statIntervalMs"`   // error counting interval
	RetryTimeoutMs   uint32 `yaml:"retryTimeoutMs"`   // how long the breaker stays open
}

// RateLimitCfg admission gate settings.
//
// In client mode the X-User-Id, X-API-Key and X-Forwarded-For headers are
// taken as sent; nothing authenticates them, so a caller that rotates them
// gets a fresh budget. TrustForwarded should only be set behind a proxy that
// overwrites X-Forwarded-For.
type RateLimitCfg struct {
	IdentityMode   string     `yaml:"identityMode"`   // global | client
	Identity       string     `yaml:"identity"`       // shared identity in global mode
	TrustForwarded bool       `yaml:"trustForwarded"` // client mode: key by X-Forwarded-For
	Limit          int64      `yaml:"limit"`          // admitted requests per window
	WindowMs       int64      `yaml:"windowMs"`       // sliding window length
	Store          string     `yaml:"store"`          // redis | memory (memory is single-process only)
	Breaker        BreakerCfg `yaml:"breaker"`
}

// LogCfg slog handler settings.
type LogCfg struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Config full service configuration.
type Config struct {
	Server    ServerCfg    `yaml:"server"`
	Redis     RedisCfg     `yaml:"redis"`
	RateLimit RateLimitCfg `yaml:"rateLimit"`
	Log       LogCfg       `yaml:"log"`
}

// Load reads a YAML file, expanding ${VAR} references from the environment
// (after loading an optional .env next to the working directory).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes raw YAML, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(b))
	var c Config
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" || c.Server.HTTPAddr == ":" {
		c.Server.HTTPAddr = ":5001"
	}
	if c.Server.ReadHeaderTimeoutMs <= 0 {
		c.Server.ReadHeaderTimeoutMs = 5000
	}
	if c.Server.ShutdownTimeoutMs <= 0 {
		c.Server.ShutdownTimeoutMs = 5000
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "pixiu:notes"
	}
	if c.Redis.OpTimeoutMs <= 0 {
		c.Redis.OpTimeoutMs = 200
	}

	rl := &c.RateLimit
	rl.IdentityMode = strings.ToLower(strings.TrimSpace(rl.IdentityMode))
	if rl.IdentityMode == "" {
		rl.IdentityMode = IdentityGlobal
	}
	if strings.TrimSpace(rl.Identity) == "" {
		rl.Identity = DefaultIdentity
	}
	if rl.Limit == 0 {
		rl.Limit = DefaultLimit
	}
	if rl.WindowMs == 0 {
		rl.WindowMs = DefaultWindowMs
	}
	rl.Store = strings.ToLower(strings.TrimSpace(rl.Store))
	if rl.Store == "" {
		rl.Store = StoreRedis
	}
	if rl.Breaker.ErrorThreshold <= 0 {
		rl.Breaker.ErrorThreshold = 5
	}
	if rl.Breaker.MinRequestAmount <= 0 {
		rl.Breaker.MinRequestAmount = 5
	}
	if rl.Breaker.StatIntervalMs == 0 {
		rl.Breaker.StatIntervalMs = 10_000
	}
	if rl.Breaker.RetryTimeoutMs == 0 {
		rl.Breaker.RetryTimeoutMs = 3_000
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	rl := c.RateLimit
	if rl.Limit <= 0 {
		return errors.New("rateLimit.limit must be positive")
	}
	if rl.WindowMs <= 0 {
		return errors.New("rateLimit.windowMs must be positive")
	}
	switch rl.IdentityMode {
	case IdentityGlobal, IdentityClient:
	default:
		return fmt.Errorf("rateLimit.identityMode %q: want global or client", rl.IdentityMode)
	}
	switch rl.Store {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("rateLimit.store %q: want redis or memory", rl.Store)
	}
	if c.Redis.URL == "" && c.Redis.Addr == "" && len(c.Redis.Addrs) == 0 {
		return errors.New("redis.url or redis.addr is required")
	}
	return nil
}

// RestartFields lists the rateLimit settings that differ between c and next
// but are only read at startup. Limit and window are swapped live.
func (c RateLimitCfg) RestartFields(next RateLimitCfg) []string {
	var out []string
	if c.IdentityMode != next.IdentityMode {
		out = append(out, "identityMode")
	}
	if c.Identity != next.Identity {
		out = append(out, "identity")
	}
	if c.TrustForwarded != next.TrustForwarded {
		out = append(out, "trustForwarded")
	}
	if c.Store != next.Store {
		out = append(out, "store")
	}
	if c.Breaker != next.Breaker {
		out = append(out, "breaker")
	}
	return out
}
