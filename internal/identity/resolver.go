package identity

import (
	"errors"
	"net"
	"net/http"
	"strings"
)

import (
	"github.com/nanjiek/pixiu-notes/internal/config"
)

const (
	KindGlobal = "global"
	KindUser   = "user"
	KindIP     = "ip"
	KindAPIKey = "api_key"
)

// ClientKey is a normalized rate-limit identity.
type ClientKey struct {
	Kind string
	ID   string
	Key  string
}

// KeyFunc derives the rate-limit identity of a request.
type KeyFunc func(r *http.Request) (ClientKey, error)

// Global returns the same identity for every request, so all callers share
// one budget.
func Global(identity string) KeyFunc {
	key := ClientKey{Kind: KindGlobal, ID: identity, Key: identity}
	return func(*http.Request) (ClientKey, error) {
		return key, nil
	}
}

// FromConfig picks the key function for rateLimit.identityMode.
func FromConfig(cfg config.RateLimitCfg) KeyFunc {
	if cfg.IdentityMode == config.IdentityClient {
		r := NewResolver()
		r.TrustForwarded = cfg.TrustForwarded
		return r.Resolve
	}
	return Global(cfg.Identity)
}

// Resolver derives a per-client identity from request headers. The user and
// API key headers are not authenticated here; they only partition the budget.
type Resolver struct {
	UserHeader     string
	APIKeyHdr      string
	IPHeader       string
	TrustForwarded bool // honour IPHeader; only safe behind a proxy that sets it
}

func NewResolver() *Resolver {
	return &Resolver{
		UserHeader:     "X-User-Id",
		APIKeyHdr:      "X-API-Key",
		IPHeader:       "X-Forwarded-For",
		TrustForwarded: false,
	}
}

// Resolve tries user -> api_key -> forwarded ip -> remote ip.
func (r *Resolver) Resolve(req *http.Request) (ClientKey, error) {
	if req == nil {
		return ClientKey{}, errors.New("nil request")
	}

	if user := strings.TrimSpace(req.Header.Get(r.UserHeader)); user != "" {
		return newKey(KindUser, user), nil
	}

	if apiKey := strings.TrimSpace(req.Header.Get(r.APIKeyHdr)); apiKey != "" {
		return newKey(KindAPIKey, apiKey), nil
	}

	if r.TrustForwarded {
		if ip := firstForwarded(req.Header.Get(r.IPHeader)); ip != "" {
			return newKey(KindIP, ip), nil
		}
	}

	if ip := remoteIP(req.RemoteAddr); ip != "" {
		return newKey(KindIP, ip), nil
	}

	return ClientKey{}, errors.New("no client identity found")
}

func newKey(kind, id string) ClientKey {
	return ClientKey{
		Kind: kind,
		ID:   id,
		Key:  kind + ":" + id,
	}
}

func firstForwarded(value string) string {
	if value == "" {
		return ""
	}
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}

func remoteIP(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err == nil && host != "" {
		return host
	}
	return remoteAddr
}
