package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
)

import (
	"github.com/nanjiek/pixiu-notes/internal/identity"
	"github.com/nanjiek/pixiu-notes/internal/types"
)

// Gate is the admission check run ahead of every handler.
type Gate interface {
	CheckAndAdmit(ctx context.Context, identity string) (types.Decision, error)
}

// rateLimit admits or rejects each request before next sees it. A denied
// request gets 429; a gate error goes to the error handler and next is
// never called in either case.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := s.keyFn(r)
		if err != nil {
			key = identity.ClientKey{Kind: identity.KindIP, ID: "unknown", Key: "unknown"}
		}

		dec, err := s.gate.CheckAndAdmit(r.Context(), key.Key)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(dec.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))

		if !dec.Allowed {
			s.logger.Debug("request throttled",
				"identity", key.Key, "path", r.URL.Path, "retry_after_ms", dec.RetryAfterMs)
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(dec.RetryAfterMs), 10))
			writeJSON(w, http.StatusTooManyRequests, MessageResponse{Message: msgTooManyRequests})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// cors allows one configured origin. Preflight requests are answered here
// so they never reach the gate.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.CORSOrigin
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Origin") == origin {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id, X-API-Key")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// handleError is the single sink for unexpected failures. Details go to the
// log, never to the client.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if isClientGone(err) {
		s.logger.Warn("request canceled by client",
			"method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: msgInternal})
}

func retryAfterSeconds(ms int64) int64 {
	if ms <= 0 {
		return 1
	}
	return (ms + 999) / 1000
}

func isClientGone(err error) bool {
	return errors.Is(err, context.Canceled)
}
