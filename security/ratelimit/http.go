package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/mezonai/starchain/errors"
	"github.com/mezonai/starchain/jsonx"
	"github.com/mezonai/starchain/logx"
)

// ClientIP prefers the first X-Forwarded-For entry and falls back to the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		logx.Debug("SECURITY", "X-Forwarded-For:", xff)
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return "unknown"
}

// Middleware rejects requests over the per-IP limit with 429.
func (grl *GlobalRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !grl.AllowIPWithContext(r.Context(), ClientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = jsonx.NewEncoder(w).Encode(errors.NetworkError{
				Code:    errors.ErrCodeRateLimited,
				Message: errors.ErrMsgRateLimited,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
