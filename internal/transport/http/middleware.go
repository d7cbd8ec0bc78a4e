package http

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ilyalazarenkoit/eltis-test/internal/ratelimit"
)

// LimitConfig is the fixed-window quota for one endpoint class.
type LimitConfig struct {
	Window time.Duration
	Max    int
}

// RateLimit gates a route class behind the shared limiter. The counter key
// combines the class with the client identity so each endpoint class
// carries an independent quota per client.
func RateLimit(limiter *ratelimit.Limiter, class string, cfg LimitConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := class + "|" + ratelimit.ClientKey(clientIP(r), r.UserAgent())
			result := limiter.Check(key, cfg.Window, cfg.Max)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.UnixMilli(), 10))

			if !result.Allowed {
				retryAfter := int(math.Ceil(time.Until(result.ResetAt).Seconds()))
				if retryAfter < 0 {
					retryAfter = 0
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"error": "Too many requests. Please try again later.",
					"rateLimit": map[string]any{
						"retryAfter": retryAfter,
						"resetTime":  result.ResetAt.UnixMilli(),
						"resetDate":  result.ResetAt.UTC().Format(time.RFC3339),
						"limit":      cfg.Max,
						"remaining":  result.Remaining,
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the originating address: first X-Forwarded-For hop,
// then X-Real-IP, then the connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
