package httpx

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/tenancy/pkg/ratelimit"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID).
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It honours X-Forwarded-For and X-Real-IP, so only use it behind a proxy
// that overwrites those headers.
func IPKeyExtractor(r *http.Request) string {
	// Check X-Forwarded-For header (comma-separated list)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return RemoteIPKeyExtractor(r)
}

// RemoteIPKeyExtractor uses the connection's peer address only.
func RemoteIPKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ClientIPExtractor picks the IP extractor for the deployment.
func ClientIPExtractor(trustProxyHeaders bool) KeyExtractor {
	if trustProxyHeaders {
		return IPKeyExtractor
	}
	return RemoteIPKeyExtractor
}

// UserIDKeyExtractor extracts the user ID from the request context.
// Returns empty string if no user ID is found.
func UserIDKeyExtractor(r *http.Request) string {
	return UserIDFromContext(r.Context())
}

// CompositeKeyExtractor returns the first non-empty key produced by
// extractors, prefixed with its position so keys from different extractors
// never collide.
func CompositeKeyExtractor(extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		for i, extractor := range extractors {
			if key := extractor(r); key != "" {
				return strconv.Itoa(i) + ":" + key
			}
		}
		return ""
	}
}

// RateLimit enforces the limiter's policy for op, keyed by keyExtractor.
// Rejections are answered with 429 and Retry-After. A fail-closed policy
// whose store is down is answered with 503.
func RateLimit(l *ratelimit.Limiter, op string, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request", "operation", op)
				next.ServeHTTP(w, r)
				return
			}

			d, err := l.Allow(ctx, op, key)
			if err != nil {
				if errors.Is(err, ratelimit.ErrStoreUnavailable) {
					WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
						"success":           false,
						"error":             "service_unavailable",
						"error_description": "Temporarily unavailable. Please try again later.",
					})
					return
				}
				log.Error("rate limit check failed", "operation", op, "err", err)
				WriteJSON(w, http.StatusInternalServerError, map[string]any{
					"success": false,
					"error":   "server_error",
				})
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				retryAfter := RetryAfterSeconds(d.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn("rate limit exceeded",
					"operation", op,
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"success":     false,
					"error":       "rate_limited",
					"retry_after": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RetryAfterSeconds rounds d up to whole seconds, minimum 1.
func RetryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
