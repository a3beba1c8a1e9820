package httpapi

import (
	"net"
	"net/http"

	"llmd/internal/ratelimit"
)

// RateLimitMiddleware gates model and training routes behind the
// sliding-window limiter, keyed by client IP (RealIP middleware runs
// first). Denial is a first-class 429 rejection, not an error path.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Admit(clientKey(r)) {
				rateLimitedTotal.Inc()
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey extracts the originating address without the ephemeral port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
