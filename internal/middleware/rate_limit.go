package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	pkghttp "github.com/hmarchena/gatewarden/pkg/http"
)

// RateLimitConfig holds the volumetric backstop configuration for the
// management surface. The quota system governs the query surface; this only
// guards token issuance and admin endpoints against brute force.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultManagementRateLimit allows 30 requests per minute per IP.
func DefaultManagementRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 30}
}

// RateLimitByIP rate limits requests by client IP. The key uses the same
// trusted-proxy extraction as the block registry, so a caller cannot rotate
// keys by forging forwarding headers.
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","message":"too many requests"}`))
		}),
	)
}
