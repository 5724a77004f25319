package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tjfontaine/kms-gateway/internal/domain"
	"github.com/tjfontaine/kms-gateway/internal/ratelimit"
)

// RateLimitMiddleware is the admission-control stage of the request pipeline.
// It runs before any handler touches the backend: when the client's window is
// exhausted the request short-circuits with a 429 envelope. Normalized
// x-ratelimit-* headers are written on every response that passed through.
func RateLimitMiddleware(limiter ratelimit.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r)

			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// Admission control degrades open rather than blocking traffic.
				logger.Warn("rate limiter error, allowing request",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("client", key),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("x-ratelimit-limit-requests", strconv.Itoa(decision.Limit))
			h.Set("x-ratelimit-remaining-requests", strconv.Itoa(decision.Remaining))
			h.Set("x-ratelimit-reset-requests", decision.Reset.UTC().Format(time.RFC3339))

			if !decision.Allowed {
				AddLogField(r.Context(), "rate_limited_client", key)
				WriteError(w, r, domain.ErrRateLimited(
					fmt.Sprintf("rate limit of %d requests per minute exceeded", decision.Limit)), false)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey derives the rate-limit identity for a request: the first
// X-Forwarded-For hop when present, otherwise the remote address host.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
