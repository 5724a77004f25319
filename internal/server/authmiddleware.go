package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/tjfontaine/kms-gateway/internal/domain"
)

// APIKeyHeader is the header callers present their credential in.
const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware validates the caller-presented API key against the
// configured key. The comparison is constant time. Failures are rendered as
// the standard envelope so authentication errors carry the request id too.
func APIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(APIKeyHeader)
			if presented == "" {
				WriteError(w, r, domain.ErrAuth("missing API key"), false)
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				WriteError(w, r, domain.ErrAuth("invalid API key"), false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
