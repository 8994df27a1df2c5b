package api

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyAuth requires an X-API-Key header matching one of the configured
// keys. An empty key list disables authentication entirely (development
// mode).
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-API-Key")
			for _, key := range keys {
				if subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing API key")
		})
	}
}
