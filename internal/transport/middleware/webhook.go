package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// RequireWebhookSecret gates the bank notification endpoint on a shared
// secret header. Comparison is constant-time.
func RequireWebhookSecret(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Webhook-Secret")
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				logger.Warn("webhook rejected: bad or missing secret",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error": "INVALID_WEBHOOK_SECRET", "message": "webhook secret missing or invalid"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
