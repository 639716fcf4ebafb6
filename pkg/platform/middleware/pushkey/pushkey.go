// Package pushkey authenticates instance-to-instance pushes with a shared key
// whose bcrypt hash is configured on the receiving side.
package pushkey

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	request "trustex/pkg/platform/middleware/request"
)

const Header = "X-Push-Key"

// Require rejects requests whose X-Push-Key does not match hash. An empty hash
// disables the inbound endpoint entirely.
func Require(hash []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(Header)
			if len(hash) == 0 || key == "" || bcrypt.CompareHashAndPassword(hash, []byte(key)) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "push key rejected",
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"push key required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Hash derives the configured hash from a plaintext key.
func Hash(key string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
}
