// Package requesttime captures one "now" per request so ledger timestamps,
// replay windows and audit events agree within a call.
package requesttime

import (
	"net/http"
	"time"

	"trustex/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
