package testutil

import (
	"context"
	"net/http"
	"time"

	id "trustex/pkg/domain"
	"trustex/pkg/requestcontext"
)

// WithPrincipal adds an authenticated caller to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// An invalid principal is not added.
func WithPrincipal(req *http.Request, principal string) *http.Request {
	if p, err := id.ParsePrincipal(principal); err == nil {
		return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
	}
	return req
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
