// Package middleware enforces per-class request budgets on the HTTP surface.
// Authenticated routes are keyed by principal, public routes by client IP.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"trustex/internal/ratelimit/metrics"
	"trustex/internal/ratelimit/models"
	"trustex/pkg/platform/httputil"
	"trustex/pkg/requestcontext"
)

// Store is a sliding window counter.
type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit, now time.Time) (*models.Result, error)
}

type Middleware struct {
	store    Store
	limits   map[models.Class]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every limiter into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// New builds the middleware. A class missing from limits is not limited.
func New(store Store, limits map[models.Class]models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Middleware{
		store:  store,
		limits: limits,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit applies the class budget. It must run after authentication for the
// principal to be known; anonymous callers fall back to the client IP.
func (m *Middleware) Limit(class models.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limit, ok := m.limits[class]
		if m.disabled || !ok {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := callerKey(ctx, class)

			result, err := m.store.Allow(ctx, key, limit, requestcontext.Now(ctx))
			if err != nil {
				m.metrics.IncError()
				m.logger.ErrorContext(ctx, "rate limit check failed; allowing request",
					"class", string(class),
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			m.metrics.IncDecision(string(class), result.Allowed)
			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", string(class),
					"key", key,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(ctx context.Context, class models.Class) string {
	if p := requestcontext.Principal(ctx); !p.IsZero() {
		return models.Key(class, "principal", p.String())
	}
	ip := requestcontext.ClientIP(ctx)
	if ip == "" {
		ip = "unknown"
	}
	return models.Key(class, "ip", ip)
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
