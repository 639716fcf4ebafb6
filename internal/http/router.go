// Package httpapi assembles the HTTP surface: public ledger and verification
// reads, authenticated trading, admin maintenance and the instance-to-instance
// push endpoint.
package httpapi

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	depshandler "trustex/internal/dependents/handler"
	exhandler "trustex/internal/exchange/handler"
	"trustex/internal/platform/metrics"
	ratemw "trustex/internal/ratelimit/middleware"
	ratemodels "trustex/internal/ratelimit/models"
	vhandler "trustex/internal/verification/handler"
	"trustex/pkg/platform/httputil"
	adminmw "trustex/pkg/platform/middleware/admin"
	authmw "trustex/pkg/platform/middleware/auth"
	"trustex/pkg/platform/middleware/metadata"
	"trustex/pkg/platform/middleware/pushkey"
	request "trustex/pkg/platform/middleware/request"
	"trustex/pkg/platform/middleware/requesttime"
)

// Deps holds everything the router mounts.
type Deps struct {
	Exchange     *exhandler.Handler
	Verification *vhandler.Handler
	Dependents   *depshandler.Handler
	Metrics      *metrics.Metrics
	JWTValidator authmw.JWTValidator
	AdminToken   string
	PushKeyHash  []byte
	// HealthChecks are run by /healthz; any failure reports 503.
	HealthChecks map[string]func(context.Context) error
	// RateLimit is optional; nil leaves every route unlimited.
	RateLimit *ratemw.Middleware
	Logger    *slog.Logger
}

func (d Deps) limit(class ratemodels.Class) func(http.Handler) http.Handler {
	if d.RateLimit == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return d.RateLimit.Limit(class)
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(AccessLog(logger))
	r.Use(Latency(d.Metrics))

	r.Get("/healthz", healthz(d.HealthChecks))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// Public reads.
	r.Group(func(r chi.Router) {
		r.Use(d.limit(ratemodels.ClassRead))
		d.Exchange.RegisterPublic(r)
		d.Verification.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.JWTValidator, logger))
		r.Group(func(r chi.Router) {
			r.Use(d.limit(ratemodels.ClassLedger))
			d.Exchange.RegisterAuthenticated(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(d.limit(ratemodels.ClassVerificationStart))
			d.Verification.RegisterAuthenticated(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(d.AdminToken, logger))
		d.Verification.RegisterAdmin(r)
		d.Dependents.RegisterAdmin(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(pushkey.Require(d.PushKeyHash, logger))
		d.Dependents.RegisterInternal(r)
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]func(context.Context) error) http.HandlerFunc {
	names := slices.Sorted(maps.Keys(checks))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for _, name := range names {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(names))
			}
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
