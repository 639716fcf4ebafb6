package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustex/contracts/propagation"
	depshandler "trustex/internal/dependents/handler"
	depsservice "trustex/internal/dependents/service"
	depsstore "trustex/internal/dependents/store"
	exhandler "trustex/internal/exchange/handler"
	exmodels "trustex/internal/exchange/models"
	exservice "trustex/internal/exchange/service"
	exstore "trustex/internal/exchange/store"
	jwttoken "trustex/internal/jwt_token"
	"trustex/internal/platform/metrics"
	vcache "trustex/internal/verification/cache"
	vhandler "trustex/internal/verification/handler"
	vmodels "trustex/internal/verification/models"
	vservice "trustex/internal/verification/service"
	vstore "trustex/internal/verification/store"
	"trustex/pkg/platform/middleware/pushkey"
	"trustex/pkg/testutil"
)

const adminToken = "admin-secret"

type fixedScoring struct{}

func (fixedScoring) Score(context.Context, vmodels.FeatureBundle) (*vmodels.ScoringResult, error) {
	score := 91
	return &vmodels.ScoringResult{Score: &score, Status: "legitimate", Confidence: 0.9}, nil
}

type noLegacy struct{}

func (noLegacy) Verify(context.Context, vmodels.Subject) (*vmodels.Profile, error) {
	panic("legacy path not expected")
}

type nopPeer struct{}

func (nopPeer) Push(context.Context, string, propagation.ProfilePush) error { return nil }
func (nopPeer) ListCompanies(context.Context, string) ([]propagation.CompanyListing, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	exchange, err := exservice.New(exstore.NewInMemoryStore(), exservice.Config{
		MinValuation: 1_000_000,
		DefaultPrice: 100,
		TransferFee:  10,
		TxWindow:     5 * time.Minute,
	})
	require.NoError(t, err)

	deps, err := depsservice.New(depsstore.NewInMemoryStore(), nopPeer{}, depsservice.Config{})
	require.NoError(t, err)

	vs := vstore.NewInMemoryStore()
	verifier, err := vservice.New(vs, vs, vcache.NewInMemoryCache(time.Hour), fixedScoring{}, noLegacy{},
		vservice.Config{RecheckInterval: 24 * time.Hour},
		vservice.WithLedger(exchange),
		vservice.WithPropagator(deps),
	)
	require.NoError(t, err)
	deps.SetVerifier(verifier)

	hash, err := pushkey.Hash("push-secret")
	require.NoError(t, err)
	jwtService := jwttoken.NewJWTService("test-key", "trustex", "trustex-api")

	router := NewRouter(Deps{
		Exchange:     exhandler.New(exchange, nil),
		Verification: vhandler.New(verifier, nil),
		Dependents:   depshandler.New(deps, nil),
		Metrics:      metrics.New(),
		JWTValidator: jwttoken.NewMiddlewareValidator(jwtService),
		AdminToken:   adminToken,
		PushKeyHash:  hash,
	})
	return router, jwtService
}

func TestRouter(t *testing.T) {
	testutil.Given(t, "the assembled router", func(t *testing.T) {
		router, jwtService := newTestRouter(t)
		token, err := jwtService.GenerateAccessToken("issuer", time.Hour)
		require.NoError(t, err)

		testutil.When(t, "probing health and metrics", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
			testutil.Then(t, "health is ok", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
			})
			rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
			testutil.Then(t, "metrics are exposed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Contains(t, rr.Body.String(), "trustex_http_requests_total")
			})
		})

		testutil.When(t, "calling guarded routes without credentials", func(t *testing.T) {
			cases := []*http.Request{
				testutil.NewJSONRequest(t, http.MethodPost, "/companies", map[string]any{}),
				testutil.NewRequest(t, http.MethodPost, "/admin/verification/scan"),
				testutil.NewJSONRequest(t, http.MethodPost, propagation.PushPath, map[string]any{}),
			}
			testutil.Then(t, "each is rejected as unauthorized", func(t *testing.T) {
				for _, req := range cases {
					rr := testutil.DoRequest(router, req)
					assert.Equal(t, http.StatusUnauthorized, rr.Code, req.URL.Path)
				}
			})
		})

		testutil.When(t, "listing a company and verifying it", func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/companies", map[string]any{
				"name": "Router Co", "symbol": "RTR", "valuation": 10_000_000, "desired_supply": 100,
				"description": "Makes routers for regional networks.", "website": "https://router.example",
			}), token)
			rr := testutil.DoRequest(router, req)
			require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
			company := testutil.UnmarshalResponse[exmodels.Company](t, rr)

			req = testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/verification/jobs", map[string]any{
				"company_id": company.ID.String(),
			}), token)
			rr = testutil.DoRequest(router, req)
			require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
			started := testutil.UnmarshalResponse[vhandler.StartResponse](t, rr)

			req = testutil.WithAdminToken(testutil.NewRequest(t, http.MethodPost, "/admin/verification/jobs/"+started.JobID.String()+"/process"), adminToken)
			rr = testutil.DoRequest(router, req)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			testutil.Then(t, "the ledger carries the verification outcome", func(t *testing.T) {
				rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/companies/"+company.ID.String()))
				got := testutil.UnmarshalResponse[exmodels.Company](t, rr)
				assert.Equal(t, exmodels.VerificationVerified, got.VerificationStatus)
				require.NotNil(t, got.VerificationScore)
				assert.Equal(t, 91, *got.VerificationScore)
			})
		})

		testutil.When(t, "a dependent pushes a profile with the shared key", func(t *testing.T) {
			score := 55
			req := testutil.WithPushKey(testutil.NewJSONRequest(t, http.MethodPost, propagation.PushPath, propagation.ProfilePush{
				CompanyID:    "00000000-0000-4000-8000-000000000001",
				OverallScore: &score,
				Status:       "suspicious",
				Source:       "scoring",
				LastVerified: time.Now().UTC(),
				NextDueAt:    time.Now().UTC().Add(time.Hour),
				Origin:       "peer-a",
			}), "push-secret")
			rr := testutil.DoRequest(router, req)
			testutil.Then(t, "it is accepted", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusAccepted)
			})
		})
	})
}

func TestHealthzReportsFailingChecks(t *testing.T) {
	router := NewRouter(Deps{
		Exchange:     exhandler.New(nil, nil),
		Verification: vhandler.New(nil, nil),
		Dependents:   depshandler.New(nil, nil),
		HealthChecks: map[string]func(context.Context) error{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	body := testutil.UnmarshalResponse[healthResponse](t, rr)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestRecoveryReturnsInternalError(t *testing.T) {
	h := Recovery(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
}
