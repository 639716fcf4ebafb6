package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"trustex/internal/verification/cache"
	"trustex/internal/verification/models"
	"trustex/internal/verification/providers"
	"trustex/internal/verification/service"
	"trustex/internal/verification/store"
	id "trustex/pkg/domain"
	"trustex/pkg/testutil"
)

type stubScoring struct {
	score int
	err   error
}

func (s *stubScoring) Score(context.Context, models.FeatureBundle) (*models.ScoringResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	score := s.score
	return &models.ScoringResult{Score: &score, Status: "ok", Confidence: 0.8}, nil
}

type stubLegacy struct{}

func (stubLegacy) Verify(context.Context, models.Subject) (*models.Profile, error) {
	return nil, providers.NewProviderError(providers.ErrorProviderOutage, "search", "unreachable", nil)
}

type HandlerSuite struct {
	suite.Suite
	router  chi.Router
	scoring *stubScoring
	service *service.Service
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.scoring = &stubScoring{score: 88}
	st := store.NewInMemoryStore()
	svc, err := service.New(st, st, cache.NewInMemoryCache(time.Hour), s.scoring, stubLegacy{}, service.Config{
		RecheckInterval: 24 * time.Hour,
	})
	s.Require().NoError(err)
	s.service = svc

	h := New(svc, nil)
	r := chi.NewRouter()
	h.RegisterPublic(r)
	h.RegisterAuthenticated(r)
	h.RegisterAdmin(r)
	s.router = r
}

func (s *HandlerSuite) do(req *http.Request, principal string) *httptest.ResponseRecorder {
	if principal != "" {
		req = testutil.WithPrincipal(req, principal)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) start(companyID id.CompanyID, priority string) StartResponse {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/verification/jobs", map[string]any{
		"company_id": companyID.String(), "company_name": "Acme", "priority": priority,
	})
	rr := s.do(req, "alice")
	s.Require().Equal(http.StatusAccepted, rr.Code, rr.Body.String())
	return *testutil.UnmarshalResponse[StartResponse](s.T(), rr)
}

func (s *HandlerSuite) TestStartAndProcess() {
	companyID := id.NewCompanyID()
	started := s.start(companyID, "")
	s.Equal(companyID, started.CompanyID)

	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/verification/jobs/"+started.JobID.String()), "")
	job := testutil.UnmarshalResponse[models.Job](s.T(), rr)
	s.Equal(models.JobQueued, job.Status)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/companies/"+companyID.String()+"/verification"), "")
	pending := testutil.UnmarshalResponse[models.Profile](s.T(), rr)
	s.Equal(models.ProfilePending, pending.Status)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodPost, "/admin/verification/jobs/"+started.JobID.String()+"/process"), "")
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	job = testutil.UnmarshalResponse[models.Job](s.T(), rr)
	s.Equal(models.JobCompleted, job.Status)
	s.Equal(models.SourceScoring, job.Source)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/companies/"+companyID.String()+"/verification"), "")
	profile := testutil.UnmarshalResponse[models.Profile](s.T(), rr)
	s.Equal(models.ProfileVerified, profile.Status)
	s.Equal(88, *profile.OverallScore)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodPost, "/admin/verification/jobs/"+started.JobID.String()+"/process"), "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/companies/"+companyID.String()+"/verification/jobs"), "")
	jobs := testutil.UnmarshalResponse[JobsResponse](s.T(), rr)
	s.Len(jobs.Jobs, 1)
}

func (s *HandlerSuite) TestStartValidation() {
	s.Run("requires principal", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/verification/jobs", map[string]any{"company_id": id.NewCompanyID().String()})
		testutil.AssertStatusAndError(s.T(), s.do(req, ""), http.StatusUnauthorized, "unauthorized")
	})
	s.Run("bad company id", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/verification/jobs", map[string]any{"company_id": "nope"})
		testutil.AssertStatusAndError(s.T(), s.do(req, "alice"), http.StatusBadRequest, "validation_error")
	})
	s.Run("bad priority", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/verification/jobs", map[string]any{
			"company_id": id.NewCompanyID().String(), "company_name": "Acme", "priority": "urgent",
		})
		testutil.AssertStatusAndError(s.T(), s.do(req, "alice"), http.StatusBadRequest, "validation_error")
	})
	s.Run("unlisted company without a name", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/verification/jobs", map[string]any{"company_id": id.NewCompanyID().String()})
		testutil.AssertStatusAndError(s.T(), s.do(req, "alice"), http.StatusBadRequest, "validation_error")
	})
}

func (s *HandlerSuite) TestProviderExhaustionReportsFailedJob() {
	s.scoring.err = providers.NewProviderError(providers.ErrorTimeout, "scoring", "deadline", nil)
	started := s.start(id.NewCompanyID(), "low")

	rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/admin/verification/jobs/"+started.JobID.String()+"/process"), "")
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	job := testutil.UnmarshalResponse[models.Job](s.T(), rr)
	s.Equal(models.JobFailed, job.Status)
	s.NotEmpty(job.Error)
}

func (s *HandlerSuite) TestCancel() {
	started := s.start(id.NewCompanyID(), "normal")
	path := "/admin/verification/jobs/" + started.JobID.String() + "/cancel"

	rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, path), "")
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	job := testutil.UnmarshalResponse[models.Job](s.T(), rr)
	s.Equal(models.JobCancelled, job.Status)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodPost, path), "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")

	rr = s.do(testutil.NewRequest(s.T(), http.MethodPost, "/admin/verification/jobs/"+id.NewJobID().String()+"/cancel"), "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestProcessPending() {
	s.start(id.NewCompanyID(), "normal")
	s.start(id.NewCompanyID(), "low")

	rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/admin/verification/process-pending?limit=5"), "")
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	res := testutil.UnmarshalResponse[service.BatchResult](s.T(), rr)
	s.Equal(2, res.Completed)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodPost, "/admin/verification/process-pending?limit=zero"), "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *HandlerSuite) TestOverride() {
	companyID := id.NewCompanyID()
	path := "/admin/companies/" + companyID.String() + "/verification/override"

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]any{"status": "verified"}), "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]any{"status": "pending", "reason": "x"}), "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]any{"status": "Suspicious", "score": 50, "reason": "manual review"}), "")
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	profile := testutil.UnmarshalResponse[models.Profile](s.T(), rr)
	s.Equal(models.ProfileSuspicious, profile.Status)
	s.Equal(models.SourceOverride, profile.Source)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodPost, "/admin/verification/cache/purge"), "")
	purge := testutil.UnmarshalResponse[PurgeResponse](s.T(), rr)
	s.Equal(0, purge.Removed)
}

func (s *HandlerSuite) TestUnknownLookups() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/companies/"+id.NewCompanyID().String()+"/verification"), "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/verification/jobs/not-a-uuid"), "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}
