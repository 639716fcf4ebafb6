package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ScoringProvider,LegacyVerifier,Ledger,Propagator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	exmodels "trustex/internal/exchange/models"
	"trustex/internal/verification/cache"
	"trustex/internal/verification/metrics"
	"trustex/internal/verification/models"
	"trustex/internal/verification/providers"
	"trustex/internal/verification/service/mocks"
	"trustex/internal/verification/store"
	"trustex/internal/verification/tables"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/sentinel"
	"trustex/pkg/requestcontext"
)

const cacheTTL = time.Hour

type VerificationServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	scoring    *mocks.MockScoringProvider
	legacy     *mocks.MockLegacyVerifier
	ledger     *mocks.MockLedger
	propagator *mocks.MockPropagator
	store      *store.InMemoryStore
	cache      *cache.InMemoryCache
	reg        *prometheus.Registry
	service    *Service
	now        time.Time
}

func TestVerificationServiceSuite(t *testing.T) {
	suite.Run(t, new(VerificationServiceSuite))
}

func (s *VerificationServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.scoring = mocks.NewMockScoringProvider(s.ctrl)
	s.legacy = mocks.NewMockLegacyVerifier(s.ctrl)
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.propagator = mocks.NewMockPropagator(s.ctrl)
	s.store = store.NewInMemoryStore()
	s.cache = cache.NewInMemoryCache(cacheTTL)
	s.reg = prometheus.NewRegistry()
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	svc, err := New(s.store, s.store, s.cache, s.scoring, s.legacy, Config{
		RecheckInterval: 24 * time.Hour,
		BatchSize:       10,
	},
		WithLedger(s.ledger),
		WithPropagator(s.propagator),
		WithMetrics(metrics.New(s.reg)),
		WithTables(tables.Default()),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *VerificationServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *VerificationServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *VerificationServiceSuite) ctx() context.Context {
	return s.ctxAt(s.now)
}

func (s *VerificationServiceSuite) subject() *models.Subject {
	return &models.Subject{
		Name:        "Acme",
		Symbol:      "ACME",
		Description: "Anvils for professionals.",
		Website:     "https://acme.test",
	}
}

func (s *VerificationServiceSuite) start(companyID id.CompanyID, priority models.Priority) id.JobID {
	jobID, err := s.service.StartVerification(s.ctx(), StartRequest{
		CompanyID: companyID,
		Priority:  priority,
		Subject:   s.subject(),
	})
	s.Require().NoError(err)
	return jobID
}

func scoreResult(score int) *models.ScoringResult {
	return &models.ScoringResult{
		Score:      &score,
		Status:     "verified",
		Confidence: 0.92,
		Reasons:    []string{"registered", "registered"},
	}
}

func (s *VerificationServiceSuite) expectMirror(companyID id.CompanyID, status exmodels.VerificationStatus) {
	s.ledger.EXPECT().ApplyVerification(gomock.Any(), companyID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.CompanyID, u exmodels.VerificationUpdate) error {
			s.Equal(status, u.Status)
			return nil
		})
}

func (s *VerificationServiceSuite) counterValue(name string, labels map[string]string) float64 {
	families, err := s.reg.Gather()
	s.Require().NoError(err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metric:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func (s *VerificationServiceSuite) TestNew() {
	s.Run("nil job store", func() {
		_, err := New(nil, s.store, s.cache, s.scoring, s.legacy, Config{RecheckInterval: time.Hour})
		s.ErrorContains(err, "job store is required")
	})
	s.Run("nil legacy verifier", func() {
		_, err := New(s.store, s.store, s.cache, s.scoring, nil, Config{RecheckInterval: time.Hour})
		s.ErrorContains(err, "legacy verifier is required")
	})
	s.Run("non-positive recheck interval", func() {
		_, err := New(s.store, s.store, s.cache, s.scoring, s.legacy, Config{})
		s.ErrorContains(err, "recheck interval")
	})
}

func (s *VerificationServiceSuite) TestPrimaryPathIssuesExactlyOneProviderCall() {
	companyID := id.NewCompanyID()
	jobID := s.start(companyID, models.PriorityNormal)

	s.scoring.EXPECT().Score(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, bundle models.FeatureBundle) (*models.ScoringResult, error) {
			s.Equal("Acme", bundle.CompanyName)
			s.Contains(bundle.Signals, "has_website")
			return scoreResult(85), nil
		}).Times(1)
	s.legacy.EXPECT().Verify(gomock.Any(), gomock.Any()).Times(0)
	s.expectMirror(companyID, exmodels.VerificationVerified)
	s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any()).Times(1)

	job, err := s.service.ProcessVerificationJob(s.ctx(), jobID)
	s.Require().NoError(err)
	s.Equal(models.JobCompleted, job.Status)
	s.Equal(models.SourceScoring, job.Source)
	s.Require().NotNil(job.Result)
	s.Equal(models.ProfileVerified, job.Result.Status)
	s.Equal([]string{"registered"}, job.Result.Reasons)
	s.Equal(s.now.Add(24*time.Hour), job.Result.NextDueAt)

	profile, err := s.service.GetProfile(s.ctx(), companyID)
	s.Require().NoError(err)
	s.Equal(85, *profile.OverallScore)

	entry, err := s.cache.Get(s.ctx(), companyID, s.now)
	s.Require().NoError(err)
	s.Equal(models.SourceScoring, entry.Profile.Source)
}

func (s *VerificationServiceSuite) TestProviderTimeoutFallsBackToLegacyOnce() {
	companyID := id.NewCompanyID()
	jobID := s.start(companyID, models.PriorityNormal)

	score := 45
	s.scoring.EXPECT().Score(gomock.Any(), gomock.Any()).
		Return(nil, providers.NewProviderError(providers.ErrorTimeout, "scoring", "request timed out", context.DeadlineExceeded)).
		Times(1)
	s.legacy.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, subject models.Subject) (*models.Profile, error) {
			s.Equal(companyID, subject.CompanyID)
			return &models.Profile{
				CompanyID:    companyID,
				OverallScore: &score,
				Status:       models.ProfileSuspicious,
				Source:       models.SourceLegacy,
			}, nil
		}).Times(1)
	s.expectMirror(companyID, exmodels.VerificationSuspicious)
	s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any()).Times(1)

	job, err := s.service.ProcessVerificationJob(s.ctx(), jobID)
	s.Require().NoError(err)
	s.Equal(models.JobCompleted, job.Status)
	s.Equal(models.SourceLegacy, job.Source)
	s.Equal(float64(1), s.counterValue("trustex_verification_provider_failures_total", map[string]string{"path": "scoring", "category": "timeout"}))
}

func (s *VerificationServiceSuite) TestBothPathsFailingMarksJobFailed() {
	companyID := id.NewCompanyID()
	jobID := s.start(companyID, models.PriorityNormal)

	s.scoring.EXPECT().Score(gomock.Any(), gomock.Any()).
		Return(nil, providers.NewProviderError(providers.ErrorProviderOutage, "scoring", "unexpected status 503", nil))
	s.legacy.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(nil, providers.NewProviderError(providers.ErrorTimeout, "search", "all legacy queries failed", nil))

	job, err := s.service.ProcessVerificationJob(s.ctx(), jobID)
	s.Require().NoError(err)
	s.Equal(models.JobFailed, job.Status)
	s.Contains(job.Error, "scoring")
	s.Contains(job.Error, "all legacy queries failed")
	s.Nil(job.Result)

	s.Run("failed jobs are not retried", func() {
		_, err := s.service.ProcessVerificationJob(s.ctx(), jobID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("no profile is stored", func() {
		_, err := s.service.GetProfile(s.ctx(), companyID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *VerificationServiceSuite) TestCacheShortCircuitsWithinTTL() {
	companyID := id.NewCompanyID()
	first := s.start(companyID, models.PriorityNormal)

	s.scoring.EXPECT().Score(gomock.Any(), gomock.Any()).Return(scoreResult(90), nil).Times(1)
	s.expectMirror(companyID, exmodels.VerificationVerified)
	s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any()).Times(1)
	_, err := s.service.ProcessVerificationJob(s.ctx(), first)
	s.Require().NoError(err)

	later := s.now.Add(cacheTTL - time.Minute)
	second, err := s.service.StartVerification(s.ctxAt(later), StartRequest{CompanyID: companyID, Subject: s.subject()})
	s.Require().NoError(err)
	s.NotEqual(first, second)

	job, err := s.service.ProcessVerificationJob(s.ctxAt(later), second)
	s.Require().NoError(err)
	s.Equal(models.JobCompleted, job.Status)
	s.Equal(models.SourceCache, job.Source)
	s.Equal(90, *job.Result.OverallScore)

	entry, err := s.cache.Get(s.ctxAt(later), companyID, later)
	s.Require().NoError(err)
	s.Equal(entry.Profile, job.Result)
	s.Equal(models.SourceScoring, job.Result.Source)
	s.Equal(float64(1), s.counterValue("trustex_verification_cache_lookups_total", map[string]string{"result": "hit"}))
}

func (s *VerificationServiceSuite) TestExpiredCacheCallsProviderAgain() {
	companyID := id.NewCompanyID()
	first := s.start(companyID, models.PriorityNormal)

	s.scoring.EXPECT().Score(gomock.Any(), gomock.Any()).Return(scoreResult(90), nil).Times(2)
	s.ledger.EXPECT().ApplyVerification(gomock.Any(), companyID, gomock.Any()).Return(nil).Times(2)
	s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any()).Times(2)

	_, err := s.service.ProcessVerificationJob(s.ctx(), first)
	s.Require().NoError(err)

	atExpiry := s.now.Add(cacheTTL)
	second, err := s.service.StartVerification(s.ctxAt(atExpiry), StartRequest{CompanyID: companyID, Subject: s.subject()})
	s.Require().NoError(err)
	job, err := s.service.ProcessVerificationJob(s.ctxAt(atExpiry), second)
	s.Require().NoError(err)
	s.Equal(models.SourceScoring, job.Source)
}

func (s *VerificationServiceSuite) TestForceRefreshBypassesCache() {
	companyID := id.NewCompanyID()
	s.Require().NoError(s.cache.Put(s.ctx(), &models.Profile{CompanyID: companyID, Status: models.ProfileFailed}, s.now))

	jobID, err := s.service.StartVerification(s.ctx(), StartRequest{
		CompanyID:    companyID,
		Subject:      s.subject(),
		ForceRefresh: true,
	})
	s.Require().NoError(err)

	s.scoring.EXPECT().Score(gomock.Any(), gomock.Any()).Return(scoreResult(75), nil)
	s.expectMirror(companyID, exmodels.VerificationVerified)
	s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any())

	job, err := s.service.ProcessVerificationJob(s.ctx(), jobID)
	s.Require().NoError(err)
	s.Equal(models.SourceScoring, job.Source)
}

func (s *VerificationServiceSuite) TestCancelDuringRemoteCallDiscardsResult() {
	companyID := id.NewCompanyID()
	jobID := s.start(companyID, models.PriorityNormal)

	s.scoring.EXPECT().Score(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ models.FeatureBundle) (*models.ScoringResult, error) {
			cancelled, err := s.service.CancelJob(ctx, jobID)
			s.Require().NoError(err)
			s.Equal(models.JobCancelled, cancelled.Status)
			return scoreResult(99), nil
		})
	s.ledger.EXPECT().ApplyVerification(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any()).Times(0)

	job, err := s.service.ProcessVerificationJob(s.ctx(), jobID)
	s.Require().NoError(err)
	s.Equal(models.JobCancelled, job.Status)
	s.Nil(job.Result)

	_, err = s.cache.Get(s.ctx(), companyID, s.now)
	s.Error(err)
	s.Equal(float64(1), s.counterValue("trustex_verification_results_discarded_total", nil))
}

func (s *VerificationServiceSuite) TestCancelJob() {
	s.Run("queued job", func() {
		jobID := s.start(id.NewCompanyID(), models.PriorityLow)
		job, err := s.service.CancelJob(s.ctx(), jobID)
		s.Require().NoError(err)
		s.Equal(models.JobCancelled, job.Status)
		s.NotNil(job.CompletedAt)
	})

	s.Run("terminal job is immutable", func() {
		jobID := s.start(id.NewCompanyID(), models.PriorityLow)
		_, err := s.service.CancelJob(s.ctx(), jobID)
		s.Require().NoError(err)
		_, err = s.service.CancelJob(s.ctx(), jobID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown job", func() {
		_, err := s.service.CancelJob(s.ctx(), id.NewJobID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *VerificationServiceSuite) TestStartVerification() {
	s.Run("active job is reused", func() {
		companyID := id.NewCompanyID()
		first := s.start(companyID, models.PriorityNormal)
		second := s.start(companyID, models.PriorityNormal)
		s.Equal(first, second)
	})

	s.Run("high priority is dispatched immediately", func() {
		jobID := s.start(id.NewCompanyID(), models.PriorityHigh)
		select {
		case dispatched := <-s.service.dispatch:
			s.Equal(jobID, dispatched)
		default:
			s.Fail("expected dispatched job")
		}
	})

	s.Run("normal priority waits for the batch driver", func() {
		s.start(id.NewCompanyID(), models.PriorityNormal)
		s.Len(s.service.dispatch, 0)
	})

	s.Run("unknown priority rejected", func() {
		_, err := s.service.StartVerification(s.ctx(), StartRequest{CompanyID: id.NewCompanyID(), Priority: "urgent", Subject: s.subject()})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("snapshot taken from the ledger", func() {
		companyID := id.NewCompanyID()
		s.ledger.EXPECT().GetCompany(gomock.Any(), companyID).Return(&exmodels.Company{
			ID:          companyID,
			Name:        "Listed Co",
			Symbol:      "LST",
			Description: "Listed here",
			Supply:      100,
		}, nil)
		jobID, err := s.service.StartVerification(s.ctx(), StartRequest{CompanyID: companyID})
		s.Require().NoError(err)
		job, err := s.service.GetJobStatus(s.ctx(), jobID)
		s.Require().NoError(err)
		s.Equal("Listed Co", job.CompanyName)
		s.Equal("LST", job.Subject.Symbol)
		s.Equal(int64(100), job.Subject.Supply)
	})

	s.Run("unlisted company needs a name", func() {
		companyID := id.NewCompanyID()
		s.ledger.EXPECT().GetCompany(gomock.Any(), companyID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "company not found")).Times(2)
		_, err := s.service.StartVerification(s.ctx(), StartRequest{CompanyID: companyID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		jobID, err := s.service.StartVerification(s.ctx(), StartRequest{CompanyID: companyID, CompanyName: "Remote Co"})
		s.Require().NoError(err)
		job, err := s.service.GetJobStatus(s.ctx(), jobID)
		s.Require().NoError(err)
		s.Equal("Remote Co", job.CompanyName)
	})
}

// slowJobStore stretches the active-job lookup the way a database round
// trip would, and can report no active job once to mimic another instance
// inserting between lookup and insert.
type slowJobStore struct {
	*store.InMemoryStore
	delay time.Duration

	mu    sync.Mutex
	stale int
}

func (s *slowJobStore) FindActiveJob(ctx context.Context, companyID id.CompanyID) (*models.Job, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	stale := s.stale > 0
	if stale {
		s.stale--
	}
	s.mu.Unlock()
	if stale {
		return nil, sentinel.ErrNotFound
	}
	return s.InMemoryStore.FindActiveJob(ctx, companyID)
}

func (s *VerificationServiceSuite) serviceOn(jobs JobStore) *Service {
	svc, err := New(jobs, s.store, s.cache, s.scoring, s.legacy, Config{RecheckInterval: 24 * time.Hour},
		WithLedger(s.ledger),
		WithPropagator(s.propagator),
	)
	s.Require().NoError(err)
	return svc
}

func (s *VerificationServiceSuite) TestConcurrentStartsShareOneJob() {
	jobs := &slowJobStore{InMemoryStore: s.store, delay: 2 * time.Millisecond}
	svc := s.serviceOn(jobs)
	companyID := id.NewCompanyID()

	const starts = 8
	ids := make([]id.JobID, starts)
	errs := make([]error, starts)
	var wg sync.WaitGroup
	for i := range starts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], errs[i] = svc.StartVerification(s.ctx(), StartRequest{CompanyID: companyID, Subject: s.subject()})
		}()
	}
	wg.Wait()

	for i := range starts {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}
	created, err := s.store.ListJobsByCompany(s.ctx(), companyID)
	s.Require().NoError(err)
	s.Len(created, 1)
}

func (s *VerificationServiceSuite) TestStartReturnsJobInsertedByAnotherInstance() {
	jobs := &slowJobStore{InMemoryStore: s.store}
	svc := s.serviceOn(jobs)
	companyID := id.NewCompanyID()
	existing := s.start(companyID, models.PriorityNormal)

	jobs.stale = 1
	jobID, err := svc.StartVerification(s.ctx(), StartRequest{CompanyID: companyID, Subject: s.subject()})
	s.Require().NoError(err)
	s.Equal(existing, jobID)
}

func (s *VerificationServiceSuite) TestCallerCancellationDoesNotFailClaimedJob() {
	companyID := id.NewCompanyID()
	jobID := s.start(companyID, models.PriorityNormal)

	ctx, cancel := context.WithCancel(s.ctx())
	defer cancel()
	s.scoring.EXPECT().Score(gomock.Any(), gomock.Any()).
		DoAndReturn(func(callCtx context.Context, _ models.FeatureBundle) (*models.ScoringResult, error) {
			cancel()
			s.NoError(callCtx.Err())
			_, hasDeadline := callCtx.Deadline()
			s.True(hasDeadline)
			return scoreResult(88), nil
		})
	s.expectMirror(companyID, exmodels.VerificationVerified)
	s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any())

	job, err := s.service.ProcessVerificationJob(ctx, jobID)
	s.Require().NoError(err)
	s.Equal(models.JobCompleted, job.Status)
	s.Equal(models.SourceScoring, job.Source)

	stored, err := s.service.GetJobStatus(s.ctx(), jobID)
	s.Require().NoError(err)
	s.Equal(models.JobCompleted, stored.Status)

	profile, err := s.service.GetProfile(s.ctx(), companyID)
	s.Require().NoError(err)
	s.Equal(88, *profile.OverallScore)
}

func (s *VerificationServiceSuite) TestProcessPendingRunsMostUrgentFirst() {
	low := s.start(id.NewCompanyID(), models.PriorityLow)
	normal := s.start(id.NewCompanyID(), models.PriorityNormal)
	high := s.start(id.NewCompanyID(), models.PriorityHigh)
	<-s.service.dispatch

	var order []string
	s.scoring.EXPECT().Score(gomock.Any(), gomock.Any()).Return(scoreResult(80), nil).Times(2)
	s.ledger.EXPECT().ApplyVerification(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, p *models.Profile) { order = append(order, p.CompanyID.String()) }).Times(2)

	res, err := s.service.ProcessPending(s.ctx(), 2)
	s.Require().NoError(err)
	s.Equal(BatchResult{Processed: 2, Completed: 2}, res)

	highJob, err := s.service.GetJobStatus(s.ctx(), high)
	s.Require().NoError(err)
	normalJob, err := s.service.GetJobStatus(s.ctx(), normal)
	s.Require().NoError(err)
	lowJob, err := s.service.GetJobStatus(s.ctx(), low)
	s.Require().NoError(err)

	s.Equal([]string{highJob.CompanyID.String(), normalJob.CompanyID.String()}, order)
	s.Equal(models.JobQueued, lowJob.Status)
}

func (s *VerificationServiceSuite) TestFailedOutcomeIsRecheckedSooner() {
	companyID := id.NewCompanyID()
	jobID := s.start(companyID, models.PriorityNormal)

	s.scoring.EXPECT().Score(gomock.Any(), gomock.Any()).Return(scoreResult(10), nil)
	s.expectMirror(companyID, exmodels.VerificationFailed)
	s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any())

	job, err := s.service.ProcessVerificationJob(s.ctx(), jobID)
	s.Require().NoError(err)
	s.Equal(models.ProfileFailed, job.Result.Status)
	s.Equal(s.now.Add(6*time.Hour), job.Result.NextDueAt)

	due, err := s.service.IsDue(s.ctxAt(s.now.Add(6*time.Hour)), companyID, s.now.Add(6*time.Hour))
	s.Require().NoError(err)
	s.True(due)
	due, err = s.service.IsDue(s.ctx(), companyID, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.False(due)
}

func (s *VerificationServiceSuite) TestGetProfilePendingWhileJobActive() {
	companyID := id.NewCompanyID()
	s.start(companyID, models.PriorityLow)

	profile, err := s.service.GetProfile(s.ctx(), companyID)
	s.Require().NoError(err)
	s.Equal(models.ProfilePending, profile.Status)
	s.Nil(profile.OverallScore)

	_, err = s.service.GetProfile(s.ctx(), id.NewCompanyID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *VerificationServiceSuite) TestOverrideStatus() {
	companyID := id.NewCompanyID()

	s.Run("validation", func() {
		_, err := s.service.OverrideStatus(s.ctx(), companyID, OverrideRequest{Status: models.ProfilePending, Reason: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.OverrideStatus(s.ctx(), companyID, OverrideRequest{Status: models.ProfileVerified})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		bad := 101
		_, err = s.service.OverrideStatus(s.ctx(), companyID, OverrideRequest{Status: models.ProfileVerified, Score: &bad, Reason: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("writes profile, cache, ledger and fans out", func() {
		s.expectMirror(companyID, exmodels.VerificationVerified)
		s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, p *models.Profile) { s.Equal(models.SourceOverride, p.Source) })

		profile, err := s.service.OverrideStatus(s.ctx(), companyID, OverrideRequest{Status: models.ProfileVerified, Reason: "manual review passed"})
		s.Require().NoError(err)
		s.Equal(models.SourceOverride, profile.Source)

		entry, err := s.cache.Get(s.ctx(), companyID, s.now)
		s.Require().NoError(err)
		s.Equal(models.ProfileVerified, entry.Profile.Status)
	})
}

func (s *VerificationServiceSuite) TestAcceptPropagatedDoesNotFanOut() {
	companyID := id.NewCompanyID()
	score := 72
	s.expectMirror(companyID, exmodels.VerificationVerified)
	s.propagator.EXPECT().Propagate(gomock.Any(), gomock.Any()).Times(0)

	err := s.service.AcceptPropagated(s.ctx(), &models.Profile{
		CompanyID:    companyID,
		OverallScore: &score,
		Status:       models.ProfileVerified,
		Source:       models.SourceScoring,
		LastVerified: s.now.Add(-time.Hour),
	})
	s.Require().NoError(err)

	profile, err := s.service.GetProfile(s.ctx(), companyID)
	s.Require().NoError(err)
	s.Equal(models.SourcePropagated, profile.Source)
	s.Equal(s.now.Add(23*time.Hour), profile.NextDueAt)

	err = s.service.AcceptPropagated(s.ctx(), &models.Profile{CompanyID: companyID, Status: "great"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *VerificationServiceSuite) TestPurgeExpiredCache() {
	s.Require().NoError(s.cache.Put(s.ctx(), &models.Profile{CompanyID: id.NewCompanyID()}, s.now.Add(-2*cacheTTL)))
	s.Require().NoError(s.cache.Put(s.ctx(), &models.Profile{CompanyID: id.NewCompanyID()}, s.now))

	removed, err := s.service.PurgeExpiredCache(s.ctx())
	s.Require().NoError(err)
	s.Equal(1, removed)
}

func TestProfileFromScore(t *testing.T) {
	tb := tables.Default()
	subject := models.Subject{CompanyID: id.NewCompanyID(), Name: "Acme"}

	s := 95
	profile := ProfileFromScore(subject, &models.ScoringResult{Score: &s, FraudKeywords: []string{"Rug Pull detected"}}, tb)
	if profile.Status != models.ProfileFailed {
		t.Fatalf("disallowed keyword must force failed, got %s", profile.Status)
	}
	if !strings.Contains(strings.Join(profile.FraudKeywords, ","), "rug pull") {
		t.Fatalf("expected rug pull in fraud keywords, got %v", profile.FraudKeywords)
	}

	s = tb.Thresholds.SuspiciousMin
	profile = ProfileFromScore(subject, &models.ScoringResult{Score: &s}, tb)
	if profile.Status != models.ProfileSuspicious {
		t.Fatalf("expected suspicious at threshold, got %s", profile.Status)
	}
}
