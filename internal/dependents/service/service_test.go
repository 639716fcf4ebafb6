package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Peer,Verifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trustex/contracts/propagation"
	"trustex/internal/dependents/metrics"
	"trustex/internal/dependents/service/mocks"
	"trustex/internal/dependents/store"
	exmodels "trustex/internal/exchange/models"
	vmodels "trustex/internal/verification/models"
	vservice "trustex/internal/verification/service"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/audit"
	"trustex/pkg/requestcontext"
)

type fakeLedger struct {
	companies []*exmodels.Company
	err       error
}

func (f *fakeLedger) ListCompanies(context.Context) ([]*exmodels.Company, error) {
	return f.companies, f.err
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEmitter) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type DependentsServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	peer     *mocks.MockPeer
	verifier *mocks.MockVerifier
	store    *store.InMemoryStore
	ledger   *fakeLedger
	emitter  *recordingEmitter
	reg      *prometheus.Registry
	service  *Service
	ctx      context.Context
	now      time.Time
}

func TestDependentsServiceSuite(t *testing.T) {
	suite.Run(t, new(DependentsServiceSuite))
}

func (s *DependentsServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.peer = mocks.NewMockPeer(s.ctrl)
	s.verifier = mocks.NewMockVerifier(s.ctrl)
	s.store = store.NewInMemoryStore()
	s.ledger = &fakeLedger{}
	s.emitter = &recordingEmitter{}
	s.reg = prometheus.NewRegistry()
	s.now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	svc, err := New(s.store, s.peer, Config{PropagationTimeout: time.Second, MaxConcurrentPush: 2, Origin: "http://self"},
		WithVerifier(s.verifier),
		WithLedger(s.ledger),
		WithAuditEmitter(s.emitter),
		WithMetrics(metrics.New(s.reg)),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *DependentsServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DependentsServiceSuite) metricValue(name string, labels map[string]string) float64 {
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
			if m.GetGauge() != nil {
				total += m.GetGauge().GetValue()
				continue
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func (s *DependentsServiceSuite) waitPushes() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(s.service.Wait(ctx))
}

func (s *DependentsServiceSuite) TestRegisterIsIdempotent() {
	dep, err := s.service.Register(s.ctx, "HTTP://Peer.local:9000/")
	s.Require().NoError(err)
	s.Equal("http://peer.local:9000", dep.Address)

	_, err = s.service.Register(s.ctx, "http://peer.local:9000")
	s.Require().NoError(err)

	list, err := s.service.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)
	s.Equal([]string{string(audit.EventDependentRegistered)}, s.emitter.actions())
	s.Equal(float64(1), s.metricValue("trustex_dependents_registered", nil))

	_, err = s.service.Register(s.ctx, "peer.local")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *DependentsServiceSuite) TestUnregisterIsIdempotent() {
	_, err := s.service.Register(s.ctx, "http://peer.local")
	s.Require().NoError(err)

	s.Require().NoError(s.service.Unregister(s.ctx, "http://peer.local/"))
	s.Require().NoError(s.service.Unregister(s.ctx, "http://peer.local"))

	list, err := s.service.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)
	s.Equal([]string{string(audit.EventDependentRegistered), string(audit.EventDependentUnregistered)}, s.emitter.actions())
}

func (s *DependentsServiceSuite) TestPropagateFailureIsContained() {
	_, err := s.service.Register(s.ctx, "http://a.local")
	s.Require().NoError(err)
	_, err = s.service.Register(s.ctx, "http://b.local")
	s.Require().NoError(err)

	companyID := id.NewCompanyID()
	score := 81
	s.peer.EXPECT().Push(gomock.Any(), "http://a.local", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, push propagation.ProfilePush) error {
			_, hasDeadline := ctx.Deadline()
			s.True(hasDeadline)
			s.Equal(companyID.String(), push.CompanyID)
			s.Equal("http://self", push.Origin)
			return nil
		})
	s.peer.EXPECT().Push(gomock.Any(), "http://b.local", gomock.Any()).
		Return(errors.New("connection refused"))

	ctx, cancel := context.WithCancel(s.ctx)
	s.service.Propagate(ctx, &vmodels.Profile{CompanyID: companyID, OverallScore: &score, Status: vmodels.ProfileVerified})
	cancel()
	s.waitPushes()

	s.Equal(float64(1), s.metricValue("trustex_dependents_pushes_total", map[string]string{"result": "ok"}))
	s.Equal(float64(1), s.metricValue("trustex_dependents_pushes_total", map[string]string{"result": "failed"}))
}

func (s *DependentsServiceSuite) TestPropagateWithoutDependents() {
	s.peer.EXPECT().Push(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	s.service.Propagate(s.ctx, &vmodels.Profile{CompanyID: id.NewCompanyID(), Status: vmodels.ProfileFailed})
	s.waitPushes()
}

func (s *DependentsServiceSuite) TestScan() {
	due := &exmodels.Company{ID: id.NewCompanyID(), Name: "Due Co", Symbol: "DUE"}
	busy := &exmodels.Company{ID: id.NewCompanyID(), Name: "Busy Co", Symbol: "BSY"}
	fresh := id.NewCompanyID()
	s.ledger.companies = []*exmodels.Company{due, busy}

	_, err := s.service.Register(s.ctx, "http://a.local")
	s.Require().NoError(err)
	_, err = s.service.Register(s.ctx, "http://b.local")
	s.Require().NoError(err)

	s.peer.EXPECT().ListCompanies(gomock.Any(), "http://a.local").Return([]propagation.CompanyListing{
		{ID: due.ID.String(), Name: "Due Co (remote copy)"},
		{ID: fresh.String(), Name: "Fresh Co"},
		{ID: "not-a-uuid", Name: "Broken"},
	}, nil)
	s.peer.EXPECT().ListCompanies(gomock.Any(), "http://b.local").Return(nil, errors.New("timeout"))

	s.verifier.EXPECT().HasActiveJob(gomock.Any(), due.ID).Return(false, nil)
	s.verifier.EXPECT().HasActiveJob(gomock.Any(), busy.ID).Return(true, nil)
	s.verifier.EXPECT().HasActiveJob(gomock.Any(), fresh).Return(false, nil)
	s.verifier.EXPECT().IsDue(gomock.Any(), due.ID, s.now).Return(true, nil)
	s.verifier.EXPECT().IsDue(gomock.Any(), fresh, s.now).Return(false, nil)
	s.verifier.EXPECT().StartVerification(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req vservice.StartRequest) (id.JobID, error) {
			s.Equal(due.ID, req.CompanyID)
			s.Equal(vmodels.PriorityNormal, req.Priority)
			s.Require().NotNil(req.Subject)
			s.Equal("Due Co", req.Subject.Name)
			s.Equal("DUE", req.Subject.Symbol)
			return id.NewJobID(), nil
		})

	res, err := s.service.Scan(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, res.Scanned)
	s.Equal(1, res.Started)
	s.Equal(2, res.Skipped)
	s.Equal(2, res.Errors)
	s.Equal(float64(1), s.metricValue("trustex_dependents_scan_companies_total", map[string]string{"outcome": "started"}))
}

func (s *DependentsServiceSuite) TestScanCountsStartFailures() {
	c := &exmodels.Company{ID: id.NewCompanyID(), Name: "Co"}
	s.ledger.companies = []*exmodels.Company{c}
	s.verifier.EXPECT().HasActiveJob(gomock.Any(), c.ID).Return(false, nil)
	s.verifier.EXPECT().IsDue(gomock.Any(), c.ID, s.now).Return(true, nil)
	s.verifier.EXPECT().StartVerification(gomock.Any(), gomock.Any()).
		Return(id.JobID{}, dErrors.New(dErrors.CodeInternal, "store down"))

	res, err := s.service.Scan(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Scanned)
	s.Equal(1, res.Errors)
}

func (s *DependentsServiceSuite) TestApplyPush() {
	companyID := id.NewCompanyID()
	score := 64
	verified := s.now.Add(-time.Hour)
	s.verifier.EXPECT().AcceptPropagated(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *vmodels.Profile) error {
			s.Equal(companyID, p.CompanyID)
			s.Equal(vmodels.ProfileSuspicious, p.Status)
			s.Equal(64, *p.OverallScore)
			s.Equal(verified, p.LastVerified)
			s.Require().Len(p.Checks, 1)
			return nil
		})

	err := s.service.ApplyPush(s.ctx, propagation.ProfilePush{
		CompanyID:    companyID.String(),
		OverallScore: &score,
		Status:       "suspicious",
		Checks:       []propagation.Check{{Name: "scoring", Score: 64}},
		LastVerified: verified,
	})
	s.Require().NoError(err)

	err = s.service.ApplyPush(s.ctx, propagation.ProfilePush{CompanyID: "bogus", Status: "verified"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestPushRoundTripKeepsProfile(t *testing.T) {
	score := 90
	p := &vmodels.Profile{
		CompanyID:     id.NewCompanyID(),
		OverallScore:  &score,
		Status:        vmodels.ProfileVerified,
		Confidence:    0.9,
		Checks:        []vmodels.Check{{Name: "scoring", Passed: true, Score: 90, Detail: "ok"}},
		Reasons:       []string{"registered"},
		FraudKeywords: []string{},
		Source:        vmodels.SourceScoring,
		TableVersion:  "2024.1",
		LastVerified:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		NextDueAt:     time.Date(2026, 1, 9, 3, 4, 5, 0, time.UTC),
	}
	back, err := FromPush(ToPush(p, "http://self"))
	if err != nil {
		t.Fatal(err)
	}
	if back.CompanyID != p.CompanyID || *back.OverallScore != 90 || back.Status != p.Status || back.Checks[0] != p.Checks[0] || !back.NextDueAt.Equal(p.NextDueAt) {
		t.Fatalf("profile changed across the wire: %+v", back)
	}
}
