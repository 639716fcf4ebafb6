// Package service keeps the set of dependent ledger instances, fans completed
// verification profiles out to them and scans them for companies that are
// due for verification.
//
// Pushes are fire-and-forget: Propagate returns immediately and a failed
// push is logged and counted, never reported to the originating job.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"trustex/contracts/propagation"
	"trustex/internal/dependents/metrics"
	"trustex/internal/dependents/models"
	exmodels "trustex/internal/exchange/models"
	vmodels "trustex/internal/verification/models"
	vservice "trustex/internal/verification/service"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/audit"
	"trustex/pkg/requestcontext"
)

type Store interface {
	Add(ctx context.Context, address string, at time.Time) (bool, error)
	Remove(ctx context.Context, address string) (bool, error)
	List(ctx context.Context) ([]models.Dependent, error)
}

// Peer is the outbound surface of a dependent instance.
type Peer interface {
	Push(ctx context.Context, address string, push propagation.ProfilePush) error
	ListCompanies(ctx context.Context, address string) ([]propagation.CompanyListing, error)
}

// Verifier is the slice of the verification scheduler used here.
type Verifier interface {
	StartVerification(ctx context.Context, req vservice.StartRequest) (id.JobID, error)
	HasActiveJob(ctx context.Context, companyID id.CompanyID) (bool, error)
	IsDue(ctx context.Context, companyID id.CompanyID, now time.Time) (bool, error)
	AcceptPropagated(ctx context.Context, profile *vmodels.Profile) error
}

// Ledger lists the companies hosted locally.
type Ledger interface {
	ListCompanies(ctx context.Context) ([]*exmodels.Company, error)
}

type Config struct {
	PropagationTimeout time.Duration
	MaxConcurrentPush  int
	// Origin identifies this instance in outgoing pushes.
	Origin string
}

type Service struct {
	store    Store
	peer     Peer
	verifier Verifier
	ledger   Ledger
	cfg      Config
	inflight sync.WaitGroup
	logger   *slog.Logger
	auditor  audit.Emitter
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditEmitter(e audit.Emitter) Option {
	return func(s *Service) {
		s.auditor = e
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLedger adds local companies to scans.
func WithLedger(l Ledger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

// WithVerifier enables scans and inbound pushes. It is an option rather than
// a constructor argument because the verification scheduler itself takes
// this service as its propagator.
func WithVerifier(v Verifier) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

func New(store Store, peer Peer, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("dependent store is required")
	}
	if peer == nil {
		return nil, errors.New("peer client is required")
	}
	if cfg.PropagationTimeout <= 0 {
		cfg.PropagationTimeout = 5 * time.Second
	}
	if cfg.MaxConcurrentPush <= 0 {
		cfg.MaxConcurrentPush = 8
	}
	s := &Service{store: store, peer: peer, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// SetVerifier completes wiring once the scheduler exists.
func (s *Service) SetVerifier(v Verifier) {
	s.verifier = v
}

// Register adds address to the dependent set. Registering a known address
// is not an error.
func (s *Service) Register(ctx context.Context, address string) (*models.Dependent, error) {
	normalized, err := models.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	added, err := s.store.Add(ctx, normalized, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register dependent")
	}
	if added {
		audit.LogAudit(ctx, s.logger, s.auditor, audit.EventDependentRegistered,
			"counterparty", normalized,
			"actor", "admin",
		)
	}
	s.refreshGauge(ctx)
	return &models.Dependent{Address: normalized, RegisteredAt: now}, nil
}

// Unregister removes address. Removing an unknown address is not an error.
func (s *Service) Unregister(ctx context.Context, address string) error {
	normalized, err := models.NormalizeAddress(address)
	if err != nil {
		return err
	}
	removed, err := s.store.Remove(ctx, normalized)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unregister dependent")
	}
	if removed {
		audit.LogAudit(ctx, s.logger, s.auditor, audit.EventDependentUnregistered,
			"counterparty", normalized,
			"actor", "admin",
		)
	}
	s.refreshGauge(ctx)
	return nil
}

func (s *Service) List(ctx context.Context) ([]models.Dependent, error) {
	deps, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list dependents")
	}
	return deps, nil
}

func (s *Service) refreshGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if deps, err := s.store.List(ctx); err == nil {
		s.metrics.SetDependents(len(deps))
	}
}

// Propagate pushes profile to every dependent in the background and returns
// at once. Each push gets its own timeout and is detached from ctx's
// cancellation.
func (s *Service) Propagate(ctx context.Context, profile *vmodels.Profile) {
	if profile == nil {
		return
	}
	deps, err := s.store.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "propagation skipped, dependents unavailable",
			"company_id", profile.CompanyID.String(),
			"error", err,
		)
		return
	}
	if len(deps) == 0 {
		return
	}
	push := ToPush(profile, s.cfg.Origin)
	base := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		var g errgroup.Group
		g.SetLimit(s.cfg.MaxConcurrentPush)
		for _, dep := range deps {
			g.Go(func() error {
				s.pushOne(base, dep.Address, push)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (s *Service) pushOne(ctx context.Context, address string, push propagation.ProfilePush) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PropagationTimeout)
	defer cancel()
	if err := s.peer.Push(ctx, address, push); err != nil {
		s.metrics.IncPush("failed")
		s.logger.WarnContext(ctx, "profile push failed",
			"dependent", address,
			"company_id", push.CompanyID,
			"error", err,
		)
		return
	}
	s.metrics.IncPush("ok")
	s.logger.DebugContext(ctx, "profile pushed", "dependent", address, "company_id", push.CompanyID)
}

// Wait blocks until in-flight pushes finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplyPush stores a profile pushed by a peer instance.
func (s *Service) ApplyPush(ctx context.Context, push propagation.ProfilePush) error {
	if s.verifier == nil {
		return dErrors.New(dErrors.CodeUnavailable, "inbound profiles are not accepted here")
	}
	profile, err := FromPush(push)
	if err != nil {
		return err
	}
	return s.verifier.AcceptPropagated(ctx, profile)
}

// ToPush converts a profile to its wire form.
func ToPush(p *vmodels.Profile, origin string) propagation.ProfilePush {
	checks := make([]propagation.Check, 0, len(p.Checks))
	for _, c := range p.Checks {
		checks = append(checks, propagation.Check{Name: c.Name, Passed: c.Passed, Score: c.Score, Detail: c.Detail})
	}
	return propagation.ProfilePush{
		CompanyID:     p.CompanyID.String(),
		OverallScore:  p.OverallScore,
		Status:        string(p.Status),
		Confidence:    p.Confidence,
		Checks:        checks,
		Reasons:       p.Reasons,
		RiskFactors:   p.RiskFactors,
		FraudKeywords: p.FraudKeywords,
		Source:        string(p.Source),
		TableVersion:  p.TableVersion,
		LastVerified:  p.LastVerified,
		NextDueAt:     p.NextDueAt,
		Origin:        origin,
	}
}

// FromPush converts a pushed profile back into the domain form.
func FromPush(push propagation.ProfilePush) (*vmodels.Profile, error) {
	companyID, err := id.ParseCompanyID(push.CompanyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid company_id")
	}
	checks := make([]vmodels.Check, 0, len(push.Checks))
	for _, c := range push.Checks {
		checks = append(checks, vmodels.Check{Name: c.Name, Passed: c.Passed, Score: c.Score, Detail: c.Detail})
	}
	return &vmodels.Profile{
		CompanyID:     companyID,
		OverallScore:  push.OverallScore,
		Status:        vmodels.ProfileStatus(push.Status),
		Confidence:    push.Confidence,
		Checks:        checks,
		Reasons:       push.Reasons,
		RiskFactors:   push.RiskFactors,
		FraudKeywords: push.FraudKeywords,
		Source:        vmodels.Source(push.Source),
		TableVersion:  push.TableVersion,
		LastVerified:  push.LastVerified,
		NextDueAt:     push.NextDueAt,
	}, nil
}
