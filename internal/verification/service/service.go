// Package service schedules and executes verification jobs.
//
// A job runs cache → scoring provider → legacy search → persist. The only
// suspension points are the outbound calls; after them the job is reloaded
// and a job cancelled in the meantime has its result discarded. Store
// updates of a job are compare-and-set on its previous status.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	exmodels "trustex/internal/exchange/models"
	"trustex/internal/verification/metrics"
	"trustex/internal/verification/models"
	"trustex/internal/verification/tables"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/audit"
	"trustex/pkg/platform/sentinel"
	"trustex/pkg/requestcontext"
)

type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	FindJob(ctx context.Context, jobID id.JobID) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job, expected models.JobStatus) error
	ListJobsByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Job, error)
	ListQueued(ctx context.Context, limit int) ([]*models.Job, error)
	FindActiveJob(ctx context.Context, companyID id.CompanyID) (*models.Job, error)
}

type ProfileStore interface {
	SaveProfile(ctx context.Context, profile *models.Profile) error
	FindProfile(ctx context.Context, companyID id.CompanyID) (*models.Profile, error)
}

type Cache interface {
	Get(ctx context.Context, companyID id.CompanyID, now time.Time) (*models.CachedVerification, error)
	Put(ctx context.Context, profile *models.Profile, now time.Time) error
	Invalidate(ctx context.Context, companyID id.CompanyID) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// ScoringProvider is the primary path.
type ScoringProvider interface {
	Score(ctx context.Context, bundle models.FeatureBundle) (*models.ScoringResult, error)
}

// LegacyVerifier is the fallback path.
type LegacyVerifier interface {
	Verify(ctx context.Context, subject models.Subject) (*models.Profile, error)
}

// Ledger is the company registry the profiles are mirrored onto.
type Ledger interface {
	GetCompany(ctx context.Context, companyID id.CompanyID) (*exmodels.Company, error)
	ApplyVerification(ctx context.Context, companyID id.CompanyID, update exmodels.VerificationUpdate) error
}

// Propagator fans completed profiles out to dependents. It must not block
// on remote calls.
type Propagator interface {
	Propagate(ctx context.Context, profile *models.Profile)
}

type Config struct {
	RecheckInterval time.Duration
	BatchInterval   time.Duration
	BatchSize       int
	// JobTimeout bounds a claimed job's remote calls and writes.
	JobTimeout time.Duration
}

const (
	dispatchBuffer    = 64
	defaultJobTimeout = 2 * time.Minute
)

type Service struct {
	jobs       JobStore
	profiles   ProfileStore
	cache      Cache
	scoring    ScoringProvider
	legacy     LegacyVerifier
	ledger     Ledger
	propagator Propagator
	tables     *tables.Tables
	cfg        Config
	dispatch   chan id.JobID
	starts     sync.Map // company id -> *sync.Mutex
	logger     *slog.Logger
	auditor    audit.Emitter
	metrics    *metrics.Metrics
	tracer     trace.Tracer
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

// WithLedger mirrors profile outcomes onto local companies and lets jobs
// snapshot local company data.
func WithLedger(l Ledger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

func WithPropagator(p Propagator) Option {
	return func(s *Service) {
		s.propagator = p
	}
}

func WithTables(t *tables.Tables) Option {
	return func(s *Service) {
		if t != nil {
			s.tables = t
		}
	}
}

func New(jobs JobStore, profiles ProfileStore, cache Cache, scoring ScoringProvider, legacy LegacyVerifier, cfg Config, opts ...Option) (*Service, error) {
	if jobs == nil {
		return nil, errors.New("job store is required")
	}
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if cache == nil {
		return nil, errors.New("verification cache is required")
	}
	if scoring == nil {
		return nil, errors.New("scoring provider is required")
	}
	if legacy == nil {
		return nil, errors.New("legacy verifier is required")
	}
	if cfg.RecheckInterval <= 0 {
		return nil, errors.New("recheck interval must be positive")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}
	s := &Service{
		jobs:     jobs,
		profiles: profiles,
		cache:    cache,
		scoring:  scoring,
		legacy:   legacy,
		cfg:      cfg,
		dispatch: make(chan id.JobID, dispatchBuffer),
		tracer:   otel.Tracer("trustex/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.tables == nil {
		s.tables = tables.Default()
	}
	return s, nil
}

// StartRequest asks for a company to be verified. Subject overrides the
// snapshot otherwise taken from the local ledger.
type StartRequest struct {
	CompanyID    id.CompanyID
	CompanyName  string
	Priority     models.Priority
	ForceRefresh bool
	Subject      *models.Subject
}

// StartVerification queues a job and returns its id. When the company
// already has a queued or processing job that job's id is returned instead.
// High-priority jobs are handed to the dispatcher immediately.
func (s *Service) StartVerification(ctx context.Context, req StartRequest) (id.JobID, error) {
	if req.CompanyID.IsNil() {
		return id.JobID{}, dErrors.New(dErrors.CodeValidation, "company_id is required")
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	if req.Priority.Rank() == 0 {
		return id.JobID{}, dErrors.New(dErrors.CodeValidation, "priority must be low, normal or high")
	}

	unlock := s.lockStart(req.CompanyID)
	defer unlock()

	active, err := s.jobs.FindActiveJob(ctx, req.CompanyID)
	switch {
	case err == nil:
		return s.alreadyActive(ctx, active), nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return id.JobID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active jobs")
	}

	subject, err := s.subjectFor(ctx, req)
	if err != nil {
		return id.JobID{}, err
	}
	now := requestcontext.Now(ctx)
	job, err := models.NewJob(id.NewJobID(), subject, req.Priority, req.ForceRefresh, now)
	if err != nil {
		return id.JobID{}, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if req.ForceRefresh {
		if err := s.cache.Invalidate(ctx, req.CompanyID); err != nil {
			return id.JobID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to invalidate cached verification")
		}
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		// Another instance claimed the company between our check and insert.
		if errors.Is(err, sentinel.ErrConflict) {
			if active, findErr := s.jobs.FindActiveJob(ctx, req.CompanyID); findErr == nil {
				return s.alreadyActive(ctx, active), nil
			}
		}
		return id.JobID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification job")
	}

	s.metrics.IncJobStarted(string(job.Priority))
	audit.LogAudit(ctx, s.logger, s.auditor, audit.EventVerificationStarted,
		"company_id", job.CompanyID.String(),
		"job_id", job.ID.String(),
		"priority", string(job.Priority),
	)
	if job.Priority == models.PriorityHigh {
		select {
		case s.dispatch <- job.ID:
		default:
			s.logger.WarnContext(ctx, "dispatch queue full, job left for batch driver", "job_id", job.ID.String())
		}
	}
	return job.ID, nil
}

// lockStart serializes starts for one company within this instance. Across
// instances the active-job unique index does the same.
func (s *Service) lockStart(companyID id.CompanyID) func() {
	v, _ := s.starts.LoadOrStore(companyID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) alreadyActive(ctx context.Context, active *models.Job) id.JobID {
	s.logger.InfoContext(ctx, "verification already in progress",
		"company_id", active.CompanyID.String(),
		"job_id", active.ID.String(),
	)
	return active.ID
}

func (s *Service) subjectFor(ctx context.Context, req StartRequest) (models.Subject, error) {
	if req.Subject != nil {
		subject := *req.Subject
		subject.CompanyID = req.CompanyID
		if strings.TrimSpace(subject.Name) == "" {
			subject.Name = req.CompanyName
		}
		return subject, nil
	}
	if s.ledger != nil {
		company, err := s.ledger.GetCompany(ctx, req.CompanyID)
		switch {
		case err == nil:
			subject := SubjectFromCompany(company)
			if name := strings.TrimSpace(req.CompanyName); name != "" {
				subject.Name = name
			}
			return subject, nil
		case !dErrors.HasCode(err, dErrors.CodeNotFound):
			return models.Subject{}, err
		}
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		return models.Subject{}, dErrors.New(dErrors.CodeValidation, "company_name is required for companies not listed here")
	}
	return models.Subject{CompanyID: req.CompanyID, Name: req.CompanyName}, nil
}

// SubjectFromCompany snapshots the locally known company data.
func SubjectFromCompany(c *exmodels.Company) models.Subject {
	return models.Subject{
		CompanyID:        c.ID,
		Name:             c.Name,
		Symbol:           c.Symbol.String(),
		Description:      c.Description,
		Industry:         c.Industry,
		Website:          c.Website,
		RegistrationYear: c.RegistrationYear,
		Valuation:        c.Valuation,
		Supply:           c.Supply,
		ListedAt:         c.CreatedAt,
	}
}

// GetProfile returns the stored profile. A company with an active job and
// no stored profile gets a synthetic pending profile.
func (s *Service) GetProfile(ctx context.Context, companyID id.CompanyID) (*models.Profile, error) {
	profile, err := s.profiles.FindProfile(ctx, companyID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification profile")
	}
	if _, err := s.jobs.FindActiveJob(ctx, companyID); err == nil {
		return models.PendingProfile(companyID), nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "verification profile not found")
}

func (s *Service) GetJobStatus(ctx context.Context, jobID id.JobID) (*models.Job, error) {
	return s.findJob(ctx, jobID)
}

func (s *Service) ListJobs(ctx context.Context, companyID id.CompanyID) ([]*models.Job, error) {
	jobs, err := s.jobs.ListJobsByCompany(ctx, companyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification jobs")
	}
	return jobs, nil
}

// HasActiveJob reports whether the company has a queued or processing job.
func (s *Service) HasActiveJob(ctx context.Context, companyID id.CompanyID) (bool, error) {
	_, err := s.jobs.FindActiveJob(ctx, companyID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return false, nil
	default:
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active jobs")
	}
}

// IsDue reports whether the company has no profile or its profile is past
// its next due time.
func (s *Service) IsDue(ctx context.Context, companyID id.CompanyID, now time.Time) (bool, error) {
	profile, err := s.profiles.FindProfile(ctx, companyID)
	switch {
	case err == nil:
		return profile.IsDue(now), nil
	case errors.Is(err, sentinel.ErrNotFound):
		return true, nil
	default:
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification profile")
	}
}

func (s *Service) findJob(ctx context.Context, jobID id.JobID) (*models.Job, error) {
	job, err := s.jobs.FindJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification job not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification job")
	}
	return job, nil
}

// nextDue schedules the next recheck. Failed and error outcomes are
// revisited at a quarter of the interval.
func (s *Service) nextDue(status models.ProfileStatus, verifiedAt time.Time) time.Time {
	if status.NeedsEarlyRecheck() {
		return verifiedAt.Add(s.cfg.RecheckInterval / 4)
	}
	return verifiedAt.Add(s.cfg.RecheckInterval)
}
