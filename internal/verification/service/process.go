package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	exmodels "trustex/internal/exchange/models"
	"trustex/internal/verification/features"
	"trustex/internal/verification/models"
	"trustex/internal/verification/providers"
	"trustex/internal/verification/tables"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/audit"
	"trustex/pkg/platform/sentinel"
	platformstrings "trustex/pkg/platform/strings"
	"trustex/pkg/requestcontext"
)

// ProcessVerificationJob runs one queued job to a terminal state and returns
// it. A job that exhausts both paths ends failed with its message kept; that
// is reported through the job, not the error. Failed jobs are never retried
// here.
func (s *Service) ProcessVerificationJob(ctx context.Context, jobID id.JobID) (*models.Job, error) {
	ctx, span := s.tracer.Start(ctx, "verification.ProcessJob", trace.WithAttributes(
		attribute.String("job.id", jobID.String()),
	))
	defer span.End()

	queued, err := s.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if queued.Status != models.JobQueued {
		return nil, dErrors.New(dErrors.CodeConflict, "verification job is "+string(queued.Status))
	}

	start := time.Now()
	job := queued.Clone()
	if err := job.Transition(models.JobProcessing, requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
	}
	if err := s.jobs.UpdateJob(ctx, job, models.JobQueued); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeConflict, "verification job was taken or cancelled")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start verification job")
	}
	span.SetAttributes(attribute.String("company.id", job.CompanyID.String()))
	defer s.metrics.ObserveJobDuration(start)

	// Once claimed, the job runs to a terminal state even if the caller goes
	// away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.JobTimeout)
	defer cancel()

	profile, fromCache, runErr := s.resolve(ctx, job)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "verification failed")
	}

	// The job may have been cancelled while a remote call was in flight.
	current, err := s.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.JobProcessing {
		s.metrics.IncResultDiscarded()
		s.logger.InfoContext(ctx, "verification result discarded",
			"job_id", jobID.String(),
			"company_id", job.CompanyID.String(),
			"status", string(current.Status),
		)
		return current, nil
	}

	if runErr != nil {
		return s.fail(ctx, job, runErr)
	}
	if !fromCache {
		if err := s.persist(ctx, job, profile); err != nil {
			return s.fail(ctx, job, err)
		}
	}
	return s.complete(ctx, job, profile, fromCache)
}

// resolve runs the cache → primary → fallback chain.
func (s *Service) resolve(ctx context.Context, job *models.Job) (*models.Profile, bool, error) {
	now := requestcontext.Now(ctx)
	if !job.ForceRefresh {
		if profile := s.cached(ctx, job.CompanyID, now); profile != nil {
			return profile, true, nil
		}
	}

	bundle := features.Build(job.Subject, s.tables, now)
	result, scoreErr := s.scoring.Score(ctx, bundle)
	if scoreErr == nil {
		return ProfileFromScore(job.Subject, result, s.tables), false, nil
	}
	s.metrics.IncProviderFailure("scoring", string(providers.GetCategory(scoreErr)))
	s.logger.WarnContext(ctx, "scoring provider failed, falling back to legacy search",
		"job_id", job.ID.String(),
		"company_id", job.CompanyID.String(),
		"category", string(providers.GetCategory(scoreErr)),
		"error", scoreErr,
	)

	profile, legacyErr := s.legacy.Verify(ctx, job.Subject)
	if legacyErr == nil {
		return profile, false, nil
	}
	s.metrics.IncProviderFailure("legacy", string(providers.GetCategory(legacyErr)))
	return nil, false, fmt.Errorf("%w: scoring: %v; legacy: %v", providers.ErrAllProvidersFailed, scoreErr, legacyErr)
}

func (s *Service) cached(ctx context.Context, companyID id.CompanyID, now time.Time) *models.Profile {
	entry, err := s.cache.Get(ctx, companyID, now)
	switch {
	case err == nil:
		s.metrics.IncCacheLookup("hit")
		return entry.Profile.Clone()
	case errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncCacheLookup("miss")
	case errors.Is(err, sentinel.ErrExpired):
		s.metrics.IncCacheLookup("expired")
	default:
		s.metrics.IncCacheLookup("error")
		s.logger.WarnContext(ctx, "verification cache lookup failed", "company_id", companyID.String(), "error", err)
	}
	return nil
}

// persist stamps the profile and writes it to the profile store, the cache
// and the ledger. A cache entry written after this job started is newer
// than this result and is left in place.
func (s *Service) persist(ctx context.Context, job *models.Job, profile *models.Profile) error {
	now := requestcontext.Now(ctx)
	profile.CompanyID = job.CompanyID
	profile.LastVerified = now
	profile.NextDueAt = s.nextDue(profile.Status, now)
	if profile.TableVersion == "" {
		profile.TableVersion = s.tables.Version
	}

	if err := s.profiles.SaveProfile(ctx, profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	newer := false
	if job.StartedAt != nil {
		if entry, err := s.cache.Get(ctx, job.CompanyID, now); err == nil && entry.CachedAt.After(*job.StartedAt) {
			newer = true
		}
	}
	if !newer {
		if err := s.cache.Put(ctx, profile, now); err != nil {
			return fmt.Errorf("cache profile: %w", err)
		}
	}
	return s.mirror(ctx, profile)
}

// mirror copies the outcome onto the local company, if it is listed here.
func (s *Service) mirror(ctx context.Context, profile *models.Profile) error {
	if s.ledger == nil {
		return nil
	}
	err := s.ledger.ApplyVerification(ctx, profile.CompanyID, exmodels.VerificationUpdate{
		Status:     exmodels.VerificationStatus(profile.Status),
		Score:      profile.OverallScore,
		VerifiedAt: profile.LastVerified,
	})
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return fmt.Errorf("update ledger: %w", err)
	}
	return nil
}

func (s *Service) complete(ctx context.Context, job *models.Job, profile *models.Profile, fromCache bool) (*models.Job, error) {
	if err := job.Complete(profile, requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete verification job")
	}
	// The cached profile is returned as stored; the hit is recorded on the job.
	if fromCache {
		job.Source = models.SourceCache
	}
	if err := s.jobs.UpdateJob(ctx, job, models.JobProcessing); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			s.metrics.IncResultDiscarded()
			return s.findJob(ctx, job.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete verification job")
	}

	s.metrics.IncJobFinished(string(models.JobCompleted))
	s.metrics.IncProfileSource(string(job.Source))
	audit.LogAudit(ctx, s.logger, s.auditor, audit.EventVerificationCompleted,
		"company_id", job.CompanyID.String(),
		"job_id", job.ID.String(),
		"decision", string(profile.Status),
		"reason", string(profile.Source),
	)
	if !fromCache && s.propagator != nil {
		s.propagator.Propagate(ctx, profile.Clone())
	}
	return job, nil
}

func (s *Service) fail(ctx context.Context, job *models.Job, cause error) (*models.Job, error) {
	if err := job.Fail(cause.Error(), requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark verification job failed")
	}
	if err := s.jobs.UpdateJob(ctx, job, models.JobProcessing); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			s.metrics.IncResultDiscarded()
			return s.findJob(ctx, job.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark verification job failed")
	}
	s.metrics.IncJobFinished(string(models.JobFailed))
	audit.LogAudit(ctx, s.logger, s.auditor, audit.EventVerificationFailed,
		"company_id", job.CompanyID.String(),
		"job_id", job.ID.String(),
		"reason", cause.Error(),
	)
	return job, nil
}

// ProfileFromScore maps a scoring provider response onto a profile using the
// calibration thresholds. The provider's own status label is kept as a
// check detail only.
func ProfileFromScore(subject models.Subject, res *models.ScoringResult, t *tables.Tables) *models.Profile {
	score := tables.ClampScore(*res.Score)
	disallowed := t.MatchDisallowed(append(append([]string{}, res.FraudKeywords...), subject.Name, subject.Description)...)
	status := models.ProfileStatus(t.Classify(score, len(disallowed) > 0))
	return &models.Profile{
		CompanyID:    subject.CompanyID,
		OverallScore: &score,
		Status:       status,
		Confidence:   res.Confidence,
		Checks: []models.Check{{
			Name:   "scoring",
			Passed: status == models.ProfileVerified,
			Score:  score,
			Detail: res.Status,
		}},
		Reasons:       platformstrings.DedupeAndTrim(res.Reasons),
		RiskFactors:   platformstrings.DedupeAndTrim(res.RiskFactors),
		FraudKeywords: platformstrings.DedupeAndTrimLower(append(res.FraudKeywords, disallowed...)),
		Source:        models.SourceScoring,
		TableVersion:  t.Version,
	}
}
