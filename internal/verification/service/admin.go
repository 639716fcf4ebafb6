package service

import (
	"context"
	"errors"
	"strings"

	"trustex/internal/verification/models"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/audit"
	"trustex/pkg/platform/sentinel"
	"trustex/pkg/requestcontext"
)

const maxCancelAttempts = 3

// CancelJob cancels a queued or processing job. A remote call already in
// flight for it is not interrupted; its result is discarded on return.
func (s *Service) CancelJob(ctx context.Context, jobID id.JobID) (*models.Job, error) {
	for range maxCancelAttempts {
		current, err := s.findJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if current.Status.IsTerminal() {
			return nil, dErrors.New(dErrors.CodeConflict, "verification job is already "+string(current.Status))
		}
		job := current.Clone()
		if err := job.Transition(models.JobCancelled, requestcontext.Now(ctx)); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
		}
		err = s.jobs.UpdateJob(ctx, job, current.Status)
		if errors.Is(err, sentinel.ErrInvalidState) {
			// Moved between queued and processing; reload and try again.
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel verification job")
		}
		s.metrics.IncJobFinished(string(models.JobCancelled))
		audit.LogAudit(ctx, s.logger, s.auditor, audit.EventVerificationCancelled,
			"company_id", job.CompanyID.String(),
			"job_id", job.ID.String(),
			"actor", "admin",
			"reason", "cancelled while "+string(current.Status),
		)
		return job, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "verification job changed concurrently")
}

// OverrideRequest is an admin decision replacing the computed outcome.
type OverrideRequest struct {
	Status models.ProfileStatus
	Score  *int
	Reason string
}

// OverrideStatus writes an admin-decided profile, replaces the cached entry,
// mirrors it onto the ledger and fans it out.
func (s *Service) OverrideStatus(ctx context.Context, companyID id.CompanyID, req OverrideRequest) (*models.Profile, error) {
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "company_id is required")
	}
	switch req.Status {
	case models.ProfileVerified, models.ProfileSuspicious, models.ProfileFailed:
	case models.ProfilePending, models.ProfileError:
		return nil, dErrors.New(dErrors.CodeValidation, "override status must be verified, suspicious or failed")
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unknown verification status")
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 100) {
		return nil, dErrors.New(dErrors.CodeValidation, "score must be within 0..100")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}

	now := requestcontext.Now(ctx)
	profile := &models.Profile{
		CompanyID:    companyID,
		OverallScore: req.Score,
		Status:       req.Status,
		Confidence:   1,
		Checks:       []models.Check{{Name: "override", Passed: req.Status == models.ProfileVerified, Detail: reason}},
		Reasons:      []string{reason},
		Source:       models.SourceOverride,
		TableVersion: s.tables.Version,
		LastVerified: now,
		NextDueAt:    s.nextDue(req.Status, now),
	}
	if err := s.store(ctx, profile); err != nil {
		return nil, err
	}

	s.metrics.IncProfileSource(string(models.SourceOverride))
	audit.LogAudit(ctx, s.logger, s.auditor, audit.EventVerificationOverridden,
		"company_id", companyID.String(),
		"decision", string(req.Status),
		"reason", reason,
		"actor", "admin",
	)
	if s.propagator != nil {
		s.propagator.Propagate(ctx, profile.Clone())
	}
	return profile, nil
}

// AcceptPropagated stores a profile pushed by a peer instance. It is not
// fanned out again.
func (s *Service) AcceptPropagated(ctx context.Context, profile *models.Profile) error {
	if profile == nil || profile.CompanyID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "company_id is required")
	}
	if !profile.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown verification status")
	}
	if profile.OverallScore != nil && (*profile.OverallScore < 0 || *profile.OverallScore > 100) {
		return dErrors.New(dErrors.CodeValidation, "score must be within 0..100")
	}
	if profile.LastVerified.IsZero() {
		profile.LastVerified = requestcontext.Now(ctx)
	}
	if profile.NextDueAt.IsZero() {
		profile.NextDueAt = s.nextDue(profile.Status, profile.LastVerified)
	}
	profile.Source = models.SourcePropagated

	if err := s.store(ctx, profile); err != nil {
		return err
	}
	s.metrics.IncProfileSource(string(models.SourcePropagated))
	audit.LogAudit(ctx, s.logger, s.auditor, audit.EventProfileReceived,
		"company_id", profile.CompanyID.String(),
		"decision", string(profile.Status),
	)
	return nil
}

func (s *Service) store(ctx context.Context, profile *models.Profile) error {
	if err := s.profiles.SaveProfile(ctx, profile); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification profile")
	}
	if err := s.cache.Put(ctx, profile, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to cache verification profile")
	}
	if err := s.mirror(ctx, profile); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update company verification")
	}
	return nil
}

// PurgeExpiredCache removes expired cache entries. It is the only sweep;
// reads otherwise expire entries lazily.
func (s *Service) PurgeExpiredCache(ctx context.Context) (int, error) {
	removed, err := s.cache.PurgeExpired(ctx, requestcontext.Now(ctx))
	if err != nil {
		return removed, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge verification cache")
	}
	s.logger.InfoContext(ctx, "verification cache purged", "removed", removed)
	return removed, nil
}
