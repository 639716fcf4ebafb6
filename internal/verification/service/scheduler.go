package service

import (
	"context"
	"time"

	"trustex/internal/verification/models"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
)

// BatchResult summarizes one ProcessPending pass.
type BatchResult struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ProcessPending runs up to limit queued jobs, most urgent and oldest first,
// one at a time.
func (s *Service) ProcessPending(ctx context.Context, limit int) (BatchResult, error) {
	if limit <= 0 {
		limit = s.cfg.BatchSize
	}
	queued, err := s.jobs.ListQueued(ctx, limit)
	if err != nil {
		return BatchResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list queued jobs")
	}
	var res BatchResult
	for _, q := range queued {
		if ctx.Err() != nil {
			break
		}
		job, err := s.ProcessVerificationJob(ctx, q.ID)
		if err != nil {
			// Another worker or an admin got there first.
			res.Skipped++
			if !dErrors.HasCode(err, dErrors.CodeConflict) {
				s.logger.ErrorContext(ctx, "verification job processing failed", "job_id", q.ID.String(), "error", err)
			}
			continue
		}
		res.Processed++
		switch job.Status {
		case models.JobCompleted:
			res.Completed++
		case models.JobFailed:
			res.Failed++
		case models.JobCancelled, models.JobQueued, models.JobProcessing:
			res.Skipped++
		}
	}
	return res, nil
}

// Run drives the scheduler until ctx is done: high-priority jobs as soon as
// they are dispatched, everything else on the batch interval.
func (s *Service) Run(ctx context.Context) {
	interval := s.cfg.BatchInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "verification scheduler started", "batch_interval", interval.String(), "batch_size", s.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("verification scheduler stopped")
			return
		case jobID := <-s.dispatch:
			s.runDispatched(ctx, jobID)
		case <-ticker.C:
			res, err := s.ProcessPending(ctx, s.cfg.BatchSize)
			if err != nil {
				s.logger.ErrorContext(ctx, "verification batch failed", "error", err)
				continue
			}
			if res.Processed > 0 || res.Skipped > 0 {
				s.logger.InfoContext(ctx, "verification batch processed",
					"processed", res.Processed,
					"completed", res.Completed,
					"failed", res.Failed,
					"skipped", res.Skipped,
				)
			}
		}
	}
}

func (s *Service) runDispatched(ctx context.Context, jobID id.JobID) {
	if _, err := s.ProcessVerificationJob(ctx, jobID); err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
		s.logger.ErrorContext(ctx, "dispatched verification job failed", "job_id", jobID.String(), "error", err)
	}
}
