package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"trustex/internal/platform/postgres"
	"trustex/internal/verification/models"
	id "trustex/pkg/domain"
	"trustex/pkg/platform/sentinel"
)

// PostgresStore persists jobs and profiles through pgx.
type PostgresStore struct {
	pool *postgres.Pool
}

func NewPostgres(pool *postgres.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const jobColumns = `id, company_id, company_name, priority, status, force_refresh, subject, result,
	source, error, created_at, started_at, completed_at`

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	subject, result, err := encodeJob(job)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO verification_jobs (id, company_id, company_name, priority, priority_rank, status,
			force_refresh, subject, result, source, error, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.UUID(job.ID), uuid.UUID(job.CompanyID), job.CompanyName, string(job.Priority), job.Priority.Rank(),
		string(job.Status), job.ForceRefresh, subject, result, string(job.Source), job.Error,
		job.CreatedAt, job.StartedAt, job.CompletedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification job: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindJob(ctx context.Context, jobID id.JobID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM verification_jobs WHERE id = $1`, uuid.UUID(jobID))
	job, err := scanJob(row)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification job: %w", err)
	}
	return job, nil
}

// UpdateJob is a compare-and-set on the stored status.
func (s *PostgresStore) UpdateJob(ctx context.Context, job *models.Job, expected models.JobStatus) error {
	subject, result, err := encodeJob(job)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE verification_jobs
		SET status = $2, subject = $3, result = $4, source = $5, error = $6,
			started_at = $7, completed_at = $8
		WHERE id = $1 AND status = $9`,
		uuid.UUID(job.ID), string(job.Status), subject, result, string(job.Source), job.Error,
		job.StartedAt, job.CompletedAt, string(expected))
	if err != nil {
		return fmt.Errorf("update verification job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM verification_jobs WHERE id = $1)`,
		uuid.UUID(job.ID)).Scan(&exists); err != nil {
		return fmt.Errorf("check verification job: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) ListJobsByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM verification_jobs
		WHERE company_id = $1 ORDER BY created_at DESC`, uuid.UUID(companyID))
	if err != nil {
		return nil, fmt.Errorf("list verification jobs: %w", err)
	}
	return collectJobs(rows)
}

func (s *PostgresStore) ListQueued(ctx context.Context, limit int) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM verification_jobs
		WHERE status = 'queued' ORDER BY priority_rank DESC, created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued verification jobs: %w", err)
	}
	return collectJobs(rows)
}

func (s *PostgresStore) FindActiveJob(ctx context.Context, companyID id.CompanyID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM verification_jobs
		WHERE company_id = $1 AND status IN ('queued', 'processing')
		ORDER BY created_at ASC LIMIT 1`, uuid.UUID(companyID))
	job, err := scanJob(row)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active verification job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, profile *models.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal verification profile: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO verification_profiles (company_id, status, profile, last_verified, next_due_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id) DO UPDATE SET
			status = EXCLUDED.status,
			profile = EXCLUDED.profile,
			last_verified = EXCLUDED.last_verified,
			next_due_at = EXCLUDED.next_due_at`,
		uuid.UUID(profile.CompanyID), string(profile.Status), raw, profile.LastVerified, profile.NextDueAt)
	if err != nil {
		return fmt.Errorf("save verification profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindProfile(ctx context.Context, companyID id.CompanyID) (*models.Profile, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT profile FROM verification_profiles WHERE company_id = $1`,
		uuid.UUID(companyID)).Scan(&raw)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification profile: %w", err)
	}
	var profile models.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decode verification profile: %w", err)
	}
	return &profile, nil
}

func encodeJob(job *models.Job) (subject, result []byte, err error) {
	subject, err = json.Marshal(job.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal job subject: %w", err)
	}
	if job.Result != nil {
		result, err = json.Marshal(job.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal job result: %w", err)
		}
	}
	return subject, result, nil
}

func collectJobs(rows pgx.Rows) ([]*models.Job, error) {
	defer rows.Close()
	var out []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification jobs: %w", err)
	}
	return out, nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		job                    models.Job
		jobID, companyID       uuid.UUID
		priority, status, src  string
		subject, result        []byte
		startedAt, completedAt *time.Time
	)
	if err := row.Scan(&jobID, &companyID, &job.CompanyName, &priority, &status, &job.ForceRefresh,
		&subject, &result, &src, &job.Error, &job.CreatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	job.ID = id.JobID(jobID)
	job.CompanyID = id.CompanyID(companyID)
	job.Priority = models.Priority(priority)
	job.Status = models.JobStatus(status)
	job.Source = models.Source(src)
	job.StartedAt = startedAt
	job.CompletedAt = completedAt
	if err := json.Unmarshal(subject, &job.Subject); err != nil {
		return nil, errors.Join(errors.New("decode job subject"), err)
	}
	if len(result) > 0 {
		var profile models.Profile
		if err := json.Unmarshal(result, &profile); err != nil {
			return nil, errors.Join(errors.New("decode job result"), err)
		}
		job.Result = &profile
	}
	return &job, nil
}
