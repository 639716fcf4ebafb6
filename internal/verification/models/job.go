package models

import (
	"strings"
	"time"

	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
)

// JobStatus is the lifecycle state of a verification job.
//
//	queued → processing → completed | failed
//	queued | processing → cancelled
//
// Terminal states never change.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case JobQueued, JobProcessing, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	case JobQueued, JobProcessing:
		return false
	}
	return false
}

// IsActive reports whether the job still occupies its company.
func (s JobStatus) IsActive() bool {
	return s == JobQueued || s == JobProcessing
}

func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	switch s {
	case JobQueued:
		return to == JobProcessing || to == JobCancelled
	case JobProcessing:
		return to == JobCompleted || to == JobFailed || to == JobCancelled
	case JobCompleted, JobFailed, JobCancelled:
		return false
	}
	return false
}

// Priority orders queued jobs. High-priority jobs dispatch immediately.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority accepts low, normal or high; empty means normal.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityNormal, nil
	case PriorityLow, PriorityNormal, PriorityHigh:
		return p, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "priority must be low, normal or high")
}

// Rank is higher for more urgent priorities.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Job is one verification request for a company.
type Job struct {
	ID           id.JobID     `json:"id"`
	CompanyID    id.CompanyID `json:"company_id"`
	CompanyName  string       `json:"company_name"`
	Priority     Priority     `json:"priority"`
	Status       JobStatus    `json:"status"`
	ForceRefresh bool         `json:"force_refresh,omitempty"`
	Subject      Subject      `json:"subject"`
	Result       *Profile     `json:"result,omitempty"`
	Source       Source       `json:"source,omitempty"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

func NewJob(jobID id.JobID, subject Subject, priority Priority, forceRefresh bool, now time.Time) (*Job, error) {
	if subject.CompanyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "company id is required")
	}
	name := strings.TrimSpace(subject.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "company name is required")
	}
	if priority.Rank() == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown priority")
	}
	subject.Name = name
	return &Job{
		ID:           jobID,
		CompanyID:    subject.CompanyID,
		CompanyName:  name,
		Priority:     priority,
		Status:       JobQueued,
		ForceRefresh: forceRefresh,
		Subject:      subject,
		CreatedAt:    now,
	}, nil
}

// Transition moves the job to status to, stamping start and completion times.
func (j *Job) Transition(to JobStatus, now time.Time) error {
	if !j.Status.CanTransitionTo(to) {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot move job from "+string(j.Status)+" to "+string(to))
	}
	j.Status = to
	switch to {
	case JobProcessing:
		j.StartedAt = &now
	case JobCompleted, JobFailed, JobCancelled:
		j.CompletedAt = &now
	case JobQueued:
	}
	return nil
}

// Complete attaches a result and moves the job to completed.
func (j *Job) Complete(profile *Profile, now time.Time) error {
	if err := j.Transition(JobCompleted, now); err != nil {
		return err
	}
	j.Result = profile
	j.Source = profile.Source
	return nil
}

// Fail moves the job to failed, keeping the message.
func (j *Job) Fail(message string, now time.Time) error {
	if err := j.Transition(JobFailed, now); err != nil {
		return err
	}
	j.Error = message
	return nil
}

func (j *Job) Clone() *Job {
	cp := *j
	if j.Result != nil {
		cp.Result = j.Result.Clone()
	}
	if j.StartedAt != nil {
		at := *j.StartedAt
		cp.StartedAt = &at
	}
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
