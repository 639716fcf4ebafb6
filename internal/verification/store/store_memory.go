// Package store persists verification jobs and profiles.
package store

import (
	"context"
	"sort"
	"sync"

	"trustex/internal/verification/models"
	id "trustex/pkg/domain"
	"trustex/pkg/platform/sentinel"
)

// InMemoryStore keeps jobs and profiles in maps. Callers receive clones.
type InMemoryStore struct {
	mu       sync.RWMutex
	jobs     map[id.JobID]*models.Job
	profiles map[id.CompanyID]*models.Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		jobs:     make(map[id.JobID]*models.Job),
		profiles: make(map[id.CompanyID]*models.Profile),
	}
}

// CreateJob stores a new job. A duplicate id, or a second active job for
// the same company, returns sentinel.ErrConflict.
func (s *InMemoryStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return sentinel.ErrConflict
	}
	if job.Status.IsActive() {
		for _, other := range s.jobs {
			if other.CompanyID == job.CompanyID && other.Status.IsActive() {
				return sentinel.ErrConflict
			}
		}
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *InMemoryStore) FindJob(_ context.Context, jobID id.JobID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return job.Clone(), nil
}

// UpdateJob replaces the stored job only while its status still equals
// expected. A mismatch returns sentinel.ErrInvalidState.
func (s *InMemoryStore) UpdateJob(_ context.Context, job *models.Job, expected models.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != expected {
		return sentinel.ErrInvalidState
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// ListJobsByCompany returns the company's jobs newest first.
func (s *InMemoryStore) ListJobsByCompany(_ context.Context, companyID id.CompanyID) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Job
	for _, job := range s.jobs {
		if job.CompanyID == companyID {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListQueued returns up to limit queued jobs, most urgent first and oldest
// first within a priority.
func (s *InMemoryStore) ListQueued(_ context.Context, limit int) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Job
	for _, job := range s.jobs {
		if job.Status == models.JobQueued {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindActiveJob returns the company's queued or processing job, if any.
func (s *InMemoryStore) FindActiveJob(_ context.Context, companyID id.CompanyID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Job
	for _, job := range s.jobs {
		if job.CompanyID != companyID || !job.Status.IsActive() {
			continue
		}
		if found == nil || job.CreatedAt.Before(found.CreatedAt) {
			found = job
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found.Clone(), nil
}

func (s *InMemoryStore) SaveProfile(_ context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.CompanyID] = profile.Clone()
	return nil
}

func (s *InMemoryStore) FindProfile(_ context.Context, companyID id.CompanyID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[companyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return profile.Clone(), nil
}
