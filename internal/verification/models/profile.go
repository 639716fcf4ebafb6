package models

import (
	"slices"
	"time"

	id "trustex/pkg/domain"
)

// ProfileStatus is the coarse trust outcome.
type ProfileStatus string

const (
	ProfilePending    ProfileStatus = "pending"
	ProfileVerified   ProfileStatus = "verified"
	ProfileSuspicious ProfileStatus = "suspicious"
	ProfileFailed     ProfileStatus = "failed"
	ProfileError      ProfileStatus = "error"
)

func (s ProfileStatus) IsValid() bool {
	switch s {
	case ProfilePending, ProfileVerified, ProfileSuspicious, ProfileFailed, ProfileError:
		return true
	}
	return false
}

// NeedsEarlyRecheck reports outcomes that are revisited sooner than usual.
func (s ProfileStatus) NeedsEarlyRecheck() bool {
	return s == ProfileFailed || s == ProfileError
}

// Source records which path produced a profile.
type Source string

const (
	SourceScoring    Source = "scoring"
	SourceLegacy     Source = "legacy"
	SourceCache      Source = "cache"
	SourceOverride   Source = "override"
	SourcePropagated Source = "propagated"
)

// Check is one line of the per-check breakdown.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Score  int    `json:"score"`
	Detail string `json:"detail,omitempty"`
}

// Profile is the trust assessment of a company.
type Profile struct {
	CompanyID     id.CompanyID  `json:"company_id"`
	OverallScore  *int          `json:"overall_score,omitempty"`
	Status        ProfileStatus `json:"status"`
	Confidence    float64       `json:"confidence"`
	Checks        []Check       `json:"checks,omitempty"`
	Reasons       []string      `json:"reasons,omitempty"`
	RiskFactors   []string      `json:"risk_factors,omitempty"`
	FraudKeywords []string      `json:"fraud_keywords,omitempty"`
	Source        Source        `json:"source"`
	TableVersion  string        `json:"table_version,omitempty"`
	LastVerified  time.Time     `json:"last_verified"`
	NextDueAt     time.Time     `json:"next_due_at"`
}

func (p *Profile) Clone() *Profile {
	cp := *p
	if p.OverallScore != nil {
		score := *p.OverallScore
		cp.OverallScore = &score
	}
	cp.Checks = slices.Clone(p.Checks)
	cp.Reasons = slices.Clone(p.Reasons)
	cp.RiskFactors = slices.Clone(p.RiskFactors)
	cp.FraudKeywords = slices.Clone(p.FraudKeywords)
	return &cp
}

// IsDue reports whether the profile should be recomputed at now.
func (p *Profile) IsDue(now time.Time) bool {
	return !now.Before(p.NextDueAt)
}

// PendingProfile is the synthetic profile shown while a job is active and
// no prior result exists.
func PendingProfile(companyID id.CompanyID) *Profile {
	return &Profile{CompanyID: companyID, Status: ProfilePending}
}

// CachedVerification is a cached profile with its freshness window.
type CachedVerification struct {
	Profile  *Profile      `json:"profile"`
	CachedAt time.Time     `json:"cached_at"`
	TTL      time.Duration `json:"ttl"`
}

// Expired is true from cachedAt+ttl onward; the boundary itself is expired.
func (c CachedVerification) Expired(now time.Time) bool {
	return !now.Before(c.CachedAt.Add(c.TTL))
}
