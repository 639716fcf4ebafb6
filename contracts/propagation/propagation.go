// Package propagation is the wire contract between ledger instances: the
// verification profiles one instance pushes to its dependents and the
// company listing a scan reads back from them.
package propagation

import "time"

// PushPath receives ProfilePush bodies on a dependent.
const PushPath = "/internal/verification-profiles"

// CompaniesPath lists the companies a dependent hosts.
const CompaniesPath = "/companies"

// PushKeyHeader carries the shared push key.
const PushKeyHeader = "X-Push-Key"

type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Score  int    `json:"score"`
	Detail string `json:"detail,omitempty"`
}

// ProfilePush is one completed verification profile.
type ProfilePush struct {
	CompanyID     string    `json:"company_id"`
	OverallScore  *int      `json:"overall_score,omitempty"`
	Status        string    `json:"status"`
	Confidence    float64   `json:"confidence"`
	Checks        []Check   `json:"checks,omitempty"`
	Reasons       []string  `json:"reasons,omitempty"`
	RiskFactors   []string  `json:"risk_factors,omitempty"`
	FraudKeywords []string  `json:"fraud_keywords,omitempty"`
	Source        string    `json:"source"`
	TableVersion  string    `json:"table_version,omitempty"`
	LastVerified  time.Time `json:"last_verified"`
	NextDueAt     time.Time `json:"next_due_at"`
	Origin        string    `json:"origin,omitempty"`
}

// CompanyListing is the subset of a dependent's company record a scan needs.
type CompanyListing struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Symbol           string    `json:"symbol"`
	Description      string    `json:"description,omitempty"`
	Industry         string    `json:"industry,omitempty"`
	Website          string    `json:"website,omitempty"`
	RegistrationYear int       `json:"registration_year,omitempty"`
	Valuation        int64     `json:"valuation"`
	Supply           int64     `json:"supply"`
	CreatedAt        time.Time `json:"created_at"`
}

// CompaniesResponse is the body of GET /companies.
type CompaniesResponse struct {
	Companies []CompanyListing `json:"companies"`
}
