package models

import (
	"time"

	id "trustex/pkg/domain"
)

// Subject is the local company snapshot a job verifies. It is taken when
// the job starts so the primary path needs no network access.
type Subject struct {
	CompanyID        id.CompanyID `json:"company_id"`
	Name             string       `json:"name"`
	Symbol           string       `json:"symbol,omitempty"`
	Description      string       `json:"description,omitempty"`
	Industry         string       `json:"industry,omitempty"`
	Website          string       `json:"website,omitempty"`
	RegistrationYear int          `json:"registration_year,omitempty"`
	Valuation        int64        `json:"valuation,omitempty"`
	Supply           int64        `json:"supply,omitempty"`
	ListedAt         time.Time    `json:"listed_at,omitzero"`
}

// FeatureBundle is the scoring provider request body.
type FeatureBundle struct {
	CompanyName      string   `json:"companyName"`
	Description      string   `json:"description"`
	Industry         string   `json:"industry,omitempty"`
	RegistrationYear *int     `json:"registrationYear,omitempty"`
	Signals          []string `json:"signals"`
	Snippets         []string `json:"snippets"`
	Context          string   `json:"context"`
}

// ScoringResult is the scoring provider response body.
type ScoringResult struct {
	Score            *int     `json:"score"`
	Status           string   `json:"status"`
	Confidence       float64  `json:"confidence"`
	Reasons          []string `json:"reasons"`
	RiskFactors      []string `json:"riskFactors"`
	FraudKeywords    []string `json:"fraudKeywords"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
}

// SearchResult is one structured hit from the legacy search surface.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}
