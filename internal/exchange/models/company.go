package models

import (
	"strings"
	"time"

	"trustex/internal/exchange/curve"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
)

// VerificationStatus mirrors the trust profile status on the company row.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationSuspicious VerificationStatus = "suspicious"
	VerificationFailed     VerificationStatus = "failed"
	VerificationError      VerificationStatus = "error"
)

func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationUnverified, VerificationPending, VerificationVerified,
		VerificationSuspicious, VerificationFailed, VerificationError:
		return true
	}
	return false
}

const (
	MaxNameLength        = 128
	MaxDescriptionLength = 4096
	MaxLogoLength        = 2048
)

// Company is the aggregate root of the ledger.
//
// Invariants:
//   - 0 ≤ Remaining ≤ Supply
//   - TokenPrice == curve.Price(BasePrice, Supply, Supply-Remaining)
//   - MinimumPurchase is fixed at creation
//   - Version increases by one on every committed mutation
type Company struct {
	ID                 id.CompanyID       `json:"id"`
	Name               string             `json:"name"`
	Symbol             id.Symbol          `json:"symbol"`
	Logo               string             `json:"logo,omitempty"`
	Description        string             `json:"description,omitempty"`
	Owner              id.Principal       `json:"owner"`
	Valuation          int64              `json:"valuation"`
	BasePrice          int64              `json:"base_price"`
	TokenPrice         int64              `json:"token_price"`
	Supply             int64              `json:"supply"`
	Remaining          int64              `json:"remaining"`
	MinimumPurchase    int64              `json:"minimum_purchase"`
	Industry           string             `json:"industry,omitempty"`
	Website            string             `json:"website,omitempty"`
	RegistrationYear   int                `json:"registration_year,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerificationScore  *int               `json:"verification_score,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	Version            int64              `json:"version"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// CompanyParams carries already-resolved creation inputs.
type CompanyParams struct {
	ID               id.CompanyID
	Name             string
	Symbol           id.Symbol
	Logo             string
	Description      string
	Owner            id.Principal
	Valuation        int64
	Supply           int64
	Price            int64
	Industry         string
	Website          string
	RegistrationYear int
}

// NewCompany builds a company with nothing sold yet.
func NewCompany(p CompanyParams, now time.Time) (*Company, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "company name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "company name must be 128 characters or less")
	}
	if len(p.Description) > MaxDescriptionLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "description too long")
	}
	if len(p.Logo) > MaxLogoLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "logo too long")
	}
	if p.Symbol == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "symbol is required")
	}
	if p.Owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner is required")
	}
	if p.Valuation <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "valuation must be positive")
	}
	if p.Supply <= 0 || p.Price <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "supply and price must be positive")
	}
	minimum, err := curve.MinimumPurchase(p.Price, p.Supply)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "minimum purchase out of range")
	}
	return &Company{
		ID:                 p.ID,
		Name:               name,
		Symbol:             p.Symbol,
		Logo:               p.Logo,
		Description:        p.Description,
		Owner:              p.Owner,
		Valuation:          p.Valuation,
		BasePrice:          p.Price,
		TokenPrice:         p.Price,
		Supply:             p.Supply,
		Remaining:          p.Supply,
		MinimumPurchase:    minimum,
		Industry:           strings.TrimSpace(p.Industry),
		Website:            strings.TrimSpace(p.Website),
		RegistrationYear:   p.RegistrationYear,
		VerificationStatus: VerificationUnverified,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Sold is the number of tokens currently held by investors.
func (c *Company) Sold() int64 {
	return c.Supply - c.Remaining
}

// Clone returns a deep copy so callers can stage changes without touching
// stored state.
func (c *Company) Clone() *Company {
	cp := *c
	if c.VerificationScore != nil {
		score := *c.VerificationScore
		cp.VerificationScore = &score
	}
	if c.VerifiedAt != nil {
		at := *c.VerifiedAt
		cp.VerifiedAt = &at
	}
	return &cp
}

// CanBuy checks supply and the minimum purchase at the current price.
func (c *Company) CanBuy(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if amount > c.Remaining {
		return ErrInsufficientSupply
	}
	if !curve.MeetsMinimum(c.TokenPrice, amount, c.MinimumPurchase) {
		return ErrBelowMinimumPurchase
	}
	return nil
}

// ApplyBuy moves amount from remaining to sold and reprices.
// Call CanBuy first.
func (c *Company) ApplyBuy(amount int64, now time.Time) error {
	return c.reprice(c.Remaining-amount, now)
}

// ApplySell returns amount to remaining and reprices.
func (c *Company) ApplySell(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if c.Remaining+amount > c.Supply {
		return dErrors.New(dErrors.CodeInvariantViolation, "sell would exceed supply")
	}
	return c.reprice(c.Remaining+amount, now)
}

func (c *Company) reprice(remaining int64, now time.Time) error {
	price, err := curve.Price(c.BasePrice, c.Supply, c.Supply-remaining)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "price out of range")
	}
	c.Remaining = remaining
	c.TokenPrice = price
	c.UpdatedAt = now
	return nil
}

// VerificationUpdate is the subset of a trust profile mirrored on the company.
type VerificationUpdate struct {
	Status     VerificationStatus
	Score      *int
	VerifiedAt time.Time
}

// ApplyVerification overwrites the mirrored verification fields.
func (c *Company) ApplyVerification(u VerificationUpdate, now time.Time) {
	c.VerificationStatus = u.Status
	c.VerificationScore = nil
	if u.Score != nil {
		score := *u.Score
		c.VerificationScore = &score
	}
	c.VerifiedAt = nil
	if !u.VerifiedAt.IsZero() {
		at := u.VerifiedAt
		c.VerifiedAt = &at
	}
	c.UpdatedAt = now
}
