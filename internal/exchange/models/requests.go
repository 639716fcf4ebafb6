package models

import (
	"strings"
	"time"

	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
)

// MaxMemoBytes bounds the transfer memo.
const MaxMemoBytes = 32

// CreateCompanyRequest is the listing request. At most one of DesiredSupply
// and DesiredPrice may be set.
type CreateCompanyRequest struct {
	Name             string `json:"name"`
	Symbol           string `json:"symbol"`
	Logo             string `json:"logo"`
	Description      string `json:"description"`
	Valuation        int64  `json:"valuation"`
	DesiredSupply    *int64 `json:"desired_supply,omitempty"`
	DesiredPrice     *int64 `json:"desired_price,omitempty"`
	Industry         string `json:"industry"`
	Website          string `json:"website"`
	RegistrationYear int    `json:"registration_year"`
}

func (r *CreateCompanyRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	r.Logo = strings.TrimSpace(r.Logo)
	r.Description = strings.TrimSpace(r.Description)
	r.Industry = strings.TrimSpace(r.Industry)
	r.Website = strings.TrimSpace(r.Website)
}

func (r *CreateCompanyRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > MaxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
	}
	if _, err := id.ParseSymbol(r.Symbol); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "symbol must be 3 to 5 letters or digits")
	}
	if len(r.Description) > MaxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description too long")
	}
	if len(r.Logo) > MaxLogoLength {
		return dErrors.New(dErrors.CodeValidation, "logo too long")
	}
	if r.Valuation <= 0 {
		return dErrors.New(dErrors.CodeValidation, "valuation must be positive")
	}
	if r.DesiredSupply != nil && r.DesiredPrice != nil {
		return dErrors.New(dErrors.CodeValidation, "set at most one of desired_supply and desired_price")
	}
	if r.DesiredSupply != nil && *r.DesiredSupply <= 0 {
		return dErrors.New(dErrors.CodeValidation, "desired_supply must be positive")
	}
	if r.DesiredPrice != nil && *r.DesiredPrice <= 0 {
		return dErrors.New(dErrors.CodeValidation, "desired_price must be positive")
	}
	if r.RegistrationYear < 0 || r.RegistrationYear > 9999 {
		return dErrors.New(dErrors.CodeValidation, "registration_year out of range")
	}
	return nil
}

// TransferArgs are the caller-supplied transfer fields. Validation happens in
// the service so rejections carry their protocol kind.
type TransferArgs struct {
	FromSubaccount id.Subaccount
	To             Account
	Amount         int64
	Fee            *int64
	Memo           []byte
	CreatedAtTime  *time.Time
}

// TransferResult describes a committed transfer.
type TransferResult struct {
	Index  int64 `json:"index"`
	Amount int64 `json:"amount"`
	Fee    int64 `json:"fee"`
}
