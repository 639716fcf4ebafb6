package handler

import (
	"time"

	"trustex/internal/exchange/models"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
)

// AmountRequest is the body of POST /companies/{id}/buy and /sell.
type AmountRequest struct {
	Amount int64 `json:"amount"`
}

func (r *AmountRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

// AccountRequest identifies a recipient account.
type AccountRequest struct {
	Owner      string `json:"owner"`
	Subaccount string `json:"subaccount,omitempty"`
}

// TransferRequest is the body of POST /companies/{id}/transfer. Only
// syntactic checks happen here; protocol rules live in the service so
// rejections keep their kind.
type TransferRequest struct {
	FromSubaccount string         `json:"from_subaccount,omitempty"`
	To             AccountRequest `json:"to"`
	Amount         int64          `json:"amount"`
	Fee            *int64         `json:"fee,omitempty"`
	Memo           string         `json:"memo,omitempty"`
	CreatedAtTime  *time.Time     `json:"created_at_time,omitempty"`

	args models.TransferArgs
}

func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	from, err := id.ParseSubaccount(r.FromSubaccount)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid from_subaccount")
	}
	toSub, err := id.ParseSubaccount(r.To.Subaccount)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid to.subaccount")
	}
	var owner id.Principal
	if r.To.Owner != "" {
		owner, err = id.ParsePrincipal(r.To.Owner)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid to.owner")
		}
	}
	var memo []byte
	if r.Memo != "" {
		memo = []byte(r.Memo)
	}
	r.args = models.TransferArgs{
		FromSubaccount: from,
		To:             models.Account{Owner: owner, Subaccount: toSub},
		Amount:         r.Amount,
		Fee:            r.Fee,
		Memo:           memo,
		CreatedAtTime:  r.CreatedAtTime,
	}
	return nil
}

// Args returns the parsed transfer arguments. Valid after Validate.
func (r *TransferRequest) Args() models.TransferArgs {
	return r.args
}
