package models

import (
	"time"

	id "trustex/pkg/domain"
)

// Account is an owner plus optional subaccount.
type Account struct {
	Owner      id.Principal  `json:"owner"`
	Subaccount id.Subaccount `json:"subaccount,omitempty"`
}

// Key is a stable map key for the account.
func (a Account) Key() string {
	return a.Owner.String() + "/" + a.Subaccount.String()
}

func (a Account) Equal(b Account) bool {
	return a.Owner == b.Owner && a.Subaccount == b.Subaccount
}

// Holding is a positive balance; zero-balance rows do not exist.
type Holding struct {
	Account   Account      `json:"account"`
	CompanyID id.CompanyID `json:"company_id"`
	Amount    int64        `json:"amount"`
}

// HoldingView joins a holding with its company for portfolio listings.
type HoldingView struct {
	Holding
	Symbol     id.Symbol `json:"symbol"`
	Name       string    `json:"name"`
	TokenPrice int64     `json:"token_price"`
}

type TransferKind string

const (
	TransferKindBuy      TransferKind = "buy"
	TransferKindSell     TransferKind = "sell"
	TransferKindTransfer TransferKind = "transfer"
)

// TransferRecord is one append-only ledger log entry. Buys have no From,
// sells have no To.
type TransferRecord struct {
	ID            id.TransferID `json:"id"`
	Index         int64         `json:"index"`
	Kind          TransferKind  `json:"kind"`
	CompanyID     id.CompanyID  `json:"company_id"`
	From          *Account      `json:"from,omitempty"`
	To            *Account      `json:"to,omitempty"`
	Amount        int64         `json:"amount"`
	Fee           int64         `json:"fee"`
	Memo          []byte        `json:"memo,omitempty"`
	CreatedAtTime *time.Time    `json:"created_at_time,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// SameRequest reports whether r carries the same caller-supplied fields as
// other, which is how duplicate submissions are detected.
func (r *TransferRecord) SameRequest(other *TransferRecord) bool {
	if r.Kind != other.Kind || r.CompanyID != other.CompanyID {
		return false
	}
	if r.Amount != other.Amount || r.Fee != other.Fee || string(r.Memo) != string(other.Memo) {
		return false
	}
	if !sameAccount(r.From, other.From) || !sameAccount(r.To, other.To) {
		return false
	}
	if r.CreatedAtTime == nil || other.CreatedAtTime == nil {
		return r.CreatedAtTime == nil && other.CreatedAtTime == nil
	}
	return r.CreatedAtTime.Equal(*other.CreatedAtTime)
}

func sameAccount(a, b *Account) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Mutation is the unit a store commits atomically. Holdings with Amount 0
// are deleted. Company.Version must be the stored version plus one.
type Mutation struct {
	Company  *Company
	Holdings []Holding
	Transfer *TransferRecord
}
