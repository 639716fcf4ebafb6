package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	dErrors "trustex/pkg/domain-errors"
)

var (
	ErrNonPositiveAmount    = errors.New("amount must be positive")
	ErrInsufficientSupply   = errors.New("insufficient supply")
	ErrBelowMinimumPurchase = errors.New("below minimum purchase")
	ErrNoHolding            = errors.New("no holding")
	ErrInsufficientBalance  = errors.New("insufficient balance")
)

// TransferErrorKind enumerates transfer protocol rejections.
type TransferErrorKind string

const (
	TransferInvalidToken      TransferErrorKind = "invalid_token"
	TransferRejected          TransferErrorKind = "rejected"
	TransferBadFee            TransferErrorKind = "bad_fee"
	TransferTooOld            TransferErrorKind = "too_old"
	TransferCreatedInFuture   TransferErrorKind = "created_in_future"
	TransferInsufficientFunds TransferErrorKind = "insufficient_funds"
	TransferDuplicate         TransferErrorKind = "duplicate"
)

// TransferError is a typed transfer rejection. Only the field matching Kind
// is meaningful.
type TransferError struct {
	Kind        TransferErrorKind
	Reason      string
	ExpectedFee int64
	Balance     int64
	DuplicateOf int64
	LedgerTime  time.Time
}

func (e *TransferError) Error() string {
	switch e.Kind {
	case TransferBadFee:
		return fmt.Sprintf("bad fee: expected %d", e.ExpectedFee)
	case TransferInsufficientFunds:
		return fmt.Sprintf("insufficient funds: balance %d", e.Balance)
	case TransferDuplicate:
		return fmt.Sprintf("duplicate of transfer %d", e.DuplicateOf)
	case TransferTooOld, TransferCreatedInFuture:
		return fmt.Sprintf("%s: ledger time %s", e.Kind, e.LedgerTime.UTC().Format(time.RFC3339))
	case TransferRejected:
		if e.Reason != "" {
			return "rejected: " + e.Reason
		}
	}
	return string(e.Kind)
}

// ErrorDetails exposes kind-specific fields to the HTTP error body.
func (e *TransferError) ErrorDetails() map[string]string {
	d := map[string]string{"transfer_error": string(e.Kind)}
	switch e.Kind {
	case TransferBadFee:
		d["expected_fee"] = strconv.FormatInt(e.ExpectedFee, 10)
	case TransferInsufficientFunds:
		d["balance"] = strconv.FormatInt(e.Balance, 10)
	case TransferDuplicate:
		d["duplicate_of"] = strconv.FormatInt(e.DuplicateOf, 10)
	case TransferTooOld, TransferCreatedInFuture:
		d["ledger_time"] = e.LedgerTime.UTC().Format(time.RFC3339Nano)
	}
	return d
}

// Code maps the kind to a domain error code. Funds are a state problem;
// everything else the caller must correct and resubmit.
func (e *TransferError) Code() dErrors.Code {
	if e.Kind == TransferInsufficientFunds {
		return dErrors.CodeStateRejected
	}
	return dErrors.CodeProtocolRejected
}

// AsTransferError extracts a *TransferError from err's chain.
func AsTransferError(err error) (*TransferError, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
