package service

import (
	"context"
	"errors"
	"time"

	"trustex/internal/exchange/models"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/audit"
	"trustex/pkg/platform/sentinel"
	"trustex/pkg/requestcontext"
)

// Transfer moves tokens from the caller's account to another account.
//
// Checks run in a fixed order and stop at the first failure: token exists,
// amount and memo, fee, created_at_time window, duplicate submission, funds.
// The fee is debited from the sender and burned.
func (s *Service) Transfer(ctx context.Context, caller id.Principal, companyID id.CompanyID, args models.TransferArgs) (*models.TransferResult, error) {
	start := time.Now()
	defer s.metrics.ObserveMutation("transfer", start)

	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	from := models.Account{Owner: caller, Subaccount: args.FromSubaccount}

	var fee int64
	m, index, err := s.mutate(ctx, companyID, func(company *models.Company) (models.Mutation, error) {
		now := requestcontext.Now(ctx)
		rec, err := s.checkTransfer(ctx, companyID, from, args, now)
		if err != nil {
			return models.Mutation{}, err
		}
		fee = rec.Fee

		senderBalance, err := s.balance(ctx, companyID, from)
		if err != nil {
			return models.Mutation{}, err
		}
		if rec.Fee > senderBalance || rec.Amount > senderBalance-rec.Fee {
			return models.Mutation{}, &models.TransferError{Kind: models.TransferInsufficientFunds, Balance: senderBalance}
		}

		balances := map[string]int64{from.Key(): senderBalance - rec.Amount - rec.Fee}
		if args.To.Equal(from) {
			balances[from.Key()] += rec.Amount
		} else {
			recipientBalance, err := s.balance(ctx, companyID, args.To)
			if err != nil {
				return models.Mutation{}, err
			}
			balances[args.To.Key()] = recipientBalance + rec.Amount
		}

		holdings := []models.Holding{{Account: from, CompanyID: companyID, Amount: balances[from.Key()]}}
		if !args.To.Equal(from) {
			holdings = append(holdings, models.Holding{Account: args.To, CompanyID: companyID, Amount: balances[args.To.Key()]})
		}

		next := company.Clone()
		next.UpdatedAt = now
		return models.Mutation{Company: next, Holdings: holdings, Transfer: rec}, nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			err = &models.TransferError{Kind: models.TransferInvalidToken}
		}
		if te, ok := models.AsTransferError(err); ok {
			s.metrics.IncTransferRejected(string(te.Kind))
			audit.LogAudit(ctx, s.logger, s.auditor, audit.EventTransferRejected,
				"company_id", companyID.String(),
				"principal", caller.String(),
				"counterparty", args.To.Owner.String(),
				"amount", args.Amount,
				"decision", "rejected",
				"reason", string(te.Kind),
			)
			return nil, dErrors.Wrap(te, te.Code(), te.Error())
		}
		return nil, err
	}

	s.metrics.ObserveOperation(string(models.TransferKindTransfer), m.Transfer.Amount)
	s.metrics.AddFeesBurned(fee)
	audit.LogAudit(ctx, s.logger, s.auditor, audit.EventTransferExecuted,
		"company_id", companyID.String(),
		"principal", caller.String(),
		"counterparty", args.To.Owner.String(),
		"amount", m.Transfer.Amount,
		"fee", fee,
		"index", index,
	)
	return &models.TransferResult{Index: index, Amount: m.Transfer.Amount, Fee: fee}, nil
}

// checkTransfer validates everything except funds and returns the record to
// append. Company existence is established by the caller.
func (s *Service) checkTransfer(ctx context.Context, companyID id.CompanyID, from models.Account, args models.TransferArgs, now time.Time) (*models.TransferRecord, error) {
	if args.Amount <= 0 {
		return nil, &models.TransferError{Kind: models.TransferRejected, Reason: "amount must be positive"}
	}
	if len(args.Memo) > models.MaxMemoBytes {
		return nil, &models.TransferError{Kind: models.TransferRejected, Reason: "memo exceeds 32 bytes"}
	}
	if args.To.Owner.IsZero() {
		return nil, &models.TransferError{Kind: models.TransferRejected, Reason: "recipient is required"}
	}

	fee := s.cfg.TransferFee
	if args.Fee != nil {
		if *args.Fee < s.cfg.TransferFee {
			return nil, &models.TransferError{Kind: models.TransferBadFee, ExpectedFee: s.cfg.TransferFee}
		}
		fee = *args.Fee
	}

	if args.CreatedAtTime == nil {
		return nil, &models.TransferError{Kind: models.TransferRejected, Reason: "created_at_time is required"}
	}
	createdAt := *args.CreatedAtTime
	oldest := now.Add(-(s.cfg.TxWindow + s.cfg.PermittedDrift))
	if createdAt.Before(oldest) {
		return nil, &models.TransferError{Kind: models.TransferTooOld, LedgerTime: now}
	}
	if createdAt.After(now.Add(s.cfg.PermittedDrift)) {
		return nil, &models.TransferError{Kind: models.TransferCreatedInFuture, LedgerTime: now}
	}

	to := args.To
	rec := &models.TransferRecord{
		ID:            id.NewTransferID(),
		Kind:          models.TransferKindTransfer,
		CompanyID:     companyID,
		From:          &from,
		To:            &to,
		Amount:        args.Amount,
		Fee:           fee,
		Memo:          args.Memo,
		CreatedAtTime: &createdAt,
		Timestamp:     now,
	}

	dup, err := s.store.FindDuplicateTransfer(ctx, rec, oldest)
	switch {
	case err == nil:
		return nil, &models.TransferError{Kind: models.TransferDuplicate, DuplicateOf: dup.Index}
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicate transfer")
	}
	return rec, nil
}
