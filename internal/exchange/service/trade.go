package service

import (
	"context"
	"time"

	"trustex/internal/exchange/models"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/audit"
	"trustex/pkg/requestcontext"
)

// Buy purchases amount tokens from the curve into the caller's default
// account and returns the new token price.
func (s *Service) Buy(ctx context.Context, caller id.Principal, companyID id.CompanyID, amount int64) (int64, error) {
	start := time.Now()
	defer s.metrics.ObserveMutation("buy", start)

	if caller.IsZero() {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	account := models.Account{Owner: caller}

	m, _, err := s.mutate(ctx, companyID, func(company *models.Company) (models.Mutation, error) {
		if err := company.CanBuy(amount); err != nil {
			return models.Mutation{}, ledgerError(err)
		}
		held, err := s.balance(ctx, companyID, account)
		if err != nil {
			return models.Mutation{}, err
		}
		now := requestcontext.Now(ctx)
		next := company.Clone()
		if err := next.ApplyBuy(amount, now); err != nil {
			return models.Mutation{}, ledgerError(err)
		}
		return models.Mutation{
			Company:  next,
			Holdings: []models.Holding{{Account: account, CompanyID: companyID, Amount: held + amount}},
			Transfer: &models.TransferRecord{
				ID:        id.NewTransferID(),
				Kind:      models.TransferKindBuy,
				CompanyID: companyID,
				To:        &account,
				Amount:    amount,
				Timestamp: now,
			},
		}, nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.ObserveOperation(string(models.TransferKindBuy), amount)
	audit.LogAudit(ctx, s.logger, s.auditor, audit.EventTokensBought,
		"company_id", companyID.String(),
		"principal", caller.String(),
		"amount", amount,
		"price", m.Company.TokenPrice,
	)
	return m.Company.TokenPrice, nil
}

// Sell returns amount tokens from the caller's default account to the curve
// and returns the new token price.
func (s *Service) Sell(ctx context.Context, caller id.Principal, companyID id.CompanyID, amount int64) (int64, error) {
	start := time.Now()
	defer s.metrics.ObserveMutation("sell", start)

	if caller.IsZero() {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if amount <= 0 {
		return 0, ledgerError(models.ErrNonPositiveAmount)
	}
	account := models.Account{Owner: caller}

	m, _, err := s.mutate(ctx, companyID, func(company *models.Company) (models.Mutation, error) {
		held, err := s.balance(ctx, companyID, account)
		if err != nil {
			return models.Mutation{}, err
		}
		if held == 0 {
			return models.Mutation{}, ledgerError(models.ErrNoHolding)
		}
		if held < amount {
			return models.Mutation{}, ledgerError(models.ErrInsufficientBalance)
		}
		now := requestcontext.Now(ctx)
		next := company.Clone()
		if err := next.ApplySell(amount, now); err != nil {
			return models.Mutation{}, ledgerError(err)
		}
		return models.Mutation{
			Company:  next,
			Holdings: []models.Holding{{Account: account, CompanyID: companyID, Amount: held - amount}},
			Transfer: &models.TransferRecord{
				ID:        id.NewTransferID(),
				Kind:      models.TransferKindSell,
				CompanyID: companyID,
				From:      &account,
				Amount:    amount,
				Timestamp: now,
			},
		}, nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.ObserveOperation(string(models.TransferKindSell), amount)
	audit.LogAudit(ctx, s.logger, s.auditor, audit.EventTokensSold,
		"company_id", companyID.String(),
		"principal", caller.String(),
		"amount", amount,
		"price", m.Company.TokenPrice,
	)
	return m.Company.TokenPrice, nil
}
