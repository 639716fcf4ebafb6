package service

import (
	"context"
	"errors"
	"time"

	"trustex/internal/exchange/models"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/sentinel"
	"trustex/pkg/requestcontext"
)

// BalanceOf returns the balance of account, zero when it holds nothing.
func (s *Service) BalanceOf(ctx context.Context, companyID id.CompanyID, account models.Account) (int64, error) {
	if _, err := s.findCompany(ctx, companyID); err != nil {
		return 0, err
	}
	return s.balance(ctx, companyID, account)
}

// GetMyHolding returns the caller's default-account holding.
func (s *Service) GetMyHolding(ctx context.Context, caller id.Principal, companyID id.CompanyID) (*models.HoldingView, error) {
	company, err := s.findCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	h, err := s.store.FindHolding(ctx, companyID, models.Account{Owner: caller})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no holding for this company")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holding")
	}
	return &models.HoldingView{Holding: *h, Symbol: company.Symbol, Name: company.Name, TokenPrice: company.TokenPrice}, nil
}

// ListHoldings returns every holding of caller joined with company data.
func (s *Service) ListHoldings(ctx context.Context, caller id.Principal) ([]models.HoldingView, error) {
	holdings, err := s.store.ListHoldingsByOwner(ctx, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list holdings")
	}
	if len(holdings) == 0 {
		return []models.HoldingView{}, nil
	}

	ids := make([]id.CompanyID, 0, len(holdings))
	seen := make(map[id.CompanyID]struct{}, len(holdings))
	for _, h := range holdings {
		if _, ok := seen[h.CompanyID]; ok {
			continue
		}
		seen[h.CompanyID] = struct{}{}
		ids = append(ids, h.CompanyID)
	}
	companies, err := s.store.FindCompanies(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load companies")
	}
	byID := make(map[id.CompanyID]*models.Company, len(companies))
	for _, c := range companies {
		byID[c.ID] = c
	}

	views := make([]models.HoldingView, 0, len(holdings))
	for _, h := range holdings {
		view := models.HoldingView{Holding: h}
		if c, ok := byID[h.CompanyID]; ok {
			view.Symbol = c.Symbol
			view.Name = c.Name
			view.TokenPrice = c.TokenPrice
		}
		views = append(views, view)
	}
	return views, nil
}

// ListTransfers returns the newest ledger records of a company. A
// non-positive limit selects the default page size.
func (s *Service) ListTransfers(ctx context.Context, companyID id.CompanyID, limit int) ([]models.TransferRecord, error) {
	if _, err := s.findCompany(ctx, companyID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTransferLimit
	}
	limit = min(limit, maxTransferLimit)
	recs, err := s.store.ListTransfers(ctx, companyID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transfers")
	}
	if recs == nil {
		recs = []models.TransferRecord{}
	}
	return recs, nil
}

// ApplyVerification mirrors a completed trust profile onto the company row.
func (s *Service) ApplyVerification(ctx context.Context, companyID id.CompanyID, update models.VerificationUpdate) error {
	start := time.Now()
	defer s.metrics.ObserveMutation("apply_verification", start)

	if !update.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown verification status")
	}
	_, _, err := s.mutate(ctx, companyID, func(company *models.Company) (models.Mutation, error) {
		next := company.Clone()
		next.ApplyVerification(update, requestcontext.Now(ctx))
		return models.Mutation{Company: next}, nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "company verification updated",
		"company_id", companyID.String(),
		"verification_status", string(update.Status),
	)
	return nil
}
