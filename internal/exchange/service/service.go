// Package service implements the company registry, the bonding-curve token
// ledger and the transfer protocol.
//
// Every mutation runs under a per-company lock: the company and the touched
// holdings are loaded, the whole operation is validated, and only then is a
// single Mutation committed. A version conflict on commit (another instance
// wrote first) reloads and revalidates from scratch.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"trustex/internal/exchange/curve"
	"trustex/internal/exchange/metrics"
	"trustex/internal/exchange/models"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/audit"
	"trustex/pkg/platform/sentinel"
	"trustex/pkg/requestcontext"
)

type Store interface {
	CreateCompany(ctx context.Context, c *models.Company) error
	FindCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error)
	FindCompanies(ctx context.Context, ids []id.CompanyID) ([]*models.Company, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	FindHolding(ctx context.Context, companyID id.CompanyID, account models.Account) (*models.Holding, error)
	ListHoldingsByOwner(ctx context.Context, owner id.Principal) ([]models.Holding, error)
	Commit(ctx context.Context, m models.Mutation) (int64, error)
	ListTransfers(ctx context.Context, companyID id.CompanyID, limit int) ([]models.TransferRecord, error)
	FindDuplicateTransfer(ctx context.Context, rec *models.TransferRecord, since time.Time) (*models.TransferRecord, error)
}

// Config holds ledger parameters.
type Config struct {
	MinValuation   int64
	DefaultPrice   int64
	TransferFee    int64
	TxWindow       time.Duration
	PermittedDrift time.Duration
}

const (
	maxCommitAttempts    = 3
	defaultTransferLimit = 50
	maxTransferLimit     = 500
)

// Service is the ledger entry point used by HTTP handlers and the
// verification engine.
type Service struct {
	store   Store
	cfg     Config
	logger  *slog.Logger
	auditor audit.Emitter
	metrics *metrics.Metrics
	locks   sync.Map // id.CompanyID -> *sync.Mutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditEmitter(e audit.Emitter) Option {
	return func(s *Service) {
		s.auditor = e
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if cfg.DefaultPrice <= 0 {
		return nil, errors.New("default price must be positive")
	}
	if cfg.TransferFee < 0 {
		return nil, errors.New("transfer fee cannot be negative")
	}
	if cfg.TxWindow <= 0 {
		return nil, errors.New("transaction window must be positive")
	}
	s := &Service{store: store, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// lock serializes mutations of one company within this process.
func (s *Service) lock(companyID id.CompanyID) func() {
	v, _ := s.locks.LoadOrStore(companyID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateCompany lists a new company. The unset one of desired supply and
// desired price is derived from the valuation; with neither set the
// configured default price applies.
func (s *Service) CreateCompany(ctx context.Context, owner id.Principal, req *models.CreateCompanyRequest) (*models.Company, error) {
	start := time.Now()
	defer s.metrics.ObserveMutation("create_company", start)

	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Valuation < s.cfg.MinValuation {
		return nil, dErrors.New(dErrors.CodeValidation, "valuation is below the listing minimum")
	}
	symbol, err := id.ParseSymbol(req.Symbol)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid symbol")
	}
	supply, price, err := curve.Derive(req.Valuation, req.DesiredSupply, req.DesiredPrice, s.cfg.DefaultPrice)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	}

	company, err := models.NewCompany(models.CompanyParams{
		ID:               id.NewCompanyID(),
		Name:             req.Name,
		Symbol:           symbol,
		Logo:             req.Logo,
		Description:      req.Description,
		Owner:            owner,
		Valuation:        req.Valuation,
		Supply:           supply,
		Price:            price,
		Industry:         req.Industry,
		Website:          req.Website,
		RegistrationYear: req.RegistrationYear,
	}, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.CreateCompany(ctx, company); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeValidation, "symbol is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create company")
	}

	s.metrics.IncCompanyCreated()
	audit.LogAudit(ctx, s.logger, s.auditor, audit.EventCompanyCreated,
		"company_id", company.ID.String(),
		"principal", owner.String(),
		"symbol", company.Symbol.String(),
		"amount", company.Supply,
	)
	return company, nil
}

func (s *Service) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	companies, err := s.store.ListCompanies(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list companies")
	}
	return companies, nil
}

func (s *Service) GetCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	return s.findCompany(ctx, companyID)
}

func (s *Service) findCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	company, err := s.store.FindCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "company not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load company")
	}
	return company, nil
}

// balance returns the account's balance, zero when it has no holding.
func (s *Service) balance(ctx context.Context, companyID id.CompanyID, account models.Account) (int64, error) {
	h, err := s.store.FindHolding(ctx, companyID, account)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, nil
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holding")
	}
	return h.Amount, nil
}

// mutate runs plan under the company lock and commits its result. plan sees
// freshly loaded state on every attempt, so a version conflict revalidates
// everything before retrying.
func (s *Service) mutate(ctx context.Context, companyID id.CompanyID, plan func(company *models.Company) (models.Mutation, error)) (models.Mutation, int64, error) {
	unlock := s.lock(companyID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		company, err := s.findCompany(ctx, companyID)
		if err != nil {
			return models.Mutation{}, -1, err
		}
		m, err := plan(company)
		if err != nil {
			return models.Mutation{}, -1, err
		}
		m.Company.Version = company.Version + 1

		index, err := s.store.Commit(ctx, m)
		if err == nil {
			return m, index, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return models.Mutation{}, -1, dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit ledger change")
		}
		s.metrics.IncCommitConflict()
		if attempt >= maxCommitAttempts {
			return models.Mutation{}, -1, dErrors.New(dErrors.CodeConflict, "company was modified concurrently, retry")
		}
		s.logger.WarnContext(ctx, "ledger commit conflict, revalidating",
			"company_id", companyID.String(),
			"attempt", attempt,
		)
	}
}

func ledgerError(err error) error {
	switch {
	case errors.Is(err, models.ErrNonPositiveAmount):
		return dErrors.Wrap(err, dErrors.CodeValidation, "amount must be positive")
	case errors.Is(err, models.ErrBelowMinimumPurchase):
		return dErrors.Wrap(err, dErrors.CodeValidation, "purchase is below the minimum purchase")
	case errors.Is(err, models.ErrInsufficientSupply):
		return dErrors.Wrap(err, dErrors.CodeStateRejected, "insufficient supply")
	case errors.Is(err, models.ErrNoHolding):
		return dErrors.Wrap(err, dErrors.CodeStateRejected, "no holding for this company")
	case errors.Is(err, models.ErrInsufficientBalance):
		return dErrors.Wrap(err, dErrors.CodeStateRejected, "insufficient balance")
	}
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	}
	return err
}
