// Package store persists companies, holdings and the transfer log.
package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"trustex/internal/exchange/models"
	id "trustex/pkg/domain"
	"trustex/pkg/platform/sentinel"
)

// InMemoryStore keeps the ledger in process memory. Commit applies a whole
// Mutation under one lock so readers never observe a partial update.
type InMemoryStore struct {
	mu        sync.RWMutex
	companies map[id.CompanyID]*models.Company
	symbols   map[id.Symbol]id.CompanyID
	holdings  map[id.CompanyID]map[string]models.Holding
	transfers map[id.CompanyID][]*models.TransferRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		companies: make(map[id.CompanyID]*models.Company),
		symbols:   make(map[id.Symbol]id.CompanyID),
		holdings:  make(map[id.CompanyID]map[string]models.Holding),
		transfers: make(map[id.CompanyID][]*models.TransferRecord),
	}
}

// CreateCompany inserts c, failing with sentinel.ErrConflict when the symbol
// is taken.
func (s *InMemoryStore) CreateCompany(_ context.Context, c *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := id.Symbol(strings.ToUpper(c.Symbol.String()))
	if _, taken := s.symbols[symbol]; taken {
		return sentinel.ErrConflict
	}
	if _, exists := s.companies[c.ID]; exists {
		return sentinel.ErrConflict
	}
	s.companies[c.ID] = c.Clone()
	s.symbols[symbol] = c.ID
	return nil
}

func (s *InMemoryStore) FindCompany(_ context.Context, companyID id.CompanyID) (*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.companies[companyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// FindCompanies returns the companies that exist among ids, skipping unknown ones.
func (s *InMemoryStore) FindCompanies(_ context.Context, ids []id.CompanyID) ([]*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Company, 0, len(ids))
	for _, companyID := range ids {
		if c, ok := s.companies[companyID]; ok {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

// ListCompanies returns every company, oldest first.
func (s *InMemoryStore) ListCompanies(_ context.Context) ([]*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Company) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *InMemoryStore) FindHolding(_ context.Context, companyID id.CompanyID, account models.Account) (*models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[companyID][account.Key()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &h, nil
}

// ListHoldingsByOwner returns the owner's holdings across all subaccounts.
func (s *InMemoryStore) ListHoldingsByOwner(_ context.Context, owner id.Principal) ([]models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Holding
	for _, byAccount := range s.holdings {
		for _, h := range byAccount {
			if h.Account.Owner == owner {
				out = append(out, h)
			}
		}
	}
	slices.SortFunc(out, func(a, b models.Holding) int {
		if c := strings.Compare(a.CompanyID.String(), b.CompanyID.String()); c != 0 {
			return c
		}
		return strings.Compare(a.Account.Subaccount.String(), b.Account.Subaccount.String())
	})
	return out, nil
}

// Commit applies m atomically and returns the appended transfer index, or -1
// when m carries no transfer. The stored company version must be exactly one
// behind m.Company.Version, otherwise sentinel.ErrConflict is returned and
// nothing changes.
func (s *InMemoryStore) Commit(_ context.Context, m models.Mutation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.companies[m.Company.ID]
	if !ok {
		return -1, sentinel.ErrNotFound
	}
	if current.Version != m.Company.Version-1 {
		return -1, sentinel.ErrConflict
	}

	s.companies[m.Company.ID] = m.Company.Clone()

	byAccount := s.holdings[m.Company.ID]
	if byAccount == nil {
		byAccount = make(map[string]models.Holding)
		s.holdings[m.Company.ID] = byAccount
	}
	for _, h := range m.Holdings {
		if h.Amount == 0 {
			delete(byAccount, h.Account.Key())
			continue
		}
		byAccount[h.Account.Key()] = h
	}

	if m.Transfer == nil {
		return -1, nil
	}
	rec := *m.Transfer
	rec.Index = int64(len(s.transfers[m.Company.ID]))
	s.transfers[m.Company.ID] = append(s.transfers[m.Company.ID], &rec)
	return rec.Index, nil
}

// ListTransfers returns up to limit records, newest first.
func (s *InMemoryStore) ListTransfers(_ context.Context, companyID id.CompanyID, limit int) ([]models.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.transfers[companyID]
	out := make([]models.TransferRecord, 0, min(limit, len(log)))
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *log[i])
	}
	return out, nil
}

// FindDuplicateTransfer looks for an earlier record with the same request
// fields whose created_at_time is not before since.
func (s *InMemoryStore) FindDuplicateTransfer(_ context.Context, rec *models.TransferRecord, since time.Time) (*models.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, existing := range s.transfers[rec.CompanyID] {
		if existing.CreatedAtTime == nil || existing.CreatedAtTime.Before(since) {
			continue
		}
		if existing.SameRequest(rec) {
			found := *existing
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
