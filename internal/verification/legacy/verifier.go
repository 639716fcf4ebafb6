package legacy

import (
	"context"
	"log/slog"

	"trustex/internal/verification/models"
	"trustex/internal/verification/providers"
	"trustex/internal/verification/tables"
)

// Searcher is the raw search surface.
type Searcher interface {
	Search(ctx context.Context, query string) ([]byte, error)
}

// Verifier runs every query template once, in order, and derives a profile.
type Verifier struct {
	search  Searcher
	adapter Adapter
	tables  *tables.Tables
	logger  *slog.Logger
}

func NewVerifier(search Searcher, t *tables.Tables, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{search: search, tables: t, logger: logger}
}

// Verify fails only when every query failed; individual failures are skipped.
func (v *Verifier) Verify(ctx context.Context, subject models.Subject) (*models.Profile, error) {
	outcomes := make([]QueryOutcome, 0, len(v.tables.Queries))
	failed := 0
	var lastErr error
	for _, q := range v.tables.Queries {
		raw, err := v.search.Search(ctx, q.Render(subject.Name, subject.Symbol))
		if err != nil {
			failed++
			lastErr = err
			v.logger.WarnContext(ctx, "legacy search query failed",
				"company_id", subject.CompanyID.String(),
				"query", q.Name,
				"category", providers.GetCategory(err),
				"error", err,
			)
			outcomes = append(outcomes, QueryOutcome{Query: q, Err: err})
			continue
		}
		outcomes = append(outcomes, QueryOutcome{Query: q, Results: v.adapter.Parse(raw)})
	}
	if failed == len(v.tables.Queries) {
		return nil, providers.NewProviderError(providers.GetCategory(lastErr), searchProviderID,
			"all legacy queries failed", lastErr)
	}
	return Derive(subject, outcomes, v.tables), nil
}
