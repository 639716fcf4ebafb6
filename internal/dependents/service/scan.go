package service

import (
	"context"
	"time"

	"trustex/contracts/propagation"
	"trustex/internal/dependents/models"
	vmodels "trustex/internal/verification/models"
	vservice "trustex/internal/verification/service"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/requestcontext"
)

// Scan starts a normal-priority verification for every company, local or
// hosted by a dependent, that has no profile or is past its next due time.
// Companies with a queued or processing job are skipped. A company seen more
// than once is considered once; the local record wins.
func (s *Service) Scan(ctx context.Context) (models.ScanResult, error) {
	if s.verifier == nil {
		return models.ScanResult{}, dErrors.New(dErrors.CodeUnavailable, "verification scheduler not wired")
	}
	var res models.ScanResult
	subjects, listErrors := s.collect(ctx)
	res.Errors += listErrors

	now := requestcontext.Now(ctx)
	for _, subject := range subjects {
		if ctx.Err() != nil {
			break
		}
		res.Scanned++
		active, err := s.verifier.HasActiveJob(ctx, subject.CompanyID)
		if err != nil {
			res.Errors++
			continue
		}
		if active {
			res.Skipped++
			continue
		}
		due, err := s.verifier.IsDue(ctx, subject.CompanyID, now)
		if err != nil {
			res.Errors++
			continue
		}
		if !due {
			res.Skipped++
			continue
		}
		if _, err := s.verifier.StartVerification(ctx, vservice.StartRequest{
			CompanyID:   subject.CompanyID,
			CompanyName: subject.Name,
			Priority:    vmodels.PriorityNormal,
			Subject:     &subject,
		}); err != nil {
			s.logger.WarnContext(ctx, "scan could not start verification",
				"company_id", subject.CompanyID.String(),
				"error", err,
			)
			res.Errors++
			continue
		}
		res.Started++
	}

	s.metrics.IncScan("started", res.Started)
	s.metrics.IncScan("skipped", res.Skipped)
	s.metrics.IncScan("error", res.Errors)
	s.logger.InfoContext(ctx, "pending verification scan finished",
		"scanned", res.Scanned,
		"started", res.Started,
		"skipped", res.Skipped,
		"errors", res.Errors,
	)
	return res, nil
}

// collect gathers the deduplicated company subjects and the number of
// sources or records that could not be read.
func (s *Service) collect(ctx context.Context) ([]vmodels.Subject, int) {
	seen := make(map[id.CompanyID]struct{})
	var subjects []vmodels.Subject
	errs := 0
	add := func(subject vmodels.Subject) {
		if _, ok := seen[subject.CompanyID]; ok {
			return
		}
		seen[subject.CompanyID] = struct{}{}
		subjects = append(subjects, subject)
	}

	if s.ledger != nil {
		companies, err := s.ledger.ListCompanies(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "scan could not list local companies", "error", err)
			errs++
		}
		for _, c := range companies {
			add(vservice.SubjectFromCompany(c))
		}
	}

	deps, err := s.store.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "scan could not list dependents", "error", err)
		return subjects, errs + 1
	}
	for _, dep := range deps {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.PropagationTimeout)
		listings, err := s.peer.ListCompanies(callCtx, dep.Address)
		cancel()
		if err != nil {
			s.logger.WarnContext(ctx, "scan could not list dependent companies",
				"dependent", dep.Address,
				"error", err,
			)
			errs++
			continue
		}
		for _, l := range listings {
			subject, err := subjectFromListing(l)
			if err != nil {
				errs++
				continue
			}
			add(subject)
		}
	}
	return subjects, errs
}

func subjectFromListing(l propagation.CompanyListing) (vmodels.Subject, error) {
	companyID, err := id.ParseCompanyID(l.ID)
	if err != nil {
		return vmodels.Subject{}, err
	}
	return vmodels.Subject{
		CompanyID:        companyID,
		Name:             l.Name,
		Symbol:           l.Symbol,
		Description:      l.Description,
		Industry:         l.Industry,
		Website:          l.Website,
		RegistrationYear: l.RegistrationYear,
		Valuation:        l.Valuation,
		Supply:           l.Supply,
		ListedAt:         l.CreatedAt,
	}, nil
}

// RunScanner scans on every interval tick until ctx is done.
func (s *Service) RunScanner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil {
				s.logger.ErrorContext(ctx, "pending verification scan failed", "error", err)
			}
		}
	}
}
