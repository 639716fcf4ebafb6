// Package features builds the scoring provider request from local company
// data. It performs no I/O.
package features

import (
	"fmt"
	"strings"
	"time"

	"trustex/internal/verification/models"
	"trustex/internal/verification/tables"
	platformstrings "trustex/pkg/platform/strings"
)

const maxSnippets = 5

// Build derives the feature bundle for subject at now.
func Build(subject models.Subject, t *tables.Tables, now time.Time) models.FeatureBundle {
	bundle := models.FeatureBundle{
		CompanyName: subject.Name,
		Description: subject.Description,
		Industry:    subject.Industry,
		Signals:     Signals(subject, t, now),
		Snippets:    Snippets(subject.Description),
		Context:     contextLine(subject),
	}
	if subject.RegistrationYear > 0 {
		year := subject.RegistrationYear
		bundle.RegistrationYear = &year
	}
	return bundle
}

// Signals are short machine-readable facts about the subject.
func Signals(subject models.Subject, t *tables.Tables, now time.Time) []string {
	var out []string
	if strings.TrimSpace(subject.Website) != "" {
		out = append(out, "has_website")
	} else {
		out = append(out, "no_website")
	}
	if len(strings.TrimSpace(subject.Description)) < t.Signals.DescriptionMinLength {
		out = append(out, "short_description")
	}
	if subject.RegistrationYear > 0 {
		age := now.Year() - subject.RegistrationYear
		switch {
		case age < 0:
			out = append(out, "registration_in_future")
		case age < t.Signals.YoungCompanyYears:
			out = append(out, "young_company")
		default:
			out = append(out, "established_company")
		}
	} else {
		out = append(out, "no_registration_year")
	}
	if subject.Valuation > 0 {
		out = append(out, "valuation_band:"+valuationBand(subject.Valuation))
	}
	if subject.Supply > 0 && subject.Supply < 5 {
		out = append(out, "tiny_supply")
	}
	if !subject.ListedAt.IsZero() && now.Sub(subject.ListedAt) < 24*time.Hour {
		out = append(out, "newly_listed")
	}
	if hits := t.MatchDisallowed(subject.Name, subject.Description); len(hits) > 0 {
		out = append(out, "disallowed_terms")
	}
	return out
}

// Snippets splits a description into up to five sentences.
func Snippets(description string) []string {
	parts := strings.FieldsFunc(description, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := platformstrings.DedupeAndTrim(parts)
	if out == nil {
		return []string{}
	}
	if len(out) > maxSnippets {
		out = out[:maxSnippets]
	}
	return out
}

func valuationBand(v int64) string {
	switch {
	case v < 1_000_000:
		return "micro"
	case v < 100_000_000:
		return "small"
	case v < 10_000_000_000:
		return "medium"
	default:
		return "large"
	}
}

func contextLine(s models.Subject) string {
	parts := []string{fmt.Sprintf("symbol=%s", s.Symbol)}
	if s.Website != "" {
		parts = append(parts, "website="+s.Website)
	}
	if s.Supply > 0 {
		parts = append(parts, fmt.Sprintf("supply=%d", s.Supply))
	}
	if s.Valuation > 0 {
		parts = append(parts, fmt.Sprintf("valuation=%d", s.Valuation))
	}
	return strings.Join(parts, "; ")
}
