package legacy

import (
	"fmt"
	"strings"

	"trustex/internal/verification/models"
	"trustex/internal/verification/tables"
	platformstrings "trustex/pkg/platform/strings"
)

// QueryOutcome is what one query template produced.
type QueryOutcome struct {
	Query   tables.Query
	Results []models.SearchResult
	Err     error
}

// Derive scores aggregated search results with the keyword weights and maps
// the score to a status. The returned profile carries no timestamps.
func Derive(subject models.Subject, outcomes []QueryOutcome, t *tables.Tables) *models.Profile {
	score := t.LegacyBaseline
	var (
		checks   []models.Check
		reasons  []string
		risks    []string
		texts    []string
		answered int
		total    int
	)

	for _, o := range outcomes {
		if o.Err != nil {
			checks = append(checks, models.Check{Name: o.Query.Name, Passed: false, Detail: "search failed"})
			continue
		}
		answered++
		total += len(o.Results)
		queryScore := 0
		for _, r := range o.Results {
			text := r.Title + " " + r.Snippet
			texts = append(texts, text)
			for _, kw := range t.Keywords {
				if strings.Contains(strings.ToLower(text), kw.Term) {
					queryScore += kw.Weight
					if kw.Weight > 0 {
						reasons = append(reasons, kw.Term)
					} else {
						risks = append(risks, kw.Term)
					}
				}
			}
		}
		score += queryScore
		checks = append(checks, models.Check{
			Name:   o.Query.Name,
			Passed: queryScore >= 0,
			Score:  queryScore,
			Detail: fmt.Sprintf("%d results", len(o.Results)),
		})
	}

	score = tables.ClampScore(score)
	fraud := t.MatchDisallowed(append(texts, subject.Name, subject.Description)...)
	status := models.ProfileStatus(t.Classify(score, len(fraud) > 0))

	return &models.Profile{
		CompanyID:     subject.CompanyID,
		OverallScore:  &score,
		Status:        status,
		Confidence:    confidence(answered, len(outcomes), total, t),
		Checks:        checks,
		Reasons:       platformstrings.DedupeAndTrim(reasons),
		RiskFactors:   platformstrings.DedupeAndTrim(risks),
		FraudKeywords: fraud,
		Source:        models.SourceLegacy,
		TableVersion:  t.Version,
	}
}

// confidence grows with the share of queries answered and the amount of
// evidence, capped below what the primary provider usually reports.
func confidence(answered, queried, results int, t *tables.Tables) float64 {
	if queried == 0 || results == 0 {
		return t.LegacyEmptyConfidence
	}
	coverage := float64(answered) / float64(queried)
	evidence := min(float64(results)/20, 1)
	return 0.2 + 0.5*coverage*evidence
}
