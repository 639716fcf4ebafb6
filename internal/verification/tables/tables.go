// Package tables holds the versioned calibration data used to classify
// verification scores and to derive profiles from legacy search results.
package tables

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTables []byte

// Status labels produced by Classify. They match the profile statuses.
const (
	StatusVerified   = "verified"
	StatusSuspicious = "suspicious"
	StatusFailed     = "failed"
)

type Thresholds struct {
	VerifiedMin   int `yaml:"verified_min"`
	SuspiciousMin int `yaml:"suspicious_min"`
}

// Query is one legacy search template. {name} and {symbol} are substituted.
type Query struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// Render fills the template placeholders.
func (q Query) Render(name, symbol string) string {
	r := strings.NewReplacer("{name}", name, "{symbol}", symbol)
	return strings.Join(strings.Fields(r.Replace(q.Template)), " ")
}

type Keyword struct {
	Term   string `yaml:"term"`
	Weight int    `yaml:"weight"`
}

type Signals struct {
	DescriptionMinLength int `yaml:"description_min_length"`
	YoungCompanyYears    int `yaml:"young_company_years"`
}

// Tables is one version of the calibration data.
type Tables struct {
	Version               string     `yaml:"version"`
	Thresholds            Thresholds `yaml:"thresholds"`
	LegacyBaseline        int        `yaml:"legacy_baseline"`
	LegacyEmptyConfidence float64    `yaml:"legacy_empty_confidence"`
	Queries               []Query    `yaml:"queries"`
	Keywords              []Keyword  `yaml:"keywords"`
	Disallowed            []string   `yaml:"disallowed"`
	Signals               Signals    `yaml:"signals"`
}

// Default returns the embedded tables.
func Default() *Tables {
	t, err := Parse(defaultTables)
	if err != nil {
		panic(fmt.Sprintf("embedded verification tables: %v", err))
	}
	return t
}

// Load reads tables from path, or returns the embedded default when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verification tables: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse verification tables: %w", err)
	}
	for i := range t.Keywords {
		t.Keywords[i].Term = strings.ToLower(strings.TrimSpace(t.Keywords[i].Term))
	}
	for i := range t.Disallowed {
		t.Disallowed[i] = strings.ToLower(strings.TrimSpace(t.Disallowed[i]))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tables) Validate() error {
	if strings.TrimSpace(t.Version) == "" {
		return fmt.Errorf("verification tables: version is required")
	}
	th := t.Thresholds
	if th.SuspiciousMin < 0 || th.VerifiedMin > 100 || th.SuspiciousMin > th.VerifiedMin {
		return fmt.Errorf("verification tables: thresholds must satisfy 0 <= suspicious_min <= verified_min <= 100")
	}
	if len(t.Queries) == 0 {
		return fmt.Errorf("verification tables: at least one query template is required")
	}
	for _, q := range t.Queries {
		if strings.TrimSpace(q.Template) == "" {
			return fmt.Errorf("verification tables: query %q has an empty template", q.Name)
		}
	}
	for _, k := range t.Keywords {
		if k.Term == "" {
			return fmt.Errorf("verification tables: keyword term must not be empty")
		}
	}
	if t.LegacyBaseline < 0 || t.LegacyBaseline > 100 {
		return fmt.Errorf("verification tables: legacy_baseline must be within 0..100")
	}
	return nil
}

// Classify maps a score to a status label. A disallowed keyword match forces
// failed regardless of the score.
func (t *Tables) Classify(score int, disallowedHit bool) string {
	switch {
	case disallowedHit:
		return StatusFailed
	case score >= t.Thresholds.VerifiedMin:
		return StatusVerified
	case score >= t.Thresholds.SuspiciousMin:
		return StatusSuspicious
	default:
		return StatusFailed
	}
}

// MatchDisallowed returns the disallowed terms contained in any of texts.
func (t *Tables) MatchDisallowed(texts ...string) []string {
	var hits []string
	for _, term := range t.Disallowed {
		for _, text := range texts {
			if strings.Contains(strings.ToLower(text), term) {
				hits = append(hits, term)
				break
			}
		}
	}
	return hits
}

// ClampScore bounds a score to 0..100.
func ClampScore(score int) int {
	return max(0, min(100, score))
}
