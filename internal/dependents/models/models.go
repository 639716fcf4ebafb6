package models

import (
	"net/url"
	"strings"
	"time"

	dErrors "trustex/pkg/domain-errors"
)

// Dependent is another ledger instance that receives pushed profiles.
type Dependent struct {
	Address      string    `json:"address"`
	RegisteredAt time.Time `json:"registered_at"`
}

// NormalizeAddress reduces an http(s) URL to scheme://host[:port], with no
// path, query or trailing slash.
func NormalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeValidation, "address is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "address is not a valid URL")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", dErrors.New(dErrors.CodeValidation, "address must be an http or https URL")
	}
	if u.Host == "" || u.User != nil {
		return "", dErrors.New(dErrors.CodeValidation, "address must name a host and carry no credentials")
	}
	if strings.Trim(u.Path, "/") != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", dErrors.New(dErrors.CodeValidation, "address must not carry a path or query")
	}
	return scheme + "://" + strings.ToLower(u.Host), nil
}

// ScanResult summarizes one scan for pending verification.
type ScanResult struct {
	Scanned int `json:"scanned"`
	Started int `json:"started"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}
