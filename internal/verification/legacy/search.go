// Package legacy implements the slower fallback path: one search call per
// query template, aggregated and scored with the calibration tables.
package legacy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"trustex/internal/verification/providers"
)

const searchProviderID = "search"

type SearchConfig struct {
	URL              string
	Token            string
	Timeout          time.Duration
	MaxResponseBytes int
}

// SearchClient queries the generic search surface. Calls are never retried.
type SearchClient struct {
	http     *resty.Client
	maxBytes int
	enabled  bool
}

func NewSearchClient(cfg SearchConfig) *SearchClient {
	hc := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json, text/plain")
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}
	if cfg.MaxResponseBytes > 0 {
		hc.SetResponseBodyLimit(cfg.MaxResponseBytes)
	}
	return &SearchClient{http: hc, maxBytes: cfg.MaxResponseBytes, enabled: cfg.URL != ""}
}

// Search returns the raw response body for query.
func (c *SearchClient) Search(ctx context.Context, query string) ([]byte, error) {
	if !c.enabled {
		return nil, providers.NewProviderError(providers.ErrorProviderOutage, searchProviderID, "search surface not configured", providers.ErrNotConfigured)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		Get("/search")
	if err != nil {
		switch {
		case errors.Is(err, resty.ErrResponseBodyTooLarge):
			return nil, providers.NewProviderError(providers.ErrorBudgetExceeded, searchProviderID, "response exceeded size ceiling", err)
		case providers.IsTimeout(err):
			return nil, providers.NewProviderError(providers.ErrorTimeout, searchProviderID, "request timed out", err)
		default:
			return nil, providers.NewProviderError(providers.ErrorProviderOutage, searchProviderID, "request failed", err)
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, providers.NewProviderError(providers.CategoryForStatus(resp.StatusCode()), searchProviderID,
			"unexpected status "+resp.Status(), nil)
	}
	if c.maxBytes > 0 && len(resp.Body()) > c.maxBytes {
		return nil, providers.NewProviderError(providers.ErrorBudgetExceeded, searchProviderID, "response exceeded size ceiling", nil)
	}
	return resp.Body(), nil
}
