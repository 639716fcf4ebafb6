// Package client talks to dependent ledger instances over the propagation
// contract.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"trustex/contracts/propagation"
	"trustex/internal/verification/providers"
)

const providerID = "dependent"

type Config struct {
	PushKey          string
	Timeout          time.Duration
	MaxResponseBytes int
}

// Client pushes profiles and reads company listings. Calls are not retried;
// the next completed verification or scan supersedes a lost one.
type Client struct {
	http     *resty.Client
	pushKey  string
	maxBytes int
}

func New(cfg Config) *Client {
	hc := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.MaxResponseBytes > 0 {
		hc.SetResponseBodyLimit(cfg.MaxResponseBytes)
	}
	return &Client{http: hc, pushKey: cfg.PushKey, maxBytes: cfg.MaxResponseBytes}
}

// Push delivers one profile to address. Any 2xx is accepted.
func (c *Client) Push(ctx context.Context, address string, push propagation.ProfilePush) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(push)
	if c.pushKey != "" {
		req.SetHeader(propagation.PushKeyHeader, c.pushKey)
	}
	resp, err := req.Post(address + propagation.PushPath)
	if err != nil {
		return transportError(err)
	}
	if !resp.IsSuccess() {
		return providers.NewProviderError(providers.CategoryForStatus(resp.StatusCode()), providerID,
			"push rejected with "+resp.Status(), nil)
	}
	return nil
}

// ListCompanies reads the companies hosted by address.
func (c *Client) ListCompanies(ctx context.Context, address string) ([]propagation.CompanyListing, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(address + propagation.CompaniesPath)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, providers.NewProviderError(providers.CategoryForStatus(resp.StatusCode()), providerID,
			"unexpected status "+resp.Status(), nil)
	}
	if c.maxBytes > 0 && len(resp.Body()) > c.maxBytes {
		return nil, providers.NewProviderError(providers.ErrorBudgetExceeded, providerID, "response exceeded size ceiling", nil)
	}
	var body propagation.CompaniesResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, providers.NewProviderError(providers.ErrorBadData, providerID, "malformed company listing", err)
	}
	return body.Companies, nil
}

func transportError(err error) error {
	switch {
	case errors.Is(err, resty.ErrResponseBodyTooLarge):
		return providers.NewProviderError(providers.ErrorBudgetExceeded, providerID, "response exceeded size ceiling", err)
	case providers.IsTimeout(err):
		return providers.NewProviderError(providers.ErrorTimeout, providerID, "request timed out", err)
	default:
		return providers.NewProviderError(providers.ErrorProviderOutage, providerID, "request failed", err)
	}
}
