// Package scoring calls the external scoring provider with a locally built
// feature bundle.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trustex/internal/verification/models"
	"trustex/internal/verification/providers"
	"trustex/pkg/platform/circuit"
)

const (
	providerID = "scoring"
	scorePath  = "/v1/score"
)

type Config struct {
	URL              string
	Token            string
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	MaxResponseBytes int
}

// Client is the scoring provider client. Transient failures (timeouts, 5xx,
// 429) are retried with backoff up to MaxRetries; nothing else is.
type Client struct {
	http     *resty.Client
	breaker  *circuit.Breaker
	maxBytes int
	enabled  bool
	tracer   trace.Tracer
	logger   *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBreaker guards the provider with a circuit breaker. While open,
// Score fails fast so the caller moves to its fallback.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func New(cfg Config, opts ...Option) *Client {
	hc := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(max(cfg.MaxRetries, 0)).
		SetRetryWaitTime(cfg.RetryBackoff).
		SetRetryMaxWaitTime(4 * cfg.RetryBackoff).
		AddRetryCondition(isTransient)
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}
	if cfg.MaxResponseBytes > 0 {
		hc.SetResponseBodyLimit(cfg.MaxResponseBytes)
	}

	c := &Client{
		http:     hc,
		maxBytes: cfg.MaxResponseBytes,
		enabled:  cfg.URL != "",
		tracer:   otel.Tracer("trustex/verification/scoring"),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func isTransient(resp *resty.Response, err error) bool {
	if err != nil {
		return providers.IsTimeout(err)
	}
	status := resp.StatusCode()
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// Score submits one feature bundle. Every failure is a *providers.ProviderError.
func (c *Client) Score(ctx context.Context, bundle models.FeatureBundle) (*models.ScoringResult, error) {
	ctx, span := c.tracer.Start(ctx, "scoring.Score", trace.WithAttributes(
		attribute.String("company.name", bundle.CompanyName),
		attribute.Int("bundle.signals", len(bundle.Signals)),
	))
	defer span.End()

	result, err := c.score(ctx, bundle)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(providers.GetCategory(err)))
		c.record(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("score", *result.Score))
	c.record(nil)
	return result, nil
}

func (c *Client) score(ctx context.Context, bundle models.FeatureBundle) (*models.ScoringResult, error) {
	if !c.enabled {
		return nil, providers.NewProviderError(providers.ErrorProviderOutage, providerID, "scoring provider not configured", providers.ErrNotConfigured)
	}
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, providers.NewProviderError(providers.ErrorProviderOutage, providerID, "circuit open", providers.ErrCircuitOpen)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(bundle).
		Post(scorePath)
	if err != nil {
		switch {
		case errors.Is(err, resty.ErrResponseBodyTooLarge):
			return nil, providers.NewProviderError(providers.ErrorBudgetExceeded, providerID, "response exceeded size ceiling", err)
		case providers.IsTimeout(err):
			return nil, providers.NewProviderError(providers.ErrorTimeout, providerID, "request timed out", err)
		default:
			return nil, providers.NewProviderError(providers.ErrorProviderOutage, providerID, "request failed", err)
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, providers.NewProviderError(providers.CategoryForStatus(resp.StatusCode()), providerID,
			"unexpected status "+resp.Status(), nil)
	}
	if c.maxBytes > 0 && len(resp.Body()) > c.maxBytes {
		return nil, providers.NewProviderError(providers.ErrorBudgetExceeded, providerID, "response exceeded size ceiling", nil)
	}

	var result models.ScoringResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, providers.NewProviderError(providers.ErrorBadData, providerID, "malformed response", err)
	}
	if result.Score == nil || *result.Score < 0 || *result.Score > 100 {
		return nil, providers.NewProviderError(providers.ErrorContractMismatch, providerID, "score missing or outside 0..100", nil)
	}
	return &result, nil
}

func (c *Client) record(err error) {
	if c.breaker == nil {
		return
	}
	if err == nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.Info("scoring provider circuit closed")
		}
		return
	}
	switch providers.GetCategory(err) {
	case providers.ErrorTimeout, providers.ErrorProviderOutage, providers.ErrorRateLimited, providers.ErrorBudgetExceeded:
	default:
		// Caller or contract problems say nothing about provider health.
		return
	}
	if errors.Is(err, providers.ErrCircuitOpen) || errors.Is(err, providers.ErrNotConfigured) {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("scoring provider circuit opened", "error", err)
	}
}
