package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/provider"
	"github.com/trueequity/backend/pkg/httputil"
	"github.com/trueequity/backend/pkg/logger"
)

const providerName = "Financial Modeling Prep"

// Client is the alternate rich source, bounded by a daily request quota
// ⭐ SSOT: Financial Modeling Prep calls are made only from this client
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	pacer      *provider.Pacer
	quota      *provider.DailyQuota
	clock      contracts.Clock
	baseURL    string
	apiKey     string
}

// NewClient creates a new FMP client
func NewClient(httpClient *httputil.Client, log *logger.Logger, pacer *provider.Pacer, quota *provider.DailyQuota, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://financialmodelingprep.com/stable"
	}
	if pacer == nil {
		pacer = provider.NewPacer(250 * time.Millisecond)
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("fmp"),
		pacer:      pacer,
		quota:      quota,
		clock:      contracts.SystemClock,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// WithClock sets the clock used for snapshot timestamps
func (c *Client) WithClock(clock contracts.Clock) *Client {
	if clock != nil {
		c.clock = clock
	}
	return c
}

// Name implements contracts.Provider
func (c *Client) Name() string {
	return providerName
}

// HealthCheck implements contracts.Provider
func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.apiKey != ""
}

// FetchPriceSeries implements contracts.Provider; prices are served by the cheap source
func (c *Client) FetchPriceSeries(ctx context.Context, symbol string, start, end time.Time, interval contracts.Interval) ([]contracts.PriceBar, error) {
	return nil, nil
}

// FetchLatestPrice implements contracts.Provider; prices are served by the cheap source
func (c *Client) FetchLatestPrice(ctx context.Context, symbol string) (*decimal.Decimal, error) {
	return nil, nil
}

// get fetches one endpoint into target and reports whether any rows came back.
// Quota exhaustion short-circuits before any I/O.
func (c *Client) get(ctx context.Context, path, symbol string, limit int, target interface{}) (bool, error) {
	if c.apiKey == "" {
		return false, contracts.ErrProviderUnavailable
	}
	if c.quota != nil {
		if err := c.quota.Acquire(ctx); err != nil {
			return false, err
		}
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return false, err
	}

	params := url.Values{}
	params.Set("symbol", contracts.NormalizeSymbol(symbol))
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	params.Set("apikey", c.apiKey)

	body, err := c.httpClient.GetBody(ctx, c.baseURL+path+"?"+params.Encode())
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			log := c.logger.WithSymbol(symbol).WithField("path", path).WithField("status", statusErr.StatusCode)
			if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
				log.Warn("API key rejected")
			} else {
				log.Debug("Upstream returned no data")
			}
			return false, nil
		}
		return false, fmt.Errorf("fmp %s %s: %w", path, symbol, err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return false, fmt.Errorf("fmp %s %s: decode: %w", path, symbol, err)
	}
	return true, nil
}

// logUsage reports quota consumption every 50 requests
func (c *Client) logUsage() {
	if c.quota == nil {
		return
	}
	if used := c.quota.Used(); used > 0 && used%50 == 0 {
		c.logger.WithFields(map[string]interface{}{
			"used":  used,
			"limit": c.quota.Limit(),
		}).Info("Daily request usage")
	}
}

var _ contracts.Provider = (*Client)(nil)
