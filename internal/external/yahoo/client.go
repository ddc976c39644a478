package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/provider"
	"github.com/trueequity/backend/pkg/httputil"
	"github.com/trueequity/backend/pkg/logger"
)

const providerName = "Yahoo Finance"

// Options configures the Yahoo endpoints
type Options struct {
	ChartBaseURL    string // serves /v8/finance/chart/{symbol}
	QuoteBaseURL    string // serves /v7/finance/quote
	ProfileBaseURL  string // serves /quote/{symbol}/profile (HTML)
	DefaultExchange string
	Clock           contracts.Clock // stamps profiles and fundamentals; wall clock when nil
}

// Client is the cheap, unauthenticated market data source
// ⭐ SSOT: Yahoo Finance calls are made only from this client
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	opts       Options
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, log *logger.Logger, opts Options) *Client {
	if opts.ChartBaseURL == "" {
		opts.ChartBaseURL = "https://query1.finance.yahoo.com"
	}
	if opts.QuoteBaseURL == "" {
		opts.QuoteBaseURL = opts.ChartBaseURL
	}
	if opts.ProfileBaseURL == "" {
		opts.ProfileBaseURL = "https://finance.yahoo.com"
	}
	if opts.DefaultExchange == "" {
		opts.DefaultExchange = "NASDAQ"
	}
	if opts.Clock == nil {
		opts.Clock = contracts.SystemClock
	}

	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("yahoo"),
		opts:       opts,
	}
}

// Name implements contracts.Provider
func (c *Client) Name() string {
	return providerName
}

// HealthCheck implements contracts.Provider; the source needs no credentials
func (c *Client) HealthCheck(ctx context.Context) bool {
	return true
}

func (c *Client) chartURL(symbol string, params url.Values) string {
	return fmt.Sprintf("%s/v8/finance/chart/%s?%s",
		strings.TrimRight(c.opts.ChartBaseURL, "/"),
		url.PathEscape(provider.NormalizeForYahoo(symbol)),
		params.Encode())
}

func (c *Client) quoteURL(symbol string) string {
	params := url.Values{}
	params.Set("symbols", provider.NormalizeForYahoo(symbol))
	return fmt.Sprintf("%s/v7/finance/quote?%s", strings.TrimRight(c.opts.QuoteBaseURL, "/"), params.Encode())
}

func (c *Client) profileURL(symbol string) string {
	return fmt.Sprintf("%s/quote/%s/profile", strings.TrimRight(c.opts.ProfileBaseURL, "/"),
		url.PathEscape(provider.NormalizeForYahoo(symbol)))
}

// isNotFound reports whether err is an upstream 404, which means the symbol is unknown
func isNotFound(err error) bool {
	var statusErr *httputil.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// cleanText returns nil for empty or "null" strings
func cleanText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

var _ contracts.Provider = (*Client)(nil)
