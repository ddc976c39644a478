package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/provider"
	"github.com/trueequity/backend/pkg/httputil"
	"github.com/trueequity/backend/pkg/logger"
)

const providerName = "Alpha Vantage"

// Client is the rich, rate-limited fundamentals source
// ⭐ SSOT: Alpha Vantage calls are made only from this client
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	pacer      *provider.Pacer
	quota      *provider.DailyQuota
	clock      contracts.Clock
	baseURL    string
	apiKey     string
}

// NewClient creates a new Alpha Vantage client; pacer spaces every request and
// quota, when set, stops all calls for the day once spent
func NewClient(httpClient *httputil.Client, log *logger.Logger, pacer *provider.Pacer, quota *provider.DailyQuota, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co/query"
	}
	if pacer == nil {
		pacer = provider.NewPacer(12 * time.Second)
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("alphavantage"),
		pacer:      pacer,
		quota:      quota,
		clock:      contracts.SystemClock,
		baseURL:    baseURL,
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

// HealthCheck implements contracts.Provider; the source is usable only with an API key
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

// query calls one API function and returns the raw body, or nil when the
// upstream reports no data for the symbol
func (c *Client) query(ctx context.Context, function, symbol string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, contracts.ErrProviderUnavailable
	}
	if c.quota != nil {
		if err := c.quota.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", contracts.NormalizeSymbol(symbol))
	params.Set("apikey", c.apiKey)

	body, err := c.httpClient.GetBody(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s %s: %w", function, symbol, err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("alphavantage %s %s: decode: %w", function, symbol, err)
	}

	for _, key := range []string{"Note", "Information"} {
		msg, ok := stringField(envelope, key)
		if !ok {
			continue
		}
		if isDailyLimit(msg) {
			if c.quota != nil {
				c.quota.Exhaust()
			}
			return nil, fmt.Errorf("alphavantage %s %s: %w", function, symbol, contracts.ErrQuotaExhausted)
		}
		return nil, fmt.Errorf("alphavantage %s %s: %w", function, symbol, contracts.ErrRateLimited)
	}
	if msg, ok := stringField(envelope, "Error Message"); ok {
		c.logger.WithSymbol(symbol).WithField("function", function).WithField("message", msg).Debug("Upstream reported no data")
		return nil, nil
	}
	if len(envelope) == 0 {
		return nil, nil
	}
	return body, nil
}

// isDailyLimit reports whether an upstream notice is the per-day cap rather than the per-minute one
func isDailyLimit(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "per day") || strings.Contains(msg, "daily")
}

func stringField(m map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	return s, true
}

// value returns the field when present; "None", "-" and "" are absent
func value(m map[string]string, key string) (string, bool) {
	v := strings.TrimSpace(m[key])
	if v == "" || v == "None" || v == "-" {
		return "", false
	}
	return v, true
}

func decField(m map[string]string, key string) *decimal.Decimal {
	v, ok := value(m, key)
	if !ok {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	return &d
}

func intField(m map[string]string, key string) *int64 {
	d := decField(m, key)
	if d == nil {
		return nil
	}
	n := d.IntPart()
	return &n
}

var _ contracts.Provider = (*Client)(nil)
