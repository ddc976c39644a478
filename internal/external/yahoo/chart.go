package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

type chartMeta struct {
	Symbol             string   `json:"symbol"`
	LongName           string   `json:"longName"`
	ShortName          string   `json:"shortName"`
	ExchangeName       string   `json:"exchangeName"`
	Sector             string   `json:"sector"`
	Industry           string   `json:"industry"`
	MarketCap          *float64 `json:"marketCap"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`

	TrailingPE                   *float64 `json:"trailingPE"`
	ForwardPE                    *float64 `json:"forwardPE"`
	EarningsQuarterlyGrowth      *float64 `json:"earningsQuarterlyGrowth"`
	PriceToBook                  *float64 `json:"priceToBook"`
	PriceToSalesTrailing12Months *float64 `json:"priceToSalesTrailing12Months"`
	EnterpriseToEbitda           *float64 `json:"enterpriseToEbitda"`
	TrailingEPS                  *float64 `json:"trailingEPS"`
	ForwardEPS                   *float64 `json:"forwardEPS"`
	SharesOutstanding            *float64 `json:"sharesOutstanding"`
	FloatShares                  *float64 `json:"floatShares"`
}

// fetchChart returns the first chart result, or nil when Yahoo has none for the symbol
func (c *Client) fetchChart(ctx context.Context, symbol string, params url.Values) (*chartResult, error) {
	var resp chartResponse
	if err := c.httpClient.GetJSON(ctx, c.chartURL(symbol, params), &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}

	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}
	return &resp.Chart.Result[0], nil
}

// FetchPriceSeries implements contracts.Provider
func (c *Client) FetchPriceSeries(ctx context.Context, symbol string, start, end time.Time, interval contracts.Interval) ([]contracts.PriceBar, error) {
	if interval == "" {
		interval = contracts.IntervalDaily
	}

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", string(interval))

	result, err := c.fetchChart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	bars := parseBars(contracts.NormalizeSymbol(symbol), result)

	c.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"interval": interval,
		"count":    len(bars),
	}).Debug("Fetched price series")
	return bars, nil
}

// parseBars converts the columnar chart arrays, skipping any row with a null OHLCV element
func parseBars(symbol string, result *chartResult) []contracts.PriceBar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	q := result.Indicators.Quote[0]

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]contracts.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open, high, low, cls, vol := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i), at(q.Volume, i)
		if open == nil || high == nil || low == nil || cls == nil || vol == nil {
			continue
		}

		bar := contracts.PriceBar{
			Symbol:    symbol,
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      decimal.NewFromFloat(*open),
			High:      decimal.NewFromFloat(*high),
			Low:       decimal.NewFromFloat(*low),
			Close:     decimal.NewFromFloat(*cls),
			Volume:    int64(*vol),
		}
		if a := at(adj, i); a != nil {
			d := decimal.NewFromFloat(*a)
			bar.AdjustedClose = &d
		}
		bars = append(bars, bar)
	}
	return bars
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

// FetchLatestPrice implements contracts.Provider
func (c *Client) FetchLatestPrice(ctx context.Context, symbol string) (*decimal.Decimal, error) {
	result, err := c.fetchChart(ctx, symbol, dailyParams())
	if err != nil || result == nil {
		return nil, err
	}

	p := result.Meta.RegularMarketPrice
	if p == nil || *p <= 0 {
		return nil, nil
	}
	price := decimal.NewFromFloat(*p)
	return &price, nil
}

// FetchFundamentals implements contracts.Provider with the sparse ratios found in chart metadata
func (c *Client) FetchFundamentals(ctx context.Context, symbol string) (*contracts.FundamentalSnapshot, error) {
	result, err := c.fetchChart(ctx, symbol, dailyParams())
	if err != nil || result == nil {
		return nil, err
	}

	snap := fundamentalsFromMeta(contracts.NormalizeSymbol(symbol), result.Meta, c.opts.Clock.Now().UTC())
	if snap == nil {
		c.logger.WithSymbol(symbol).Debug("No fundamentals in chart metadata")
	}
	return snap, nil
}

func fundamentalsFromMeta(symbol string, meta chartMeta, now time.Time) *contracts.FundamentalSnapshot {
	snap := contracts.FundamentalSnapshot{
		Symbol:        symbol,
		PeriodType:    contracts.PeriodAnnual,
		PeriodEndDate: truncateDay(now),
	}

	snap.PERatio = firstOf(meta.TrailingPE, meta.ForwardPE)

	if snap.PERatio != nil && meta.EarningsQuarterlyGrowth != nil && *meta.EarningsQuarterlyGrowth != 0 {
		growth := *meta.EarningsQuarterlyGrowth
		// fractions are reported as 0.12 for 12%
		if growth > -1 && growth < 1 {
			growth *= 100
		}
		if growth > 0 {
			peg := snap.PERatio.DivRound(decimal.NewFromFloat(growth), 4)
			snap.PEGRatio = &peg
		}
	}

	snap.PriceToBook = firstOf(meta.PriceToBook)
	snap.PriceToSales = firstOf(meta.PriceToSalesTrailing12Months)
	snap.EVToEBITDA = firstOf(meta.EnterpriseToEbitda)
	snap.EPSTTM = firstOf(meta.TrailingEPS, meta.ForwardEPS)
	snap.SharesOutstanding = toInt64(meta.SharesOutstanding)
	snap.FloatShares = toInt64(meta.FloatShares)

	if snap.PERatio == nil && snap.EPSTTM == nil && snap.SharesOutstanding == nil {
		return nil
	}
	snap.UpdatedAt = now
	return &snap
}

func dailyParams() url.Values {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", "1d")
	return params
}

func firstOf(values ...*float64) *decimal.Decimal {
	for _, v := range values {
		if v != nil {
			d := decimal.NewFromFloat(*v)
			return &d
		}
	}
	return nil
}

func toInt64(v *float64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
