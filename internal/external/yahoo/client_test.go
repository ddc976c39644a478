package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/pkg/httputil"
	"github.com/trueequity/backend/pkg/logger"
)

const chartBody = `{
  "chart": {
    "result": [{
      "meta": {
        "symbol": "AAPL",
        "longName": "Apple Inc.",
        "exchangeName": "NMS",
        "regularMarketPrice": 187.44,
        "trailingPE": 30.0,
        "earningsQuarterlyGrowth": 0.15,
        "priceToBook": 45.2,
        "trailingEPS": 6.43,
        "sharesOutstanding": 15500000000
      },
      "timestamp": [1717421400, 1717507800, 1717594200],
      "indicators": {
        "quote": [{
          "open":   [192.9, 194.6, null],
          "high":   [194.99, 195.32, 196.9],
          "low":    [192.52, 193.03, 194.87],
          "close":  [194.03, 194.35, 195.87],
          "volume": [50080500, 47471400, 54156800]
        }],
        "adjclose": [{"adjclose": [193.5, 193.8, 195.3]}]
      }
    }],
    "error": null
  }
}`

var testNow = time.Date(2026, 3, 16, 15, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := httputil.New(time.Second, logger.NewNop()).DisableRetry()
	return NewClient(httpClient, logger.NewNop(), Options{
		ChartBaseURL:   server.URL,
		QuoteBaseURL:   server.URL,
		ProfileBaseURL: server.URL,
		Clock:          contracts.ClockFunc(func() time.Time { return testNow }),
	})
}

func TestFetchPriceSeries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.URL.Query().Get("period1"))
		w.Write([]byte(chartBody))
	})

	bars, err := client.FetchPriceSeries(context.Background(), "aapl",
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)

	// third row has a null open and is skipped
	require.Len(t, bars, 2)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.True(t, bars[0].Close.Equal(decimal.RequireFromString("194.03")))
	assert.Equal(t, int64(50080500), bars[0].Volume)
	require.NotNil(t, bars[1].AdjustedClose)
	assert.True(t, bars[1].AdjustedClose.Equal(decimal.RequireFromString("193.8")))
}

func TestFetchPriceSeries_NormalizesSymbol(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/ADBE", r.URL.Path)
		assert.Equal(t, "60m", r.URL.Query().Get("interval"))
		w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	})

	bars, err := client.FetchPriceSeries(context.Background(), "ADOBE", time.Now().AddDate(0, 0, -60), time.Now(), contracts.IntervalHourly)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestFetchLatestPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartBody))
	})

	price, err := client.FetchLatestPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.True(t, price.Equal(decimal.RequireFromString("187.44")))
}

func TestFetchLatestPrice_UnknownSymbol(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	price, err := client.FetchLatestPrice(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, price)
}

func TestFetchLatestPrice_ServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchLatestPrice(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestFetchFundamentals(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartBody))
	})

	snap, err := client.FetchFundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, contracts.PeriodAnnual, snap.PeriodType)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), snap.PeriodEndDate)
	assert.True(t, snap.PERatio.Equal(decimal.NewFromInt(30)))
	// 0.15 growth is scaled to 15%, PEG = 30 / 15
	require.NotNil(t, snap.PEGRatio)
	assert.True(t, snap.PEGRatio.Equal(decimal.NewFromInt(2)))
	assert.True(t, snap.EPSTTM.Equal(decimal.RequireFromString("6.43")))
	assert.Equal(t, int64(15500000000), *snap.SharesOutstanding)
	assert.Nil(t, snap.DebtToEquity)
}

func TestFundamentalsFromMeta(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	now := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)

	t.Run("nothing useful is absent", func(t *testing.T) {
		assert.Nil(t, fundamentalsFromMeta("AAPL", chartMeta{PriceToBook: f(3)}, now))
	})

	t.Run("forward values used when trailing missing", func(t *testing.T) {
		snap := fundamentalsFromMeta("AAPL", chartMeta{ForwardPE: f(20), ForwardEPS: f(2.5)}, now)
		require.NotNil(t, snap)
		assert.True(t, snap.PERatio.Equal(decimal.NewFromInt(20)))
		assert.True(t, snap.EPSTTM.Equal(decimal.RequireFromString("2.5")))
		assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), snap.PeriodEndDate)
	})

	t.Run("negative growth yields no PEG", func(t *testing.T) {
		snap := fundamentalsFromMeta("AAPL", chartMeta{TrailingPE: f(20), EarningsQuarterlyGrowth: f(-0.3)}, now)
		require.NotNil(t, snap)
		assert.Nil(t, snap.PEGRatio)
	})

	t.Run("percentage growth used as-is", func(t *testing.T) {
		snap := fundamentalsFromMeta("AAPL", chartMeta{TrailingPE: f(25), EarningsQuarterlyGrowth: f(12.5)}, now)
		require.NotNil(t, snap)
		require.NotNil(t, snap.PEGRatio)
		assert.True(t, snap.PEGRatio.Equal(decimal.NewFromInt(2)))
	})
}

func TestFetchProfile_Quote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "MSFT", r.URL.Query().Get("symbols"))
		w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"MSFT","longName":"","shortName":"Microsoft","fullExchangeName":"NasdaqGS","sector":"Technology","industry":"null","marketCap":3100000000000}]}}`))
	})

	info, err := client.FetchProfile(context.Background(), "msft")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "MSFT", info.Symbol)
	assert.Equal(t, "Microsoft", info.Name)
	assert.Equal(t, "NasdaqGS", info.Exchange)
	assert.Equal(t, "Technology", *info.Sector)
	assert.Nil(t, info.Industry)
	assert.Equal(t, int64(3100000000000), *info.MarketCap)
	assert.Equal(t, testNow, info.UpdatedAt)
}

func TestFetchProfile_FallsBackToChartThenPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v7/"):
			w.WriteHeader(http.StatusUnauthorized)
		case strings.HasPrefix(r.URL.Path, "/v8/"):
			w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"NVDA","longName":"null"}}]}}`))
		default:
			assert.Equal(t, "/quote/NVDA/profile", r.URL.Path)
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><body><h1>NVIDIA Corporation (NVDA)</h1>
				<dl><dt>Sector:</dt><dd>Technology</dd><dt>Industry:</dt><dd>Semiconductors</dd></dl>
				</body></html>`))
		}
	})

	info, err := client.FetchProfile(context.Background(), "NVDA")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "NVIDIA Corporation", info.Name)
	assert.Equal(t, "NASDAQ", info.Exchange)
	assert.Equal(t, "Semiconductors", *info.Industry)
}

func TestFetchProfile_AllSourcesEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	info, err := client.FetchProfile(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestParseProfilePage(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<h1>Apple Inc. (AAPL)</h1><dl><dt>Sector(s)</dt><dd> Technology </dd></dl>`))
	require.NoError(t, err)

	name, sector, industry := parseProfilePage(doc)
	assert.Equal(t, "Apple Inc.", name)
	assert.Equal(t, "Technology", sector)
	assert.Empty(t, industry)
}
