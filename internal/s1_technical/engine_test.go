package s1_technical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/s0_data/memstore"
	"github.com/trueequity/backend/pkg/logger"
)

var testNow = time.Date(2026, 3, 16, 15, 0, 0, 0, time.UTC)

// seriesProvider serves canned closes per interval and counts calls
type seriesProvider struct {
	closes map[contracts.Interval][]decimal.Decimal
	fail   map[contracts.Interval]error
	calls  map[contracts.Interval]int
}

func newSeriesProvider() *seriesProvider {
	return &seriesProvider{
		closes: make(map[contracts.Interval][]decimal.Decimal),
		fail:   make(map[contracts.Interval]error),
		calls:  make(map[contracts.Interval]int),
	}
}

func (p *seriesProvider) Name() string { return "series" }

func (p *seriesProvider) FetchProfile(context.Context, string) (*contracts.Instrument, error) {
	return nil, nil
}

func (p *seriesProvider) FetchPriceSeries(_ context.Context, symbol string, start, _ time.Time, interval contracts.Interval) ([]contracts.PriceBar, error) {
	p.calls[interval]++
	if err := p.fail[interval]; err != nil {
		return nil, err
	}
	return barsFrom(symbol, start, p.closes[interval]), nil
}

func (p *seriesProvider) FetchLatestPrice(context.Context, string) (*decimal.Decimal, error) {
	return nil, nil
}

func (p *seriesProvider) FetchFundamentals(context.Context, string) (*contracts.FundamentalSnapshot, error) {
	return nil, nil
}

func (p *seriesProvider) HealthCheck(context.Context) bool { return true }

func barsFrom(symbol string, start time.Time, closes []decimal.Decimal) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.PriceBar{
			Symbol: symbol, Timestamp: start.AddDate(0, 0, i),
			Open: c, High: c, Low: c, Close: c, Volume: 100,
		}
	}
	return bars
}

func newTestEngine(t *testing.T, provider contracts.Provider) (*Engine, *memstore.Store) {
	t.Helper()
	clock := contracts.ClockFunc(func() time.Time { return testNow })
	store := memstore.New(clock)
	return NewEngine(store, provider, clock, DefaultConfig(), logger.NewNop()), store
}

func storeDailyBars(t *testing.T, store *memstore.Store, closes []decimal.Decimal) {
	t.Helper()
	start := testNow.AddDate(0, 0, -len(closes)+1)
	_, err := store.UpsertPriceBars(context.Background(), barsFrom("AAPL", start, closes))
	require.NoError(t, err)
}

func TestCompute_DailyFastPathUsesStoredBars(t *testing.T) {
	provider := newSeriesProvider()
	engine, store := newTestEngine(t, provider)
	storeDailyBars(t, store, series(100, 0.5, 20))

	rsi, err := engine.Compute(context.Background(), "AAPL", contracts.Timeframe1D)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(rsi))
	assert.Zero(t, provider.calls[contracts.IntervalMonthly], "fast path must not call the provider")
}

func TestCompute_DailyFallsBackToMonthlyBars(t *testing.T) {
	tests := []struct {
		name   string
		stored int
	}{
		{"no stored bars", 0},
		{"below the fast path minimum", 10},
		{"at the minimum but one short of a full window", 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newSeriesProvider()
			provider.closes[contracts.IntervalMonthly] = alternating(16)
			engine, store := newTestEngine(t, provider)
			if tt.stored > 0 {
				storeDailyBars(t, store, series(100, 1, tt.stored))
			}

			rsi, err := engine.Compute(context.Background(), "AAPL", contracts.Timeframe1D)
			require.NoError(t, err)
			assert.Equal(t, 1, provider.calls[contracts.IntervalMonthly])
			assert.True(t, rsi.LessThan(decimal.NewFromInt(100)))
		})
	}
}

func TestCompute_TimeframesUseDistinctGranularity(t *testing.T) {
	provider := newSeriesProvider()
	provider.closes[contracts.IntervalHourly] = alternating(40)
	provider.closes[contracts.IntervalDaily] = series(100, 1, 20)
	provider.closes[contracts.IntervalWeekly] = series(200, -1, 20)
	engine, store := newTestEngine(t, provider)
	storeDailyBars(t, store, series(100, 0.5, 20))

	ctx := context.Background()
	hourly, err := engine.Compute(ctx, "AAPL", contracts.Timeframe1H)
	require.NoError(t, err)
	daily, err := engine.Compute(ctx, "AAPL", contracts.Timeframe1D)
	require.NoError(t, err)

	// 1h and 1d read different bar sizes on the same day; equality is not required
	assert.False(t, hourly.Equal(daily), "1h=%s 1d=%s", hourly, daily)

	thirty, err := engine.Compute(ctx, "AAPL", contracts.Timeframe30M)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(thirty))

	twoHour, err := engine.Compute(ctx, "AAPL", contracts.Timeframe2H)
	require.NoError(t, err)
	assert.True(t, twoHour.IsZero())

	assert.Equal(t, 1, provider.calls[contracts.IntervalHourly])
	assert.Equal(t, 1, provider.calls[contracts.IntervalDaily])
	assert.Equal(t, 1, provider.calls[contracts.IntervalWeekly])
}

func TestCompute_Errors(t *testing.T) {
	provider := newSeriesProvider()
	provider.closes[contracts.IntervalHourly] = series(100, 1, 5)
	provider.fail[contracts.IntervalWeekly] = errors.New("boom")
	engine, _ := newTestEngine(t, provider)
	ctx := context.Background()

	_, err := engine.Compute(ctx, "AAPL", contracts.Timeframe1H)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)

	_, err = engine.Compute(ctx, "AAPL", contracts.Timeframe2H)
	assert.ErrorContains(t, err, "boom")

	_, err = engine.Compute(ctx, "AAPL", "5m")
	assert.ErrorIs(t, err, contracts.ErrUnsupportedTimeframe)
}

func TestGet_ComputesOnceThenServesFromStore(t *testing.T) {
	provider := newSeriesProvider()
	provider.closes[contracts.IntervalHourly] = alternating(30)
	engine, store := newTestEngine(t, provider)
	ctx := context.Background()

	first, err := engine.Get(ctx, "aapl", contracts.Timeframe1H)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), first.Date)

	second, err := engine.Get(ctx, "AAPL", contracts.Timeframe1H)
	require.NoError(t, err)
	assert.True(t, first.RSI.Equal(second.RSI))
	assert.Equal(t, 1, provider.calls[contracts.IntervalHourly])

	stored, err := store.GetLatestIndicator(ctx, "AAPL", contracts.Timeframe1H)
	require.NoError(t, err)
	require.NotNil(t, stored)

	_, err = engine.Get(ctx, "AAPL", "weekly")
	assert.ErrorIs(t, err, contracts.ErrUnsupportedTimeframe)
}

func TestRefreshAll_IsolatesFailures(t *testing.T) {
	provider := newSeriesProvider()
	provider.closes[contracts.IntervalHourly] = alternating(30)
	provider.closes[contracts.IntervalDaily] = series(100, 1, 20)
	provider.fail[contracts.IntervalWeekly] = errors.New("upstream down")
	engine, store := newTestEngine(t, provider)
	storeDailyBars(t, store, series(100, 0.5, 20))

	stored, err := engine.RefreshAll(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorContains(t, err, "2h")
	assert.Len(t, stored, 3)

	missing, err := store.GetLatestIndicator(context.Background(), "AAPL", contracts.Timeframe2H)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
