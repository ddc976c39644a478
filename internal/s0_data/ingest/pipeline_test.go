package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/s0_data/memstore"
	"github.com/trueequity/backend/pkg/logger"
)

var testStart = time.Date(2026, 3, 16, 15, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubProvider serves canned data and counts calls per operation
type stubProvider struct {
	mu           sync.Mutex
	profile      *contracts.Instrument
	bars         []contracts.PriceBar
	fundamentals *contracts.FundamentalSnapshot
	failing      map[string]map[string]bool // symbol -> operation
	calls        map[string]int
	lastStart    time.Time
	lastEnd      time.Time
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		failing: make(map[string]map[string]bool),
		calls:   make(map[string]int),
	}
}

func (s *stubProvider) fail(symbol, op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[symbol] == nil {
		s.failing[symbol] = make(map[string]bool)
	}
	s.failing[symbol][op] = true
}

func (s *stubProvider) record(symbol, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if s.failing[symbol][op] {
		return fmt.Errorf("%s %s: upstream unavailable", op, symbol)
	}
	return nil
}

func (s *stubProvider) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *stubProvider) window() (time.Time, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStart, s.lastEnd
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) FetchProfile(_ context.Context, symbol string) (*contracts.Instrument, error) {
	if err := s.record(symbol, "profile"); err != nil {
		return nil, err
	}
	if s.profile == nil {
		return nil, nil
	}
	p := *s.profile
	p.Symbol = symbol
	return &p, nil
}

func (s *stubProvider) FetchPriceSeries(_ context.Context, symbol string, start, end time.Time, _ contracts.Interval) ([]contracts.PriceBar, error) {
	if err := s.record(symbol, "prices"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastStart, s.lastEnd = start, end
	s.mu.Unlock()
	out := make([]contracts.PriceBar, len(s.bars))
	copy(out, s.bars)
	return out, nil
}

func (s *stubProvider) FetchLatestPrice(_ context.Context, symbol string) (*decimal.Decimal, error) {
	if err := s.record(symbol, "latest"); err != nil {
		return nil, err
	}
	if len(s.bars) == 0 {
		return nil, nil
	}
	last := s.bars[len(s.bars)-1].Close
	return &last, nil
}

func (s *stubProvider) FetchFundamentals(_ context.Context, symbol string) (*contracts.FundamentalSnapshot, error) {
	if err := s.record(symbol, "fundamentals"); err != nil {
		return nil, err
	}
	if s.fundamentals == nil {
		return nil, nil
	}
	f := *s.fundamentals
	return &f, nil
}

func (s *stubProvider) HealthCheck(context.Context) bool { return true }

// stubScorer returns a fixed score for any symbol with a stored close
type stubScorer struct {
	store contracts.Gateway
	clock contracts.Clock
	calls int
}

func (s *stubScorer) Score(ctx context.Context, symbol string) (*contracts.ScoreSnapshot, error) {
	s.calls++
	last, err := s.store.GetLatestClose(ctx, symbol)
	if err != nil || last == nil {
		return nil, err
	}
	return &contracts.ScoreSnapshot{
		ID:           uuid.New(),
		Symbol:       symbol,
		CalculatedAt: s.clock.Now(),
		OverallScore: decimal.NewFromInt(75),
		OverallGrade: contracts.GradeC,
	}, nil
}

type stubIndicators struct {
	stored []contracts.IndicatorSnapshot
	err    error
}

func (s *stubIndicators) RefreshAll(context.Context, string) ([]contracts.IndicatorSnapshot, error) {
	return s.stored, s.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []contracts.RefreshEvent
}

func (r *recordingSink) Publish(e contracts.RefreshEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func dailyBars(symbol string, end time.Time, n int) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, 0, n)
	for i := n - 1; i >= 0; i-- {
		price := decimal.NewFromInt(100).Add(decimal.NewFromFloat(0.5).Mul(decimal.NewFromInt(int64(n - i))))
		bars = append(bars, contracts.PriceBar{
			Symbol:    symbol,
			Timestamp: end.AddDate(0, 0, -i),
			Open:      price,
			High:      price.Add(decimal.NewFromInt(1)),
			Low:       price.Sub(decimal.NewFromInt(1)),
			Close:     price,
			Volume:    1_000_000,
		})
	}
	return bars
}

type fixture struct {
	clock      *manualClock
	store      *memstore.Store
	provider   *stubProvider
	scorer     *stubScorer
	indicators *stubIndicators
	sink       *recordingSink
	pipeline   *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &manualClock{now: testStart}
	store := memstore.New(clock)
	provider := newStubProvider()
	scorer := &stubScorer{store: store, clock: clock}
	indicators := &stubIndicators{}
	sink := &recordingSink{}

	pipeline := NewPipeline(store, provider, scorer, indicators, clock, DefaultConfig(), logger.NewNop()).
		WithEventSink(sink)

	return &fixture{
		clock:      clock,
		store:      store,
		provider:   provider,
		scorer:     scorer,
		indicators: indicators,
		sink:       sink,
		pipeline:   pipeline,
	}
}

func strPtr(s string) *string { return &s }

func TestRefreshProfile_StalenessGate(t *testing.T) {
	f := newFixture(t)
	f.provider.profile = &contracts.Instrument{Name: "Apple Inc.", Exchange: "NASDAQ"}
	ctx := context.Background()

	res, err := f.pipeline.RefreshProfile(ctx, "aapl", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeRefreshed, res.Outcome)
	assert.Equal(t, "AAPL", res.Symbol)

	f.clock.Advance(6*24*time.Hour + 23*time.Hour)
	res, err = f.pipeline.RefreshProfile(ctx, "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSkipped, res.Outcome)
	assert.Equal(t, 1, f.provider.count("profile"))

	res, err = f.pipeline.RefreshProfile(ctx, "AAPL", true)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeRefreshed, res.Outcome, "force bypasses the gate")
	assert.Equal(t, 2, f.provider.count("profile"))

	f.clock.Advance(7 * 24 * time.Hour)
	res, err = f.pipeline.RefreshProfile(ctx, "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeRefreshed, res.Outcome)
	assert.Equal(t, 3, f.provider.count("profile"))
}

func TestRefreshProfile_AbsentCreatesStub(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.pipeline.RefreshProfile(ctx, "ZZZZ", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeAbsent, res.Outcome)

	inst, err := f.store.GetInstrument(ctx, "ZZZZ")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "ZZZZ Corp", inst.Name)
	assert.Equal(t, "NASDAQ", inst.Exchange)

	// the stub counts as a profile refresh for the gate
	res, err = f.pipeline.RefreshProfile(ctx, "ZZZZ", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSkipped, res.Outcome)
}

func TestRefreshProfile_AbsentKeepsExistingRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.UpsertInstrument(ctx, contracts.Instrument{Symbol: "MSFT", Name: "Microsoft", Exchange: "NASDAQ"}))

	res, err := f.pipeline.RefreshProfile(ctx, "MSFT", true)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeAbsent, res.Outcome)

	inst, err := f.store.GetInstrument(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft", inst.Name)
}

func TestRefreshProfile_RejectsUnusableName(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"literal null", "null"},
		{"placeholder", "AAPL Corp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.provider.profile = &contracts.Instrument{Name: tt.in, Exchange: "NASDAQ"}

			res, err := f.pipeline.RefreshProfile(context.Background(), "AAPL", true)
			require.NoError(t, err)
			assert.Equal(t, contracts.OutcomeAbsent, res.Outcome)

			exists, err := f.store.InstrumentExists(context.Background(), "AAPL")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestRefreshProfile_PreservesOptionalFieldsAndDefaultsExchange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.provider.profile = &contracts.Instrument{Name: "Adobe Inc.", Exchange: "NASDAQ", Sector: strPtr("Technology")}
	_, err := f.pipeline.RefreshProfile(ctx, "ADBE", true)
	require.NoError(t, err)

	f.provider.profile = &contracts.Instrument{Name: "Adobe Inc."}
	_, err = f.pipeline.RefreshProfile(ctx, "ADBE", true)
	require.NoError(t, err)

	inst, err := f.store.GetInstrument(ctx, "ADBE")
	require.NoError(t, err)
	require.NotNil(t, inst.Sector)
	assert.Equal(t, "Technology", *inst.Sector)
	assert.Equal(t, "NASDAQ", inst.Exchange)
}

func TestRefreshProfile_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.fail("AAPL", "profile")

	res, err := f.pipeline.RefreshProfile(context.Background(), "AAPL", true)
	require.Error(t, err)
	assert.Equal(t, contracts.OutcomeFailed, res.Outcome)
	assert.NotEmpty(t, res.Error)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, contracts.OutcomeFailed, f.sink.events[0].Outcome)
	assert.Equal(t, contracts.KindProfile, f.sink.events[0].Kind)
}

func TestRefreshPrices(t *testing.T) {
	invalid := func(b contracts.PriceBar) contracts.PriceBar {
		b.High = b.Low.Sub(decimal.NewFromInt(1))
		return b
	}

	tests := []struct {
		name        string
		bars        func() []contracts.PriceBar
		wantOutcome contracts.RefreshOutcome
		wantCount   int
		wantStub    bool
	}{
		{
			name:        "all valid",
			bars:        func() []contracts.PriceBar { return dailyBars("NVDA", testStart, 5) },
			wantOutcome: contracts.OutcomeRefreshed,
			wantCount:   5,
			wantStub:    true,
		},
		{
			name: "invalid bars are dropped",
			bars: func() []contracts.PriceBar {
				bars := dailyBars("NVDA", testStart, 5)
				bars[1] = invalid(bars[1])
				bars[3].Volume = 0
				return bars
			},
			wantOutcome: contracts.OutcomeRefreshed,
			wantCount:   3,
			wantStub:    true,
		},
		{
			name: "all invalid is a no-op",
			bars: func() []contracts.PriceBar {
				bars := dailyBars("NVDA", testStart, 2)
				bars[0] = invalid(bars[0])
				bars[1].Close = decimal.Zero
				return bars
			},
			wantOutcome: contracts.OutcomeSkipped,
		},
		{
			name:        "no bars",
			bars:        func() []contracts.PriceBar { return nil },
			wantOutcome: contracts.OutcomeAbsent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.provider.bars = tt.bars()
			ctx := context.Background()

			res, err := f.pipeline.RefreshPrices(ctx, "nvda", testStart.AddDate(0, 0, -7), testStart)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantCount, res.Count)

			stored, err := f.store.GetPriceBars(ctx, "NVDA", testStart.AddDate(0, 0, -30), testStart)
			require.NoError(t, err)
			assert.Len(t, stored, tt.wantCount)

			exists, err := f.store.InstrumentExists(ctx, "NVDA")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStub, exists)
		})
	}
}

func TestRefreshPrices_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.provider.bars = dailyBars("META", testStart, 10)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := f.pipeline.RefreshLatestPrice(ctx, "META")
		require.NoError(t, err)
		assert.Equal(t, 10, res.Count)
	}

	stored, err := f.store.GetPriceBars(ctx, "META", testStart.AddDate(0, 0, -30), testStart)
	require.NoError(t, err)
	assert.Len(t, stored, 10)
}

func TestRefreshFundamentals_Gate(t *testing.T) {
	f := newFixture(t)
	f.provider.fundamentals = &contracts.FundamentalSnapshot{PERatio: decimalPtr("21.5")}
	ctx := context.Background()

	res, err := f.pipeline.RefreshFundamentals(ctx, "TSLA", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeRefreshed, res.Outcome)

	exists, err := f.store.InstrumentExists(ctx, "TSLA")
	require.NoError(t, err)
	assert.True(t, exists, "parent row is created before the write")

	stored, err := f.store.GetLatestFundamentals(ctx, "TSLA")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, contracts.PeriodAnnual, stored.PeriodType)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), stored.PeriodEndDate)
	assert.Equal(t, "21.5", stored.PERatio.String())

	f.clock.Advance(11 * time.Hour)
	res, err = f.pipeline.RefreshFundamentals(ctx, "TSLA", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSkipped, res.Outcome)
	assert.Equal(t, 1, f.provider.count("fundamentals"))

	f.clock.Advance(time.Hour)
	res, err = f.pipeline.RefreshFundamentals(ctx, "TSLA", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeRefreshed, res.Outcome)
	assert.Equal(t, 2, f.provider.count("fundamentals"))
}

func TestRefreshFundamentals_AbsentStillCreatesParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.pipeline.RefreshFundamentals(ctx, "GOOGL", true)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeAbsent, res.Outcome)

	exists, err := f.store.InstrumentExists(ctx, "GOOGL")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRefreshScore_Gate(t *testing.T) {
	tests := []struct {
		name    string
		between func(f *fixture)
		force   bool
		want    contracts.RefreshOutcome
	}{
		{
			name:    "fresh score without new data",
			between: func(f *fixture) { f.clock.Advance(30 * time.Minute) },
			want:    contracts.OutcomeSkipped,
		},
		{
			name:    "score older than an hour",
			between: func(f *fixture) { f.clock.Advance(time.Hour) },
			want:    contracts.OutcomeRefreshed,
		},
		{
			name: "new prices landed",
			between: func(f *fixture) {
				f.clock.Advance(10 * time.Minute)
				_, err := f.store.UpsertPriceBars(context.Background(), dailyBars("AMZN", f.clock.Now(), 1))
				if err != nil {
					panic(err)
				}
			},
			want: contracts.OutcomeRefreshed,
		},
		{
			name: "new fundamentals landed",
			between: func(f *fixture) {
				f.clock.Advance(10 * time.Minute)
				err := f.store.UpsertFundamentals(context.Background(), contracts.FundamentalSnapshot{
					Symbol:        "AMZN",
					PeriodType:    contracts.PeriodQuarterly,
					PeriodEndDate: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
				})
				if err != nil {
					panic(err)
				}
			},
			want: contracts.OutcomeRefreshed,
		},
		{
			name:    "forced",
			between: func(f *fixture) { f.clock.Advance(time.Minute) },
			force:   true,
			want:    contracts.OutcomeRefreshed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.store.UpsertPriceBars(ctx, dailyBars("AMZN", testStart, 3))
			require.NoError(t, err)

			f.clock.Advance(time.Minute)
			res, err := f.pipeline.RefreshScore(ctx, "AMZN", false)
			require.NoError(t, err)
			require.Equal(t, contracts.OutcomeRefreshed, res.Outcome)

			tt.between(f)
			res, err = f.pipeline.RefreshScore(ctx, "AMZN", tt.force)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Outcome)
		})
	}
}

func TestRefreshScore_AbsentInputs(t *testing.T) {
	f := newFixture(t)

	res, err := f.pipeline.RefreshScore(context.Background(), "AMZN", false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeAbsent, res.Outcome)

	score, err := f.store.GetLatestScore(context.Background(), "AMZN")
	require.NoError(t, err)
	assert.Nil(t, score)
}

func TestRefreshIndicators(t *testing.T) {
	one := []contracts.IndicatorSnapshot{{Symbol: "AAPL", Timeframe: contracts.Timeframe1D, RSI: decimal.NewFromInt(55)}}
	insufficient := fmt.Errorf("1h: %w", contracts.ErrInsufficientData)
	network := errors.New("2h: fetch 1wk bars: connection reset")

	tests := []struct {
		name      string
		stored    []contracts.IndicatorSnapshot
		err       error
		want      contracts.RefreshOutcome
		wantCount int
		wantErr   bool
	}{
		{"all timeframes", one, nil, contracts.OutcomeRefreshed, 1, false},
		{"some short of bars", one, errors.Join(insufficient), contracts.OutcomeRefreshed, 1, false},
		{"every timeframe short of bars", nil, errors.Join(insufficient, fmt.Errorf("30m: %w", contracts.ErrInsufficientData)), contracts.OutcomeAbsent, 0, false},
		{"transport failure", one, errors.Join(insufficient, network), contracts.OutcomeFailed, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.indicators.stored = tt.stored
			f.indicators.err = tt.err

			res, err := f.pipeline.RefreshIndicators(context.Background(), "AAPL")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, res.Outcome)
			assert.Equal(t, tt.wantCount, res.Count)
		})
	}
}

func decimalPtr(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}
