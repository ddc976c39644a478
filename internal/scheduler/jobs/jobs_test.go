package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/s0_data/ingest"
	"github.com/trueequity/backend/internal/s0_data/memstore"
	"github.com/trueequity/backend/internal/s0_data/quality"
	"github.com/trueequity/backend/internal/scheduler"
	"github.com/trueequity/backend/pkg/logger"
)

var now = time.Date(2026, 3, 16, 15, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeRunner struct {
	cycles     [][]contracts.RefreshKind
	symbols    []string
	results    []ingest.Result
	err        error
	bootstrap  *ingest.BootstrapReport
	bootstraps int
}

func (r *fakeRunner) RunCycle(ctx context.Context, symbols []string, kinds ...contracts.RefreshKind) (*ingest.CycleReport, error) {
	r.cycles = append(r.cycles, kinds)
	r.symbols = symbols
	if r.err != nil {
		return nil, r.err
	}
	return &ingest.CycleReport{Symbols: len(symbols), Results: r.results}, nil
}

func (r *fakeRunner) Bootstrap(ctx context.Context, symbols []string) (*ingest.BootstrapReport, error) {
	r.bootstraps++
	if r.err != nil {
		return nil, r.err
	}
	return r.bootstrap, nil
}

type calendar bool

func (c calendar) IsOpen(time.Time) bool { return bool(c) }

func result(outcome contracts.RefreshOutcome) ingest.Result {
	return ingest.Result{Symbol: "AAPL", Kind: contracts.KindPrices, Outcome: outcome}
}

func TestCycleJobs_Kinds(t *testing.T) {
	runner := &fakeRunner{}
	universe := Static([]string{"AAPL", "MSFT"})
	log := logger.NewNop()

	tests := []struct {
		job  *CycleJob
		name string
		want []contracts.RefreshKind
	}{
		{
			NewIntradayRefreshJob("0 */15 9-16 * * MON-FRI", runner, universe, calendar(true), contracts.ClockFunc(func() time.Time { return now }), log),
			"intraday_refresh",
			[]contracts.RefreshKind{contracts.KindPrices, contracts.KindIndicators, contracts.KindFundamentals},
		},
		{
			NewFundamentalsDailyJob("0 0 18 * * MON-FRI", runner, universe, log),
			"fundamentals_daily",
			[]contracts.RefreshKind{contracts.KindFundamentals},
		},
		{
			NewScoreRefreshJob("0 0 * * * *", runner, universe, log),
			"score_refresh",
			[]contracts.RefreshKind{contracts.KindScore},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner.cycles = nil
			assert.Equal(t, tt.name, tt.job.Name())
			require.NoError(t, tt.job.Run(context.Background()))
			require.Len(t, runner.cycles, 1)
			assert.Equal(t, tt.want, runner.cycles[0])
			assert.Equal(t, []string{"AAPL", "MSFT"}, runner.symbols)
		})
	}
}

func TestIntradayRefreshJob_MarketClosed(t *testing.T) {
	runner := &fakeRunner{}
	job := NewIntradayRefreshJob("0 */15 9-16 * * MON-FRI", runner, Static([]string{"AAPL"}), calendar(false), nil, logger.NewNop())

	assert.ErrorIs(t, job.Run(context.Background()), scheduler.ErrSkipped)
	assert.Empty(t, runner.cycles)
}

func TestCycleJob_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		results []ingest.Result
		err     error
		wantErr bool
	}{
		{"all refreshed", []ingest.Result{result(contracts.OutcomeRefreshed), result(contracts.OutcomeSkipped)}, nil, false},
		{"partial failure", []ingest.Result{result(contracts.OutcomeRefreshed), result(contracts.OutcomeFailed)}, nil, false},
		{"every refresh failed", []ingest.Result{result(contracts.OutcomeFailed), result(contracts.OutcomeFailed)}, nil, true},
		{"empty universe", nil, nil, false},
		{"cancelled", nil, context.Canceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{results: tt.results, err: tt.err}
			job := NewScoreRefreshJob("0 0 * * * *", runner, Static([]string{"AAPL"}), logger.NewNop())

			err := job.Run(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestBootstrapJob(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		report  *ingest.BootstrapReport
		err     error
		wantErr bool
	}{
		{"some succeeded", []string{"AAPL", "BROKEN"}, &ingest.BootstrapReport{Succeeded: []string{"AAPL"}, Failed: []string{"BROKEN"}}, nil, false},
		{"all failed", []string{"BROKEN"}, &ingest.BootstrapReport{Failed: []string{"BROKEN"}}, nil, true},
		{"empty universe", nil, &ingest.BootstrapReport{}, nil, false},
		{"runner error", []string{"AAPL"}, nil, errors.New("store down"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{bootstrap: tt.report, err: tt.err}
			job := NewBootstrapJob(runner, Static(tt.symbols), logger.NewNop())

			err := job.Run(context.Background())
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, 1, runner.bootstraps)
		})
	}
}

type recordingSaver struct {
	saved []*contracts.DataQualitySnapshot
	err   error
}

func (s *recordingSaver) SaveSnapshot(ctx context.Context, snapshot *contracts.DataQualitySnapshot) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, snapshot)
	return nil
}

func TestDataQualityJob(t *testing.T) {
	ctx := context.Background()
	clock := contracts.ClockFunc(func() time.Time { return now })
	store := memstore.New(clock)

	_, err := store.UpsertPriceBars(ctx, []contracts.PriceBar{{
		Symbol:    "AAPL",
		Timestamp: now.Truncate(24 * time.Hour),
		Open:      dec("100"), High: dec("105"), Low: dec("99"), Close: dec("104"),
		Volume: 1000,
	}})
	require.NoError(t, err)

	gate := quality.NewQualityGate(store, quality.DefaultConfig())
	universe := Static([]string{"AAPL", "MSFT"})

	t.Run("saves snapshot", func(t *testing.T) {
		saver := &recordingSaver{}
		job := NewDataQualityJob("0 30 18 * * MON-FRI", gate, saver, universe, clock, logger.NewNop())

		require.NoError(t, job.Run(ctx))
		require.Len(t, saver.saved, 1)
		snap := saver.saved[0]
		assert.Equal(t, 2, snap.TotalStocks)
		assert.Zero(t, snap.ValidStocks)
		assert.InDelta(t, 0.5, snap.Coverage["price"], 1e-9)
		assert.False(t, snap.Passed)
	})

	t.Run("without saver", func(t *testing.T) {
		job := NewDataQualityJob("0 30 18 * * MON-FRI", gate, nil, universe, clock, logger.NewNop())
		assert.NoError(t, job.Run(ctx))
	})

	t.Run("save failure", func(t *testing.T) {
		job := NewDataQualityJob("0 30 18 * * MON-FRI", gate, &recordingSaver{err: errors.New("db down")}, universe, clock, logger.NewNop())
		assert.ErrorContains(t, job.Run(ctx), "db down")
	})
}
