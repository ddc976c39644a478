package s1_technical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/pkg/logger"
)

// Config controls the RSI engine
type Config struct {
	Period               int
	Timeframes           []contracts.Timeframe // refreshed by RefreshAll, in order
	DailyFastPathDays    int
	DailyFastPathMinBars int
}

// DefaultConfig returns RSI(14) with a 30-day, 14-bar daily fast path
func DefaultConfig() Config {
	return Config{
		Period:               DefaultPeriod,
		Timeframes:           contracts.AllTimeframes,
		DailyFastPathDays:    30,
		DailyFastPathMinBars: 14,
	}
}

// Engine computes and persists RSI per timeframe
// ⭐ SSOT: indicator refresh and read path
type Engine struct {
	store    contracts.Gateway
	provider contracts.Provider
	clock    contracts.Clock
	config   Config
	logger   *logger.Logger
}

// NewEngine creates a new indicator engine
func NewEngine(store contracts.Gateway, provider contracts.Provider, clock contracts.Clock, config Config, log *logger.Logger) *Engine {
	if clock == nil {
		clock = contracts.SystemClock
	}
	def := DefaultConfig()
	if config.Period <= 1 {
		config.Period = def.Period
	}
	if len(config.Timeframes) == 0 {
		config.Timeframes = def.Timeframes
	}
	if config.DailyFastPathDays <= 0 {
		config.DailyFastPathDays = def.DailyFastPathDays
	}
	if config.DailyFastPathMinBars <= 0 {
		config.DailyFastPathMinBars = def.DailyFastPathMinBars
	}
	return &Engine{
		store:    store,
		provider: provider,
		clock:    clock,
		config:   config,
		logger:   log.WithComponent("rsi_engine"),
	}
}

// Compute calculates RSI for one timeframe without persisting it
func (e *Engine) Compute(ctx context.Context, symbol string, tf contracts.Timeframe) (decimal.Decimal, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	spec, err := SpecFor(tf)
	if err != nil {
		return decimal.Zero, err
	}

	if tf == contracts.Timeframe1D {
		rsi, ok, err := e.fromStoredBars(ctx, symbol)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			return rsi, nil
		}
	}

	end := e.clock.Now()
	start := end.AddDate(0, 0, -spec.LookbackDays)
	bars, err := e.provider.FetchPriceSeries(ctx, symbol, start, end, spec.Interval)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch %s bars for %s: %w", spec.Interval, symbol, err)
	}
	return CalculateRSI(Closes(bars), e.config.Period)
}

// fromStoredBars is the daily fast path over persisted bars
func (e *Engine) fromStoredBars(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	end := e.clock.Now()
	start := end.AddDate(0, 0, -e.config.DailyFastPathDays)
	bars, err := e.store.GetPriceBars(ctx, symbol, start, end)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("load stored bars for %s: %w", symbol, err)
	}
	if len(bars) < e.config.DailyFastPathMinBars {
		return decimal.Zero, false, nil
	}

	rsi, err := CalculateRSI(Closes(bars), e.config.Period)
	if errors.Is(err, contracts.ErrInsufficientData) {
		// enough rows for the gate but one short of period+1 deltas
		e.logger.WithSymbol(symbol).WithField("bars", len(bars)).Debug("Stored bars too short for RSI, fetching from provider")
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return rsi, true, nil
}

// Refresh computes RSI for one timeframe and stores it under today's date
func (e *Engine) Refresh(ctx context.Context, symbol string, tf contracts.Timeframe) (*contracts.IndicatorSnapshot, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	rsi, err := e.Compute(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}

	snap := contracts.IndicatorSnapshot{
		Symbol:    symbol,
		Date:      today(e.clock.Now()),
		Timeframe: tf,
		RSI:       rsi,
	}
	if err := e.store.UpsertIndicator(ctx, snap); err != nil {
		return nil, fmt.Errorf("store %s rsi for %s: %w", tf, symbol, err)
	}

	e.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"timeframe": string(tf),
		"rsi":       rsi.StringFixed(2),
	}).Debug("Stored RSI")

	return &snap, nil
}

// RefreshAll refreshes every configured timeframe; one failing timeframe does not stop the others
func (e *Engine) RefreshAll(ctx context.Context, symbol string) ([]contracts.IndicatorSnapshot, error) {
	var (
		stored []contracts.IndicatorSnapshot
		errs   []error
	)
	for _, tf := range e.config.Timeframes {
		snap, err := e.Refresh(ctx, symbol, tf)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tf, err))
			continue
		}
		stored = append(stored, *snap)
	}
	return stored, errors.Join(errs...)
}

// Get serves the latest stored RSI, computing and storing it when none exists
func (e *Engine) Get(ctx context.Context, symbol string, tf contracts.Timeframe) (*contracts.IndicatorSnapshot, error) {
	if _, err := SpecFor(tf); err != nil {
		return nil, err
	}

	stored, err := e.store.GetLatestIndicator(ctx, symbol, tf)
	if err != nil {
		return nil, fmt.Errorf("load %s rsi for %s: %w", tf, symbol, err)
	}
	if stored != nil {
		return stored, nil
	}
	return e.Refresh(ctx, symbol, tf)
}

func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
