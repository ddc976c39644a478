// Package memstore is an in-memory storage gateway used by tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
)

type fundamentalKey struct {
	symbol     string
	periodType contracts.PeriodType
	periodEnd  time.Time
}

type indicatorKey struct {
	symbol    string
	date      time.Time
	timeframe contracts.Timeframe
}

// Store implements contracts.Gateway with maps guarded by a mutex
type Store struct {
	clock contracts.Clock

	mu           sync.RWMutex
	instruments  map[string]contracts.Instrument
	prices       map[string]map[time.Time]stampedBar
	fundamentals map[fundamentalKey]contracts.FundamentalSnapshot
	scores       map[string]contracts.ScoreSnapshot
	indicators   map[indicatorKey]contracts.IndicatorSnapshot
}

type stampedBar struct {
	bar       contracts.PriceBar
	updatedAt time.Time
}

var _ contracts.Gateway = (*Store)(nil)

// New creates an empty store; a nil clock means the system clock
func New(clock contracts.Clock) *Store {
	if clock == nil {
		clock = contracts.SystemClock
	}
	return &Store{
		clock:        clock,
		instruments:  make(map[string]contracts.Instrument),
		prices:       make(map[string]map[time.Time]stampedBar),
		fundamentals: make(map[fundamentalKey]contracts.FundamentalSnapshot),
		scores:       make(map[string]contracts.ScoreSnapshot),
		indicators:   make(map[indicatorKey]contracts.IndicatorSnapshot),
	}
}

func requireSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol is required", contracts.ErrValidation)
	}
	return nil
}

// UpsertInstrument implements contracts.InstrumentStore
func (s *Store) UpsertInstrument(_ context.Context, inst contracts.Instrument) error {
	inst.Symbol = contracts.NormalizeSymbol(inst.Symbol)
	if err := requireSymbol(inst.Symbol); err != nil {
		return err
	}
	if strings.TrimSpace(inst.Name) == "" || strings.TrimSpace(inst.Exchange) == "" {
		return fmt.Errorf("%w: name and exchange are required for %s", contracts.ErrValidation, inst.Symbol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.instruments[inst.Symbol]; ok {
		if inst.Sector == nil {
			inst.Sector = prev.Sector
		}
		if inst.Industry == nil {
			inst.Industry = prev.Industry
		}
		if inst.MarketCap == nil {
			inst.MarketCap = prev.MarketCap
		}
	}
	inst.UpdatedAt = s.clock.Now()
	s.instruments[inst.Symbol] = inst
	return nil
}

// CreateInstrumentStub implements contracts.InstrumentStore
func (s *Store) CreateInstrumentStub(_ context.Context, symbol, exchange string) (bool, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	if err := requireSymbol(symbol); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instruments[symbol]; ok {
		return false, nil
	}
	s.instruments[symbol] = contracts.Instrument{
		Symbol:    symbol,
		Name:      contracts.PlaceholderName(symbol),
		Exchange:  exchange,
		UpdatedAt: s.clock.Now(),
	}
	return true, nil
}

// InstrumentExists implements contracts.InstrumentStore
func (s *Store) InstrumentExists(_ context.Context, symbol string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.instruments[contracts.NormalizeSymbol(symbol)]
	return ok, nil
}

// GetInstrument implements contracts.InstrumentStore
func (s *Store) GetInstrument(_ context.Context, symbol string) (*contracts.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instruments[contracts.NormalizeSymbol(symbol)]
	if !ok {
		return nil, nil
	}
	return &inst, nil
}

// ListSymbols implements contracts.InstrumentStore
func (s *Store) ListSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.instruments))
	for symbol := range s.instruments {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// UpsertPriceBars implements contracts.PriceStore
func (s *Store) UpsertPriceBars(_ context.Context, bars []contracts.PriceBar) (int, error) {
	for _, b := range bars {
		if err := requireSymbol(contracts.NormalizeSymbol(b.Symbol)); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for _, b := range bars {
		b.Symbol = contracts.NormalizeSymbol(b.Symbol)
		b.Timestamp = b.Date()
		series, ok := s.prices[b.Symbol]
		if !ok {
			series = make(map[time.Time]stampedBar)
			s.prices[b.Symbol] = series
		}
		series[b.Timestamp] = stampedBar{bar: b, updatedAt: now}
	}
	return len(bars), nil
}

// GetPriceBars implements contracts.PriceStore
func (s *Store) GetPriceBars(_ context.Context, symbol string, start, end time.Time) ([]contracts.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bars []contracts.PriceBar
	for day, sb := range s.prices[contracts.NormalizeSymbol(symbol)] {
		if day.Before(start) || day.After(end) {
			continue
		}
		bars = append(bars, sb.bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// GetLatestClose implements contracts.PriceStore
func (s *Store) GetLatestClose(_ context.Context, symbol string) (*decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *contracts.PriceBar
	for _, sb := range s.prices[contracts.NormalizeSymbol(symbol)] {
		if latest == nil || sb.bar.Timestamp.After(latest.Timestamp) {
			b := sb.bar
			latest = &b
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := latest.Close
	return &c, nil
}

// UpsertFundamentals implements contracts.FundamentalStore
func (s *Store) UpsertFundamentals(_ context.Context, snap contracts.FundamentalSnapshot) error {
	snap.Symbol = contracts.NormalizeSymbol(snap.Symbol)
	if err := requireSymbol(snap.Symbol); err != nil {
		return err
	}
	if snap.PeriodType == "" || snap.PeriodEndDate.IsZero() {
		return fmt.Errorf("%w: period type and end date are required for %s", contracts.ErrValidation, snap.Symbol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := fundamentalKey{symbol: snap.Symbol, periodType: snap.PeriodType, periodEnd: snap.PeriodEndDate}
	if prev, ok := s.fundamentals[key]; ok {
		snap.ID = prev.ID
	} else if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	snap.UpdatedAt = s.clock.Now()
	s.fundamentals[key] = snap
	return nil
}

// GetLatestFundamentals implements contracts.FundamentalStore
func (s *Store) GetLatestFundamentals(_ context.Context, symbol string) (*contracts.FundamentalSnapshot, error) {
	symbol = contracts.NormalizeSymbol(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *contracts.FundamentalSnapshot
	for key, snap := range s.fundamentals {
		if key.symbol != symbol {
			continue
		}
		if latest == nil || newerSnapshot(snap, *latest) {
			f := snap
			latest = &f
		}
	}
	return latest, nil
}

func newerSnapshot(a, b contracts.FundamentalSnapshot) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.PeriodEndDate.After(b.PeriodEndDate)
}

// ReplaceScore implements contracts.ScoreStore
func (s *Store) ReplaceScore(_ context.Context, score contracts.ScoreSnapshot) error {
	score.Symbol = contracts.NormalizeSymbol(score.Symbol)
	if err := requireSymbol(score.Symbol); err != nil {
		return err
	}
	if score.ID == uuid.Nil {
		score.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scores[score.Symbol] = score
	return nil
}

// GetLatestScore implements contracts.ScoreStore
func (s *Store) GetLatestScore(_ context.Context, symbol string) (*contracts.ScoreSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.scores[contracts.NormalizeSymbol(symbol)]
	if !ok {
		return nil, nil
	}
	return &score, nil
}

// UpsertIndicator implements contracts.IndicatorStore
func (s *Store) UpsertIndicator(_ context.Context, ind contracts.IndicatorSnapshot) error {
	ind.Symbol = contracts.NormalizeSymbol(ind.Symbol)
	if err := requireSymbol(ind.Symbol); err != nil {
		return err
	}
	if ind.Timeframe == "" {
		return fmt.Errorf("%w: timeframe is required for %s", contracts.ErrValidation, ind.Symbol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ind.UpdatedAt = s.clock.Now()
	s.indicators[indicatorKey{symbol: ind.Symbol, date: ind.Date, timeframe: ind.Timeframe}] = ind
	return nil
}

// GetLatestIndicator implements contracts.IndicatorStore
func (s *Store) GetLatestIndicator(_ context.Context, symbol string, tf contracts.Timeframe) (*contracts.IndicatorSnapshot, error) {
	symbol = contracts.NormalizeSymbol(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *contracts.IndicatorSnapshot
	for key, ind := range s.indicators {
		if key.symbol != symbol || key.timeframe != tf {
			continue
		}
		if latest == nil || ind.Date.After(latest.Date) {
			v := ind
			latest = &v
		}
	}
	return latest, nil
}

// LastUpdated implements contracts.Gateway
func (s *Store) LastUpdated(_ context.Context, symbol string, kind contracts.RefreshKind) (*time.Time, error) {
	symbol = contracts.NormalizeSymbol(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	observe := func(ts time.Time) {
		if latest == nil || ts.After(*latest) {
			t := ts
			latest = &t
		}
	}

	switch kind {
	case contracts.KindProfile:
		if inst, ok := s.instruments[symbol]; ok {
			observe(inst.UpdatedAt)
		}
	case contracts.KindPrices:
		for _, sb := range s.prices[symbol] {
			observe(sb.updatedAt)
		}
	case contracts.KindFundamentals:
		for key, snap := range s.fundamentals {
			if key.symbol == symbol {
				observe(snap.UpdatedAt)
			}
		}
	case contracts.KindScore:
		if score, ok := s.scores[symbol]; ok {
			observe(score.CalculatedAt)
		}
	case contracts.KindIndicators:
		for key, ind := range s.indicators {
			if key.symbol == symbol {
				observe(ind.UpdatedAt)
			}
		}
	default:
		return nil, fmt.Errorf("last updated: unknown kind %q", kind)
	}
	return latest, nil
}
