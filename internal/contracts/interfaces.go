package contracts

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider is the capability set every upstream data source implements.
// Ordinary "no data" outcomes return a nil value and a nil error; a non-nil
// error always means a transient failure (network, non-2xx, rate limit).
// ⭐ SSOT: provider contract
type Provider interface {
	Name() string
	FetchProfile(ctx context.Context, symbol string) (*Instrument, error)
	FetchPriceSeries(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]PriceBar, error)
	FetchLatestPrice(ctx context.Context, symbol string) (*decimal.Decimal, error)
	FetchFundamentals(ctx context.Context, symbol string) (*FundamentalSnapshot, error)
	HealthCheck(ctx context.Context) bool
}

// InstrumentStore persists Instrument rows
type InstrumentStore interface {
	// UpsertInstrument writes all fields, keeping stored optional fields when the new value is nil
	UpsertInstrument(ctx context.Context, inst Instrument) error
	// CreateInstrumentStub inserts a placeholder row when the symbol is unknown; reports whether it inserted
	CreateInstrumentStub(ctx context.Context, symbol, exchange string) (bool, error)
	InstrumentExists(ctx context.Context, symbol string) (bool, error)
	GetInstrument(ctx context.Context, symbol string) (*Instrument, error)
	ListSymbols(ctx context.Context) ([]string, error)
}

// PriceStore persists PriceBar rows keyed on (symbol, date)
type PriceStore interface {
	UpsertPriceBars(ctx context.Context, bars []PriceBar) (int, error)
	GetPriceBars(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error)
	GetLatestClose(ctx context.Context, symbol string) (*decimal.Decimal, error)
}

// FundamentalStore persists FundamentalSnapshot rows keyed on (symbol, period type, period end)
type FundamentalStore interface {
	UpsertFundamentals(ctx context.Context, snap FundamentalSnapshot) error
	GetLatestFundamentals(ctx context.Context, symbol string) (*FundamentalSnapshot, error)
}

// ScoreStore keeps exactly one live ScoreSnapshot per symbol
type ScoreStore interface {
	ReplaceScore(ctx context.Context, score ScoreSnapshot) error
	GetLatestScore(ctx context.Context, symbol string) (*ScoreSnapshot, error)
}

// IndicatorStore persists IndicatorSnapshot rows keyed on (symbol, date, timeframe)
type IndicatorStore interface {
	UpsertIndicator(ctx context.Context, ind IndicatorSnapshot) error
	GetLatestIndicator(ctx context.Context, symbol string, tf Timeframe) (*IndicatorSnapshot, error)
}

// Gateway is the full storage surface used by the pipeline
// ⭐ SSOT: storage gateway contract
type Gateway interface {
	InstrumentStore
	PriceStore
	FundamentalStore
	ScoreStore
	IndicatorStore

	// LastUpdated returns when data of the given kind last landed for symbol (nil if never)
	LastUpdated(ctx context.Context, symbol string, kind RefreshKind) (*time.Time, error)
}

// Clock supplies wall-clock time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

// Now implements Clock
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock
var SystemClock Clock = ClockFunc(time.Now)

// EventSink receives refresh events
type EventSink interface {
	Publish(event RefreshEvent)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(RefreshEvent)

// Publish implements EventSink
func (f EventSinkFunc) Publish(event RefreshEvent) { f(event) }
