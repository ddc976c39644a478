package contracts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Instrument is one tradable symbol
// ⭐ SSOT: symbol is the canonical uppercase id and never changes once created
type Instrument struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange"`
	Sector    *string   `json:"sector,omitempty"`
	Industry  *string   `json:"industry,omitempty"`
	MarketCap *int64    `json:"market_cap,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlaceholderName is the display name given to stub instruments
func PlaceholderName(symbol string) string {
	return NormalizeSymbol(symbol) + " Corp"
}

// HasUsableName reports whether the name is worth persisting
func (i Instrument) HasUsableName() bool {
	name := strings.TrimSpace(i.Name)
	return name != "" && !strings.EqualFold(name, "null")
}

// NormalizeSymbol returns the canonical uppercase form of a symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// PriceBar is one OHLCV observation
type PriceBar struct {
	Symbol        string           `json:"symbol"`
	Timestamp     time.Time        `json:"timestamp"`
	Open          decimal.Decimal  `json:"open"`
	High          decimal.Decimal  `json:"high"`
	Low           decimal.Decimal  `json:"low"`
	Close         decimal.Decimal  `json:"close"`
	AdjustedClose *decimal.Decimal `json:"adjusted_close,omitempty"`
	Volume        int64            `json:"volume"`
}

// Date returns the calendar day the bar is keyed on when persisted
func (b PriceBar) Date() time.Time {
	y, m, d := b.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PeriodType is the reporting period of a fundamentals snapshot
type PeriodType string

const (
	PeriodAnnual    PeriodType = "annual"
	PeriodQuarterly PeriodType = "quarterly"
)

// FundamentalSnapshot is one reporting-period financial profile.
// Every ratio and amount is optional: nil means the source did not report it.
// Pointer fields are never written through once a snapshot is built.
type FundamentalSnapshot struct {
	ID            uuid.UUID  `json:"id"`
	Symbol        string     `json:"symbol"`
	PeriodType    PeriodType `json:"period_type"`
	PeriodEndDate time.Time  `json:"period_end_date"`
	FiscalYear    *int       `json:"fiscal_year,omitempty"`
	FiscalQuarter *int       `json:"fiscal_quarter,omitempty"`

	// Valuation
	PERatio      *decimal.Decimal `json:"pe_ratio,omitempty"`
	PEGRatio     *decimal.Decimal `json:"peg_ratio,omitempty"`
	PriceToBook  *decimal.Decimal `json:"price_to_book,omitempty"`
	PriceToSales *decimal.Decimal `json:"price_to_sales,omitempty"`
	EVToEBITDA   *decimal.Decimal `json:"ev_to_ebitda,omitempty"`

	// Earnings
	EPSTTM       *decimal.Decimal `json:"eps_ttm,omitempty"`
	EPSGrowthYoY *decimal.Decimal `json:"eps_growth_yoy,omitempty"`
	EPSGrowthQoQ *decimal.Decimal `json:"eps_growth_qoq,omitempty"`

	// Revenue & profit
	Revenue            *int64           `json:"revenue,omitempty"`
	RevenueGrowthYoY   *decimal.Decimal `json:"revenue_growth_yoy,omitempty"`
	RevenueGrowthQoQ   *decimal.Decimal `json:"revenue_growth_qoq,omitempty"`
	NetIncome          *int64           `json:"net_income,omitempty"`
	NetIncomeGrowthYoY *decimal.Decimal `json:"net_income_growth_yoy,omitempty"`
	ProfitMargin       *decimal.Decimal `json:"profit_margin,omitempty"`

	// Balance sheet
	TotalCash    *int64           `json:"total_cash,omitempty"`
	TotalDebt    *int64           `json:"total_debt,omitempty"`
	CashPerShare *decimal.Decimal `json:"cash_per_share,omitempty"`
	DebtToEquity *decimal.Decimal `json:"debt_to_equity,omitempty"`
	CurrentRatio *decimal.Decimal `json:"current_ratio,omitempty"`

	// Profitability
	ROE             *decimal.Decimal `json:"roe,omitempty"`
	ROIC            *decimal.Decimal `json:"roic,omitempty"`
	ROA             *decimal.Decimal `json:"roa,omitempty"`
	GrossMargin     *decimal.Decimal `json:"gross_margin,omitempty"`
	OperatingMargin *decimal.Decimal `json:"operating_margin,omitempty"`

	// Multi-year growth
	RevenueGrowth3Y  *decimal.Decimal `json:"revenue_growth_3y,omitempty"`
	EarningsGrowth3Y *decimal.Decimal `json:"earnings_growth_3y,omitempty"`

	// Market data
	SharesOutstanding *int64 `json:"shares_outstanding,omitempty"`
	FloatShares       *int64 `json:"float_shares,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// FillGaps returns a copy of f where every absent field is taken from other.
// Present fields of f are never overwritten.
func (f FundamentalSnapshot) FillGaps(other FundamentalSnapshot) FundamentalSnapshot {
	out := f

	out.FiscalYear = firstInt(f.FiscalYear, other.FiscalYear)
	out.FiscalQuarter = firstInt(f.FiscalQuarter, other.FiscalQuarter)

	out.PERatio = firstDec(f.PERatio, other.PERatio)
	out.PEGRatio = firstDec(f.PEGRatio, other.PEGRatio)
	out.PriceToBook = firstDec(f.PriceToBook, other.PriceToBook)
	out.PriceToSales = firstDec(f.PriceToSales, other.PriceToSales)
	out.EVToEBITDA = firstDec(f.EVToEBITDA, other.EVToEBITDA)

	out.EPSTTM = firstDec(f.EPSTTM, other.EPSTTM)
	out.EPSGrowthYoY = firstDec(f.EPSGrowthYoY, other.EPSGrowthYoY)
	out.EPSGrowthQoQ = firstDec(f.EPSGrowthQoQ, other.EPSGrowthQoQ)

	out.Revenue = firstInt64(f.Revenue, other.Revenue)
	out.RevenueGrowthYoY = firstDec(f.RevenueGrowthYoY, other.RevenueGrowthYoY)
	out.RevenueGrowthQoQ = firstDec(f.RevenueGrowthQoQ, other.RevenueGrowthQoQ)
	out.NetIncome = firstInt64(f.NetIncome, other.NetIncome)
	out.NetIncomeGrowthYoY = firstDec(f.NetIncomeGrowthYoY, other.NetIncomeGrowthYoY)
	out.ProfitMargin = firstDec(f.ProfitMargin, other.ProfitMargin)

	out.TotalCash = firstInt64(f.TotalCash, other.TotalCash)
	out.TotalDebt = firstInt64(f.TotalDebt, other.TotalDebt)
	out.CashPerShare = firstDec(f.CashPerShare, other.CashPerShare)
	out.DebtToEquity = firstDec(f.DebtToEquity, other.DebtToEquity)
	out.CurrentRatio = firstDec(f.CurrentRatio, other.CurrentRatio)

	out.ROE = firstDec(f.ROE, other.ROE)
	out.ROIC = firstDec(f.ROIC, other.ROIC)
	out.ROA = firstDec(f.ROA, other.ROA)
	out.GrossMargin = firstDec(f.GrossMargin, other.GrossMargin)
	out.OperatingMargin = firstDec(f.OperatingMargin, other.OperatingMargin)

	out.RevenueGrowth3Y = firstDec(f.RevenueGrowth3Y, other.RevenueGrowth3Y)
	out.EarningsGrowth3Y = firstDec(f.EarningsGrowth3Y, other.EarningsGrowth3Y)

	out.SharesOutstanding = firstInt64(f.SharesOutstanding, other.SharesOutstanding)
	out.FloatShares = firstInt64(f.FloatShares, other.FloatShares)

	return out
}

func firstDec(a, b *decimal.Decimal) *decimal.Decimal {
	if a != nil {
		return a
	}
	return b
}

func firstInt64(a, b *int64) *int64 {
	if a != nil {
		return a
	}
	return b
}

func firstInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

// Grade is a letter grade for a 0-100 score
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// ValuationCategory is the cheap/fair/expensive label of a score
type ValuationCategory string

const (
	ValuationCheap     ValuationCategory = "cheap"
	ValuationFair      ValuationCategory = "fair"
	ValuationExpensive ValuationCategory = "expensive"
	ValuationNA        ValuationCategory = "N/A"
)

// ScoreComponents are the sub-scores reported next to the category scores
type ScoreComponents struct {
	PEScore            decimal.Decimal `json:"pe_score"`
	PEGScore           decimal.Decimal `json:"peg_score"`
	DebtScore          decimal.Decimal `json:"debt_score"`
	ProfitabilityScore decimal.Decimal `json:"profitability_score"`
	GrowthRateScore    decimal.Decimal `json:"growth_rate_score"`
	VolatilityScore    decimal.Decimal `json:"volatility_score"`
}

// ScoreSnapshot is one computed multi-factor evaluation
// ⭐ SSOT: exactly one live snapshot per symbol; a new one replaces the old
type ScoreSnapshot struct {
	ID                uuid.UUID         `json:"id"`
	Symbol            string            `json:"symbol"`
	CalculatedAt      time.Time         `json:"calculated_at"`
	ValuationCategory ValuationCategory `json:"valuation_category"`
	ValuationScore    decimal.Decimal   `json:"valuation_score"`
	ValuationGrade    Grade             `json:"valuation_grade"`
	HealthScore       decimal.Decimal   `json:"health_score"`
	HealthGrade       Grade             `json:"health_grade"`
	GrowthScore       decimal.Decimal   `json:"growth_score"`
	GrowthGrade       Grade             `json:"growth_grade"`
	RiskScore         decimal.Decimal   `json:"risk_score"`
	RiskGrade         Grade             `json:"risk_grade"`
	OverallScore      decimal.Decimal   `json:"overall_score"`
	OverallGrade      Grade             `json:"overall_grade"`
	Components        ScoreComponents   `json:"components"`
}

// Timeframe tags an RSI value
type Timeframe string

const (
	Timeframe1H  Timeframe = "1h"
	Timeframe30M Timeframe = "30m"
	Timeframe2H  Timeframe = "2h"
	Timeframe1D  Timeframe = "1d"
)

// AllTimeframes lists every supported timeframe in refresh order
var AllTimeframes = []Timeframe{Timeframe1D, Timeframe1H, Timeframe30M, Timeframe2H}

// ParseTimeframe validates a timeframe tag
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case Timeframe1H, Timeframe30M, Timeframe2H, Timeframe1D:
		return tf, nil
	case "":
		return Timeframe1D, nil
	default:
		return "", ErrUnsupportedTimeframe
	}
}

// Interval is the bar granularity requested from a provider
type Interval string

const (
	IntervalHourly  Interval = "60m"
	IntervalDaily   Interval = "1d"
	IntervalWeekly  Interval = "1wk"
	IntervalMonthly Interval = "1mo"
)

// IndicatorSnapshot is one RSI value for a symbol/date/timeframe
type IndicatorSnapshot struct {
	Symbol    string          `json:"symbol"`
	Date      time.Time       `json:"date"`
	Timeframe Timeframe       `json:"timeframe"`
	RSI       decimal.Decimal `json:"rsi"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RefreshKind names one staleness-gated refresh
type RefreshKind string

const (
	KindProfile      RefreshKind = "profile"
	KindPrices       RefreshKind = "prices"
	KindFundamentals RefreshKind = "fundamentals"
	KindScore        RefreshKind = "score"
	KindIndicators   RefreshKind = "indicators"
)

// RefreshOutcome is the result of one refresh attempt
type RefreshOutcome string

const (
	OutcomeRefreshed RefreshOutcome = "refreshed"
	OutcomeSkipped   RefreshOutcome = "skipped"
	OutcomeAbsent    RefreshOutcome = "absent"
	OutcomeFailed    RefreshOutcome = "failed"
)

// RefreshEvent is published after every refresh attempt
type RefreshEvent struct {
	Symbol  string         `json:"symbol"`
	Kind    RefreshKind    `json:"kind"`
	Outcome RefreshOutcome `json:"outcome"`
	Count   int            `json:"count,omitempty"`
	Error   string         `json:"error,omitempty"`
	At      time.Time      `json:"at"`
}

// DataQualitySnapshot summarizes persisted coverage across the universe
type DataQualitySnapshot struct {
	Date         time.Time          `json:"date"`
	TotalStocks  int                `json:"total_stocks"`
	ValidStocks  int                `json:"valid_stocks"`
	Coverage     map[string]float64 `json:"coverage"`
	QualityScore float64            `json:"quality_score"` // 0.0 ~ 1.0
	Passed       bool               `json:"passed"`
}

// CoverageRate returns the average coverage rate across all data types
func (d *DataQualitySnapshot) CoverageRate() float64 {
	if len(d.Coverage) == 0 {
		return 0.0
	}

	total := 0.0
	for _, rate := range d.Coverage {
		total += rate
	}

	return total / float64(len(d.Coverage))
}
