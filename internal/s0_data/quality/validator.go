package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/trueequity/backend/internal/contracts"
)

// QualityGate measures how complete the persisted data is for a universe
type QualityGate struct {
	store  contracts.Gateway
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	PriceWindowDays         int     `yaml:"price_window_days"`         // 7
	MinPriceCoverage        float64 `yaml:"min_price_coverage"`        // 0.95
	MinFundamentalsCoverage float64 `yaml:"min_fundamentals_coverage"` // 0.80
	MinScoreCoverage        float64 `yaml:"min_score_coverage"`        // 0.80
	MinIndicatorCoverage    float64 `yaml:"min_indicator_coverage"`    // 0.50
}

// DefaultConfig returns the thresholds used by the data-check command
func DefaultConfig() Config {
	return Config{
		PriceWindowDays:         7,
		MinPriceCoverage:        0.95,
		MinFundamentalsCoverage: 0.80,
		MinScoreCoverage:        0.80,
		MinIndicatorCoverage:    0.50,
	}
}

// SymbolCoverage is what is stored for one symbol
type SymbolCoverage struct {
	Symbol          string                       `json:"symbol"`
	Bars            int                          `json:"bars"`
	HasFundamentals bool                         `json:"has_fundamentals"`
	HasScore        bool                         `json:"has_score"`
	RSI             map[contracts.Timeframe]bool `json:"rsi"`
}

// HasAllRSI reports whether every timeframe has a stored RSI
func (c SymbolCoverage) HasAllRSI() bool {
	for _, tf := range contracts.AllTimeframes {
		if !c.RSI[tf] {
			return false
		}
	}
	return true
}

// Valid reports whether the symbol can be scored and served
func (c SymbolCoverage) Valid() bool {
	return c.Bars > 0 && c.HasFundamentals && c.HasScore
}

// Report is the outcome of a quality check
type Report struct {
	Snapshot *contracts.DataQualitySnapshot `json:"snapshot"`
	Symbols  []SymbolCoverage               `json:"symbols"`
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(store contracts.Gateway, config Config) *QualityGate {
	if config.PriceWindowDays <= 0 {
		config.PriceWindowDays = DefaultConfig().PriceWindowDays
	}
	return &QualityGate{
		store:  store,
		config: config,
	}
}

// Check validates data coverage for the given symbols as of date
// ⭐ SSOT: coverage report for data-check
func (g *QualityGate) Check(ctx context.Context, symbols []string, date time.Time) (*Report, error) {
	report := &Report{
		Snapshot: &contracts.DataQualitySnapshot{
			Date:        date,
			TotalStocks: len(symbols),
			Coverage:    make(map[string]float64),
		},
	}

	var withPrice, withFundamentals, withScore, withRSI int
	for _, symbol := range symbols {
		cov, err := g.checkSymbol(ctx, symbol, date)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", symbol, err)
		}
		report.Symbols = append(report.Symbols, cov)

		if cov.Bars > 0 {
			withPrice++
		}
		if cov.HasFundamentals {
			withFundamentals++
		}
		if cov.HasScore {
			withScore++
		}
		if cov.HasAllRSI() {
			withRSI++
		}
		if cov.Valid() {
			report.Snapshot.ValidStocks++
		}
	}

	snap := report.Snapshot
	snap.Coverage["price"] = ratio(withPrice, len(symbols))
	snap.Coverage["fundamentals"] = ratio(withFundamentals, len(symbols))
	snap.Coverage["score"] = ratio(withScore, len(symbols))
	snap.Coverage["indicators"] = ratio(withRSI, len(symbols))
	snap.QualityScore = g.calculateScore(snap.Coverage)
	snap.Passed = g.passed(snap.Coverage)

	return report, nil
}

func (g *QualityGate) checkSymbol(ctx context.Context, symbol string, date time.Time) (SymbolCoverage, error) {
	cov := SymbolCoverage{
		Symbol: contracts.NormalizeSymbol(symbol),
		RSI:    make(map[contracts.Timeframe]bool, len(contracts.AllTimeframes)),
	}

	bars, err := g.store.GetPriceBars(ctx, cov.Symbol, date.AddDate(0, 0, -g.config.PriceWindowDays), date)
	if err != nil {
		return cov, err
	}
	cov.Bars = len(bars)

	fundamentals, err := g.store.GetLatestFundamentals(ctx, cov.Symbol)
	if err != nil {
		return cov, err
	}
	cov.HasFundamentals = fundamentals != nil

	score, err := g.store.GetLatestScore(ctx, cov.Symbol)
	if err != nil {
		return cov, err
	}
	cov.HasScore = score != nil

	for _, tf := range contracts.AllTimeframes {
		ind, err := g.store.GetLatestIndicator(ctx, cov.Symbol, tf)
		if err != nil {
			return cov, err
		}
		cov.RSI[tf] = ind != nil
	}
	return cov, nil
}

// calculateScore calculates overall quality score using weighted average
func (g *QualityGate) calculateScore(coverage map[string]float64) float64 {
	weights := map[string]float64{
		"price":        0.35,
		"fundamentals": 0.25,
		"score":        0.20,
		"indicators":   0.20,
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}
	return score
}

func (g *QualityGate) passed(coverage map[string]float64) bool {
	return coverage["price"] >= g.config.MinPriceCoverage &&
		coverage["fundamentals"] >= g.config.MinFundamentalsCoverage &&
		coverage["score"] >= g.config.MinScoreCoverage &&
		coverage["indicators"] >= g.config.MinIndicatorCoverage
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
