package s2_scoring

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
)

// Options toggles renormalization of partially available categories.
// With both off, weights of missing factors are simply dropped from the sum.
type Options struct {
	RenormalizeValuation  bool `yaml:"renormalize_valuation" json:"renormalize_valuation"`
	RenormalizeCategories bool `yaml:"renormalize_categories" json:"renormalize_categories"`
}

// Overall weights; risk enters inverted
var (
	weightValuation = num(0.25)
	weightHealth    = num(0.30)
	weightGrowth    = num(0.30)
	weightRisk      = num(0.15)
)

// Calculator turns one fundamentals snapshot into a score
// ⭐ SSOT: scoring rules
type Calculator struct {
	options Options
}

// NewCalculator creates a new calculator
func NewCalculator(options Options) *Calculator {
	return &Calculator{options: options}
}

// Calculate scores f; it never fails, missing inputs fall back to neutral values
func (c *Calculator) Calculate(f contracts.FundamentalSnapshot, calculatedAt time.Time) contracts.ScoreSnapshot {
	valuation := c.valuationScore(f.PERatio, f.PEGRatio, f.PriceToBook)
	health := c.healthScore(f.DebtToEquity, f.CurrentRatio)
	growth := c.growthScore(f.RevenueGrowthYoY, f.EPSGrowthYoY)
	risk := riskScore(f.DebtToEquity, f.CurrentRatio)
	overall := OverallScore(valuation, health, growth, risk)

	return contracts.ScoreSnapshot{
		ID:                uuid.New(),
		Symbol:            contracts.NormalizeSymbol(f.Symbol),
		CalculatedAt:      calculatedAt,
		ValuationCategory: valuationCategory(f.PERatio, f.PEGRatio),
		ValuationScore:    valuation,
		ValuationGrade:    Grade(valuation),
		HealthScore:       health,
		HealthGrade:       Grade(health),
		GrowthScore:       growth,
		GrowthGrade:       Grade(growth),
		RiskScore:         risk,
		RiskGrade:         Grade(risk),
		OverallScore:      overall,
		OverallGrade:      Grade(overall),
		Components: contracts.ScoreComponents{
			PEScore:            peScore(f.PERatio),
			PEGScore:           ratioScore(f.PEGRatio),
			DebtScore:          debtScore(f.DebtToEquity),
			ProfitabilityScore: profitabilityScore(f.ROE, f.ROIC),
			GrowthRateScore:    growth,
			VolatilityScore:    zero,
		},
	}
}

// valuationScore is 40% P/E + 40% PEG + 20% P/B over the positive inputs
func (c *Calculator) valuationScore(pe, peg, pb *decimal.Decimal) decimal.Decimal {
	factors := []struct {
		value  *decimal.Decimal
		weight decimal.Decimal
		score  func(*decimal.Decimal) decimal.Decimal
	}{
		{pe, num(0.4), peScore},
		{peg, num(0.4), ratioScore},
		{pb, num(0.2), ratioScore},
	}

	score, weights := zero, zero
	for _, f := range factors {
		if !positive(f.value) {
			continue
		}
		score = score.Add(f.score(f.value).Mul(f.weight))
		weights = weights.Add(f.weight)
	}

	if weights.IsZero() {
		return neutral
	}
	if c.options.RenormalizeValuation {
		score = score.DivRound(weights, 2)
	}
	return decimal.Min(score, hundred)
}

// healthScore is a leverage half plus a liquidity half
func (c *Calculator) healthScore(de, cr *decimal.Decimal) decimal.Decimal {
	score, factors := zero, 0
	if de != nil {
		score = score.Add(debtToEquityPoints(*de))
		factors++
	}
	if cr != nil {
		score = score.Add(currentRatioPoints(*cr))
		factors++
	}
	return c.combineHalves(score, factors)
}

// growthScore is a revenue half plus an EPS half; only positive growth counts
func (c *Calculator) growthScore(revenue, eps *decimal.Decimal) decimal.Decimal {
	score, factors := zero, 0
	if positive(revenue) {
		score = score.Add(growthPoints(*revenue))
		factors++
	}
	if positive(eps) {
		score = score.Add(growthPoints(*eps))
		factors++
	}
	return c.combineHalves(score, factors)
}

func (c *Calculator) combineHalves(score decimal.Decimal, factors int) decimal.Decimal {
	if factors == 0 {
		return neutral
	}
	if c.options.RenormalizeCategories && factors == 1 {
		score = score.Mul(decimal.NewFromInt(2))
	}
	return decimal.Min(score, hundred)
}

// riskScore grows with leverage and adds a flat penalty for weak liquidity
func riskScore(de, cr *decimal.Decimal) decimal.Decimal {
	if de == nil && cr == nil {
		return neutral
	}
	score := zero
	if de != nil {
		switch {
		case de.GreaterThan(num(1)):
			score = score.Add(num(50))
		case de.GreaterThan(num(0.6)):
			score = score.Add(num(30))
		default:
			score = score.Add(num(10))
		}
	}
	if cr != nil && cr.LessThan(num(1)) {
		score = score.Add(num(30))
	}
	return decimal.Min(score, hundred)
}

// OverallScore weighs the four categories, rounds half-up to 2 places and clamps to [0, 100]
func OverallScore(valuation, health, growth, risk decimal.Decimal) decimal.Decimal {
	weighted := valuation.Mul(weightValuation).
		Add(health.Mul(weightHealth)).
		Add(growth.Mul(weightGrowth)).
		Add(hundred.Sub(risk).Mul(weightRisk))
	return decimal.Min(decimal.Max(weighted.Round(2), zero), hundred)
}
