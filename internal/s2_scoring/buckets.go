package s2_scoring

import (
	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
)

var (
	zero    = decimal.Zero
	neutral = decimal.NewFromInt(50)
	hundred = decimal.NewFromInt(100)
)

func num(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func positive(v *decimal.Decimal) bool { return v != nil && v.IsPositive() }

// peScore buckets P/E; lower is better
func peScore(pe *decimal.Decimal) decimal.Decimal {
	if !positive(pe) {
		return neutral
	}
	switch {
	case pe.LessThan(num(10)):
		return num(100)
	case pe.LessThan(num(15)):
		return num(90)
	case pe.LessThan(num(20)):
		return num(75)
	case pe.LessThan(num(30)):
		return num(55)
	case pe.LessThan(num(40)):
		return num(35)
	default:
		return num(20)
	}
}

// ratioScore buckets PEG and P/B with the same 1/2/3 thresholds
func ratioScore(v *decimal.Decimal) decimal.Decimal {
	if !positive(v) {
		return neutral
	}
	switch {
	case v.LessThan(num(1)):
		return num(100)
	case v.LessThan(num(2)):
		return num(80)
	case v.LessThan(num(3)):
		return num(60)
	default:
		return num(40)
	}
}

func valuationCategory(pe, peg *decimal.Decimal) contracts.ValuationCategory {
	if positive(peg) {
		switch {
		case peg.LessThan(num(1)):
			return contracts.ValuationCheap
		case peg.LessThan(num(2)):
			return contracts.ValuationFair
		default:
			return contracts.ValuationExpensive
		}
	}
	if pe == nil {
		return contracts.ValuationNA
	}
	switch {
	case pe.LessThan(num(15)):
		return contracts.ValuationCheap
	case pe.LessThan(num(25)):
		return contracts.ValuationFair
	default:
		return contracts.ValuationExpensive
	}
}

// debtToEquityPoints is the health half for leverage (0-50)
func debtToEquityPoints(de decimal.Decimal) decimal.Decimal {
	switch {
	case de.LessThan(num(0.5)):
		return num(50)
	case de.LessThan(num(1)):
		return num(30)
	case de.LessThan(num(2)):
		return num(15)
	default:
		return num(5)
	}
}

// currentRatioPoints is the health half for liquidity (0-50)
func currentRatioPoints(cr decimal.Decimal) decimal.Decimal {
	switch {
	case cr.GreaterThanOrEqual(num(2)):
		return num(50)
	case cr.GreaterThanOrEqual(num(1.5)):
		return num(30)
	case cr.GreaterThanOrEqual(num(1)):
		return num(15)
	default:
		return num(5)
	}
}

// growthPoints buckets a YoY growth percentage (0-50)
func growthPoints(g decimal.Decimal) decimal.Decimal {
	switch {
	case g.GreaterThan(num(20)):
		return num(50)
	case g.GreaterThan(num(15)):
		return num(40)
	case g.GreaterThan(num(10)):
		return num(30)
	case g.GreaterThan(num(5)):
		return num(20)
	default:
		return num(10)
	}
}

func debtScore(de *decimal.Decimal) decimal.Decimal {
	if de == nil {
		return neutral
	}
	switch {
	case de.LessThan(num(0.3)):
		return num(100)
	case de.LessThan(num(0.6)):
		return num(70)
	case de.LessThan(num(1)):
		return num(40)
	default:
		return num(20)
	}
}

func profitabilityScore(roe, roic *decimal.Decimal) decimal.Decimal {
	if roe == nil && roic == nil {
		return neutral
	}
	score := zero
	if positive(roe) {
		switch {
		case roe.GreaterThan(num(20)):
			score = score.Add(num(50))
		case roe.GreaterThan(num(15)):
			score = score.Add(num(40))
		case roe.GreaterThan(num(10)):
			score = score.Add(num(25))
		}
	}
	if positive(roic) {
		switch {
		case roic.GreaterThan(num(15)):
			score = score.Add(num(50))
		case roic.GreaterThan(num(10)):
			score = score.Add(num(40))
		case roic.GreaterThan(num(5)):
			score = score.Add(num(25))
		}
	}
	return decimal.Min(score, hundred)
}

// Grade maps a 0-100 score to a letter
func Grade(score decimal.Decimal) contracts.Grade {
	switch {
	case score.GreaterThanOrEqual(num(90)):
		return contracts.GradeA
	case score.GreaterThanOrEqual(num(80)):
		return contracts.GradeB
	case score.GreaterThanOrEqual(num(70)):
		return contracts.GradeC
	case score.GreaterThanOrEqual(num(60)):
		return contracts.GradeD
	default:
		return contracts.GradeF
	}
}
