package s1_technical

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
)

// DefaultPeriod is the classic RSI lookback
const DefaultPeriod = 14

const workingScale = 4

var hundred = decimal.NewFromInt(100)

// CalculateRSI computes Wilder-smoothed RSI over closes (oldest first).
// Averages and RS carry 4 decimals half-up; the result is rounded to 2.
// ⭐ SSOT: RSI formula
func CalculateRSI(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 1 {
		return decimal.Zero, errors.New("rsi period must be greater than 1")
	}
	if len(closes) < period+1 {
		return decimal.Zero, fmt.Errorf("%w: need %d closes, have %d", contracts.ErrInsufficientData, period+1, len(closes))
	}

	gains := make([]decimal.Decimal, 0, len(closes)-1)
	losses := make([]decimal.Decimal, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i].Sub(closes[i-1])
		if change.IsPositive() {
			gains = append(gains, change)
			losses = append(losses, decimal.Zero)
		} else {
			gains = append(gains, decimal.Zero)
			losses = append(losses, change.Abs())
		}
	}

	n := decimal.NewFromInt(int64(period))
	carry := decimal.NewFromInt(int64(period - 1))

	avgGain := decimal.Sum(decimal.Zero, gains[:period]...).DivRound(n, workingScale)
	avgLoss := decimal.Sum(decimal.Zero, losses[:period]...).DivRound(n, workingScale)

	for i := period; i < len(gains); i++ {
		avgGain = avgGain.Mul(carry).Add(gains[i]).DivRound(n, workingScale)
		avgLoss = avgLoss.Mul(carry).Add(losses[i]).DivRound(n, workingScale)
	}

	if avgLoss.IsZero() {
		return hundred.Round(2), nil
	}

	rs := avgGain.DivRound(avgLoss, workingScale)
	rsi := hundred.Sub(hundred.DivRound(decimal.NewFromInt(1).Add(rs), workingScale))
	return rsi.Round(2), nil
}

// Closes extracts close prices from bars in their given order
func Closes(bars []contracts.PriceBar) []decimal.Decimal {
	out := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
