package quality

import (
	"fmt"

	"github.com/trueequity/backend/internal/contracts"
)

// ValidateBar checks the OHLCV invariants of a single bar
// ⭐ SSOT: PriceBar invariants
func ValidateBar(b contracts.PriceBar) error {
	switch {
	case b.Symbol == "":
		return fmt.Errorf("%w: bar has no symbol", contracts.ErrValidation)
	case !b.Open.IsPositive() || !b.High.IsPositive() || !b.Low.IsPositive() || !b.Close.IsPositive():
		return fmt.Errorf("%w: non-positive price", contracts.ErrValidation)
	case b.Volume <= 0:
		return fmt.Errorf("%w: non-positive volume", contracts.ErrValidation)
	case b.High.LessThan(b.Low):
		return fmt.Errorf("%w: high %s below low %s", contracts.ErrValidation, b.High, b.Low)
	case b.Close.LessThan(b.Low) || b.Close.GreaterThan(b.High):
		return fmt.Errorf("%w: close %s outside [%s, %s]", contracts.ErrValidation, b.Close, b.Low, b.High)
	}
	return nil
}

// FilterValidBars keeps bars that pass ValidateBar and reports how many were dropped
func FilterValidBars(bars []contracts.PriceBar) ([]contracts.PriceBar, int) {
	valid := make([]contracts.PriceBar, 0, len(bars))
	for _, b := range bars {
		if ValidateBar(b) != nil {
			continue
		}
		valid = append(valid, b)
	}
	return valid, len(bars) - len(valid)
}
