package s2_scoring

import (
	"context"
	"fmt"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/pkg/logger"
)

// Engine scores a symbol from its persisted fundamentals and latest close
type Engine struct {
	store      contracts.Gateway
	calculator *Calculator
	clock      contracts.Clock
	logger     *logger.Logger
}

// NewEngine creates a new scoring engine
func NewEngine(store contracts.Gateway, options Options, clock contracts.Clock, log *logger.Logger) *Engine {
	if clock == nil {
		clock = contracts.SystemClock
	}
	return &Engine{
		store:      store,
		calculator: NewCalculator(options),
		clock:      clock,
		logger:     log.WithComponent("scoring_engine"),
	}
}

// Score computes a fresh snapshot; nil when fundamentals or a stored close are missing
func (e *Engine) Score(ctx context.Context, symbol string) (*contracts.ScoreSnapshot, error) {
	symbol = contracts.NormalizeSymbol(symbol)

	fundamentals, err := e.store.GetLatestFundamentals(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load fundamentals for %s: %w", symbol, err)
	}
	if fundamentals == nil {
		e.logger.WithSymbol(symbol).Debug("No fundamentals to score")
		return nil, nil
	}

	last, err := e.store.GetLatestClose(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load latest close for %s: %w", symbol, err)
	}
	if last == nil {
		e.logger.WithSymbol(symbol).Debug("No stored close to score against")
		return nil, nil
	}

	score := e.calculator.Calculate(*fundamentals, e.clock.Now())
	score.Symbol = symbol

	e.logger.WithFields(map[string]interface{}{
		"symbol":  symbol,
		"overall": score.OverallScore.StringFixed(2),
		"grade":   string(score.OverallGrade),
	}).Debug("Calculated score")

	return &score, nil
}
