package s0_data

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trueequity/backend/internal/contracts"
)

// IndicatorRepository persists technical_indicators rows
type IndicatorRepository struct {
	pool *pgxpool.Pool
}

// NewIndicatorRepository creates a new indicator repository
func NewIndicatorRepository(pool *pgxpool.Pool) *IndicatorRepository {
	return &IndicatorRepository{pool: pool}
}

// UpsertIndicator writes one RSI value keyed on (symbol, date, timeframe)
func (r *IndicatorRepository) UpsertIndicator(ctx context.Context, ind contracts.IndicatorSnapshot) error {
	symbol := contracts.NormalizeSymbol(ind.Symbol)
	if err := requireSymbol(symbol); err != nil {
		return err
	}
	if ind.Timeframe == "" {
		return fmt.Errorf("%w: timeframe is required for %s", contracts.ErrValidation, symbol)
	}

	query := `
		INSERT INTO technical_indicators (symbol, date, timeframe, rsi, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (symbol, date, timeframe) DO UPDATE SET
			rsi = EXCLUDED.rsi,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, symbol, ind.Date, string(ind.Timeframe), ind.RSI)
	if err != nil {
		return fmt.Errorf("upsert rsi %s/%s: %w", symbol, ind.Timeframe, err)
	}
	return nil
}

// GetLatestIndicator returns the newest RSI for the timeframe, nil when none is stored
func (r *IndicatorRepository) GetLatestIndicator(ctx context.Context, symbol string, tf contracts.Timeframe) (*contracts.IndicatorSnapshot, error) {
	query := `
		SELECT symbol, date, timeframe, rsi, updated_at
		FROM technical_indicators
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY date DESC
		LIMIT 1
	`

	var ind contracts.IndicatorSnapshot
	var timeframe string
	err := r.pool.QueryRow(ctx, query, contracts.NormalizeSymbol(symbol), string(tf)).Scan(
		&ind.Symbol, &ind.Date, &timeframe, &ind.RSI, &ind.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest rsi %s/%s: %w", symbol, tf, err)
	}
	ind.Timeframe = contracts.Timeframe(timeframe)
	return &ind, nil
}
