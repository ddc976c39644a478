package s0_data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
)

// PriceRepository persists daily bars in stock_prices
// ⭐ SSOT: one bar per (symbol, date)
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// UpsertPriceBars writes bars in one transaction and returns how many were written
func (r *PriceRepository) UpsertPriceBars(ctx context.Context, bars []contracts.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO stock_prices (
			symbol, date, open, high, low, close, adjusted_close, volume, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			adjusted_close = EXCLUDED.adjusted_close,
			volume = EXCLUDED.volume,
			updated_at = NOW()
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, b := range bars {
		symbol := contracts.NormalizeSymbol(b.Symbol)
		if err := requireSymbol(symbol); err != nil {
			return 0, err
		}
		_, err := tx.Exec(ctx, query,
			symbol, b.Date(), b.Open, b.High, b.Low, b.Close, b.AdjustedClose, b.Volume,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert price for %s on %s: %w", symbol, b.Date().Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return len(bars), nil
}

// GetPriceBars retrieves bars for a symbol within [start, end], oldest first
func (r *PriceRepository) GetPriceBars(ctx context.Context, symbol string, start, end time.Time) ([]contracts.PriceBar, error) {
	query := `
		SELECT symbol, date, open, high, low, close, adjusted_close, volume
		FROM stock_prices
		WHERE symbol = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, contracts.NormalizeSymbol(symbol), start, end)
	if err != nil {
		return nil, fmt.Errorf("query prices %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var b contracts.PriceBar
		var adj decimal.NullDecimal
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &adj, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		b.AdjustedClose = nullDec(adj)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// GetLatestClose returns the close of the most recent bar, nil when none is stored
func (r *PriceRepository) GetLatestClose(ctx context.Context, symbol string) (*decimal.Decimal, error) {
	query := `
		SELECT close
		FROM stock_prices
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT 1
	`

	var last decimal.Decimal
	err := r.pool.QueryRow(ctx, query, contracts.NormalizeSymbol(symbol)).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest close %s: %w", symbol, err)
	}
	return &last, nil
}
