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

// Repository is the PostgreSQL storage gateway
// ⭐ SSOT: every persisted row goes through this package
type Repository struct {
	*InstrumentRepository
	*PriceRepository
	*FundamentalRepository
	*ScoreRepository
	*IndicatorRepository

	db *pgxpool.Pool
}

var _ contracts.Gateway = (*Repository)(nil)

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		InstrumentRepository:  NewInstrumentRepository(db),
		PriceRepository:       NewPriceRepository(db),
		FundamentalRepository: NewFundamentalRepository(db),
		ScoreRepository:       NewScoreRepository(db),
		IndicatorRepository:   NewIndicatorRepository(db),
		db:                    db,
	}
}

// Pool returns the underlying database pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

var lastUpdatedQueries = map[contracts.RefreshKind]string{
	contracts.KindProfile:      `SELECT updated_at FROM stocks WHERE symbol = $1`,
	contracts.KindPrices:       `SELECT MAX(updated_at) FROM stock_prices WHERE symbol = $1`,
	contracts.KindFundamentals: `SELECT MAX(updated_at) FROM stock_financials WHERE symbol = $1`,
	contracts.KindScore:        `SELECT calculated_at FROM stock_scores WHERE symbol = $1`,
	contracts.KindIndicators:   `SELECT MAX(updated_at) FROM technical_indicators WHERE symbol = $1`,
}

// LastUpdated returns when data of the given kind last landed for symbol
func (r *Repository) LastUpdated(ctx context.Context, symbol string, kind contracts.RefreshKind) (*time.Time, error) {
	query, ok := lastUpdatedQueries[kind]
	if !ok {
		return nil, fmt.Errorf("last updated: unknown kind %q", kind)
	}

	var ts *time.Time
	err := r.db.QueryRow(ctx, query, contracts.NormalizeSymbol(symbol)).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last updated %s for %s: %w", kind, symbol, err)
	}
	return ts, nil
}

// nullDec converts a scanned nullable numeric into the optional form used by contracts
func nullDec(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func requireSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol is required", contracts.ErrValidation)
	}
	return nil
}
