package s0_data

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trueequity/backend/internal/contracts"
)

// InstrumentRepository persists rows of the stocks table
type InstrumentRepository struct {
	pool *pgxpool.Pool
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(pool *pgxpool.Pool) *InstrumentRepository {
	return &InstrumentRepository{pool: pool}
}

// UpsertInstrument inserts or updates a stock; stored optional fields survive a nil update
func (r *InstrumentRepository) UpsertInstrument(ctx context.Context, inst contracts.Instrument) error {
	symbol := contracts.NormalizeSymbol(inst.Symbol)
	if err := requireSymbol(symbol); err != nil {
		return err
	}
	if strings.TrimSpace(inst.Name) == "" {
		return fmt.Errorf("%w: name is required for %s", contracts.ErrValidation, symbol)
	}
	if strings.TrimSpace(inst.Exchange) == "" {
		return fmt.Errorf("%w: exchange is required for %s", contracts.ErrValidation, symbol)
	}

	query := `
		INSERT INTO stocks (symbol, name, exchange, sector, industry, market_cap, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			sector = COALESCE(EXCLUDED.sector, stocks.sector),
			industry = COALESCE(EXCLUDED.industry, stocks.industry),
			market_cap = COALESCE(EXCLUDED.market_cap, stocks.market_cap),
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		symbol, inst.Name, inst.Exchange, inst.Sector, inst.Industry, inst.MarketCap,
	)
	if err != nil {
		return fmt.Errorf("upsert instrument %s: %w", symbol, err)
	}
	return nil
}

// CreateInstrumentStub inserts a placeholder row unless the symbol already exists
func (r *InstrumentRepository) CreateInstrumentStub(ctx context.Context, symbol, exchange string) (bool, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	if err := requireSymbol(symbol); err != nil {
		return false, err
	}

	query := `
		INSERT INTO stocks (symbol, name, exchange, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (symbol) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, symbol, contracts.PlaceholderName(symbol), exchange)
	if err != nil {
		return false, fmt.Errorf("create stub %s: %w", symbol, err)
	}
	return tag.RowsAffected() == 1, nil
}

// InstrumentExists reports whether a stock row exists
func (r *InstrumentRepository) InstrumentExists(ctx context.Context, symbol string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM stocks WHERE symbol = $1)`

	if err := r.pool.QueryRow(ctx, query, contracts.NormalizeSymbol(symbol)).Scan(&exists); err != nil {
		return false, fmt.Errorf("instrument exists %s: %w", symbol, err)
	}
	return exists, nil
}

// GetInstrument retrieves a stock, nil when unknown
func (r *InstrumentRepository) GetInstrument(ctx context.Context, symbol string) (*contracts.Instrument, error) {
	query := `
		SELECT symbol, name, exchange, sector, industry, market_cap, updated_at
		FROM stocks
		WHERE symbol = $1
	`

	var inst contracts.Instrument
	err := r.pool.QueryRow(ctx, query, contracts.NormalizeSymbol(symbol)).Scan(
		&inst.Symbol, &inst.Name, &inst.Exchange, &inst.Sector, &inst.Industry, &inst.MarketCap, &inst.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instrument %s: %w", symbol, err)
	}
	return &inst, nil
}

// ListSymbols returns every known symbol in order
func (r *InstrumentRepository) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT symbol FROM stocks ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return symbols, nil
}
