package s0_data

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
)

// FundamentalRepository persists stock_financials rows
// ⭐ SSOT: one snapshot per (symbol, period type, period end)
type FundamentalRepository struct {
	pool *pgxpool.Pool
}

// NewFundamentalRepository creates a new fundamentals repository
func NewFundamentalRepository(pool *pgxpool.Pool) *FundamentalRepository {
	return &FundamentalRepository{pool: pool}
}

const fundamentalColumns = `
	id, symbol, period_type, period_end_date, fiscal_year, fiscal_quarter,
	pe_ratio, peg_ratio, price_to_book, price_to_sales, ev_to_ebitda,
	eps_ttm, eps_growth_yoy, eps_growth_qoq,
	revenue, revenue_growth_yoy, revenue_growth_qoq, net_income, net_income_growth_yoy, profit_margin,
	total_cash, total_debt, cash_per_share, debt_to_equity, current_ratio,
	roe, roic, roa, gross_margin, operating_margin,
	revenue_growth_3y, earnings_growth_3y,
	shares_outstanding, float_shares, updated_at`

// UpsertFundamentals overwrites every field of the snapshot matching the natural key
func (r *FundamentalRepository) UpsertFundamentals(ctx context.Context, snap contracts.FundamentalSnapshot) error {
	symbol := contracts.NormalizeSymbol(snap.Symbol)
	if err := requireSymbol(symbol); err != nil {
		return err
	}
	if snap.PeriodType == "" || snap.PeriodEndDate.IsZero() {
		return fmt.Errorf("%w: period type and end date are required for %s", contracts.ErrValidation, symbol)
	}

	id := snap.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	query := `
		INSERT INTO stock_financials (` + fundamentalColumns + `, created_at)
		VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25,
			$26, $27, $28, $29, $30,
			$31, $32,
			$33, $34, NOW(), NOW()
		)
		ON CONFLICT (symbol, period_type, period_end_date) DO UPDATE SET
			fiscal_year = EXCLUDED.fiscal_year,
			fiscal_quarter = EXCLUDED.fiscal_quarter,
			pe_ratio = EXCLUDED.pe_ratio,
			peg_ratio = EXCLUDED.peg_ratio,
			price_to_book = EXCLUDED.price_to_book,
			price_to_sales = EXCLUDED.price_to_sales,
			ev_to_ebitda = EXCLUDED.ev_to_ebitda,
			eps_ttm = EXCLUDED.eps_ttm,
			eps_growth_yoy = EXCLUDED.eps_growth_yoy,
			eps_growth_qoq = EXCLUDED.eps_growth_qoq,
			revenue = EXCLUDED.revenue,
			revenue_growth_yoy = EXCLUDED.revenue_growth_yoy,
			revenue_growth_qoq = EXCLUDED.revenue_growth_qoq,
			net_income = EXCLUDED.net_income,
			net_income_growth_yoy = EXCLUDED.net_income_growth_yoy,
			profit_margin = EXCLUDED.profit_margin,
			total_cash = EXCLUDED.total_cash,
			total_debt = EXCLUDED.total_debt,
			cash_per_share = EXCLUDED.cash_per_share,
			debt_to_equity = EXCLUDED.debt_to_equity,
			current_ratio = EXCLUDED.current_ratio,
			roe = EXCLUDED.roe,
			roic = EXCLUDED.roic,
			roa = EXCLUDED.roa,
			gross_margin = EXCLUDED.gross_margin,
			operating_margin = EXCLUDED.operating_margin,
			revenue_growth_3y = EXCLUDED.revenue_growth_3y,
			earnings_growth_3y = EXCLUDED.earnings_growth_3y,
			shares_outstanding = EXCLUDED.shares_outstanding,
			float_shares = EXCLUDED.float_shares,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		id, symbol, string(snap.PeriodType), snap.PeriodEndDate, snap.FiscalYear, snap.FiscalQuarter,
		snap.PERatio, snap.PEGRatio, snap.PriceToBook, snap.PriceToSales, snap.EVToEBITDA,
		snap.EPSTTM, snap.EPSGrowthYoY, snap.EPSGrowthQoQ,
		snap.Revenue, snap.RevenueGrowthYoY, snap.RevenueGrowthQoQ, snap.NetIncome, snap.NetIncomeGrowthYoY, snap.ProfitMargin,
		snap.TotalCash, snap.TotalDebt, snap.CashPerShare, snap.DebtToEquity, snap.CurrentRatio,
		snap.ROE, snap.ROIC, snap.ROA, snap.GrossMargin, snap.OperatingMargin,
		snap.RevenueGrowth3Y, snap.EarningsGrowth3Y,
		snap.SharesOutstanding, snap.FloatShares,
	)
	if err != nil {
		return fmt.Errorf("upsert fundamentals %s: %w", symbol, err)
	}
	return nil
}

// GetLatestFundamentals returns the most recently updated snapshot, nil when none is stored
func (r *FundamentalRepository) GetLatestFundamentals(ctx context.Context, symbol string) (*contracts.FundamentalSnapshot, error) {
	query := `
		SELECT ` + fundamentalColumns + `
		FROM stock_financials
		WHERE symbol = $1
		ORDER BY updated_at DESC, period_end_date DESC
		LIMIT 1
	`

	snap, err := scanFundamentals(r.pool.QueryRow(ctx, query, contracts.NormalizeSymbol(symbol)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest fundamentals %s: %w", symbol, err)
	}
	return snap, nil
}

func scanFundamentals(row pgx.Row) (*contracts.FundamentalSnapshot, error) {
	var (
		f          contracts.FundamentalSnapshot
		periodType string
		nums       [22]decimal.NullDecimal
	)

	err := row.Scan(
		&f.ID, &f.Symbol, &periodType, &f.PeriodEndDate, &f.FiscalYear, &f.FiscalQuarter,
		&nums[0], &nums[1], &nums[2], &nums[3], &nums[4],
		&nums[5], &nums[6], &nums[7],
		&f.Revenue, &nums[8], &nums[9], &f.NetIncome, &nums[10], &nums[11],
		&f.TotalCash, &f.TotalDebt, &nums[12], &nums[13], &nums[14],
		&nums[15], &nums[16], &nums[17], &nums[18], &nums[19],
		&nums[20], &nums[21],
		&f.SharesOutstanding, &f.FloatShares, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.PeriodType = contracts.PeriodType(periodType)
	targets := []**decimal.Decimal{
		&f.PERatio, &f.PEGRatio, &f.PriceToBook, &f.PriceToSales, &f.EVToEBITDA,
		&f.EPSTTM, &f.EPSGrowthYoY, &f.EPSGrowthQoQ,
		&f.RevenueGrowthYoY, &f.RevenueGrowthQoQ, &f.NetIncomeGrowthYoY, &f.ProfitMargin,
		&f.CashPerShare, &f.DebtToEquity, &f.CurrentRatio,
		&f.ROE, &f.ROIC, &f.ROA, &f.GrossMargin, &f.OperatingMargin,
		&f.RevenueGrowth3Y, &f.EarningsGrowth3Y,
	}
	for i, target := range targets {
		*target = nullDec(nums[i])
	}
	return &f, nil
}
