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

// ScoreRepository keeps the single live score per symbol
// ⭐ SSOT: scores are replaced, never versioned
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// ReplaceScore deletes the previous snapshot and inserts the new one in a single transaction
func (r *ScoreRepository) ReplaceScore(ctx context.Context, score contracts.ScoreSnapshot) error {
	symbol := contracts.NormalizeSymbol(score.Symbol)
	if err := requireSymbol(symbol); err != nil {
		return err
	}

	id := score.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	insert := `
		INSERT INTO stock_scores (
			id, symbol, calculated_at, valuation_category,
			valuation_score, valuation_grade, health_score, health_grade,
			growth_score, growth_grade, risk_score, risk_grade,
			overall_score, overall_grade,
			pe_score, peg_score, debt_score, profitability_score, growth_rate_score, volatility_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM stock_scores WHERE symbol = $1`, symbol); err != nil {
		return fmt.Errorf("delete score %s: %w", symbol, err)
	}

	c := score.Components
	_, err = tx.Exec(ctx, insert,
		id, symbol, score.CalculatedAt, string(score.ValuationCategory),
		score.ValuationScore, string(score.ValuationGrade), score.HealthScore, string(score.HealthGrade),
		score.GrowthScore, string(score.GrowthGrade), score.RiskScore, string(score.RiskGrade),
		score.OverallScore, string(score.OverallGrade),
		c.PEScore, c.PEGScore, c.DebtScore, c.ProfitabilityScore, c.GrowthRateScore, c.VolatilityScore,
	)
	if err != nil {
		return fmt.Errorf("insert score %s: %w", symbol, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetLatestScore returns the live snapshot, nil when the symbol was never scored
func (r *ScoreRepository) GetLatestScore(ctx context.Context, symbol string) (*contracts.ScoreSnapshot, error) {
	query := `
		SELECT id, symbol, calculated_at, valuation_category,
			valuation_score, valuation_grade, health_score, health_grade,
			growth_score, growth_grade, risk_score, risk_grade,
			overall_score, overall_grade,
			pe_score, peg_score, debt_score, profitability_score, growth_rate_score, volatility_score
		FROM stock_scores
		WHERE symbol = $1
	`

	var (
		s                                      contracts.ScoreSnapshot
		category                               string
		vGrade, hGrade, gGrade, rGrade, oGrade string
		comps                                  [6]decimal.NullDecimal
	)

	err := r.pool.QueryRow(ctx, query, contracts.NormalizeSymbol(symbol)).Scan(
		&s.ID, &s.Symbol, &s.CalculatedAt, &category,
		&s.ValuationScore, &vGrade, &s.HealthScore, &hGrade,
		&s.GrowthScore, &gGrade, &s.RiskScore, &rGrade,
		&s.OverallScore, &oGrade,
		&comps[0], &comps[1], &comps[2], &comps[3], &comps[4], &comps[5],
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest score %s: %w", symbol, err)
	}

	s.ValuationCategory = contracts.ValuationCategory(category)
	s.ValuationGrade = contracts.Grade(vGrade)
	s.HealthGrade = contracts.Grade(hGrade)
	s.GrowthGrade = contracts.Grade(gGrade)
	s.RiskGrade = contracts.Grade(rGrade)
	s.OverallGrade = contracts.Grade(oGrade)
	s.Components = contracts.ScoreComponents{
		PEScore:            comps[0].Decimal,
		PEGScore:           comps[1].Decimal,
		DebtScore:          comps[2].Decimal,
		ProfitabilityScore: comps[3].Decimal,
		GrowthRateScore:    comps[4].Decimal,
		VolatilityScore:    comps[5].Decimal,
	}
	return &s, nil
}
