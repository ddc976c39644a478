package quality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trueequity/backend/internal/contracts"
)

// Repository handles data quality snapshot persistence
// ⭐ SSOT: one quality snapshot per day
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSnapshot saves a data quality snapshot
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *contracts.DataQualitySnapshot) error {
	coverageJSON, err := json.Marshal(snapshot.Coverage)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}

	query := `
		INSERT INTO data_quality_snapshots (
			snapshot_date, quality_score, total_stocks, valid_stocks, coverage, passed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (snapshot_date) DO UPDATE SET
			quality_score = EXCLUDED.quality_score,
			total_stocks = EXCLUDED.total_stocks,
			valid_stocks = EXCLUDED.valid_stocks,
			coverage = EXCLUDED.coverage,
			passed = EXCLUDED.passed,
			updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query,
		snapshot.Date,
		snapshot.QualityScore,
		snapshot.TotalStocks,
		snapshot.ValidStocks,
		coverageJSON,
		snapshot.Passed,
	)
	if err != nil {
		return fmt.Errorf("save quality snapshot: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent quality snapshot, nil when none was saved
func (r *Repository) GetLatest(ctx context.Context) (*contracts.DataQualitySnapshot, error) {
	query := `
		SELECT snapshot_date, quality_score, total_stocks, valid_stocks, coverage, passed
		FROM data_quality_snapshots
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	var snapshot contracts.DataQualitySnapshot
	var coverageJSON []byte

	err := r.pool.QueryRow(ctx, query).Scan(
		&snapshot.Date,
		&snapshot.QualityScore,
		&snapshot.TotalStocks,
		&snapshot.ValidStocks,
		&coverageJSON,
		&snapshot.Passed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest quality snapshot: %w", err)
	}

	if err := json.Unmarshal(coverageJSON, &snapshot.Coverage); err != nil {
		return nil, fmt.Errorf("unmarshal coverage: %w", err)
	}
	return &snapshot, nil
}
