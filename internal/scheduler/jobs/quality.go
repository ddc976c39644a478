package jobs

import (
	"context"
	"fmt"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/s0_data/quality"
	"github.com/trueequity/backend/pkg/logger"
)

// SnapshotSaver persists a quality snapshot
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snapshot *contracts.DataQualitySnapshot) error
}

// DataQualityJob records persisted coverage across the universe once a day
type DataQualityJob struct {
	schedule    string
	qualityGate *quality.QualityGate
	saver       SnapshotSaver // nil when running without PostgreSQL
	universe    Universe
	clock       contracts.Clock
	logger      *logger.Logger
}

// NewDataQualityJob creates a new data quality job
func NewDataQualityJob(schedule string, qg *quality.QualityGate, saver SnapshotSaver, universe Universe, clock contracts.Clock, log *logger.Logger) *DataQualityJob {
	if clock == nil {
		clock = contracts.SystemClock
	}
	return &DataQualityJob{
		schedule:    schedule,
		qualityGate: qg,
		saver:       saver,
		universe:    universe,
		clock:       clock,
		logger:      log.WithField("job", "data_quality"),
	}
}

// Name returns the job name
func (j *DataQualityJob) Name() string { return "data_quality" }

// Schedule returns the cron schedule
func (j *DataQualityJob) Schedule() string { return j.schedule }

// Run checks coverage and saves the snapshot
func (j *DataQualityJob) Run(ctx context.Context) error {
	report, err := j.qualityGate.Check(ctx, j.universe(), j.clock.Now())
	if err != nil {
		return fmt.Errorf("quality validation failed: %w", err)
	}

	snapshot := report.Snapshot
	log := j.logger.WithFields(map[string]interface{}{
		"quality_score": snapshot.QualityScore,
		"total_stocks":  snapshot.TotalStocks,
		"valid_stocks":  snapshot.ValidStocks,
	})
	if snapshot.Passed {
		log.Info("Data quality passed")
	} else {
		log.Warn("Data quality below threshold")
	}

	if j.saver == nil {
		return nil
	}
	if err := j.saver.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save quality snapshot: %w", err)
	}
	return nil
}
