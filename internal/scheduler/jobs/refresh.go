package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/s0_data/ingest"
	"github.com/trueequity/backend/internal/scheduler"
	"github.com/trueequity/backend/pkg/logger"
)

// Runner is the part of the ingestion pipeline the jobs trigger
type Runner interface {
	RunCycle(ctx context.Context, symbols []string, kinds ...contracts.RefreshKind) (*ingest.CycleReport, error)
	Bootstrap(ctx context.Context, symbols []string) (*ingest.BootstrapReport, error)
}

// SessionCalendar gates intraday work to market hours
type SessionCalendar interface {
	IsOpen(t time.Time) bool
}

// Universe supplies the symbols of each run
type Universe func() []string

// Static returns a fixed universe
func Static(symbols []string) Universe {
	return func() []string { return symbols }
}

// CycleJob runs one pipeline cycle over the universe
type CycleJob struct {
	name     string
	schedule string
	kinds    []contracts.RefreshKind
	runner   Runner
	universe Universe
	logger   *logger.Logger

	// optional market-hours gate
	calendar SessionCalendar
	clock    contracts.Clock
}

// NewIntradayRefreshJob refreshes prices, RSI and fundamentals while the market is open.
// Fundamentals stay behind their own staleness gate, so most triggers skip them.
func NewIntradayRefreshJob(schedule string, runner Runner, universe Universe, calendar SessionCalendar, clock contracts.Clock, log *logger.Logger) *CycleJob {
	if clock == nil {
		clock = contracts.SystemClock
	}
	return &CycleJob{
		name:     "intraday_refresh",
		schedule: schedule,
		kinds:    []contracts.RefreshKind{contracts.KindPrices, contracts.KindIndicators, contracts.KindFundamentals},
		runner:   runner,
		universe: universe,
		logger:   log.WithField("job", "intraday_refresh"),
		calendar: calendar,
		clock:    clock,
	}
}

// NewFundamentalsDailyJob refreshes fundamentals after the close
func NewFundamentalsDailyJob(schedule string, runner Runner, universe Universe, log *logger.Logger) *CycleJob {
	return &CycleJob{
		name:     "fundamentals_daily",
		schedule: schedule,
		kinds:    []contracts.RefreshKind{contracts.KindFundamentals},
		runner:   runner,
		universe: universe,
		logger:   log.WithField("job", "fundamentals_daily"),
	}
}

// NewScoreRefreshJob recalculates scores whose inputs changed or that aged past the gate
func NewScoreRefreshJob(schedule string, runner Runner, universe Universe, log *logger.Logger) *CycleJob {
	return &CycleJob{
		name:     "score_refresh",
		schedule: schedule,
		kinds:    []contracts.RefreshKind{contracts.KindScore},
		runner:   runner,
		universe: universe,
		logger:   log.WithField("job", "score_refresh"),
	}
}

// Name returns the job name
func (j *CycleJob) Name() string { return j.name }

// Schedule returns the cron schedule
func (j *CycleJob) Schedule() string { return j.schedule }

// Run executes the cycle; only a cycle where every refresh failed is a job failure.
// Outside market hours the intraday job reports scheduler.ErrSkipped.
func (j *CycleJob) Run(ctx context.Context) error {
	if j.calendar != nil && !j.calendar.IsOpen(j.clock.Now()) {
		j.logger.Debug("Market is closed, skipping")
		return fmt.Errorf("%s: market closed: %w", j.name, scheduler.ErrSkipped)
	}

	symbols := j.universe()
	j.logger.WithField("symbols", len(symbols)).Info("Starting scheduled refresh")

	report, err := j.runner.RunCycle(ctx, symbols, j.kinds...)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}

	fields := map[string]interface{}{
		"failed":  report.FailedCount(),
		"results": len(report.Results),
	}
	for kind, counts := range report.Counts {
		fields[string(kind)+"_refreshed"] = counts.Refreshed
	}
	j.logger.WithFields(fields).Info("Scheduled refresh completed")

	if len(report.Results) > 0 && report.FailedCount() == len(report.Results) {
		return fmt.Errorf("%s: all %d refreshes failed", j.name, len(report.Results))
	}
	return nil
}

// BootstrapJob force-loads the whole universe; it is run on demand at startup
type BootstrapJob struct {
	runner   Runner
	universe Universe
	logger   *logger.Logger
}

// NewBootstrapJob creates a new bootstrap job
func NewBootstrapJob(runner Runner, universe Universe, log *logger.Logger) *BootstrapJob {
	return &BootstrapJob{
		runner:   runner,
		universe: universe,
		logger:   log.WithField("job", "bootstrap"),
	}
}

// Name returns the job name
func (j *BootstrapJob) Name() string { return "bootstrap" }

// Schedule is effectively never; the scheduler command runs this job once before starting cron
func (j *BootstrapJob) Schedule() string { return "@every 8760h" }

// Run executes the bootstrap
func (j *BootstrapJob) Run(ctx context.Context) error {
	symbols := j.universe()
	report, err := j.runner.Bootstrap(ctx, symbols)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"succeeded": len(report.Succeeded),
		"failed":    len(report.Failed),
	}).Info("Bootstrap finished")

	if len(symbols) > 0 && len(report.Succeeded) == 0 {
		return fmt.Errorf("bootstrap: every symbol failed")
	}
	return nil
}
