package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/pipelineconfig"
	"github.com/trueequity/backend/internal/s0_data/quality"
	"github.com/trueequity/backend/internal/scheduler"
	"github.com/trueequity/backend/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run or inspect the refresh scheduler",
	Long: `Run the cron scheduler or manage its jobs.

Subcommands:
  start   - bootstrap the universe, then run jobs on their schedules
  list    - registered jobs and their schedules
  run     - run one job now and wait for it
  status  - next activation of every job

Example:
  go run ./cmd/trueequity scheduler start
  go run ./cmd/trueequity scheduler run score_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Bootstrap the configured universe, then schedule every job.

Registered jobs (times in the pipeline timezone):
- intraday_refresh: prices, RSI and fundamentals while the market is open
- fundamentals_daily: fundamentals after the close
- score_refresh: hourly score recalculation
- data_quality: daily coverage snapshot
- bootstrap: manual only

Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the next activation of every job",
		RunE:  showStatus,
	}

	skipBootstrap bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)

	schedulerStartCmd.Flags().BoolVar(&skipBootstrap, "skip-bootstrap", false, "start without the initial forced load")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== trueequity scheduler ===")

	a, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	if !skipBootstrap {
		fmt.Println("\nBootstrapping universe...")
		result, err := sched.RunJobSync("bootstrap")
		if err != nil {
			return err
		}
		if !result.Success {
			PrintWarning("Bootstrap failed: " + result.Error)
		} else {
			PrintSuccess(fmt.Sprintf("Bootstrap finished in %s", result.Duration.Round(time.Millisecond)))
		}
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	next := sched.NextRuns()
	for _, jobName := range sched.GetAllJobs() {
		if at, ok := next[jobName]; ok {
			fmt.Printf("  - %-20s next %s\n", jobName, at.In(a.location).Format("2006-01-02 15:04:05 MST"))
		}
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	widths := []int{20, 24}
	PrintTableHeader([]string{"Job", "Schedule"}, widths)
	stats := sched.GetJobStats()
	for _, jobName := range sched.GetAllJobs() {
		PrintTableRow([]string{jobName, stats[jobName].Schedule}, widths)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJobSync(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if result.Skipped {
		PrintWarning(fmt.Sprintf("%s skipped: %s", jobName, result.Error))
		return nil
	}
	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %s: %s", jobName, result.Duration.Round(time.Millisecond), result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	now := time.Now().In(a.location)
	hours, err := scheduler.NewMarketHours(a.pipeline.MarketHours, a.location)
	if err != nil {
		return err
	}

	fmt.Printf("Now       : %s\n", now.Format("2006-01-02 15:04:05 MST"))
	if hours.IsOpen(now) {
		fmt.Println("Market    : open")
	} else {
		fmt.Printf("Market    : closed, opens %s\n", hours.NextOpen(now).Format("Mon 2006-01-02 15:04 MST"))
	}
	fmt.Println()

	widths := []int{20, 24, 26}
	PrintTableHeader([]string{"Job", "Schedule", "Next run"}, widths)
	stats := sched.GetJobStats()
	for _, jobName := range sched.GetAllJobs() {
		spec := stats[jobName].Schedule
		next := "-"
		if jobName != "bootstrap" {
			if parsed, err := pipelineconfig.CronParser.Parse(spec); err == nil {
				next = parsed.Next(now).Format("2006-01-02 15:04:05 MST")
			}
		}
		PrintTableRow([]string{jobName, spec, next}, widths)
	}

	return nil
}

func initScheduler(ctx context.Context) (*app, *scheduler.Scheduler, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Wire storage, providers and the pipeline
	a, err := newApp(ctx)
	if err != nil {
		return nil, nil, err
	}

	// 2. Event stream goes to the log when no API hub is attached
	a.ingest.WithEventSink(contracts.EventSinkFunc(func(e contracts.RefreshEvent) {
		if e.Outcome == contracts.OutcomeFailed {
			a.log.WithSymbol(e.Symbol).WithFields(map[string]interface{}{
				"kind":  e.Kind,
				"error": e.Error,
			}).Debug("Refresh event")
		}
	}))

	// 3. Market hours
	hours, err := scheduler.NewMarketHours(a.pipeline.MarketHours, a.location)
	if err != nil {
		a.Close()
		return nil, nil, err
	}

	// 4. Quality snapshots persist only with PostgreSQL
	var saver jobs.SnapshotSaver
	if a.db != nil {
		saver = quality.NewRepository(a.db.Pool)
	}

	// 5. Create scheduler and register jobs
	sched := scheduler.New(a.location, a.log)
	universe := jobs.Universe(a.universe)
	schedules := a.pipeline.Schedules

	for _, job := range []scheduler.Job{
		jobs.NewBootstrapJob(a.ingest, universe, a.log),
		jobs.NewIntradayRefreshJob(schedules.Intraday, a.ingest, universe, hours, contracts.SystemClock, a.log),
		jobs.NewFundamentalsDailyJob(schedules.FundamentalsDaily, a.ingest, universe, a.log),
		jobs.NewScoreRefreshJob(schedules.Scores, a.ingest, universe, a.log),
		jobs.NewDataQualityJob(schedules.DataQuality, a.quality, saver, universe, contracts.SystemClock, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			a.Close()
			return nil, nil, err
		}
	}

	return a, sched, nil
}
