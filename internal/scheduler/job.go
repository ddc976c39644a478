package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrSkipped is returned (possibly wrapped) by a refresh job whose own gate
// decided not to run this trigger, e.g. intraday refresh outside market hours.
// Skipped runs are recorded but never retried or counted as failures.
var ErrSkipped = errors.New("job skipped")

// Job is one refresh trigger driven by cron: intraday prices and RSI,
// daily fundamentals, score refresh, bootstrap or the data quality snapshot
// ⭐ SSOT: job interface
type Job interface {
	// Name is the registry key, e.g. "intraday_refresh"
	Name() string

	// Run performs one trigger over the universe. A nil error means the
	// cycle ran; partial per-symbol failures are the job's own concern.
	Run(ctx context.Context) error

	// Schedule is evaluated in the pipeline timezone with a seconds field,
	// e.g. "0 0 18 * * MON-FRI", or a descriptor such as "@hourly"
	Schedule() string
}

// JobResult records one trigger of a job
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"`
	Attempts  int           `json:"attempts"`
	Error     string        `json:"error,omitempty"`
}

// maxHistory bounds the results kept per job
const maxHistory = 100

// JobHistory keeps the latest results of one job
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, dropping the oldest beyond maxHistory
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)

	if len(h.Results) > maxHistory {
		h.Results = h.Results[len(h.Results)-maxHistory:]
	}
}

// GetLatestResults returns the latest N results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}

	if n == 0 {
		return []JobResult{}
	}

	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns runs that executed and failed; skips are excluded
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success && !result.Skipped {
			failed = append(failed, result)
		}
	}
	return failed
}

// SkippedCount returns the number of skipped triggers
func (h *JobHistory) SkippedCount() int {
	n := 0
	for _, result := range h.Results {
		if result.Skipped {
			n++
		}
	}
	return n
}

// GetSuccessRate returns successes over executed runs (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	executed, succeeded := 0, 0
	for _, result := range h.Results {
		if result.Skipped {
			continue
		}
		executed++
		if result.Success {
			succeeded++
		}
	}

	if executed == 0 {
		return 0.0
	}
	return float64(succeeded) / float64(executed)
}
