package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/trueequity/backend/internal/contracts"
)

// cycleOrder is the per-symbol order of a cycle; scores always see this cycle's upserts
var cycleOrder = []contracts.RefreshKind{
	contracts.KindProfile,
	contracts.KindPrices,
	contracts.KindIndicators,
	contracts.KindFundamentals,
	contracts.KindScore,
}

// KindCounts tallies outcomes for one refresh kind
type KindCounts struct {
	Refreshed int `json:"refreshed"`
	Skipped   int `json:"skipped"`
	Absent    int `json:"absent"`
	Failed    int `json:"failed"`
}

// CycleReport summarizes one pass over the universe
type CycleReport struct {
	StartedAt  time.Time                             `json:"started_at"`
	FinishedAt time.Time                             `json:"finished_at"`
	Symbols    int                                   `json:"symbols"`
	Counts     map[contracts.RefreshKind]*KindCounts `json:"counts"`
	Results    []Result                              `json:"results"`
}

// FailedCount returns the number of failed refreshes across all kinds
func (r *CycleReport) FailedCount() int {
	total := 0
	for _, c := range r.Counts {
		total += c.Failed
	}
	return total
}

// BootstrapReport summarizes a forced first-run load
type BootstrapReport struct {
	CycleReport
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// step runs one refresh kind for a symbol
type step func(ctx context.Context, symbol string) (Result, error)

// RunCycle refreshes kinds for every symbol. Kinds run in profile, prices,
// indicators, fundamentals, score order regardless of argument order; an empty
// kinds list runs all of them. Failures are isolated per symbol and kind.
func (p *Pipeline) RunCycle(ctx context.Context, symbols []string, kinds ...contracts.RefreshKind) (*CycleReport, error) {
	wanted := make(map[contracts.RefreshKind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	var steps []step
	for _, kind := range cycleOrder {
		if len(wanted) > 0 && !wanted[kind] {
			continue
		}
		steps = append(steps, p.cycleStep(kind, false))
	}

	p.logger.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"steps":   len(steps),
		"workers": p.config.Workers,
	}).Info("Starting refresh cycle")

	report := p.run(ctx, symbols, steps)

	p.logger.WithFields(map[string]interface{}{
		"symbols":  report.Symbols,
		"results":  len(report.Results),
		"failed":   report.FailedCount(),
		"duration": report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Refresh cycle completed")

	return report, ctx.Err()
}

// Bootstrap force-loads every symbol: profile, full price window, RSI,
// fundamentals and score, ignoring staleness gates
func (p *Pipeline) Bootstrap(ctx context.Context, symbols []string) (*BootstrapReport, error) {
	steps := make([]step, 0, len(cycleOrder))
	for _, kind := range cycleOrder {
		steps = append(steps, p.cycleStep(kind, true))
	}

	p.logger.WithField("symbols", len(symbols)).Info("Starting bootstrap")

	report := &BootstrapReport{CycleReport: *p.run(ctx, symbols, steps)}

	failed := make(map[string]bool)
	for _, r := range report.Results {
		if r.Outcome == contracts.OutcomeFailed {
			failed[r.Symbol] = true
		}
	}
	for _, symbol := range uniqueSymbols(symbols) {
		if failed[symbol] {
			report.Failed = append(report.Failed, symbol)
		} else {
			report.Succeeded = append(report.Succeeded, symbol)
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"succeeded": len(report.Succeeded),
		"failed":    len(report.Failed),
	}).Info("Bootstrap completed")

	return report, ctx.Err()
}

// cycleStep binds a refresh kind to its trigger; force selects the bootstrap variant
func (p *Pipeline) cycleStep(kind contracts.RefreshKind, force bool) step {
	switch kind {
	case contracts.KindProfile:
		return func(ctx context.Context, symbol string) (Result, error) {
			return p.RefreshProfile(ctx, symbol, force)
		}
	case contracts.KindPrices:
		if !force {
			return p.RefreshLatestPrice
		}
		return func(ctx context.Context, symbol string) (Result, error) {
			end := p.clock.Now()
			return p.RefreshPrices(ctx, symbol, end.AddDate(0, 0, -p.config.PriceLookbackDays), end)
		}
	case contracts.KindIndicators:
		return p.RefreshIndicators
	case contracts.KindFundamentals:
		return func(ctx context.Context, symbol string) (Result, error) {
			return p.RefreshFundamentals(ctx, symbol, force)
		}
	default:
		return func(ctx context.Context, symbol string) (Result, error) {
			return p.RefreshScore(ctx, symbol, force)
		}
	}
}

// run fans symbols out to the worker pool; each worker runs all steps of one symbol in order
func (p *Pipeline) run(ctx context.Context, symbols []string, steps []step) *CycleReport {
	symbols = uniqueSymbols(symbols)
	report := &CycleReport{
		StartedAt: p.clock.Now(),
		Symbols:   len(symbols),
		Counts:    make(map[contracts.RefreshKind]*KindCounts),
	}

	symbolCh := make(chan string, len(symbols))
	resultCh := make(chan []Result, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID, symbolCh, resultCh, steps)
		}(i)
	}

	for _, symbol := range symbols {
		symbolCh <- symbol
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for results := range resultCh {
		for _, r := range results {
			report.add(r)
		}
	}

	report.FinishedAt = p.clock.Now()
	return report
}

func (p *Pipeline) worker(ctx context.Context, workerID int, symbolCh <-chan string, resultCh chan<- []Result, steps []step) {
	for symbol := range symbolCh {
		if ctx.Err() != nil {
			continue
		}

		results := make([]Result, 0, len(steps))
		for _, run := range steps {
			if ctx.Err() != nil {
				break
			}
			res, err := run(ctx, symbol)
			if err != nil {
				p.logger.WithError(err).WithFields(map[string]interface{}{
					"worker": workerID,
					"symbol": symbol,
					"kind":   string(res.Kind),
				}).Debug("Continuing after failed refresh")
			}
			results = append(results, res)
		}
		resultCh <- results
	}
}

func (r *CycleReport) add(res Result) {
	counts, ok := r.Counts[res.Kind]
	if !ok {
		counts = &KindCounts{}
		r.Counts[res.Kind] = counts
	}
	switch res.Outcome {
	case contracts.OutcomeRefreshed:
		counts.Refreshed++
	case contracts.OutcomeSkipped:
		counts.Skipped++
	case contracts.OutcomeAbsent:
		counts.Absent++
	default:
		counts.Failed++
	}
	r.Results = append(r.Results, res)
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = contracts.NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
