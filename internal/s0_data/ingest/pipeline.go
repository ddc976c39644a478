package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/pipelineconfig"
	"github.com/trueequity/backend/internal/s0_data/quality"
	"github.com/trueequity/backend/pkg/logger"
)

// Scorer computes a fresh score; nil when inputs are missing
type Scorer interface {
	Score(ctx context.Context, symbol string) (*contracts.ScoreSnapshot, error)
}

// IndicatorRefresher recomputes and stores RSI for every configured timeframe
type IndicatorRefresher interface {
	RefreshAll(ctx context.Context, symbol string) ([]contracts.IndicatorSnapshot, error)
}

// Config holds the staleness gates and price windows
type Config struct {
	ProfileStaleness      time.Duration
	FundamentalsStaleness time.Duration
	ScoreStaleness        time.Duration
	DefaultExchange       string
	PriceLookbackDays     int // bootstrap window
	Workers               int // symbols processed concurrently; 1 keeps the cycle strictly sequential
}

// DefaultConfig returns the 7d / 12h / 1h gates
func DefaultConfig() Config {
	return Config{
		ProfileStaleness:      7 * 24 * time.Hour,
		FundamentalsStaleness: 12 * time.Hour,
		ScoreStaleness:        time.Hour,
		DefaultExchange:       "NASDAQ",
		PriceLookbackDays:     60,
		Workers:               1,
	}
}

// ConfigFrom maps the pipeline YAML onto ingest settings
func ConfigFrom(pc *pipelineconfig.Config) Config {
	return Config{
		ProfileStaleness:      pc.Staleness.Profile,
		FundamentalsStaleness: pc.Staleness.Fundamentals,
		ScoreStaleness:        pc.Staleness.Score,
		DefaultExchange:       pc.Universe.DefaultExchange,
		PriceLookbackDays:     pc.Prices.LookbackDays,
		Workers:               1,
	}
}

// Result is the outcome of one refresh
type Result struct {
	Symbol  string                   `json:"symbol"`
	Kind    contracts.RefreshKind    `json:"kind"`
	Outcome contracts.RefreshOutcome `json:"outcome"`
	Count   int                      `json:"count,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// Pipeline keeps persisted instruments, bars, fundamentals, scores and RSI fresh
// ⭐ SSOT: refresh orchestration and staleness gates live here only
type Pipeline struct {
	store      contracts.Gateway
	provider   contracts.Provider
	scorer     Scorer
	indicators IndicatorRefresher
	clock      contracts.Clock
	config     Config
	sink       contracts.EventSink
	logger     *logger.Logger
}

// NewPipeline creates a new Pipeline instance
func NewPipeline(
	store contracts.Gateway,
	provider contracts.Provider,
	scorer Scorer,
	indicators IndicatorRefresher,
	clock contracts.Clock,
	config Config,
	log *logger.Logger,
) *Pipeline {
	if clock == nil {
		clock = contracts.SystemClock
	}
	if config.DefaultExchange == "" {
		config.DefaultExchange = DefaultConfig().DefaultExchange
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Pipeline{
		store:      store,
		provider:   provider,
		scorer:     scorer,
		indicators: indicators,
		clock:      clock,
		config:     config,
		logger:     log.WithComponent("ingest"),
	}
}

// WithEventSink publishes every refresh result to sink
func (p *Pipeline) WithEventSink(sink contracts.EventSink) *Pipeline {
	p.sink = sink
	return p
}

// RefreshProfile fetches and upserts the instrument profile unless it is younger than the profile gate
func (p *Pipeline) RefreshProfile(ctx context.Context, symbol string, force bool) (Result, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	res := Result{Symbol: symbol, Kind: contracts.KindProfile}

	if !force {
		fresh, err := p.isFresh(ctx, symbol, contracts.KindProfile, p.config.ProfileStaleness)
		if err != nil {
			return p.fail(res, err)
		}
		if fresh {
			return p.done(res, contracts.OutcomeSkipped, 0)
		}
	}

	inst, err := p.provider.FetchProfile(ctx, symbol)
	if err != nil {
		return p.fail(res, fmt.Errorf("fetch profile: %w", err))
	}

	if inst == nil {
		// keep a parent row so bars and fundamentals are never blocked
		created, err := p.store.CreateInstrumentStub(ctx, symbol, p.config.DefaultExchange)
		if err != nil {
			return p.fail(res, fmt.Errorf("create stub: %w", err))
		}
		p.logger.WithSymbol(symbol).WithField("stub_created", created).Debug("No profile available")
		return p.done(res, contracts.OutcomeAbsent, 0)
	}

	if !inst.HasUsableName() || strings.EqualFold(strings.TrimSpace(inst.Name), contracts.PlaceholderName(symbol)) {
		p.logger.WithSymbol(symbol).Debug("Profile has no usable name, skipping write")
		return p.done(res, contracts.OutcomeAbsent, 0)
	}

	profile := *inst
	profile.Symbol = symbol
	if strings.TrimSpace(profile.Exchange) == "" {
		profile.Exchange = p.config.DefaultExchange
	}
	if err := p.store.UpsertInstrument(ctx, profile); err != nil {
		return p.fail(res, fmt.Errorf("upsert instrument: %w", err))
	}

	p.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"name":     profile.Name,
		"exchange": profile.Exchange,
	}).Info("Upserted instrument")

	return p.done(res, contracts.OutcomeRefreshed, 1)
}

// RefreshPrices fetches daily bars in [start, end], drops invalid ones and upserts the rest
func (p *Pipeline) RefreshPrices(ctx context.Context, symbol string, start, end time.Time) (Result, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	res := Result{Symbol: symbol, Kind: contracts.KindPrices}

	bars, err := p.provider.FetchPriceSeries(ctx, symbol, start, end, contracts.IntervalDaily)
	if err != nil {
		return p.fail(res, fmt.Errorf("fetch prices: %w", err))
	}
	if len(bars) == 0 {
		p.logger.WithSymbol(symbol).Debug("No price data returned")
		return p.done(res, contracts.OutcomeAbsent, 0)
	}

	for i := range bars {
		bars[i].Symbol = symbol
	}
	valid, dropped := quality.FilterValidBars(bars)
	if dropped > 0 {
		p.logger.WithFields(map[string]interface{}{
			"symbol":  symbol,
			"dropped": dropped,
			"kept":    len(valid),
		}).Debug("Dropped invalid bars")
	}
	if len(valid) == 0 {
		return p.done(res, contracts.OutcomeSkipped, 0)
	}

	if err := p.ensureInstrument(ctx, symbol); err != nil {
		return p.fail(res, err)
	}

	count, err := p.store.UpsertPriceBars(ctx, valid)
	if err != nil {
		return p.fail(res, fmt.Errorf("upsert bars: %w", err))
	}

	p.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  count,
	}).Debug("Upserted price bars")

	return p.done(res, contracts.OutcomeRefreshed, count)
}

// RefreshLatestPrice refreshes yesterday and today; the intraday cycle uses it for prices
func (p *Pipeline) RefreshLatestPrice(ctx context.Context, symbol string) (Result, error) {
	now := p.clock.Now()
	return p.RefreshPrices(ctx, symbol, now.AddDate(0, 0, -1), now)
}

// RefreshFundamentals fetches and upserts the latest snapshot unless it is younger than the fundamentals gate
func (p *Pipeline) RefreshFundamentals(ctx context.Context, symbol string, force bool) (Result, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	res := Result{Symbol: symbol, Kind: contracts.KindFundamentals}

	if err := p.ensureInstrument(ctx, symbol); err != nil {
		return p.fail(res, err)
	}

	if !force {
		fresh, err := p.isFresh(ctx, symbol, contracts.KindFundamentals, p.config.FundamentalsStaleness)
		if err != nil {
			return p.fail(res, err)
		}
		if fresh {
			return p.done(res, contracts.OutcomeSkipped, 0)
		}
	}

	snap, err := p.provider.FetchFundamentals(ctx, symbol)
	if err != nil {
		return p.fail(res, fmt.Errorf("fetch fundamentals: %w", err))
	}
	if snap == nil {
		p.logger.WithSymbol(symbol).Debug("No fundamentals available")
		return p.done(res, contracts.OutcomeAbsent, 0)
	}

	record := *snap
	record.Symbol = symbol
	if record.PeriodType == "" {
		record.PeriodType = contracts.PeriodAnnual
	}
	if record.PeriodEndDate.IsZero() {
		record.PeriodEndDate = dateOf(p.clock.Now())
	}
	if err := p.store.UpsertFundamentals(ctx, record); err != nil {
		return p.fail(res, fmt.Errorf("upsert fundamentals: %w", err))
	}

	p.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"period":     string(record.PeriodType),
		"period_end": record.PeriodEndDate.Format("2006-01-02"),
		"source":     p.provider.Name(),
	}).Info("Upserted fundamentals")

	return p.done(res, contracts.OutcomeRefreshed, 1)
}

// RefreshScore recomputes the score unless it is younger than the score gate
// and no newer bars or fundamentals have landed since it was calculated
func (p *Pipeline) RefreshScore(ctx context.Context, symbol string, force bool) (Result, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	res := Result{Symbol: symbol, Kind: contracts.KindScore}

	if !force {
		current, err := p.scoreIsCurrent(ctx, symbol)
		if err != nil {
			return p.fail(res, err)
		}
		if current {
			return p.done(res, contracts.OutcomeSkipped, 0)
		}
	}

	score, err := p.scorer.Score(ctx, symbol)
	if err != nil {
		return p.fail(res, fmt.Errorf("calculate score: %w", err))
	}
	if score == nil {
		p.logger.WithSymbol(symbol).Debug("Cannot score yet: fundamentals or price missing")
		return p.done(res, contracts.OutcomeAbsent, 0)
	}

	if err := p.store.ReplaceScore(ctx, *score); err != nil {
		return p.fail(res, fmt.Errorf("replace score: %w", err))
	}

	p.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"overall":   score.OverallScore.StringFixed(2),
		"grade":     string(score.OverallGrade),
		"valuation": string(score.ValuationCategory),
	}).Info("Stored score")

	return p.done(res, contracts.OutcomeRefreshed, 1)
}

// RefreshIndicators recomputes RSI for every configured timeframe.
// Timeframes without enough bars are absent, not failures.
func (p *Pipeline) RefreshIndicators(ctx context.Context, symbol string) (Result, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	res := Result{Symbol: symbol, Kind: contracts.KindIndicators}

	stored, err := p.indicators.RefreshAll(ctx, symbol)
	switch {
	case err == nil:
		return p.done(res, contracts.OutcomeRefreshed, len(stored))
	case onlyInsufficientData(err):
		p.logger.WithSymbol(symbol).WithError(err).Debug("Not enough bars for some timeframes")
		if len(stored) == 0 {
			return p.done(res, contracts.OutcomeAbsent, 0)
		}
		return p.done(res, contracts.OutcomeRefreshed, len(stored))
	default:
		res.Count = len(stored)
		return p.fail(res, fmt.Errorf("refresh rsi: %w", err))
	}
}

// scoreIsCurrent applies the two-part score gate
func (p *Pipeline) scoreIsCurrent(ctx context.Context, symbol string) (bool, error) {
	calculated, err := p.store.LastUpdated(ctx, symbol, contracts.KindScore)
	if err != nil {
		return false, fmt.Errorf("last score time: %w", err)
	}
	if calculated == nil || p.clock.Now().Sub(*calculated) >= p.config.ScoreStaleness {
		return false, nil
	}

	for _, kind := range []contracts.RefreshKind{contracts.KindFundamentals, contracts.KindPrices} {
		landed, err := p.store.LastUpdated(ctx, symbol, kind)
		if err != nil {
			return false, fmt.Errorf("last %s time: %w", kind, err)
		}
		if landed != nil && landed.After(*calculated) {
			return false, nil
		}
	}
	return true, nil
}

// isFresh reports whether kind was updated less than window ago
func (p *Pipeline) isFresh(ctx context.Context, symbol string, kind contracts.RefreshKind, window time.Duration) (bool, error) {
	last, err := p.store.LastUpdated(ctx, symbol, kind)
	if err != nil {
		return false, fmt.Errorf("last %s time: %w", kind, err)
	}
	return last != nil && p.clock.Now().Sub(*last) < window, nil
}

// ensureInstrument creates a placeholder parent row when the symbol is unknown
func (p *Pipeline) ensureInstrument(ctx context.Context, symbol string) error {
	exists, err := p.store.InstrumentExists(ctx, symbol)
	if err != nil {
		return fmt.Errorf("check instrument: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := p.store.CreateInstrumentStub(ctx, symbol, p.config.DefaultExchange); err != nil {
		return fmt.Errorf("create stub: %w", err)
	}
	p.logger.WithSymbol(symbol).Debug("Created placeholder instrument")
	return nil
}

func (p *Pipeline) done(res Result, outcome contracts.RefreshOutcome, count int) (Result, error) {
	res.Outcome = outcome
	res.Count = count
	p.publish(res)
	return res, nil
}

func (p *Pipeline) fail(res Result, err error) (Result, error) {
	res.Outcome = contracts.OutcomeFailed
	res.Error = err.Error()

	log := p.logger.WithError(err).WithFields(map[string]interface{}{
		"symbol": res.Symbol,
		"kind":   string(res.Kind),
	})
	if errors.Is(err, contracts.ErrValidation) {
		log.Error("Refresh rejected")
	} else {
		log.Warn("Refresh failed")
	}

	p.publish(res)
	return res, err
}

func (p *Pipeline) publish(res Result) {
	if p.sink == nil {
		return
	}
	p.sink.Publish(contracts.RefreshEvent{
		Symbol:  res.Symbol,
		Kind:    res.Kind,
		Outcome: res.Outcome,
		Count:   res.Count,
		Error:   res.Error,
		At:      p.clock.Now(),
	})
}

// onlyInsufficientData reports whether every joined error is ErrInsufficientData
func onlyInsufficientData(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !onlyInsufficientData(e) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, contracts.ErrInsufficientData)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
