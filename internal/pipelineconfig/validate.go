package pipelineconfig

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trueequity/backend/internal/contracts"
)

// ValidationError is a fatal config problem
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning is a non-fatal recommendation
type Warning struct {
	Code    string
	Message string
}

var hhmm = regexp.MustCompile(`^\d{2}:\d{2}$`)

// CronParser parses schedule specs with a leading seconds field
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.PipelineID == "" {
		return ValidationError{"meta.pipeline_id", "required"}
	}
	if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil || cfg.Meta.Timezone == "" {
		return ValidationError{"meta.timezone", "must be a valid IANA zone"}
	}

	// === Universe ===
	seen := make(map[string]bool, len(cfg.Universe.Symbols))
	for i, symbol := range cfg.Universe.Symbols {
		normalized := contracts.NormalizeSymbol(symbol)
		if normalized == "" {
			return ValidationError{fmt.Sprintf("universe.symbols[%d]", i), "must not be empty"}
		}
		if seen[normalized] {
			return ValidationError{fmt.Sprintf("universe.symbols[%d]", i), "duplicate symbol " + normalized}
		}
		seen[normalized] = true
	}
	if cfg.Universe.DefaultExchange == "" {
		return ValidationError{"universe.default_exchange", "required"}
	}

	// === Staleness ===
	if cfg.Staleness.Profile <= 0 {
		return ValidationError{"staleness.profile", "must be > 0"}
	}
	if cfg.Staleness.Fundamentals <= 0 {
		return ValidationError{"staleness.fundamentals", "must be > 0"}
	}
	if cfg.Staleness.Score <= 0 {
		return ValidationError{"staleness.score", "must be > 0"}
	}

	// === Prices ===
	if cfg.Prices.LookbackDays <= 0 {
		return ValidationError{"prices.lookback_days", "must be > 0"}
	}
	if cfg.Prices.RefreshDays <= 0 || cfg.Prices.RefreshDays > cfg.Prices.LookbackDays {
		return ValidationError{"prices.refresh_days", "must be in (0, lookback_days]"}
	}

	// === Indicators ===
	if cfg.Indicators.Period <= 1 {
		return ValidationError{"indicators.period", "must be > 1"}
	}
	if len(cfg.Indicators.Timeframes) == 0 {
		return ValidationError{"indicators.timeframes", "must not be empty"}
	}
	for i, tf := range cfg.Indicators.Timeframes {
		if _, err := contracts.ParseTimeframe(tf); err != nil || tf == "" {
			return ValidationError{fmt.Sprintf("indicators.timeframes[%d]", i), "unsupported timeframe " + tf}
		}
	}
	if cfg.Indicators.DailyFastPathDays <= 0 {
		return ValidationError{"indicators.daily_fast_path_days", "must be > 0"}
	}
	if cfg.Indicators.DailyFastPathMinBars < cfg.Indicators.Period {
		return ValidationError{"indicators.daily_fast_path_min_bars", "must be >= period"}
	}

	// === MarketHours ===
	open, err := parseHHMM(cfg.MarketHours.Open)
	if err != nil {
		return ValidationError{"market_hours.open", err.Error()}
	}
	closing, err := parseHHMM(cfg.MarketHours.Close)
	if err != nil {
		return ValidationError{"market_hours.close", err.Error()}
	}
	if !open.Before(closing) {
		return ValidationError{"market_hours", "open must be before close"}
	}

	// === Schedules ===
	for field, spec := range map[string]string{
		"schedules.intraday":           cfg.Schedules.Intraday,
		"schedules.fundamentals_daily": cfg.Schedules.FundamentalsDaily,
		"schedules.scores":             cfg.Schedules.Scores,
		"schedules.data_quality":       cfg.Schedules.DataQuality,
	} {
		if _, err := CronParser.Parse(spec); err != nil {
			return ValidationError{field, err.Error()}
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if len(cfg.Universe.Symbols) == 0 {
		warnings = append(warnings, Warning{
			Code:    "EMPTY_UNIVERSE",
			Message: "universe.symbols is empty: scheduled cycles will do nothing",
		})
	}

	if cfg.Staleness.Fundamentals < time.Hour {
		warnings = append(warnings, Warning{
			Code:    "AGGRESSIVE_FUNDAMENTALS",
			Message: "fundamentals staleness < 1h: rich-source quota will run out quickly",
		})
	}

	if cfg.Scoring.RenormalizeValuation || cfg.Scoring.RenormalizeCategories {
		warnings = append(warnings, Warning{
			Code:    "RENORMALIZED_SCORING",
			Message: "renormalized scoring is on: scores are not comparable with literal-weight history",
		})
	}

	return warnings
}

// SessionBounds returns the market open and close as offsets from midnight
func (m MarketHours) SessionBounds() (time.Duration, time.Duration, error) {
	open, err := parseHHMM(m.Open)
	if err != nil {
		return 0, 0, fmt.Errorf("open: %w", err)
	}
	closing, err := parseHHMM(m.Close)
	if err != nil {
		return 0, 0, fmt.Errorf("close: %w", err)
	}
	return sinceMidnight(open), sinceMidnight(closing), nil
}

// === Helper Functions ===

func parseHHMM(s string) (time.Time, error) {
	if !hhmm.MatchString(s) {
		return time.Time{}, errors.New("must be HH:MM format")
	}
	return time.Parse("15:04", s)
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}
