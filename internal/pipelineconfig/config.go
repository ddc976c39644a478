package pipelineconfig

import "time"

// Config is the full ingestion pipeline definition
type Config struct {
	Meta        Meta        `yaml:"meta" json:"meta"`
	Universe    Universe    `yaml:"universe" json:"universe"`
	Staleness   Staleness   `yaml:"staleness" json:"staleness"`
	Prices      Prices      `yaml:"prices" json:"prices"`
	Indicators  Indicators  `yaml:"indicators" json:"indicators"`
	Scoring     Scoring     `yaml:"scoring" json:"scoring"`
	MarketHours MarketHours `yaml:"market_hours" json:"market_hours"`
	Schedules   Schedules   `yaml:"schedules" json:"schedules"`
}

// Meta identifies the pipeline
type Meta struct {
	PipelineID string `yaml:"pipeline_id" json:"pipeline_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"` // IANA zone, e.g. America/New_York
}

// Universe is the symbol set refreshed every cycle
type Universe struct {
	Symbols         []string `yaml:"symbols" json:"symbols"`
	DefaultExchange string   `yaml:"default_exchange" json:"default_exchange"`
}

// Staleness holds the refresh gates per kind
type Staleness struct {
	Profile      time.Duration `yaml:"profile" json:"profile"`
	Fundamentals time.Duration `yaml:"fundamentals" json:"fundamentals"`
	Score        time.Duration `yaml:"score" json:"score"`
}

// Prices controls the bar windows fetched
type Prices struct {
	LookbackDays int `yaml:"lookback_days" json:"lookback_days"` // bootstrap window
	RefreshDays  int `yaml:"refresh_days" json:"refresh_days"`   // manual "refresh prices" window
}

// Indicators configures the RSI engine
type Indicators struct {
	Period               int      `yaml:"period" json:"period"`
	Timeframes           []string `yaml:"timeframes" json:"timeframes"`
	DailyFastPathDays    int      `yaml:"daily_fast_path_days" json:"daily_fast_path_days"`
	DailyFastPathMinBars int      `yaml:"daily_fast_path_min_bars" json:"daily_fast_path_min_bars"`
}

// Scoring toggles renormalization of partially available categories
type Scoring struct {
	RenormalizeValuation  bool `yaml:"renormalize_valuation" json:"renormalize_valuation"`
	RenormalizeCategories bool `yaml:"renormalize_categories" json:"renormalize_categories"`
}

// MarketHours is the regular session in Meta.Timezone
type MarketHours struct {
	Open         string `yaml:"open" json:"open"`   // HH:MM
	Close        string `yaml:"close" json:"close"` // HH:MM
	WeekdaysOnly bool   `yaml:"weekdays_only" json:"weekdays_only"`
}

// Schedules are cron specs with a seconds field
type Schedules struct {
	Intraday          string `yaml:"intraday" json:"intraday"`
	FundamentalsDaily string `yaml:"fundamentals_daily" json:"fundamentals_daily"`
	Scores            string `yaml:"scores" json:"scores"`
	DataQuality       string `yaml:"data_quality" json:"data_quality"`
}

// Default returns the configuration used when no YAML file is present
func Default() *Config {
	return &Config{
		Meta: Meta{
			PipelineID: "trueequity",
			Version:    "1",
			Timezone:   "America/New_York",
		},
		Universe: Universe{
			Symbols:         []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"},
			DefaultExchange: "NASDAQ",
		},
		Staleness: Staleness{
			Profile:      7 * 24 * time.Hour,
			Fundamentals: 12 * time.Hour,
			Score:        time.Hour,
		},
		Prices: Prices{
			LookbackDays: 60,
			RefreshDays:  7,
		},
		Indicators: Indicators{
			Period:               14,
			Timeframes:           []string{"1h", "30m", "2h", "1d"},
			DailyFastPathDays:    30,
			DailyFastPathMinBars: 14,
		},
		MarketHours: MarketHours{
			Open:         "09:30",
			Close:        "16:00",
			WeekdaysOnly: true,
		},
		Schedules: Schedules{
			Intraday:          "0 */15 9-16 * * MON-FRI",
			FundamentalsDaily: "0 0 18 * * MON-FRI",
			Scores:            "0 0 * * * *",
			DataQuality:       "0 30 18 * * MON-FRI",
		},
	}
}

// Location resolves Meta.Timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Meta.Timezone)
}
