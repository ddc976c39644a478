package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/external"
	"github.com/trueequity/backend/internal/pipelineconfig"
	"github.com/trueequity/backend/internal/s0_data"
	"github.com/trueequity/backend/internal/s0_data/ingest"
	"github.com/trueequity/backend/internal/s0_data/memstore"
	"github.com/trueequity/backend/internal/s0_data/quality"
	"github.com/trueequity/backend/internal/s1_technical"
	"github.com/trueequity/backend/internal/s2_scoring"
	"github.com/trueequity/backend/pkg/config"
	"github.com/trueequity/backend/pkg/database"
	"github.com/trueequity/backend/pkg/logger"
	"github.com/trueequity/backend/pkg/redis"
)

// app holds every wired component a command may need
type app struct {
	cfg      *config.Config
	pipeline *pipelineconfig.Config
	location *time.Location
	log      *logger.Logger

	db      *database.DB // nil with the memory driver
	redis   *redis.Client
	store   contracts.Gateway
	sources *external.Sources

	technical *s1_technical.Engine
	scoring   *s2_scoring.Engine
	ingest    *ingest.Pipeline
	quality   *quality.QualityGate
}

// loadConfig reads the environment and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if configFile != "" {
		cfg.Pipeline.ConfigPath = configFile
	}
	return cfg, nil
}

// newApp wires storage, providers, engines and the ingestion pipeline
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Pipeline definition
	pc, err := pipelineconfig.LoadOrDefault(cfg.Pipeline.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load pipeline config: %w", err)
	}
	for _, w := range pipelineconfig.Warn(pc) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	if pc.Universe.DefaultExchange == "" {
		pc.Universe.DefaultExchange = cfg.Pipeline.DefaultExchange
	}
	loc, err := pc.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, pipeline: pc, location: loc, log: log}

	// 4. Storage
	if cfg.UsesMemoryStore() {
		a.store = memstore.New(contracts.SystemClock)
		log.Warn("Using in-memory store, nothing survives this process")
	} else {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.store = s0_data.NewRepository(db.Pool)
		log.Info("Connected to database")
	}

	// 5. Redis (optional)
	a.redis, err = redis.New(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 6. Upstream sources
	a.sources, err = external.NewSources(cfg, a.redis, log, loc)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create providers: %w", err)
	}

	// 7. Engines
	a.technical = s1_technical.NewEngine(a.store, a.sources.Composite, contracts.SystemClock, technicalConfig(pc), log)
	a.scoring = s2_scoring.NewEngine(a.store, s2_scoring.Options{
		RenormalizeValuation:  pc.Scoring.RenormalizeValuation,
		RenormalizeCategories: pc.Scoring.RenormalizeCategories,
	}, contracts.SystemClock, log)

	// 8. Ingestion pipeline
	a.ingest = ingest.NewPipeline(a.store, a.sources.Composite, a.scoring, a.technical,
		contracts.SystemClock, ingest.ConfigFrom(pc), log)

	// 9. Quality gate
	a.quality = quality.NewQualityGate(a.store, quality.DefaultConfig())

	return a, nil
}

// technicalConfig maps the YAML indicator section onto the RSI engine
func technicalConfig(pc *pipelineconfig.Config) s1_technical.Config {
	cfg := s1_technical.Config{
		Period:               pc.Indicators.Period,
		DailyFastPathDays:    pc.Indicators.DailyFastPathDays,
		DailyFastPathMinBars: pc.Indicators.DailyFastPathMinBars,
	}
	for _, raw := range pc.Indicators.Timeframes {
		// validated on load
		if tf, err := contracts.ParseTimeframe(raw); err == nil {
			cfg.Timeframes = append(cfg.Timeframes, tf)
		}
	}
	return cfg
}

// universe returns the configured symbols
func (a *app) universe() []string {
	return a.pipeline.Universe.Symbols
}

// symbolsOr returns args when given, the configured universe otherwise
func (a *app) symbolsOr(args []string) []string {
	if len(args) > 0 {
		return args
	}
	return a.universe()
}

// Close releases the database and Redis connections
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
