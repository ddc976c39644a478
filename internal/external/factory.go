// Package external wires the upstream market data clients into one composite provider.
package external

import (
	"fmt"
	"time"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/external/alphavantage"
	"github.com/trueequity/backend/internal/external/fmp"
	"github.com/trueequity/backend/internal/external/yahoo"
	"github.com/trueequity/backend/internal/provider"
	"github.com/trueequity/backend/pkg/config"
	"github.com/trueequity/backend/pkg/httputil"
	"github.com/trueequity/backend/pkg/logger"
	"github.com/trueequity/backend/pkg/redis"
)

// Sources holds every constructed upstream client
type Sources struct {
	Yahoo        *yahoo.Client
	AlphaVantage *alphavantage.Client
	FMP          *fmp.Client
	Composite    *provider.Composite
}

// NewSources builds the upstream clients and the composite from config.
// loc is the zone in which the daily quotas roll over.
func NewSources(cfg *config.Config, rdb *redis.Client, log *logger.Logger, loc *time.Location) (*Sources, error) {
	p := cfg.Providers
	limiter := redis.NewRateLimiter(rdb, "trueequity")

	yahooHTTP := httputil.New(p.HTTPTimeout, log).
		WithRateLimiter(limiter, redis.YahooRateLimit)
	avHTTP := httputil.New(p.HTTPTimeout, log).
		WithRateLimiter(limiter, redis.AlphaVantageRateLimit)
	fmpHTTP := httputil.New(p.HTTPTimeout, log).
		WithRateLimiter(limiter, redis.FMPRateLimit)

	s := &Sources{
		Yahoo: yahoo.NewClient(yahooHTTP, log, yahoo.Options{
			ChartBaseURL:    p.YahooBaseURL,
			QuoteBaseURL:    p.YahooQuoteURL,
			ProfileBaseURL:  p.YahooProfileURL,
			DefaultExchange: cfg.Pipeline.DefaultExchange,
		}),
		AlphaVantage: alphavantage.NewClient(avHTTP, log,
			provider.NewPacer(p.AlphaVantageMinInterval),
			provider.NewDailyQuota("alphavantage", p.AlphaVantageDailyLimit, loc, contracts.SystemClock, rdb, log),
			p.AlphaVantageBaseURL, p.AlphaVantageAPIKey),
		FMP: fmp.NewClient(fmpHTTP, log,
			provider.NewPacer(p.FMPMinInterval),
			provider.NewDailyQuota("fmp", p.FMPDailyLimit, loc, contracts.SystemClock, rdb, log),
			p.FMPBaseURL, p.FMPAPIKey),
	}

	var rich contracts.Provider
	switch p.RichSource {
	case "alphavantage", "":
		rich = s.AlphaVantage
	case "fmp":
		rich = s.FMP
	default:
		return nil, fmt.Errorf("unknown rich source %q", p.RichSource)
	}

	s.Composite = provider.NewComposite(s.Yahoo, rich, log)

	log.WithFields(map[string]interface{}{
		"provider": s.Composite.Name(),
		"redis":    rdb.Enabled(),
	}).Info("Market data providers ready")

	return s, nil
}
