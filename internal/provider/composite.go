package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/pkg/logger"
)

// Composite presents one Provider backed by a cheap source and a rich source.
// Profile and fundamentals come from the rich source with gaps filled from the
// cheap one; prices always come from the cheap source.
// ⭐ SSOT: provider fallback and gap-filling rules live here only
type Composite struct {
	cheap contracts.Provider
	rich  contracts.Provider
	log   *logger.Logger
}

// NewComposite creates a composite provider.
// The rich source paces its own requests since one operation may issue several.
func NewComposite(cheap, rich contracts.Provider, log *logger.Logger) *Composite {
	return &Composite{
		cheap: cheap,
		rich:  rich,
		log:   log.WithComponent("composite_provider"),
	}
}

// Name implements contracts.Provider
func (c *Composite) Name() string {
	return fmt.Sprintf("Hybrid (%s + %s)", c.cheap.Name(), c.rich.Name())
}

// FetchProfile implements contracts.Provider
func (c *Composite) FetchProfile(ctx context.Context, symbol string) (*contracts.Instrument, error) {
	var richInfo *contracts.Instrument
	err := c.callRich(symbol, "profile", func() error {
		var err error
		richInfo, err = c.rich.FetchProfile(ctx, symbol)
		return err
	})
	if err != nil || richInfo == nil {
		// Rich source failed entirely: take the cheap profile wholesale
		return c.cheapProfile(ctx, symbol)
	}

	if hasText(richInfo.Name) && hasText(richInfo.Exchange) {
		return richInfo, nil
	}

	cheapInfo, _ := c.cheapProfile(ctx, symbol)
	if cheapInfo == nil {
		return richInfo, nil
	}

	merged := *richInfo
	if !hasText(merged.Name) && hasText(cheapInfo.Name) {
		merged.Name = cheapInfo.Name
	}
	if !hasText(merged.Exchange) && hasText(cheapInfo.Exchange) {
		merged.Exchange = cheapInfo.Exchange
	}
	return &merged, nil
}

// FetchPriceSeries implements contracts.Provider
func (c *Composite) FetchPriceSeries(ctx context.Context, symbol string, start, end time.Time, interval contracts.Interval) ([]contracts.PriceBar, error) {
	return c.cheap.FetchPriceSeries(ctx, symbol, start, end, interval)
}

// FetchLatestPrice implements contracts.Provider
func (c *Composite) FetchLatestPrice(ctx context.Context, symbol string) (*decimal.Decimal, error) {
	return c.cheap.FetchLatestPrice(ctx, symbol)
}

// FetchFundamentals implements contracts.Provider
func (c *Composite) FetchFundamentals(ctx context.Context, symbol string) (*contracts.FundamentalSnapshot, error) {
	var richSnap *contracts.FundamentalSnapshot
	err := c.callRich(symbol, "fundamentals", func() error {
		var err error
		richSnap, err = c.rich.FetchFundamentals(ctx, symbol)
		return err
	})

	cheapSnap, cheapErr := c.cheap.FetchFundamentals(ctx, symbol)
	if cheapErr != nil {
		c.log.WithSymbol(symbol).WithError(cheapErr).Debug("Cheap source fundamentals failed")
		cheapSnap = nil
	}

	if err != nil || richSnap == nil {
		return cheapSnap, nil
	}
	if cheapSnap == nil {
		return richSnap, nil
	}

	merged := richSnap.FillGaps(*cheapSnap)
	return &merged, nil
}

// HealthCheck implements contracts.Provider
func (c *Composite) HealthCheck(ctx context.Context) bool {
	return c.cheap.HealthCheck(ctx) || c.rich.HealthCheck(ctx)
}

// callRich calls fn, logging failures; the caller falls back on any error
func (c *Composite) callRich(symbol, what string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	log := c.log.WithSymbol(symbol).WithField("source", c.rich.Name()).WithField("kind", what)
	switch {
	case errors.Is(err, contracts.ErrQuotaExhausted), errors.Is(err, contracts.ErrProviderUnavailable):
		log.Debug("Rich source skipped, falling back")
	default:
		log.WithError(err).Warn("Rich source failed, falling back")
	}
	return err
}

func (c *Composite) cheapProfile(ctx context.Context, symbol string) (*contracts.Instrument, error) {
	info, err := c.cheap.FetchProfile(ctx, symbol)
	if err != nil {
		c.log.WithSymbol(symbol).WithError(err).Debug("Cheap source profile failed")
		return nil, nil
	}
	return info, nil
}

func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}

var _ contracts.Provider = (*Composite)(nil)
