package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between consecutive upstream calls
type Pacer struct {
	limiter     *rate.Limiter
	minInterval time.Duration
}

// NewPacer creates a pacer; a non-positive interval disables pacing
func NewPacer(minInterval time.Duration) *Pacer {
	if minInterval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{
		limiter:     rate.NewLimiter(rate.Every(minInterval), 1),
		minInterval: minInterval,
	}
}

// Wait blocks until the next call is allowed
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// MinInterval returns the configured interval
func (p *Pacer) MinInterval() time.Duration {
	return p.minInterval
}
