package provider

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/pkg/logger"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func TestDailyQuota(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}

	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "test", "debug")

	q := NewDailyQuota("fmp", 3, time.UTC, clock, nil, log)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Acquire(ctx))
	}
	assert.Equal(t, 3, q.Used())

	assert.ErrorIs(t, q.Acquire(ctx), contracts.ErrQuotaExhausted)
	assert.ErrorIs(t, q.Acquire(ctx), contracts.ErrQuotaExhausted)
	assert.Equal(t, 1, strings.Count(buf.String(), "Daily quota reached"), "exhaustion is logged once per day")

	clock.now = clock.now.Add(24 * time.Hour)
	assert.Equal(t, 0, q.Used())
	require.NoError(t, q.Acquire(ctx))
	assert.Equal(t, 1, q.Used())
}

func TestDailyQuota_Exhaust(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}

	var buf bytes.Buffer
	q := NewDailyQuota("alphavantage", 25, time.UTC, clock, nil, logger.NewWithWriter(&buf, "test", "debug"))

	require.NoError(t, q.Acquire(ctx))
	q.Exhaust()
	q.Exhaust()

	assert.ErrorIs(t, q.Acquire(ctx), contracts.ErrQuotaExhausted)
	assert.Equal(t, 1, strings.Count(buf.String(), "Upstream daily limit reached"))
	assert.Equal(t, 1, q.Used())

	clock.now = clock.now.Add(24 * time.Hour)
	require.NoError(t, q.Acquire(ctx))
}

func TestPacer(t *testing.T) {
	ctx := context.Background()

	p := NewPacer(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, p.MinInterval())

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	unpaced := NewPacer(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, unpaced.Wait(ctx))
	}
}

func TestNormalizeForYahoo(t *testing.T) {
	assert.Equal(t, "ADBE", NormalizeForYahoo("adobe"))
	assert.Equal(t, "AAPL", NormalizeForYahoo(" aapl "))
	assert.Equal(t, "BRK-B", NormalizeForYahoo("BRK-B"))
}
