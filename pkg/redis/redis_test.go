package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueequity/backend/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(context.Background(), &config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)

	assert.False(t, client.Enabled())
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")

	allowed, remaining, err := limiter.Allow(context.Background(), AlphaVantageRateLimit)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, AlphaVantageRateLimit.Limit, remaining)
	assert.NoError(t, limiter.Wait(context.Background(), AlphaVantageRateLimit))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	calls := 0
	err = cache.GetOrSet(ctx, "key", &result, TTLShort, func() (interface{}, error) {
		calls++
		return "computed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "computed", result)
	assert.Equal(t, 1, calls)

	_, err = Disabled().IncrWithExpiry(ctx, "k", time.Minute)
	assert.Error(t, err)
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"StockKey", StockKey("aapl"), "stock:AAPL"},
		{"ScoreKey", ScoreKey("msft"), "score:MSFT"},
		{"RSIKey", RSIKey("nvda", "1h"), "rsi:NVDA:1h"},
		{"QuotaKey", QuotaKey("fmp", "2024-01-15"), "quota:fmp:2024-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestRateLimiter_Live(t *testing.T) {
	if os.Getenv("REDIS_HOST") == "" {
		t.Skip("REDIS_HOST not set, skipping integration test")
	}

	cfg := &config.Config{Redis: config.RedisConfig{
		Host:    os.Getenv("REDIS_HOST"),
		Port:    "6379",
		Enabled: true,
	}}
	client, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	limiter := NewRateLimiter(client, "test-"+time.Now().Format("150405.000"))
	limit := RateLimitConfig{Key: "burst", Limit: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(context.Background(), limit)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, remaining, err := limiter.Allow(context.Background(), limit)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}
