package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/pkg/logger"
	"github.com/trueequity/backend/pkg/redis"
)

// DailyQuota counts upstream calls per calendar day
// ⭐ SSOT: once Acquire fails no network I/O is attempted until the date changes
type DailyQuota struct {
	name  string
	limit int
	loc   *time.Location
	clock contracts.Clock
	redis *redis.Client
	log   *logger.Logger

	mu           sync.Mutex
	day          string
	count        int
	exhaustedDay string
}

// NewDailyQuota creates a quota; counters are shared through Redis when the client is enabled
func NewDailyQuota(name string, limit int, loc *time.Location, clock contracts.Clock, rdb *redis.Client, log *logger.Logger) *DailyQuota {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = contracts.SystemClock
	}
	if rdb == nil {
		rdb = redis.Disabled()
	}
	return &DailyQuota{
		name:  name,
		limit: limit,
		loc:   loc,
		clock: clock,
		redis: rdb,
		log:   log.WithComponent("quota").WithField("provider", name),
	}
}

// Acquire reserves one call for today or returns ErrQuotaExhausted
func (q *DailyQuota) Acquire(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	today := q.clock.Now().In(q.loc).Format("2006-01-02")
	if today != q.day {
		q.day = today
		q.count = 0
	}

	if q.exhaustedDay == today {
		return contracts.ErrQuotaExhausted
	}

	used, err := q.increment(ctx, today)
	if err != nil {
		return err
	}

	if used > q.limit {
		q.exhaustedDay = today
		q.log.WithFields(map[string]interface{}{
			"limit": q.limit,
			"day":   today,
		}).Warn("Daily quota reached, further calls are skipped until tomorrow")
		return contracts.ErrQuotaExhausted
	}
	return nil
}

// Exhaust marks today's quota as spent when the upstream reports its own daily limit first
func (q *DailyQuota) Exhaust() {
	q.mu.Lock()
	defer q.mu.Unlock()

	today := q.clock.Now().In(q.loc).Format("2006-01-02")
	if q.exhaustedDay == today {
		return
	}
	q.exhaustedDay = today
	q.log.WithFields(map[string]interface{}{
		"limit": q.limit,
		"used":  q.count,
		"day":   today,
	}).Warn("Upstream daily limit reached, further calls are skipped until tomorrow")
}

func (q *DailyQuota) increment(ctx context.Context, today string) (int, error) {
	if !q.redis.Enabled() {
		q.count++
		return q.count, nil
	}

	used, err := q.redis.IncrWithExpiry(ctx, redis.QuotaKey(q.name, today), redis.TTLDaily+time.Hour)
	if err != nil {
		return 0, fmt.Errorf("quota %s: %w", q.name, err)
	}
	q.count = int(used)
	return q.count, nil
}

// Used returns the number of calls counted today by this process
func (q *DailyQuota) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.clock.Now().In(q.loc).Format("2006-01-02") != q.day {
		return 0
	}
	return q.count
}

// Limit returns the configured daily limit
func (q *DailyQuota) Limit() int {
	return q.limit
}
