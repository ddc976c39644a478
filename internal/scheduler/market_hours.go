package scheduler

import (
	"fmt"
	"time"

	"github.com/trueequity/backend/internal/pipelineconfig"
)

// MarketHours answers whether the regular session is open at a given instant
type MarketHours struct {
	location     *time.Location
	open         time.Duration // offset from local midnight
	close        time.Duration
	weekdaysOnly bool
}

// NewMarketHours builds a session calendar in loc
func NewMarketHours(cfg pipelineconfig.MarketHours, loc *time.Location) (*MarketHours, error) {
	open, closing, err := cfg.SessionBounds()
	if err != nil {
		return nil, fmt.Errorf("market hours: %w", err)
	}
	if open >= closing {
		return nil, fmt.Errorf("market hours: open %s is not before close %s", cfg.Open, cfg.Close)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &MarketHours{
		location:     loc,
		open:         open,
		close:        closing,
		weekdaysOnly: cfg.WeekdaysOnly,
	}, nil
}

// IsOpen reports whether t falls in [open, close) on a trading day
func (m *MarketHours) IsOpen(t time.Time) bool {
	local := t.In(m.location)
	if !m.isTradingDay(local) {
		return false
	}
	offset := wallClock(local)
	return offset >= m.open && offset < m.close
}

// NextOpen returns the first session open strictly after t
func (m *MarketHours) NextOpen(t time.Time) time.Time {
	local := t.In(m.location)
	for i := 0; i <= 7; i++ {
		candidate := m.openOn(local, i)
		if candidate.After(local) && m.isTradingDay(candidate) {
			return candidate
		}
	}
	return m.openOn(local, 8)
}

// openOn is the session open on the local day offset by days from t
func (m *MarketHours) openOn(t time.Time, days int) time.Time {
	y, mo, d := t.Date()
	hours := int(m.open / time.Hour)
	minutes := int((m.open % time.Hour) / time.Minute)
	return time.Date(y, mo, d+days, hours, minutes, 0, 0, m.location)
}

func (m *MarketHours) isTradingDay(t time.Time) bool {
	if !m.weekdaysOnly {
		return true
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// wallClock is the local time of day, independent of DST transitions
func wallClock(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}
