package s1_technical

import (
	"github.com/trueequity/backend/internal/contracts"
)

// TimeframeSpec is the bar request behind one timeframe tag
type TimeframeSpec struct {
	LookbackDays int
	Interval     contracts.Interval
}

// Each tag uses a different bar granularity so the four values differ
var timeframeSpecs = map[contracts.Timeframe]TimeframeSpec{
	contracts.Timeframe1H:  {LookbackDays: 60, Interval: contracts.IntervalHourly},
	contracts.Timeframe30M: {LookbackDays: 30, Interval: contracts.IntervalDaily},
	contracts.Timeframe2H:  {LookbackDays: 120, Interval: contracts.IntervalWeekly},
	contracts.Timeframe1D:  {LookbackDays: 500, Interval: contracts.IntervalMonthly},
}

// SpecFor returns the lookback and interval for a timeframe tag
func SpecFor(tf contracts.Timeframe) (TimeframeSpec, error) {
	spec, ok := timeframeSpecs[tf]
	if !ok {
		return TimeframeSpec{}, contracts.ErrUnsupportedTimeframe
	}
	return spec, nil
}
