package contracts

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func int64Ptr(v int64) *int64 { return &v }

func TestFundamentalSnapshot_FillGaps(t *testing.T) {
	rich := FundamentalSnapshot{
		Symbol:     "AAPL",
		PeriodType: PeriodAnnual,
		PERatio:    decPtr("28.5"),
		ROE:        decPtr("150.2"),
		Revenue:    int64Ptr(383_000_000_000),
	}
	cheap := FundamentalSnapshot{
		Symbol:            "AAPL",
		PERatio:           decPtr("29.1"),
		PriceToBook:       decPtr("45.0"),
		SharesOutstanding: int64Ptr(15_500_000_000),
	}

	merged := rich.FillGaps(cheap)

	assert.True(t, merged.PERatio.Equal(decimal.RequireFromString("28.5")), "present field must not be overwritten")
	require.NotNil(t, merged.PriceToBook)
	assert.True(t, merged.PriceToBook.Equal(decimal.RequireFromString("45")))
	require.NotNil(t, merged.SharesOutstanding)
	assert.Equal(t, int64(15_500_000_000), *merged.SharesOutstanding)
	assert.Equal(t, int64(383_000_000_000), *merged.Revenue)
	assert.Nil(t, merged.DebtToEquity)

	// receiver is unchanged
	assert.Nil(t, rich.PriceToBook)
	assert.Nil(t, rich.SharesOutstanding)
}

func TestInstrument_HasUsableName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"normal", "Apple Inc.", true},
		{"empty", "", false},
		{"blank", "   ", false},
		{"literal null", "null", false},
		{"upper null", "NULL", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Instrument{Name: tt.in}.HasUsableName())
		})
	}
}

func TestPlaceholderName(t *testing.T) {
	assert.Equal(t, "MSFT Corp", PlaceholderName(" msft "))
}

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in      string
		want    Timeframe
		wantErr bool
	}{
		{"1h", Timeframe1H, false},
		{"30M", Timeframe30M, false},
		{"2h", Timeframe2H, false},
		{"1d", Timeframe1D, false},
		{"", Timeframe1D, false},
		{"5m", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeframe(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedTimeframe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriceBar_Date(t *testing.T) {
	bar := PriceBar{Timestamp: time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)}
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), bar.Date())
}

func TestDataQualitySnapshot_CoverageRate(t *testing.T) {
	snapshot := DataQualitySnapshot{
		Coverage: map[string]float64{
			"prices":       1.0,
			"fundamentals": 0.8,
			"scores":       0.6,
		},
	}
	assert.InDelta(t, 0.8, snapshot.CoverageRate(), 0.0001)

	empty := DataQualitySnapshot{}
	assert.Equal(t, 0.0, empty.CoverageRate())
}
