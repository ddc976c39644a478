package external

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueequity/backend/pkg/config"
	"github.com/trueequity/backend/pkg/logger"
	"github.com/trueequity/backend/pkg/redis"
)

func testConfig(rich string) *config.Config {
	return &config.Config{
		Providers: config.ProvidersConfig{
			RichSource:              rich,
			AlphaVantageMinInterval: 12 * time.Second,
			AlphaVantageDailyLimit:  25,
			FMPDailyLimit:           250,
			FMPMinInterval:          250 * time.Millisecond,
			HTTPTimeout:             5 * time.Second,
		},
		Pipeline: config.PipelineConfig{DefaultExchange: "NASDAQ"},
	}
}

func TestNewSources(t *testing.T) {
	tests := []struct {
		rich     string
		wantName string
		wantErr  bool
	}{
		{"alphavantage", "Hybrid (Yahoo Finance + Alpha Vantage)", false},
		{"fmp", "Hybrid (Yahoo Finance + Financial Modeling Prep)", false},
		{"bloomberg", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.rich, func(t *testing.T) {
			sources, err := NewSources(testConfig(tt.rich), redis.Disabled(), logger.NewNop(), time.UTC)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, sources.Composite.Name())
		})
	}
}
