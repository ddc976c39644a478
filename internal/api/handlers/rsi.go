package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/pkg/logger"
	"github.com/trueequity/backend/pkg/redis"
)

// IndicatorReader serves a stored RSI, computing it on a miss
type IndicatorReader interface {
	Get(ctx context.Context, symbol string, tf contracts.Timeframe) (*contracts.IndicatorSnapshot, error)
}

// RSIHandler serves RSI snapshots
type RSIHandler struct {
	indicators IndicatorReader
	cache      *redis.Cache
	logger     *logger.Logger
}

// NewRSIHandler creates a new RSI handler; cache may be nil
func NewRSIHandler(indicators IndicatorReader, cache *redis.Cache, log *logger.Logger) *RSIHandler {
	return &RSIHandler{
		indicators: indicators,
		cache:      cache,
		logger:     log,
	}
}

// GetRSI returns the RSI for one timeframe
// GET /api/rsi/{symbol}?timeframe=1d
func (h *RSIHandler) GetRSI(w http.ResponseWriter, r *http.Request) {
	symbol := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])

	raw := r.URL.Query().Get("timeframe")
	if raw == "" {
		raw = string(contracts.Timeframe1D)
	}
	tf, err := contracts.ParseTimeframe(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "timeframe must be one of 1h, 30m, 2h, 1d")
		return
	}

	var snap contracts.IndicatorSnapshot
	err = cached(r.Context(), h.cache, redis.RSIKey(symbol, string(tf)), &snap, func() (interface{}, error) {
		return h.indicators.Get(r.Context(), symbol, tf)
	})
	switch {
	case errors.Is(err, contracts.ErrInsufficientData):
		respondError(w, http.StatusNotFound, "not enough price history for "+symbol)
		return
	case err != nil:
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"symbol":    symbol,
			"timeframe": tf,
		}).Error("Failed to get RSI")
		respondError(w, http.StatusBadGateway, "Failed to compute RSI")
		return
	}

	respondJSON(w, http.StatusOK, snap)
}
