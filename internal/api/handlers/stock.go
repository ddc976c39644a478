package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/pkg/logger"
	"github.com/trueequity/backend/pkg/redis"
)

const (
	defaultPriceDays = 30
	maxPriceDays     = 3650
)

// StockHandler serves stored instruments, prices and scores
// ⭐ SSOT: read-only stock queries
type StockHandler struct {
	store  contracts.Gateway
	cache  *redis.Cache
	clock  contracts.Clock
	logger *logger.Logger
}

// NewStockHandler creates a new stock handler; cache may be nil
func NewStockHandler(store contracts.Gateway, cache *redis.Cache, clock contracts.Clock, log *logger.Logger) *StockHandler {
	if clock == nil {
		clock = contracts.SystemClock
	}
	return &StockHandler{
		store:  store,
		cache:  cache,
		clock:  clock,
		logger: log,
	}
}

// GetStock returns the stored instrument
// GET /api/stocks/{symbol}
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	symbol := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])

	var inst contracts.Instrument
	err := cached(r.Context(), h.cache, redis.StockKey(symbol), &inst, func() (interface{}, error) {
		found, err := h.store.GetInstrument(r.Context(), symbol)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, errAbsent
		}
		return found, nil
	})
	if errors.Is(err, errAbsent) {
		respondError(w, http.StatusNotFound, "stock not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithSymbol(symbol).Error("Failed to get stock")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve stock")
		return
	}

	respondJSON(w, http.StatusOK, inst)
}

// PriceResponse is one daily bar
type PriceResponse struct {
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume int64  `json:"volume"`
}

// GetPrices returns daily prices for the last N days
// GET /api/stocks/{symbol}/prices?days=30
func (h *StockHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	symbol := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])

	days := defaultPriceDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil || d <= 0 || d > maxPriceDays {
			respondError(w, http.StatusBadRequest, "days must be between 1 and 3650")
			return
		}
		days = d
	}

	to := h.clock.Now()
	from := to.AddDate(0, 0, -days)

	bars, err := h.store.GetPriceBars(r.Context(), symbol, from, to)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"symbol": symbol,
			"days":   days,
		}).Error("Failed to get prices")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve prices")
		return
	}

	result := make([]PriceResponse, len(bars))
	for i, b := range bars {
		result[i] = PriceResponse{
			Date:   b.Timestamp.Format("2006-01-02"),
			Open:   b.Open.String(),
			High:   b.High.String(),
			Low:    b.Low.String(),
			Close:  b.Close.String(),
			Volume: b.Volume,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"days":   days,
		"data":   result,
	})
}

// GetScore returns the live score snapshot
// GET /api/scores/{symbol}
func (h *StockHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	symbol := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])

	var score contracts.ScoreSnapshot
	err := cached(r.Context(), h.cache, redis.ScoreKey(symbol), &score, func() (interface{}, error) {
		found, err := h.store.GetLatestScore(r.Context(), symbol)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, errAbsent
		}
		return found, nil
	})
	if errors.Is(err, errAbsent) {
		respondError(w, http.StatusNotFound, "no score for "+symbol)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithSymbol(symbol).Error("Failed to get score")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve score")
		return
	}

	respondJSON(w, http.StatusOK, score)
}
