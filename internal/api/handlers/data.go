package handlers

import (
	"net/http"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/s0_data/quality"
	"github.com/trueequity/backend/pkg/logger"
)

// DataHandler handles data-coverage endpoints
type DataHandler struct {
	qualityGate *quality.QualityGate
	universe    func() []string
	clock       contracts.Clock
	logger      *logger.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(qualityGate *quality.QualityGate, universe func() []string, clock contracts.Clock, log *logger.Logger) *DataHandler {
	if clock == nil {
		clock = contracts.SystemClock
	}
	return &DataHandler{
		qualityGate: qualityGate,
		universe:    universe,
		clock:       clock,
		logger:      log,
	}
}

// GetQuality reports stored coverage for the configured universe
// GET /api/data/quality
func (h *DataHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	report, err := h.qualityGate.Check(r.Context(), h.universe(), h.clock.Now())
	if err != nil {
		h.logger.WithError(err).Error("Failed to check data quality")
		respondError(w, http.StatusInternalServerError, "Failed to check data quality")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetUniverse returns the configured symbols
// GET /api/data/universe
func (h *DataHandler) GetUniverse(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": h.universe(),
	})
}
