package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/trueequity/backend/internal/api/handlers"
	"github.com/trueequity/backend/pkg/logger"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Stock  *handlers.StockHandler
	RSI    *handlers.RSIHandler
	Data   *handlers.DataHandler
	Events *handlers.EventHub
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: route table
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/stocks/{symbol}", h.Stock.GetStock).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/prices", h.Stock.GetPrices).Methods("GET")
	api.HandleFunc("/scores/{symbol}", h.Stock.GetScore).Methods("GET")
	api.HandleFunc("/rsi/{symbol}", h.RSI.GetRSI).Methods("GET")

	if h.Data != nil {
		api.HandleFunc("/data/quality", h.Data.GetQuality).Methods("GET")
		api.HandleFunc("/data/universe", h.Data.GetUniverse).Methods("GET")
	}

	if h.Events != nil {
		r.Handle("/ws/events", h.Events).Methods("GET")
	}

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "trueequity-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
