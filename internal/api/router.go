package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/rebound/backend/internal/api/handlers"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(cryptoHandler *handlers.CryptoHandler, systemHandler *handlers.SystemHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Crypto endpoints. Fixed paths register before the {symbol} wildcard.
	api.HandleFunc("/cryptos/ranking", cryptoHandler.GetRanking).Methods("GET")
	api.HandleFunc("/cryptos/count", cryptoHandler.GetCount).Methods("GET")
	api.HandleFunc("/cryptos/refresh", cryptoHandler.Refresh).Methods("POST")
	api.HandleFunc("/cryptos/refresh/status", cryptoHandler.RefreshStatus).Methods("GET")
	api.HandleFunc("/cryptos/{symbol}", cryptoHandler.GetCrypto).Methods("GET")

	// System endpoints
	api.HandleFunc("/stats", systemHandler.GetStats).Methods("GET")
	api.HandleFunc("/enrichment/trigger", systemHandler.TriggerEnrichment).Methods("POST")
	api.HandleFunc("/rankings/computation", systemHandler.GetComputation).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "rebound-radar-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
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
