package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/rebound/backend/internal/aggregator"
	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/internal/ranking"
	"github.com/wonny/rebound/backend/pkg/logger"
	"github.com/wonny/rebound/backend/pkg/redis"
)

const (
	defaultRankingLimit = 100
	maxRankingLimit     = 1000
)

// CryptoHandler handles crypto-related API endpoints
// ⭐ SSOT: 크립토 API 핸들러는 이 구조체에서만
type CryptoHandler struct {
	engine      *ranking.Engine
	records     contracts.RecordRepository
	coordinator *aggregator.RefreshCoordinator
	shared      *redis.Cache
	logger      *logger.Logger
}

// NewCryptoHandler creates a new crypto handler
func NewCryptoHandler(
	engine *ranking.Engine,
	records contracts.RecordRepository,
	coordinator *aggregator.RefreshCoordinator,
	log *logger.Logger,
) *CryptoHandler {
	return &CryptoHandler{
		engine:      engine,
		records:     records,
		coordinator: coordinator,
		logger:      log,
	}
}

// WithSharedCache lets record detail responses be served from Redis when
// several API instances share one store
func (h *CryptoHandler) WithSharedCache(cache *redis.Cache) *CryptoHandler {
	h.shared = cache
	return h
}

// GetRanking returns the ordered ranking page for a period
// GET /api/cryptos/ranking?period=24h&limit=100&offset=0&force_refresh=false
func (h *CryptoHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	period := q.Get("period")
	if period == "" {
		period = "24h"
	}
	if !contracts.IsValidPeriod(period) {
		respondError(w, http.StatusBadRequest, "invalid period: "+period)
		return
	}

	limit := queryInt(q.Get("limit"), defaultRankingLimit)
	if limit < 1 {
		respondError(w, http.StatusBadRequest, "limit must be at least 1")
		return
	}
	if limit > maxRankingLimit {
		limit = maxRankingLimit
	}

	offset := queryInt(q.Get("offset"), 0)
	if offset < 0 {
		respondError(w, http.StatusBadRequest, "offset must not be negative")
		return
	}

	forceRefresh := q.Get("force_refresh") == "true"

	records, err := h.engine.Rank(ctx, period, limit, offset, forceRefresh)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"period": period,
		}).Error("Failed to compute ranking")
		respondError(w, http.StatusServiceUnavailable, "ranking unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"period": period,
		"limit":  limit,
		"offset": offset,
		"count":  len(records),
		"data":   records,
	})
}

// GetCrypto returns one stored record
// GET /api/cryptos/{symbol}
func (h *CryptoHandler) GetCrypto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	if h.shared != nil {
		var cached contracts.Record
		if found, _ := h.shared.Get(ctx, redis.RecordKey(symbol), &cached); found {
			respondJSON(w, http.StatusOK, &cached)
			return
		}
	}

	record, err := h.records.Get(ctx, symbol, nil)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			respondError(w, http.StatusNotFound, "symbol not found: "+symbol)
			return
		}
		h.logger.WithError(err).Error("Failed to get record")
		respondError(w, http.StatusInternalServerError, "failed to retrieve record")
		return
	}

	if h.shared != nil {
		_ = h.shared.Set(ctx, redis.RecordKey(symbol), record, redis.TTLMedium)
	}

	respondJSON(w, http.StatusOK, record)
}

// GetCount returns how many records are stored
// GET /api/cryptos/count
func (h *CryptoHandler) GetCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.records.Count(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to count records")
		respondError(w, http.StatusInternalServerError, "failed to count records")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

// RefreshRequest represents a background refresh request
type RefreshRequest struct {
	Force   bool     `json:"force"`
	Periods []string `json:"periods"` // Optional: empty means every period
}

// Refresh starts the background refresh job
// POST /api/cryptos/refresh
func (h *CryptoHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.Body != nil {
		// An empty body is a plain full refresh
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	for _, period := range req.Periods {
		if !contracts.IsValidPeriod(period) {
			respondError(w, http.StatusBadRequest, "invalid period: "+period)
			return
		}
	}

	jobID, err := h.coordinator.StartBackgroundRefresh(req.Force, req.Periods)
	if err != nil {
		if errors.Is(err, contracts.ErrAlreadyRunning) {
			respondJSON(w, http.StatusConflict, map[string]string{
				"status": "already_running",
			})
			return
		}
		h.logger.WithError(err).Error("Failed to start refresh")
		respondError(w, http.StatusInternalServerError, "failed to start refresh")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"job_id": jobID,
	})
}

// RefreshStatus returns the current refresh job state
// GET /api/cryptos/refresh/status
func (h *CryptoHandler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.coordinator.Status())
}

// queryInt parses an integer query parameter with a fallback
func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
