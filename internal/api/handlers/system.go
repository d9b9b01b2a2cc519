package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/internal/enrichment"
	"github.com/wonny/rebound/backend/internal/ranking"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// Default batch worked right after an enrichment trigger
const triggerBatchSize = 10

// StatsProvider supplies the database summary without coupling the handler
// to the store package
type StatsProvider func(ctx context.Context) (*contracts.StatsSnapshot, error)

// SystemHandler handles stats, enrichment and computation-status endpoints
type SystemHandler struct {
	stats    StatsProvider
	enricher *enrichment.Scheduler
	engine   *ranking.Engine
	logger   *logger.Logger
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(
	stats StatsProvider,
	enricher *enrichment.Scheduler,
	engine *ranking.Engine,
	log *logger.Logger,
) *SystemHandler {
	return &SystemHandler{
		stats:    stats,
		enricher: enricher,
		engine:   engine,
		logger:   log,
	}
}

// GetStats returns the database summary
// GET /api/stats
func (h *SystemHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.stats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to collect stats")
		respondError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// EnrichmentRequest represents an enrichment trigger request
type EnrichmentRequest struct {
	Symbols []string `json:"symbols"` // Optional: empty means stale symbols
	Limit   int      `json:"limit"`   // Optional: stale-symbol cap, default 50
}

// TriggerEnrichment schedules enrichment tasks and kicks off one batch
// POST /api/enrichment/trigger
func (h *SystemHandler) TriggerEnrichment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EnrichmentRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Limit < 1 {
		req.Limit = 50
	}

	var created int
	var err error
	if len(req.Symbols) > 0 {
		for i := range req.Symbols {
			req.Symbols[i] = strings.ToUpper(req.Symbols[i])
		}
		created, err = h.enricher.ScheduleFor(ctx, req.Symbols)
	} else {
		created, err = h.enricher.ScheduleStale(ctx, req.Limit)
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to schedule enrichment")
		respondError(w, http.StatusInternalServerError, "failed to schedule enrichment")
		return
	}

	// Fire and forget: the scheduled jobs also drain the queue over time
	go func() {
		if _, err := h.enricher.ProcessBatch(context.Background(), triggerBatchSize); err != nil {
			h.logger.WithError(err).Warn("Triggered enrichment batch failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "scheduled",
		"created": created,
	})
}

// GetComputation returns the per-period snapshot and computing state
// GET /api/rankings/computation
func (h *SystemHandler) GetComputation(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Status(r.Context()))
}
