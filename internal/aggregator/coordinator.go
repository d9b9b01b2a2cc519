package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/rebound/backend/internal/cache"
	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// RefreshCoordinator owns the single background refresh job. At most one job
// runs system-wide; a second start request observes ErrAlreadyRunning.
// ⭐ SSOT: 전체 리프레시 단일 실행 보장은 여기서만
type RefreshCoordinator struct {
	aggregator *Aggregator
	records    contracts.RecordRepository
	gate       *FreshnessGate
	memCache   *cache.MemoryCache
	logger     *logger.Logger

	targetCount int

	mu  sync.Mutex
	job contracts.RefreshJob
}

// NewRefreshCoordinator creates a coordinator in the idle state
func NewRefreshCoordinator(
	agg *Aggregator,
	records contracts.RecordRepository,
	gate *FreshnessGate,
	memCache *cache.MemoryCache,
	targetCount int,
	log *logger.Logger,
) *RefreshCoordinator {
	return &RefreshCoordinator{
		aggregator:  agg,
		records:     records,
		gate:        gate,
		memCache:    memCache,
		logger:      log.WithField("module", "refresh_coordinator"),
		targetCount: targetCount,
		job:         contracts.RefreshJob{Status: contracts.RefreshIdle},
	}
}

// StartBackgroundRefresh spawns the refresh job unless one is already
// running. Without force, periods whose freshness gate is still closed are
// skipped; with an empty periods list every canonical period is refreshed.
func (c *RefreshCoordinator) StartBackgroundRefresh(force bool, periods []string) (string, error) {
	if len(periods) == 0 {
		periods = contracts.Periods
	}

	c.mu.Lock()
	if c.job.Status == contracts.RefreshRunning {
		c.mu.Unlock()
		return "", contracts.ErrAlreadyRunning
	}

	now := time.Now()
	jobID := fmt.Sprintf("refresh-%d", now.UnixNano())
	c.job = contracts.RefreshJob{
		ID:        jobID,
		Status:    contracts.RefreshRunning,
		StartedAt: &now,
	}
	c.mu.Unlock()

	// Fire and forget: a disconnected caller does not stop the job
	go c.run(jobID, force, periods)

	return jobID, nil
}

// Status returns the current job state. Never blocks on a running job.
func (c *RefreshCoordinator) Status() contracts.RefreshJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

func (c *RefreshCoordinator) run(jobID string, force bool, periods []string) {
	ctx := context.Background()
	started := time.Now()

	gated := c.gatedPeriods(force, periods)
	if len(gated) == 0 {
		c.logger.Debug("All requested periods within freshness gate, nothing to do")
		c.finish(jobID, started, 0, nil)
		return
	}

	records, err := c.aggregator.Aggregate(ctx, c.targetCount, c.targetCount)
	if err != nil {
		c.logger.WithError(err).Error("Background refresh failed")
		c.finish(jobID, started, 0, err)
		return
	}

	stored := 0
	for i := range records {
		if _, err := c.records.Upsert(ctx, &records[i]); err != nil {
			if errors.Is(err, contracts.ErrRejected) {
				continue
			}
			// Store trouble is best-effort: keep going with the rest
			c.logger.WithFields(map[string]interface{}{
				"symbol": records[i].Symbol,
				"error":  err.Error(),
			}).Warn("Failed to store record")
			continue
		}
		stored++
	}

	for _, period := range gated {
		c.gate.MarkAggregated(period)
	}
	if c.memCache != nil {
		c.memCache.Clear()
	}

	c.logger.WithFields(map[string]interface{}{
		"job_id":   jobID,
		"stored":   stored,
		"duration": time.Since(started).String(),
	}).Info("Background refresh complete")

	c.finish(jobID, started, stored, nil)
}

// gatedPeriods filters the requested periods through the freshness gate
func (c *RefreshCoordinator) gatedPeriods(force bool, periods []string) []string {
	if force {
		return periods
	}
	var open []string
	for _, p := range periods {
		if c.gate.ShouldAggregate(p) {
			open = append(open, p)
		}
	}
	return open
}

func (c *RefreshCoordinator) finish(jobID string, started time.Time, stored int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.job.ID != jobID {
		return
	}

	now := time.Now()
	c.job.Duration = now.Sub(started)
	c.job.LastUpdate = &now
	c.job.StoredCount = stored

	if err != nil {
		c.job.Status = contracts.RefreshFailed
		c.job.LastError = err.Error()
		return
	}
	c.job.Status = contracts.RefreshCompleted
}
