package jobs

import (
	"context"

	"github.com/wonny/rebound/backend/internal/ranking"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// PrecomputeJob rebuilds the per-period ranking snapshots
type PrecomputeJob struct {
	engine *ranking.Engine
	logger *logger.Logger
}

// NewPrecomputeJob creates a new snapshot precompute job
func NewPrecomputeJob(engine *ranking.Engine, log *logger.Logger) *PrecomputeJob {
	return &PrecomputeJob{
		engine: engine,
		logger: log,
	}
}

// Name returns the job name
func (j *PrecomputeJob) Name() string {
	return "ranking_precompute"
}

// Schedule returns the cron schedule (every 15 minutes)
func (j *PrecomputeJob) Schedule() string {
	return "0 */15 * * * *" // Every 15 minutes
}

// Run rebuilds every period's snapshot. Periods already computing are
// skipped by the engine's single-flight guard.
func (j *PrecomputeJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled snapshot precompute")
	return j.engine.PrecomputeAll(ctx)
}
