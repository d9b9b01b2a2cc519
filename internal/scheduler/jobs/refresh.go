package jobs

import (
	"context"
	"errors"

	"github.com/wonny/rebound/backend/internal/aggregator"
	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// RefreshJob periodically refreshes the record pool from the providers
type RefreshJob struct {
	coordinator *aggregator.RefreshCoordinator
	logger      *logger.Logger
}

// NewRefreshJob creates a new background refresh job
func NewRefreshJob(coordinator *aggregator.RefreshCoordinator, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		coordinator: coordinator,
		logger:      log,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "background_refresh"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *RefreshJob) Schedule() string {
	return "0 */5 * * * *" // Every 5 minutes
}

// Run starts a refresh pass. The period freshness gate inside the
// coordinator decides whether providers actually get called.
func (j *RefreshJob) Run(ctx context.Context) error {
	jobID, err := j.coordinator.StartBackgroundRefresh(false, nil)
	if err != nil {
		if errors.Is(err, contracts.ErrAlreadyRunning) {
			j.logger.Debug("Refresh already running, skipping scheduled pass")
			return nil
		}
		return err
	}

	j.logger.WithField("job_id", jobID).Debug("Scheduled refresh started")
	return nil
}
