package jobs

import (
	"context"

	"github.com/wonny/rebound/backend/internal/cache"
	"github.com/wonny/rebound/backend/internal/enrichment"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// CleanupJob purges old terminal enrichment tasks and expired cache entries
type CleanupJob struct {
	enricher *enrichment.Scheduler
	memCache *cache.MemoryCache
	logger   *logger.Logger
}

// NewCleanupJob creates a new cleanup job
func NewCleanupJob(enricher *enrichment.Scheduler, memCache *cache.MemoryCache, log *logger.Logger) *CleanupJob {
	return &CleanupJob{
		enricher: enricher,
		memCache: memCache,
		logger:   log,
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "task_cleanup"
}

// Schedule returns the cron schedule (daily at 03:00)
func (j *CleanupJob) Schedule() string {
	return "0 0 3 * * *" // Every day at 3 AM
}

// Run purges terminal tasks past retention and sweeps the memory cache
func (j *CleanupJob) Run(ctx context.Context) error {
	purged, err := j.enricher.Cleanup(ctx)
	if err != nil {
		return err
	}

	expired := j.memCache.CleanExpired()

	j.logger.WithFields(map[string]interface{}{
		"tasks_purged":  purged,
		"cache_expired": expired,
	}).Info("Cleanup job completed")

	return nil
}
