package jobs

import (
	"context"

	"github.com/wonny/rebound/backend/internal/enrichment"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// EnrichmentJob schedules tasks for stale symbols and works a batch
type EnrichmentJob struct {
	enricher  *enrichment.Scheduler
	staleCap  int
	batchSize int
	logger    *logger.Logger
}

// NewEnrichmentJob creates a new enrichment batch job
func NewEnrichmentJob(enricher *enrichment.Scheduler, staleCap, batchSize int, log *logger.Logger) *EnrichmentJob {
	return &EnrichmentJob{
		enricher:  enricher,
		staleCap:  staleCap,
		batchSize: batchSize,
		logger:    log,
	}
}

// Name returns the job name
func (j *EnrichmentJob) Name() string {
	return "enrichment_batch"
}

// Schedule returns the cron schedule (every 2 minutes)
func (j *EnrichmentJob) Schedule() string {
	return "0 */2 * * * *" // Every 2 minutes
}

// Run queues tasks for stale symbols and processes one batch
func (j *EnrichmentJob) Run(ctx context.Context) error {
	created, err := j.enricher.ScheduleStale(ctx, j.staleCap)
	if err != nil {
		return err
	}

	processed, err := j.enricher.ProcessBatch(ctx, j.batchSize)
	if err != nil {
		return err
	}

	if created > 0 || processed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"created":   created,
			"processed": processed,
		}).Info("Enrichment batch job completed")
	}

	return nil
}
