package contracts

import (
	"context"
	"time"
)

// RecordRepository is the persistent, per-symbol keyed record cache
// ⭐ SSOT: 레코드 저장소 인터페이스는 여기서만 정의
type RecordRepository interface {
	// Get returns the record for symbol only if every field in
	// requiredFields is within its configured max age. A physically
	// present but stale record yields ErrNotFound.
	Get(ctx context.Context, symbol string, requiredFields []string) (*Record, error)

	// Upsert validates, merges with any stored record and replaces the
	// document atomically. Returns ErrRejected when validation fails.
	Upsert(ctx context.Context, candidate *Record) (*Record, error)

	// QualityFiltered returns up to limit records with quality score at or
	// above minScore and a positive price, ordered by quality score then
	// market cap, both descending.
	QualityFiltered(ctx context.Context, minScore float64, limit int) ([]Record, error)

	// StaleSymbols returns up to limit symbols whose data is older than
	// the staleness horizon, low quality, or flagged for enrichment.
	StaleSymbols(ctx context.Context, limit int) ([]string, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)
}

// SnapshotRepository stores precomputed per-period rankings
type SnapshotRepository interface {
	Get(ctx context.Context, period string) (*RankingSnapshot, error)
	Replace(ctx context.Context, snapshot *RankingSnapshot) error
}

// TaskRepository stores enrichment tasks
type TaskRepository interface {
	// Create inserts a task unless a pending/in-progress task already
	// exists for the symbol; returns false when skipped.
	Create(ctx context.Context, task *EnrichmentTask) (bool, error)

	// Pending returns up to limit runnable tasks, highest priority
	// (lowest number) first.
	Pending(ctx context.Context, limit int) ([]EnrichmentTask, error)

	Update(ctx context.Context, task *EnrichmentTask) error

	// PurgeTerminal deletes completed/failed tasks finished before cutoff
	PurgeTerminal(ctx context.Context, cutoff time.Time) (int, error)

	CountByStatus(ctx context.Context, status TaskStatus) (int, error)
}

// MetricsRepository tracks per-(source,symbol) call outcomes
type MetricsRepository interface {
	RecordCall(ctx context.Context, source DataSource, symbol string, success bool) error

	// BestSources returns sources for symbol with success rate above 0.7,
	// most successful first, capped at three.
	BestSources(ctx context.Context, symbol string) ([]DataSource, error)
}

// StatsSnapshot summarizes the database for the stats endpoint
type StatsSnapshot struct {
	TotalRecords        int            `json:"total_records"`
	QualityDistribution map[string]int `json:"quality_distribution"`
	AverageQualityScore float64        `json:"average_quality_score"`
	PendingTasks        int            `json:"pending_enrichment_tasks"`
	CompletedTasks      int            `json:"completed_enrichment_tasks"`
}
