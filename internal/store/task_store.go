package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// TaskStore implements contracts.TaskRepository on the enrichment_tasks
// collection
type TaskStore struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewTaskStore creates a task store
func NewTaskStore(pool *pgxpool.Pool, log *logger.Logger) *TaskStore {
	return &TaskStore{
		pool:   pool,
		logger: log.WithField("module", "task_store"),
	}
}

// Create inserts the task unless an active task already exists for the
// symbol. Returns false when the insert was skipped by deduplication.
func (s *TaskStore) Create(ctx context.Context, task *contracts.EnrichmentTask) (bool, error) {
	if task.ID == "" {
		task.ID = fmt.Sprintf("%s-%d", task.Symbol, time.Now().UnixNano())
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Status == "" {
		task.Status = contracts.TaskPending
	}

	doc, err := json.Marshal(task)
	if err != nil {
		return false, fmt.Errorf("failed to encode task for %s: %w", task.Symbol, err)
	}

	// The partial unique index on active symbols makes the dedup atomic
	query := `
		INSERT INTO enrichment_tasks (id, symbol, status, priority, doc, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		task.ID, task.Symbol, string(task.Status), task.Priority, doc, task.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create task for %s: %w", task.Symbol, err)
	}

	created := tag.RowsAffected() == 1
	if !created {
		s.logger.WithField("symbol", task.Symbol).Debug("Skipped duplicate enrichment task")
	}
	return created, nil
}

// Pending returns up to limit runnable tasks, highest priority (lowest
// number) first, oldest first within a priority.
func (s *TaskStore) Pending(ctx context.Context, limit int) ([]contracts.EnrichmentTask, error) {
	query := `
		SELECT doc FROM enrichment_tasks
		WHERE status = 'pending'
		ORDER BY priority ASC, created_at ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pending tasks query failed: %w", err)
	}
	defer rows.Close()

	var tasks []contracts.EnrichmentTask
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var task contracts.EnrichmentTask
		if err := json.Unmarshal(doc, &task); err != nil {
			return nil, fmt.Errorf("failed to decode task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Update replaces the task document and its extracted status columns
func (s *TaskStore) Update(ctx context.Context, task *contracts.EnrichmentTask) error {
	doc, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}

	query := `
		UPDATE enrichment_tasks
		SET status = $2, priority = $3, doc = $4, completed_at = $5
		WHERE id = $1
	`

	_, err = s.pool.Exec(ctx, query,
		task.ID, string(task.Status), task.Priority, doc, task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}
	return nil
}

// PurgeTerminal deletes completed and failed tasks finished before cutoff
func (s *TaskStore) PurgeTerminal(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM enrichment_tasks
		WHERE status IN ('completed', 'failed')
		AND COALESCE(completed_at, created_at) < $1
	`

	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("task purge failed: %w", err)
	}

	purged := int(tag.RowsAffected())
	if purged > 0 {
		s.logger.WithField("count", purged).Info("Purged terminal enrichment tasks")
	}
	return purged, nil
}

// CountByStatus returns how many tasks are in the given status
func (s *TaskStore) CountByStatus(ctx context.Context, status contracts.TaskStatus) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrichment_tasks WHERE status = $1`, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("task count failed: %w", err)
	}
	return count, nil
}
