package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebound/backend/internal/contracts"
)

// Source preference threshold for enrichment
const minSuccessRate = 0.7

// MetricsStore implements contracts.MetricsRepository on the quality_metrics
// collection, one row per (source, symbol).
type MetricsStore struct {
	pool *pgxpool.Pool
}

// NewMetricsStore creates a metrics store
func NewMetricsStore(pool *pgxpool.Pool) *MetricsStore {
	return &MetricsStore{pool: pool}
}

// RecordCall increments the rolling success/fail counters for one call
func (s *MetricsStore) RecordCall(ctx context.Context, source contracts.DataSource, symbol string, success bool) error {
	var query string
	if success {
		query = `
			INSERT INTO quality_metrics (source, symbol, successful_calls, last_success, updated_at)
			VALUES ($1, $2, 1, now(), now())
			ON CONFLICT (source, symbol) DO UPDATE SET
				successful_calls = quality_metrics.successful_calls + 1,
				last_success = now(),
				updated_at = now()
		`
	} else {
		query = `
			INSERT INTO quality_metrics (source, symbol, failed_calls, last_failure, updated_at)
			VALUES ($1, $2, 1, now(), now())
			ON CONFLICT (source, symbol) DO UPDATE SET
				failed_calls = quality_metrics.failed_calls + 1,
				last_failure = now(),
				updated_at = now()
		`
	}

	_, err := s.pool.Exec(ctx, query, string(source), symbol)
	if err != nil {
		return fmt.Errorf("failed to record call metric: %w", err)
	}
	return nil
}

// BestSources returns the sources that have proven reliable for this symbol,
// most successful first, capped at three.
func (s *MetricsStore) BestSources(ctx context.Context, symbol string) ([]contracts.DataSource, error) {
	query := `
		SELECT source FROM quality_metrics
		WHERE symbol = $1
		AND successful_calls + failed_calls > 0
		AND successful_calls::float / (successful_calls + failed_calls) > $2
		ORDER BY successful_calls DESC
		LIMIT 3
	`

	rows, err := s.pool.Query(ctx, query, symbol, minSuccessRate)
	if err != nil {
		return nil, fmt.Errorf("best sources query failed: %w", err)
	}
	defer rows.Close()

	var sources []contracts.DataSource
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, err
		}
		sources = append(sources, contracts.DataSource(source))
	}
	return sources, rows.Err()
}
