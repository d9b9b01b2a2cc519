package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebound/backend/internal/contracts"
)

// Stats summarizes the document collections for the stats endpoint
func Stats(ctx context.Context, pool *pgxpool.Pool) (*contracts.StatsSnapshot, error) {
	stats := &contracts.StatsSnapshot{
		QualityDistribution: make(map[string]int),
	}

	// Total and average quality
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(quality_score), 0) FROM records`,
	).Scan(&stats.TotalRecords, &stats.AverageQualityScore)
	if err != nil {
		return nil, fmt.Errorf("record stats query failed: %w", err)
	}

	// Counts by quality level, bucketed the same way scores map to levels
	rows, err := pool.Query(ctx, `
		SELECT
			CASE
				WHEN quality_score >= 80 THEN 'high'
				WHEN quality_score >= 60 THEN 'medium'
				WHEN quality_score >= 30 THEN 'low'
				ELSE 'invalid'
			END AS level,
			COUNT(*)
		FROM records
		GROUP BY level
	`)
	if err != nil {
		return nil, fmt.Errorf("quality distribution query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		stats.QualityDistribution[level] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Enrichment task counts
	err = pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'completed')
		FROM enrichment_tasks
	`).Scan(&stats.PendingTasks, &stats.CompletedTasks)
	if err != nil {
		return nil, fmt.Errorf("task stats query failed: %w", err)
	}

	return stats, nil
}
