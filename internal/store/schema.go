package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Document collections. Each table holds whole JSONB documents keyed by
// symbol or period; a few extracted columns exist purely for indexed queries.
// Writes are whole-document replaces, last write wins.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS records (
		symbol           TEXT PRIMARY KEY,
		doc              JSONB NOT NULL,
		quality_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
		market_cap       DOUBLE PRECISION,
		price            DOUBLE PRECISION,
		needs_enrichment BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_quality
		ON records (quality_score DESC, market_cap DESC NULLS LAST)`,
	`CREATE INDEX IF NOT EXISTS idx_records_updated ON records (updated_at)`,

	`CREATE TABLE IF NOT EXISTS rankings (
		period      TEXT PRIMARY KEY,
		doc         JSONB NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS enrichment_tasks (
		id           TEXT PRIMARY KEY,
		symbol       TEXT NOT NULL,
		status       TEXT NOT NULL,
		priority     INT NOT NULL,
		doc          JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON enrichment_tasks (status, priority, created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_active_symbol
		ON enrichment_tasks (symbol) WHERE status IN ('pending', 'in_progress')`,

	`CREATE TABLE IF NOT EXISTS quality_metrics (
		source           TEXT NOT NULL,
		symbol           TEXT NOT NULL,
		successful_calls INT NOT NULL DEFAULT 0,
		failed_calls     INT NOT NULL DEFAULT 0,
		last_success     TIMESTAMPTZ,
		last_failure     TIMESTAMPTZ,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (source, symbol)
	)`,
}

// EnsureSchema creates the document collections if they do not exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema setup failed: %w", err)
		}
	}
	return nil
}
