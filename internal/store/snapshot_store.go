package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebound/backend/internal/contracts"
)

// SnapshotStore implements contracts.SnapshotRepository on the rankings
// document collection, one document per period.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a snapshot store
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Get returns the snapshot for a period, or ErrNotFound
func (s *SnapshotStore) Get(ctx context.Context, period string) (*contracts.RankingSnapshot, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM rankings WHERE period = $1`, period).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contracts.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", period, err)
	}

	var snapshot contracts.RankingSnapshot
	if err := json.Unmarshal(doc, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", period, err)
	}
	return &snapshot, nil
}

// Replace writes the whole snapshot document, last write wins
func (s *SnapshotStore) Replace(ctx context.Context, snapshot *contracts.RankingSnapshot) error {
	doc, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", snapshot.Period, err)
	}

	query := `
		INSERT INTO rankings (period, doc, computed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (period) DO UPDATE SET
			doc = EXCLUDED.doc,
			computed_at = EXCLUDED.computed_at
	`

	_, err = s.pool.Exec(ctx, query, snapshot.Period, doc, snapshot.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to replace snapshot %s: %w", snapshot.Period, err)
	}
	return nil
}
