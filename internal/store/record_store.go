package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/internal/quality"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// Symbols whose data is older than this are candidates for enrichment
const staleHorizon = time.Hour

// RecordStore implements contracts.RecordRepository on the records
// document collection
// ⭐ SSOT: 레코드 영속화는 여기서만
type RecordStore struct {
	pool   *pgxpool.Pool
	scorer *quality.Scorer
	logger *logger.Logger
}

// NewRecordStore creates a record store
func NewRecordStore(pool *pgxpool.Pool, scorer *quality.Scorer, log *logger.Logger) *RecordStore {
	return &RecordStore{
		pool:   pool,
		scorer: scorer,
		logger: log.WithField("module", "record_store"),
	}
}

// Get returns the record for symbol only when every required field is within
// its max age. A physically present but stale record reads as absent.
func (s *RecordStore) Get(ctx context.Context, symbol string, requiredFields []string) (*contracts.Record, error) {
	query := `SELECT doc FROM records WHERE symbol = $1`

	var doc []byte
	err := s.pool.QueryRow(ctx, query, symbol).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contracts.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record %s: %w", symbol, err)
	}

	var record contracts.Record
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", symbol, err)
	}

	now := time.Now()
	for _, field := range requiredFields {
		if !record.FieldFresh(field, now) {
			s.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"field":  field,
			}).Debug("Record treated as absent, required field stale")
			return nil, contracts.ErrNotFound
		}
	}

	return &record, nil
}

// Upsert validates the candidate, merges it with any stored record under the
// priority merge rule, rescores quality and replaces the document atomically.
func (s *RecordStore) Upsert(ctx context.Context, candidate *contracts.Record) (*contracts.Record, error) {
	if err := s.scorer.Validate(candidate); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"symbol": candidate.Symbol,
			"reason": err.Error(),
		}).Debug("Rejected candidate record")
		return nil, err
	}

	now := time.Now()

	// Read-merge-replace. No locking: concurrent writers to the same symbol
	// race and the last completed replace wins.
	existing, err := s.load(ctx, candidate.Symbol)
	if err != nil && !errors.Is(err, contracts.ErrNotFound) {
		return nil, err
	}

	merged := contracts.MergeRecord(existing, candidate, now)
	s.scorer.Apply(merged, now)

	if err := s.replace(ctx, merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// load reads the raw stored document without freshness gating
func (s *RecordStore) load(ctx context.Context, symbol string) (*contracts.Record, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM records WHERE symbol = $1`, symbol).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contracts.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record %s: %w", symbol, err)
	}

	var record contracts.Record
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", symbol, err)
	}
	return &record, nil
}

// replace writes the whole document, extracting the indexed columns
func (s *RecordStore) replace(ctx context.Context, record *contracts.Record) error {
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.Symbol, err)
	}

	query := `
		INSERT INTO records (symbol, doc, quality_score, market_cap, price, needs_enrichment, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			doc = EXCLUDED.doc,
			quality_score = EXCLUDED.quality_score,
			market_cap = EXCLUDED.market_cap,
			price = EXCLUDED.price,
			needs_enrichment = EXCLUDED.needs_enrichment,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		record.Symbol, doc, record.QualityScore,
		record.MarketCapUSD, record.PriceUSD,
		record.NeedsEnrichment, record.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to replace record %s: %w", record.Symbol, err)
	}
	return nil
}

// QualityFiltered returns up to limit records with quality at or above
// minScore and a positive price, best quality then largest market cap first.
func (s *RecordStore) QualityFiltered(ctx context.Context, minScore float64, limit int) ([]contracts.Record, error) {
	query := `
		SELECT doc FROM records
		WHERE quality_score >= $1 AND price > 0
		ORDER BY quality_score DESC, market_cap DESC NULLS LAST
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("quality filtered query failed: %w", err)
	}
	defer rows.Close()

	var records []contracts.Record
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var record contracts.Record
		if err := json.Unmarshal(doc, &record); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// StaleSymbols returns up to limit symbols that are old, low quality or
// flagged for enrichment, worst quality first.
func (s *RecordStore) StaleSymbols(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT symbol FROM records
		WHERE updated_at < $1 OR quality_score < 50 OR needs_enrichment
		ORDER BY quality_score ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, time.Now().Add(-staleHorizon), limit)
	if err != nil {
		return nil, fmt.Errorf("stale symbols query failed: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// Count returns the number of stored records
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("record count failed: %w", err)
	}
	return count, nil
}
