package ranking

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/wonny/rebound/backend/internal/aggregator"
	"github.com/wonny/rebound/backend/internal/cache"
	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// Snapshot TTLs per period: short horizons move fast and refresh in minutes,
// long horizons barely move and last a day.
var snapshotTTLs = map[string]time.Duration{
	"1h":   5 * time.Minute,
	"24h":  15 * time.Minute,
	"7d":   time.Hour,
	"30d":  4 * time.Hour,
	"90d":  8 * time.Hour,
	"180d": 12 * time.Hour,
	"270d": 24 * time.Hour,
	"365d": 24 * time.Hour,
}

const (
	// Precompute pulls at most this many quality-filtered records
	defaultPoolLimit = 2000

	// Scoring batch size; a cooperative yield runs between batches when the
	// pool is larger than yieldPoolSize
	scoreBatchSize = 50
	yieldPoolSize  = 100

	// Below this many usable records the on-demand path forces a full
	// aggregation pass
	minUsableRecords = 10
)

// SnapshotTTL returns the TTL for a period's ranking snapshot
func SnapshotTTL(period string) time.Duration {
	if ttl, ok := snapshotTTLs[period]; ok {
		return ttl
	}
	return time.Hour
}

// Engine serves per-period rankings from precomputed snapshots, recomputing
// in the background and falling back to on-demand scoring when a snapshot is
// missing or expired.
// ⭐ SSOT: 랭킹 계산과 스냅샷 관리는 여기서만
type Engine struct {
	records   contracts.RecordRepository
	snapshots contracts.SnapshotRepository
	memCache  *cache.MemoryCache
	agg       *aggregator.Aggregator
	logger    *logger.Logger

	minQuality  float64
	poolLimit   int
	targetCount int

	// Per-period computing flags: single-flight per period, not global
	mu        sync.Mutex
	computing map[string]bool
}

// NewEngine creates a ranking engine
func NewEngine(
	records contracts.RecordRepository,
	snapshots contracts.SnapshotRepository,
	memCache *cache.MemoryCache,
	agg *aggregator.Aggregator,
	minQuality float64,
	targetCount int,
	log *logger.Logger,
) *Engine {
	return &Engine{
		records:     records,
		snapshots:   snapshots,
		memCache:    memCache,
		agg:         agg,
		logger:      log.WithField("module", "ranking"),
		minQuality:  minQuality,
		poolLimit:   defaultPoolLimit,
		targetCount: targetCount,
		computing:   make(map[string]bool),
	}
}

// Rank returns the ordered ranking page for a period. Reads never block on
// recomputation: an expired snapshot triggers an async rebuild while the
// call falls back to whatever is currently available.
func (e *Engine) Rank(ctx context.Context, period string, limit, offset int, forceRefresh bool) ([]contracts.Record, error) {
	if !contracts.IsValidPeriod(period) {
		return nil, fmt.Errorf("invalid period %q", period)
	}
	if limit < 1 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	key := cache.Key(period, limit, offset)

	if !forceRefresh {
		if page, found := e.memCache.Get(key); found {
			return page, nil
		}

		snapshot, err := e.snapshots.Get(ctx, period)
		if err == nil && !snapshot.Expired(SnapshotTTL(period)) {
			page := snapshot.Page(limit, offset)
			e.memCache.Set(key, page)
			return page, nil
		}
		if err != nil && !errors.Is(err, contracts.ErrNotFound) {
			// Store unavailable on read surfaces upward
			return nil, err
		}
	}

	// Missing, expired or forced: rebuild in the background and serve an
	// on-demand computation now.
	go e.Precompute(context.Background(), period)

	page, err := e.onDemand(ctx, period, limit, offset)
	if err != nil {
		return nil, err
	}
	e.memCache.Set(key, page)
	return page, nil
}

// onDemand scores whatever records are currently stored. A too-thin pool
// forces a full aggregation pass first.
func (e *Engine) onDemand(ctx context.Context, period string, limit, offset int) ([]contracts.Record, error) {
	pool, err := e.records.QualityFiltered(ctx, e.minQuality, e.poolLimit)
	if err != nil {
		return nil, fmt.Errorf("ranking pool query failed: %w", err)
	}

	if len(pool) < minUsableRecords {
		e.logger.WithFields(map[string]interface{}{
			"period": period,
			"pool":   len(pool),
		}).Warn("Ranking pool too thin, forcing aggregation pass")

		pool, err = e.forceAggregate(ctx)
		if err != nil {
			return nil, err
		}
	}

	ranked := scorePool(pool, period)

	snapshot := contracts.RankingSnapshot{Records: ranked}
	return snapshot.Page(limit, offset), nil
}

// forceAggregate runs a synchronous aggregation pass and stores the results
func (e *Engine) forceAggregate(ctx context.Context) ([]contracts.Record, error) {
	merged, err := e.agg.Aggregate(ctx, e.targetCount, e.targetCount)
	if err != nil {
		return nil, err
	}

	var stored []contracts.Record
	for i := range merged {
		r, err := e.records.Upsert(ctx, &merged[i])
		if err != nil {
			continue
		}
		stored = append(stored, *r)
	}
	return stored, nil
}

// Precompute rebuilds the snapshot for one period. Single-flight per period:
// a second call while one is computing returns immediately.
func (e *Engine) Precompute(ctx context.Context, period string) error {
	if !contracts.IsValidPeriod(period) {
		return fmt.Errorf("invalid period %q", period)
	}

	e.mu.Lock()
	if e.computing[period] {
		e.mu.Unlock()
		return nil
	}
	e.computing[period] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.computing, period)
		e.mu.Unlock()
	}()

	started := time.Now()

	pool, err := e.records.QualityFiltered(ctx, e.minQuality, e.poolLimit)
	if err != nil {
		e.logger.WithError(err).Error("Precompute pool query failed")
		return err
	}
	if len(pool) == 0 {
		e.logger.WithField("period", period).Debug("Nothing to precompute")
		return nil
	}

	ranked := scorePool(pool, period)

	refreshCount := 1
	if prev, err := e.snapshots.Get(ctx, period); err == nil {
		refreshCount = prev.RefreshCount + 1
	}

	snapshot := &contracts.RankingSnapshot{
		Period:       period,
		Records:      ranked,
		TotalRecords: len(ranked),
		ComputedAt:   time.Now(),
		RefreshCount: refreshCount,
	}

	if err := e.snapshots.Replace(ctx, snapshot); err != nil {
		e.logger.WithError(err).Error("Snapshot replace failed")
		return err
	}

	e.logger.WithFields(map[string]interface{}{
		"period":   period,
		"records":  len(ranked),
		"duration": time.Since(started).String(),
	}).Info("Precomputed ranking snapshot")

	return nil
}

// PrecomputeAll rebuilds every canonical period's snapshot
func (e *Engine) PrecomputeAll(ctx context.Context) error {
	var firstErr error
	for _, period := range contracts.Periods {
		if err := e.Precompute(ctx, period); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// scorePool filters, scores, orders and ranks a record pool for a period.
// The sort is stable: equal totals keep their input order, so rescoring an
// unchanged pool is deterministic.
func scorePool(pool []contracts.Record, period string) []contracts.Record {
	scored := make([]contracts.Record, 0, len(pool))
	for _, r := range pool {
		if contracts.FloatValue(r.PriceUSD) <= 0 {
			continue
		}
		scored = append(scored, r)
	}

	yield := len(scored) > yieldPoolSize
	for i := range scored {
		Score(&scored[i], period)
		if yield && i > 0 && i%scoreBatchSize == 0 {
			runtime.Gosched()
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return contracts.FloatValue(scored[i].TotalScore) > contracts.FloatValue(scored[j].TotalScore)
	})

	for i := range scored {
		scored[i].Rank = i + 1
	}

	return scored
}

// SnapshotState describes one period's snapshot for the status endpoint
type SnapshotState struct {
	ComputedAt   time.Time `json:"computed_at"`
	TotalRecords int       `json:"total_records"`
	RefreshCount int       `json:"refresh_count"`
	Expired      bool      `json:"expired"`
}

// ComputationStatus reports which periods are computing and the state of
// every stored snapshot
type ComputationStatus struct {
	PeriodsComputing []string                 `json:"periods_computing"`
	Snapshots        map[string]SnapshotState `json:"snapshots"`
}

// Status returns the current computation status
func (e *Engine) Status(ctx context.Context) ComputationStatus {
	status := ComputationStatus{
		Snapshots: make(map[string]SnapshotState),
	}

	e.mu.Lock()
	for period := range e.computing {
		status.PeriodsComputing = append(status.PeriodsComputing, period)
	}
	e.mu.Unlock()
	sort.Strings(status.PeriodsComputing)

	for _, period := range contracts.Periods {
		snapshot, err := e.snapshots.Get(ctx, period)
		if err != nil {
			continue
		}
		status.Snapshots[period] = SnapshotState{
			ComputedAt:   snapshot.ComputedAt,
			TotalRecords: snapshot.TotalRecords,
			RefreshCount: snapshot.RefreshCount,
			Expired:      snapshot.Expired(SnapshotTTL(period)),
		}
	}

	return status
}
