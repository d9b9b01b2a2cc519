package commands

import (
	"context"
	"fmt"

	"github.com/wonny/rebound/backend/internal/aggregator"
	"github.com/wonny/rebound/backend/internal/cache"
	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/internal/enrichment"
	"github.com/wonny/rebound/backend/internal/provider"
	"github.com/wonny/rebound/backend/internal/quality"
	"github.com/wonny/rebound/backend/internal/ranking"
	"github.com/wonny/rebound/backend/internal/store"
	"github.com/wonny/rebound/backend/pkg/config"
	"github.com/wonny/rebound/backend/pkg/database"
	"github.com/wonny/rebound/backend/pkg/httputil"
	"github.com/wonny/rebound/backend/pkg/logger"
	"github.com/wonny/rebound/backend/pkg/redis"
)

// app wires the full component graph for the CLI commands
// ⭐ SSOT: 컴포넌트 조립은 이 파일에서만
type app struct {
	cfg *config.Config
	log *logger.Logger

	db    *database.DB
	redis *redis.Client

	records   *store.RecordStore
	snapshots *store.SnapshotStore
	tasks     *store.TaskStore
	metrics   *store.MetricsStore

	memCache    *cache.MemoryCache
	registry    *provider.Registry
	aggregator  *aggregator.Aggregator
	gate        *aggregator.FreshnessGate
	coordinator *aggregator.RefreshCoordinator
	engine      *ranking.Engine
	enricher    *enrichment.Scheduler
}

// newApp builds every component from config
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database and ensure schema
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := store.EnsureSchema(ctx, db.Pool); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	log.Info("Connected to database")

	// 4. Redis (optional): global outbound rate limiting
	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, outbound limiting disabled")
	}

	// 5. HTTP client shared by every provider adapter
	httpClient := httputil.New(cfg, log)
	if redisClient != nil && redisClient.Enabled() {
		// Coarse global cap; per-provider spacing is enforced by the
		// enrichment limiters and the fan-out semaphore
		limiter := redis.NewRateLimiter(redisClient, "provider")
		httpClient = httpClient.WithRateLimiter(limiter, redis.GlobalProviderRateLimit)
	}

	// 6. Stores
	scorer := quality.NewScorer(log)
	records := store.NewRecordStore(db.Pool, scorer, log)
	snapshots := store.NewSnapshotStore(db.Pool)
	tasks := store.NewTaskStore(db.Pool, log)
	metrics := store.NewMetricsStore(db.Pool)

	// 7. Providers and aggregation
	registry := provider.DefaultRegistry(cfg, httpClient, log)
	agg := aggregator.NewAggregator(registry, cfg.Aggregator.MaxConcurrent, cfg.Aggregator.ProviderTimeout, log)
	gate := aggregator.NewFreshnessGate()
	memCache := cache.NewMemoryCache(cfg.Aggregator.MemoryCacheTTL, log)
	coordinator := aggregator.NewRefreshCoordinator(agg, records, gate, memCache, cfg.Aggregator.TargetCount, log)

	// 8. Ranking and enrichment
	engine := ranking.NewEngine(records, snapshots, memCache, agg,
		cfg.Aggregator.MinQualityScore, cfg.Aggregator.TargetCount, log)
	enricher := enrichment.NewScheduler(records, tasks, metrics, registry,
		cfg.Aggregator.TaskRetention, log)

	return &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		redis:       redisClient,
		records:     records,
		snapshots:   snapshots,
		tasks:       tasks,
		metrics:     metrics,
		memCache:    memCache,
		registry:    registry,
		aggregator:  agg,
		gate:        gate,
		coordinator: coordinator,
		engine:      engine,
		enricher:    enricher,
	}, nil
}

// Close releases the app's connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.db.Close()
}

// stats returns the database summary
func (a *app) stats(ctx context.Context) (*contracts.StatsSnapshot, error) {
	return store.Stats(ctx, a.db.Pool)
}
