package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/internal/provider"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// Aggregator fans out to the selected providers, merges the results by
// priority and returns one deduplicated record list.
// ⭐ SSOT: 프로바이더 팬아웃과 병합은 여기서만
type Aggregator struct {
	registry *provider.Registry
	logger   *logger.Logger

	// Global cap on in-flight provider calls, shared across passes
	sem *semaphore.Weighted

	callTimeout time.Duration
}

// NewAggregator creates an aggregator with the given fan-out bound and
// per-call timeout
func NewAggregator(registry *provider.Registry, maxConcurrent int, callTimeout time.Duration, log *logger.Logger) *Aggregator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Aggregator{
		registry:    registry,
		logger:      log.WithField("module", "aggregator"),
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
		callTimeout: callTimeout,
	}
}

// Aggregate queries the strategy's providers concurrently and merges their
// records. A failing provider contributes nothing; only a pass where every
// attempted provider failed is a total failure.
func (a *Aggregator) Aggregate(ctx context.Context, targetCount, sizeHint int) ([]contracts.Record, error) {
	strategy := SelectStrategy(sizeHint)
	providers := a.registry.Select(strategy.Sources)

	a.logger.WithFields(map[string]interface{}{
		"strategy":  strategy.Name,
		"providers": len(providers),
		"target":    targetCount,
	}).Info("Starting aggregation pass")

	if len(providers) == 0 {
		return nil, contracts.ErrAllProvidersFailed
	}

	results := make([][]contracts.RawRecord, len(providers))
	failures := 0

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, p := range providers {
		wg.Add(1)
		go func(idx int, p contracts.Provider) {
			defer wg.Done()

			if err := a.sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				return
			}
			defer a.sem.Release(1)

			callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
			defer cancel()

			limit := targetCount
			if d, ok := provider.Descriptors[p.Source()]; ok && d.FetchLimit < limit {
				limit = d.FetchLimit
			}

			records, err := p.Fetch(callCtx, limit)
			if err != nil {
				a.logger.WithFields(map[string]interface{}{
					"provider": p.Source(),
					"error":    err.Error(),
				}).Warn("Provider fetch failed, dropping contribution")
				mu.Lock()
				failures++
				mu.Unlock()
				return
			}

			mu.Lock()
			results[idx] = records
			mu.Unlock()
		}(i, p)
	}
	wg.Wait()

	if failures == len(providers) {
		return nil, contracts.ErrAllProvidersFailed
	}

	merged := a.merge(results)

	a.logger.WithFields(map[string]interface{}{
		"strategy": strategy.Name,
		"symbols":  len(merged),
		"failures": failures,
	}).Info("Aggregation pass complete")

	return merged, nil
}

// merge folds provider results into one record per symbol under the priority
// merge rule, then sorts by (priority ascending, market cap descending).
func (a *Aggregator) merge(results [][]contracts.RawRecord) []contracts.Record {
	now := time.Now()
	bySymbol := make(map[string]*contracts.Record)
	var order []string

	for _, records := range results {
		for i := range records {
			incoming := provider.RecordFromRaw(&records[i])
			current, seen := bySymbol[incoming.Symbol]
			if !seen {
				order = append(order, incoming.Symbol)
			}
			bySymbol[incoming.Symbol] = contracts.MergeRecord(current, incoming, now)
		}
	}

	merged := make([]contracts.Record, 0, len(order))
	for _, symbol := range order {
		merged = append(merged, *bySymbol[symbol])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].SourcePriority != merged[j].SourcePriority {
			return merged[i].SourcePriority < merged[j].SourcePriority
		}
		return contracts.FloatValue(merged[i].MarketCapUSD) > contracts.FloatValue(merged[j].MarketCapUSD)
	})

	return merged
}

