package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/internal/provider"
	"github.com/wonny/rebound/backend/pkg/logger"
)

const (
	// Records below this quality score get high-priority tasks
	highPriorityQuality = 50.0

	// Per-provider pull size while working a batch. One pull per provider
	// per batch is shared across every task in it.
	batchFetchLimit = 250
)

// Scheduler creates and works enrichment tasks: targeted backfills of the
// fields a record is missing, fetched from the providers best suited per
// field under adaptive per-provider rate limits.
// ⭐ SSOT: 보강 작업 생성과 실행은 여기서만
type Scheduler struct {
	records  contracts.RecordRepository
	tasks    contracts.TaskRepository
	metrics  contracts.MetricsRepository
	registry *provider.Registry
	limiters *limiterSet
	logger   *logger.Logger

	retention time.Duration
}

// NewScheduler creates an enrichment scheduler. retention bounds how long
// terminal tasks stay around before Cleanup removes them.
func NewScheduler(
	records contracts.RecordRepository,
	tasks contracts.TaskRepository,
	metrics contracts.MetricsRepository,
	registry *provider.Registry,
	retention time.Duration,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		records:   records,
		tasks:     tasks,
		metrics:   metrics,
		registry:  registry,
		limiters:  newLimiterSet(),
		logger:    log.WithField("module", "enrichment"),
		retention: retention,
	}
}

// ScheduleFor creates one task per symbol that does not already have a
// pending or in-progress one. Returns how many tasks were actually created.
func (s *Scheduler) ScheduleFor(ctx context.Context, symbols []string) (int, error) {
	created := 0
	for _, symbol := range symbols {
		task := contracts.EnrichmentTask{
			Symbol:   symbol,
			Priority: 2,
		}

		record, err := s.records.Get(ctx, symbol, nil)
		switch {
		case err == nil:
			if record.QualityScore < highPriorityQuality {
				task.Priority = 1
			}
			task.MissingFields = record.MissingFields()
			task.PreferredSources = preferredFor(task.MissingFields)
		case errors.Is(err, contracts.ErrNotFound):
			// Unknown symbol: everything is missing, backfill urgently
			task.Priority = 1
		default:
			return created, fmt.Errorf("schedule %s: %w", symbol, err)
		}

		ok, err := s.tasks.Create(ctx, &task)
		if err != nil {
			return created, fmt.Errorf("schedule %s: %w", symbol, err)
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		s.logger.WithField("created", created).Info("Scheduled enrichment tasks")
	}
	return created, nil
}

// ScheduleStale schedules tasks for up to limit stale or low-quality symbols
func (s *Scheduler) ScheduleStale(ctx context.Context, limit int) (int, error) {
	symbols, err := s.records.StaleSymbols(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("stale symbols: %w", err)
	}
	return s.ScheduleFor(ctx, symbols)
}

// ProcessBatch pulls up to maxTasks pending tasks, highest priority first,
// and works each one. Returns how many tasks were processed.
func (s *Scheduler) ProcessBatch(ctx context.Context, maxTasks int) (int, error) {
	pending, err := s.tasks.Pending(ctx, maxTasks)
	if err != nil {
		return 0, fmt.Errorf("pending tasks: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	// Shared across the batch: one bulk pull per provider and one history
	// pull per (provider, symbol)
	pulls := newBatchPulls()

	processed := 0
	for i := range pending {
		task := &pending[i]

		now := time.Now()
		task.Status = contracts.TaskInProgress
		task.StartedAt = &now
		task.Attempts++
		if err := s.tasks.Update(ctx, task); err != nil {
			s.logger.WithError(err).Warn("Failed to claim enrichment task")
			continue
		}

		enriched, workErr := s.enrichSymbol(ctx, task, pulls)
		s.settle(ctx, task, enriched, workErr)
		processed++
	}

	s.logger.WithFields(map[string]interface{}{
		"processed": processed,
		"batch":     len(pending),
	}).Info("Enrichment batch complete")

	return processed, nil
}

// settle writes the task's terminal (or retryable) state
func (s *Scheduler) settle(ctx context.Context, task *contracts.EnrichmentTask, enriched []string, workErr error) {
	done := time.Now()
	task.FieldsEnriched = enriched

	switch {
	case workErr == nil:
		task.Status = contracts.TaskCompleted
		task.Success = true
		task.CompletedAt = &done
	case task.Attempts >= contracts.MaxTaskAttempts:
		task.Status = contracts.TaskFailed
		task.ErrorMessage = workErr.Error()
		task.CompletedAt = &done
	default:
		// Back to the queue for another attempt
		task.Status = contracts.TaskPending
		task.ErrorMessage = workErr.Error()
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		s.logger.WithError(err).Warn("Failed to settle enrichment task")
	}
}

// enrichSymbol backfills the task's missing fields. For each field it walks
// the ordered preferred providers; a raw record from any of them typically
// covers several missing fields at once.
func (s *Scheduler) enrichSymbol(ctx context.Context, task *contracts.EnrichmentTask, pulls *batchPulls) ([]string, error) {
	missing := task.MissingFields
	if record, err := s.records.Get(ctx, task.Symbol, nil); err == nil {
		missing = record.MissingFields()
	} else if len(missing) == 0 {
		missing = allFields()
	}

	if len(missing) == 0 {
		return nil, nil
	}

	var enriched []string
	var lastErr error

	remaining := append([]string(nil), missing...)
	for len(remaining) > 0 {
		field := remaining[0]

		raw, err := s.findField(ctx, task.Symbol, field, pulls)
		if err != nil {
			lastErr = err
		}
		if raw == nil {
			remaining = remaining[1:]
			continue
		}

		if _, err := s.records.Upsert(ctx, provider.RecordFromRaw(raw)); err != nil {
			lastErr = err
			remaining = remaining[1:]
			continue
		}

		// One raw usually covers more than the field we asked for
		var next []string
		for _, f := range remaining {
			if provider.RawHasField(raw, f) {
				enriched = append(enriched, f)
			} else {
				next = append(next, f)
			}
		}
		remaining = next
	}

	if len(enriched) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("no provider produced fields for %s", task.Symbol)
	}
	return enriched, nil
}

// findField asks the ordered providers for the symbol until one of them has
// a value for field. History fields go through the per-symbol history pull
// when the provider supports it.
func (s *Scheduler) findField(ctx context.Context, symbol, field string, pulls *batchPulls) (*contracts.RawRecord, error) {
	var lastErr error

	for _, src := range s.orderedSources(ctx, symbol, field) {
		p, ok := s.registry.Get(src)
		if !ok || !p.Available() {
			continue
		}

		var raw *contracts.RawRecord
		var err error
		if hp, isHP := p.(contracts.HistoryProvider); isHP && historyField(field) {
			raw, err = s.pullHistory(ctx, src, hp, symbol, pulls)
		} else {
			raw, err = s.pull(ctx, src, p, symbol, pulls)
		}
		if err != nil {
			lastErr = err
			continue
		}
		if raw == nil {
			s.recordCall(ctx, src, symbol, false)
			continue
		}
		if !provider.RawHasField(raw, field) {
			continue
		}

		s.recordCall(ctx, src, symbol, true)
		return raw, nil
	}

	return nil, lastErr
}

// pull fetches one provider's bulk listing, at most once per batch, under
// the provider's adaptive limiter
func (s *Scheduler) pull(ctx context.Context, src contracts.DataSource, p contracts.Provider, symbol string, pulls *batchPulls) (*contracts.RawRecord, error) {
	bySymbol, ok := pulls.bulk[src]
	if !ok {
		lim := s.limiters.For(src)
		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}

		raws, err := p.Fetch(ctx, batchFetchLimit)
		if err != nil {
			s.noteFailure(src, lim, err)
			// A failed provider sits out the rest of the batch
			pulls.bulk[src] = map[string]*contracts.RawRecord{}
			return nil, fmt.Errorf("%s pull: %w", src, err)
		}
		lim.Relax()

		bySymbol = make(map[string]*contracts.RawRecord, len(raws))
		for i := range raws {
			bySymbol[raws[i].Symbol] = &raws[i]
		}
		pulls.bulk[src] = bySymbol
	}

	return bySymbol[symbol], nil
}

// pullHistory fetches one symbol's price history from a history-capable
// provider, at most once per batch per (provider, symbol)
func (s *Scheduler) pullHistory(ctx context.Context, src contracts.DataSource, hp contracts.HistoryProvider, symbol string, pulls *batchPulls) (*contracts.RawRecord, error) {
	key := string(src) + "/" + symbol
	if raw, done := pulls.history[key]; done {
		return raw, nil
	}

	lim := s.limiters.For(src)
	if err := lim.Wait(ctx); err != nil {
		return nil, err
	}

	raw, err := hp.FetchHistory(ctx, symbol)
	if err != nil {
		s.noteFailure(src, lim, err)
		pulls.history[key] = nil
		return nil, fmt.Errorf("%s history pull: %w", src, err)
	}
	lim.Relax()

	pulls.history[key] = raw
	return raw, nil
}

// noteFailure backs the provider's limiter off when the failure was a rate
// limit response
func (s *Scheduler) noteFailure(src contracts.DataSource, lim *adaptiveLimiter, err error) {
	if !errors.Is(err, contracts.ErrRateLimited) {
		return
	}
	lim.Backoff()
	s.logger.WithFields(map[string]interface{}{
		"provider": src,
		"interval": lim.Interval().String(),
	}).Warn("Provider rate limited, backing off")
}

// batchPulls caches provider results for the lifetime of one batch. A nil
// history entry marks a pull that already failed.
type batchPulls struct {
	bulk    map[contracts.DataSource]map[string]*contracts.RawRecord
	history map[string]*contracts.RawRecord
}

func newBatchPulls() *batchPulls {
	return &batchPulls{
		bulk:    make(map[contracts.DataSource]map[string]*contracts.RawRecord),
		history: make(map[string]*contracts.RawRecord),
	}
}

// historyField reports whether the field is served by per-symbol history
// pulls rather than bulk listings
func historyField(field string) bool {
	switch field {
	case contracts.FieldHistoricalPrices, contracts.FieldMaxPrice1Y, contracts.FieldMinPrice1Y:
		return true
	}
	return false
}

// orderedSources returns the providers to try for a field: historically
// reliable sources for the symbol first, then the static field preference.
func (s *Scheduler) orderedSources(ctx context.Context, symbol, field string) []contracts.DataSource {
	var out []contracts.DataSource
	seen := make(map[contracts.DataSource]bool)

	if best, err := s.metrics.BestSources(ctx, symbol); err == nil {
		for _, src := range best {
			if !seen[src] {
				seen[src] = true
				out = append(out, src)
			}
		}
	}

	for _, src := range provider.PreferredSourcesFor(field) {
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}

	return out
}

func (s *Scheduler) recordCall(ctx context.Context, src contracts.DataSource, symbol string, success bool) {
	if err := s.metrics.RecordCall(ctx, src, symbol, success); err != nil {
		s.logger.WithError(err).Debug("Failed to record call metrics")
	}
}

// Cleanup purges terminal tasks older than the retention window and returns
// how many were removed
func (s *Scheduler) Cleanup(ctx context.Context) (int, error) {
	purged, err := s.tasks.PurgeTerminal(ctx, time.Now().Add(-s.retention))
	if err != nil {
		return 0, fmt.Errorf("purge tasks: %w", err)
	}
	if purged > 0 {
		s.logger.WithField("purged", purged).Info("Purged terminal enrichment tasks")
	}
	return purged, nil
}

// preferredFor unions the preferred providers of every missing field,
// preserving order without duplicates
func preferredFor(fields []string) []contracts.DataSource {
	var out []contracts.DataSource
	seen := make(map[contracts.DataSource]bool)
	for _, field := range fields {
		for _, src := range provider.PreferredSourcesFor(field) {
			if !seen[src] {
				seen[src] = true
				out = append(out, src)
			}
		}
	}
	return out
}

func allFields() []string {
	return []string{
		contracts.FieldPrice,
		contracts.FieldMarketCap,
		contracts.FieldVolume24h,
		contracts.FieldPercentChange24h,
		contracts.FieldHistoricalPrices,
		contracts.FieldMaxPrice1Y,
		contracts.FieldMinPrice1Y,
	}
}
