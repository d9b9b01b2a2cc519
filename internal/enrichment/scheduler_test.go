package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/internal/provider"
	"github.com/wonny/rebound/backend/pkg/config"
	"github.com/wonny/rebound/backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{
		Env:      "test",
		LogLevel: "error", // Reduce log noise
	})
}

// fakeRecords is an in-memory RecordRepository
type fakeRecords struct {
	mu      sync.Mutex
	records map[string]*contracts.Record
	upserts int
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[string]*contracts.Record)}
}

func (f *fakeRecords) Get(ctx context.Context, symbol string, requiredFields []string) (*contracts.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[symbol]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (f *fakeRecords) Upsert(ctx context.Context, candidate *contracts.Record) (*contracts.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	merged := contracts.MergeRecord(f.records[candidate.Symbol], candidate, time.Now())
	f.records[candidate.Symbol] = merged
	out := *merged
	return &out, nil
}

func (f *fakeRecords) QualityFiltered(ctx context.Context, minScore float64, limit int) ([]contracts.Record, error) {
	return nil, nil
}

func (f *fakeRecords) StaleSymbols(ctx context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for symbol := range f.records {
		if len(out) >= limit {
			break
		}
		out = append(out, symbol)
	}
	return out, nil
}

func (f *fakeRecords) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

// fakeTasks is an in-memory TaskRepository with the one-active-per-symbol rule
type fakeTasks struct {
	mu    sync.Mutex
	tasks map[string]*contracts.EnrichmentTask
	seq   int
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: make(map[string]*contracts.EnrichmentTask)}
}

func (f *fakeTasks) Create(ctx context.Context, task *contracts.EnrichmentTask) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.Symbol == task.Symbol && !t.Status.Terminal() {
			return false, nil
		}
	}
	f.seq++
	task.ID = fmt.Sprintf("task-%d", f.seq)
	task.Status = contracts.TaskPending
	task.CreatedAt = time.Now()
	copied := *task
	f.tasks[task.ID] = &copied
	return true, nil
}

func (f *fakeTasks) Pending(ctx context.Context, limit int) ([]contracts.EnrichmentTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []contracts.EnrichmentTask
	for _, t := range f.tasks {
		if t.Status == contracts.TaskPending {
			out = append(out, *t)
		}
	}
	// Lowest priority number first
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority < out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTasks) Update(ctx context.Context, task *contracts.EnrichmentTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *task
	f.tasks[task.ID] = &copied
	return nil
}

func (f *fakeTasks) PurgeTerminal(ctx context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	purged := 0
	for id, t := range f.tasks {
		finished := t.CreatedAt
		if t.CompletedAt != nil {
			finished = *t.CompletedAt
		}
		if t.Status.Terminal() && finished.Before(cutoff) {
			delete(f.tasks, id)
			purged++
		}
	}
	return purged, nil
}

func (f *fakeTasks) CountByStatus(ctx context.Context, status contracts.TaskStatus) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, t := range f.tasks {
		if t.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeTasks) bySymbol(symbol string) *contracts.EnrichmentTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.Symbol == symbol {
			out := *t
			return &out
		}
	}
	return nil
}

// fakeMetrics records call outcomes and serves a scripted best-source list
type fakeMetrics struct {
	mu        sync.Mutex
	successes map[string]int
	failures  map[string]int
	best      []contracts.DataSource
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		successes: make(map[string]int),
		failures:  make(map[string]int),
	}
}

func (f *fakeMetrics) RecordCall(ctx context.Context, source contracts.DataSource, symbol string, success bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(source) + "/" + symbol
	if success {
		f.successes[key]++
	} else {
		f.failures[key]++
	}
	return nil
}

func (f *fakeMetrics) BestSources(ctx context.Context, symbol string) ([]contracts.DataSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.best, nil
}

// scriptedProvider serves a fixed record set or a fixed error
type scriptedProvider struct {
	source  contracts.DataSource
	records []contracts.RawRecord
	err     error
	calls   int
}

func (p *scriptedProvider) Source() contracts.DataSource { return p.source }
func (p *scriptedProvider) Available() bool              { return true }

func (p *scriptedProvider) Fetch(ctx context.Context, limit int) ([]contracts.RawRecord, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.records, nil
}

// historyProvider additionally serves scripted per-symbol daily history
type historyProvider struct {
	scriptedProvider
	history   *contracts.RawRecord
	histErr   error
	histCalls int
}

func (p *historyProvider) FetchHistory(ctx context.Context, symbol string) (*contracts.RawRecord, error) {
	p.histCalls++
	if p.histErr != nil {
		return nil, p.histErr
	}
	return p.history, nil
}

func newTestScheduler(records *fakeRecords, tasks *fakeTasks, metrics *fakeMetrics, providers ...contracts.Provider) *Scheduler {
	registry := provider.NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}
	return NewScheduler(records, tasks, metrics, registry, 72*time.Hour, testLogger())
}

func TestScheduleForPriorityAndDedup(t *testing.T) {
	records := newFakeRecords()
	records.records["LOWQ"] = &contracts.Record{
		Symbol:       "LOWQ",
		PriceUSD:     contracts.Float(10),
		QualityScore: 40,
	}
	records.records["GOOD"] = &contracts.Record{
		Symbol:       "GOOD",
		PriceUSD:     contracts.Float(10),
		QualityScore: 85,
	}

	tasks := newFakeTasks()
	s := newTestScheduler(records, tasks, newFakeMetrics())
	ctx := context.Background()

	created, err := s.ScheduleFor(ctx, []string{"LOWQ", "GOOD", "NEW"})
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	assert.Equal(t, 1, tasks.bySymbol("LOWQ").Priority)
	assert.Equal(t, 2, tasks.bySymbol("GOOD").Priority)
	assert.Equal(t, 1, tasks.bySymbol("NEW").Priority)

	// Missing fields and their preferred sources ride along on the task
	low := tasks.bySymbol("LOWQ")
	assert.Contains(t, low.MissingFields, contracts.FieldMarketCap)
	assert.NotEmpty(t, low.PreferredSources)

	// One active task per symbol
	created, err = s.ScheduleFor(ctx, []string{"LOWQ", "GOOD"})
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestProcessBatchEnrichesMissingFields(t *testing.T) {
	records := newFakeRecords()
	records.records["BTC"] = &contracts.Record{
		Symbol:       "BTC",
		PriceUSD:     contracts.Float(50000),
		QualityScore: 45,
	}

	paprika := &scriptedProvider{
		source: contracts.SourceCoinPaprika,
		records: []contracts.RawRecord{{
			Symbol:        "BTC",
			PriceUSD:      contracts.Float(50100),
			MarketCapUSD:  contracts.Float(1e12),
			Volume24hUSD:  contracts.Float(3e10),
			PercentChange: map[string]float64{"24h": 2.5},
			MaxPrice1Y:    contracts.Float(69000),
			MinPrice1Y:    contracts.Float(16000),
			Source:        contracts.SourceCoinPaprika,
			FetchedAt:     time.Now(),
		}},
	}

	tasks := newFakeTasks()
	metrics := newFakeMetrics()
	s := newTestScheduler(records, tasks, metrics, paprika)
	ctx := context.Background()

	_, err := s.ScheduleFor(ctx, []string{"BTC"})
	require.NoError(t, err)

	processed, err := s.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	task := tasks.bySymbol("BTC")
	assert.Equal(t, contracts.TaskCompleted, task.Status)
	assert.True(t, task.Success)
	assert.Equal(t, 1, task.Attempts)
	assert.Contains(t, task.FieldsEnriched, contracts.FieldMarketCap)
	assert.Contains(t, task.FieldsEnriched, contracts.FieldMaxPrice1Y)

	// The record actually gained the fields
	r, err := records.Get(ctx, "BTC", nil)
	require.NoError(t, err)
	assert.NotNil(t, r.MarketCapUSD)
	assert.NotNil(t, r.MaxPrice1Y)

	// Success feeds the per-(source,symbol) counters
	assert.Equal(t, 1, metrics.successes["coinpaprika/BTC"])

	// One bulk pull served the whole batch
	assert.Equal(t, 1, paprika.calls)
}

func TestProcessBatchBackfillsHistoryPerSymbol(t *testing.T) {
	records := newFakeRecords()
	records.records["BTC"] = &contracts.Record{
		Symbol:        "BTC",
		PriceUSD:      contracts.Float(50000),
		MarketCapUSD:  contracts.Float(1e12),
		Volume24hUSD:  contracts.Float(3e10),
		PercentChange: map[string]float64{"24h": 2.5},
		QualityScore:  45,
	}

	cc := &historyProvider{
		scriptedProvider: scriptedProvider{source: contracts.SourceCryptoCompare},
		history: &contracts.RawRecord{
			Symbol:           "BTC",
			HistoricalPrices: map[string]float64{"2026-08-27": 48000, "2026-08-28": 50000},
			MaxPrice1Y:       contracts.Float(69000),
			MinPrice1Y:       contracts.Float(16000),
			Source:           contracts.SourceCryptoCompare,
			FetchedAt:        time.Now(),
		},
	}

	tasks := newFakeTasks()
	metrics := newFakeMetrics()
	s := newTestScheduler(records, tasks, metrics, cc)
	ctx := context.Background()

	_, err := s.ScheduleFor(ctx, []string{"BTC"})
	require.NoError(t, err)

	processed, err := s.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	task := tasks.bySymbol("BTC")
	assert.Equal(t, contracts.TaskCompleted, task.Status)
	assert.Contains(t, task.FieldsEnriched, contracts.FieldHistoricalPrices)
	assert.Contains(t, task.FieldsEnriched, contracts.FieldMaxPrice1Y)
	assert.Contains(t, task.FieldsEnriched, contracts.FieldMinPrice1Y)

	r, err := records.Get(ctx, "BTC", nil)
	require.NoError(t, err)
	assert.Len(t, r.HistoricalPrices, 2)
	assert.Equal(t, 69000.0, contracts.FloatValue(r.MaxPrice1Y))

	// One history pull covered all three fields; the bulk listing was
	// never needed
	assert.Equal(t, 1, cc.histCalls)
	assert.Equal(t, 0, cc.calls)
	assert.Equal(t, 1, metrics.successes["cryptocompare/BTC"])
}

func TestProcessBatchRetriesThenFails(t *testing.T) {
	records := newFakeRecords()
	records.records["XYZ"] = &contracts.Record{
		Symbol:       "XYZ",
		QualityScore: 20,
	}

	// Binance's short baseline interval keeps the retries fast
	broken := &scriptedProvider{
		source: contracts.SourceBinance,
		err:    errors.New("connection refused"),
	}

	tasks := newFakeTasks()
	s := newTestScheduler(records, tasks, newFakeMetrics(), broken)
	ctx := context.Background()

	_, err := s.ScheduleFor(ctx, []string{"XYZ"})
	require.NoError(t, err)

	for attempt := 1; attempt <= contracts.MaxTaskAttempts; attempt++ {
		_, err := s.ProcessBatch(ctx, 10)
		require.NoError(t, err)

		task := tasks.bySymbol("XYZ")
		assert.Equal(t, attempt, task.Attempts)
		if attempt < contracts.MaxTaskAttempts {
			assert.Equal(t, contracts.TaskPending, task.Status)
		}
	}

	task := tasks.bySymbol("XYZ")
	assert.Equal(t, contracts.TaskFailed, task.Status)
	assert.NotEmpty(t, task.ErrorMessage)

	// Capped tasks never run again
	processed, err := s.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestProcessBatchBacksOffOnRateLimit(t *testing.T) {
	records := newFakeRecords()
	records.records["ABC"] = &contracts.Record{Symbol: "ABC", QualityScore: 20}

	limited := &scriptedProvider{
		source: contracts.SourceBinance,
		err:    fmt.Errorf("binance: %w", contracts.ErrRateLimited),
	}

	tasks := newFakeTasks()
	s := newTestScheduler(records, tasks, newFakeMetrics(), limited)
	ctx := context.Background()

	base := s.limiters.For(contracts.SourceBinance).Interval()

	_, err := s.ScheduleFor(ctx, []string{"ABC"})
	require.NoError(t, err)
	_, err = s.ProcessBatch(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, 2*base, s.limiters.For(contracts.SourceBinance).Interval())
}

func TestAdaptiveLimiter(t *testing.T) {
	l := newAdaptiveLimiter(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, l.Interval())

	l.Backoff()
	assert.Equal(t, 200*time.Millisecond, l.Interval())
	l.Backoff()
	assert.Equal(t, 400*time.Millisecond, l.Interval())

	// Decay approaches the baseline floor and stops there
	for i := 0; i < 20; i++ {
		l.Relax()
	}
	assert.Equal(t, 100*time.Millisecond, l.Interval())

	// Backoff is capped
	for i := 0; i < 20; i++ {
		l.Backoff()
	}
	assert.Equal(t, maxInterval, l.Interval())
}

func TestCleanupPurgesOldTerminalTasks(t *testing.T) {
	tasks := newFakeTasks()
	s := newTestScheduler(newFakeRecords(), tasks, newFakeMetrics())
	ctx := context.Background()

	old := time.Now().Add(-4 * 24 * time.Hour)
	recent := time.Now().Add(-time.Hour)
	tasks.tasks["t1"] = &contracts.EnrichmentTask{
		ID: "t1", Symbol: "OLD", Status: contracts.TaskCompleted, CompletedAt: &old,
	}
	tasks.tasks["t2"] = &contracts.EnrichmentTask{
		ID: "t2", Symbol: "RECENT", Status: contracts.TaskCompleted, CompletedAt: &recent,
	}
	tasks.tasks["t3"] = &contracts.EnrichmentTask{
		ID: "t3", Symbol: "LIVE", Status: contracts.TaskPending, CreatedAt: old,
	}

	purged, err := s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	assert.Nil(t, tasks.bySymbol("OLD"))
	assert.NotNil(t, tasks.bySymbol("RECENT"))
	assert.NotNil(t, tasks.bySymbol("LIVE"))
}

func TestOrderedSourcesPrefersReliableHistory(t *testing.T) {
	metrics := newFakeMetrics()
	metrics.best = []contracts.DataSource{contracts.SourceBinance}

	s := newTestScheduler(newFakeRecords(), newFakeTasks(), metrics)

	sources := s.orderedSources(context.Background(), "BTC", contracts.FieldPrice)
	require.NotEmpty(t, sources)

	// Historically reliable sources come first, then static preference order
	assert.Equal(t, contracts.SourceBinance, sources[0])
	assert.Equal(t, contracts.SourceCoinMarketCap, sources[1])

	// No duplicates even though binance also statically prefers price
	seen := make(map[contracts.DataSource]int)
	for _, src := range sources {
		seen[src]++
	}
	for src, n := range seen {
		assert.Equal(t, 1, n, src)
	}
}
