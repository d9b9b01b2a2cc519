package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebound/backend/internal/aggregator"
	"github.com/wonny/rebound/backend/internal/api/handlers"
	"github.com/wonny/rebound/backend/internal/cache"
	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/internal/enrichment"
	"github.com/wonny/rebound/backend/internal/provider"
	"github.com/wonny/rebound/backend/internal/ranking"
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
	f.records[candidate.Symbol] = candidate
	return candidate, nil
}

func (f *fakeRecords) QualityFiltered(ctx context.Context, minScore float64, limit int) ([]contracts.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []contracts.Record
	for _, r := range f.records {
		if len(out) >= limit {
			break
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRecords) StaleSymbols(ctx context.Context, limit int) ([]string, error) {
	return nil, nil
}

func (f *fakeRecords) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

// fakeSnapshots is an in-memory SnapshotRepository
type fakeSnapshots struct {
	mu        sync.Mutex
	snapshots map[string]contracts.RankingSnapshot
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{snapshots: make(map[string]contracts.RankingSnapshot)}
}

func (f *fakeSnapshots) Get(ctx context.Context, period string) (*contracts.RankingSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snapshots[period]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	out := s
	return &out, nil
}

func (f *fakeSnapshots) Replace(ctx context.Context, snapshot *contracts.RankingSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[snapshot.Period] = *snapshot
	return nil
}

// fakeTasks is an in-memory TaskRepository
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
	return nil, nil
}

func (f *fakeTasks) Update(ctx context.Context, task *contracts.EnrichmentTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *task
	f.tasks[task.ID] = &copied
	return nil
}

func (f *fakeTasks) PurgeTerminal(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (f *fakeTasks) CountByStatus(ctx context.Context, status contracts.TaskStatus) (int, error) {
	return 0, nil
}

// fakeMetrics is a no-op MetricsRepository
type fakeMetrics struct{}

func (fakeMetrics) RecordCall(ctx context.Context, source contracts.DataSource, symbol string, success bool) error {
	return nil
}

func (fakeMetrics) BestSources(ctx context.Context, symbol string) ([]contracts.DataSource, error) {
	return nil, nil
}

type testEnv struct {
	records   *fakeRecords
	snapshots *fakeSnapshots
	tasks     *fakeTasks
	router    http.Handler
}

func newTestEnv() *testEnv {
	log := testLogger()
	records := newFakeRecords()
	snapshots := newFakeSnapshots()
	tasks := newFakeTasks()

	memCache := cache.NewMemoryCache(time.Minute, log)
	registry := provider.NewRegistry()
	agg := aggregator.NewAggregator(registry, 5, time.Second, log)
	gate := aggregator.NewFreshnessGate()

	engine := ranking.NewEngine(records, snapshots, memCache, agg, 50, 50, log)
	coordinator := aggregator.NewRefreshCoordinator(agg, records, gate, memCache, 50, log)
	enricher := enrichment.NewScheduler(records, tasks, fakeMetrics{}, registry, 72*time.Hour, log)

	stats := func(ctx context.Context) (*contracts.StatsSnapshot, error) {
		count, _ := records.Count(ctx)
		return &contracts.StatsSnapshot{TotalRecords: count}, nil
	}

	cryptoHandler := handlers.NewCryptoHandler(engine, records, coordinator, log)
	systemHandler := handlers.NewSystemHandler(stats, enricher, engine, log)

	return &testEnv{
		records:   records,
		snapshots: snapshots,
		tasks:     tasks,
		router:    NewRouter(cryptoHandler, systemHandler, log),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetRankingFromSnapshot(t *testing.T) {
	env := newTestEnv()
	env.snapshots.snapshots["24h"] = contracts.RankingSnapshot{
		Period: "24h",
		Records: []contracts.Record{
			{Symbol: "AAA", Rank: 1},
			{Symbol: "BBB", Rank: 2},
			{Symbol: "CCC", Rank: 3},
		},
		TotalRecords: 3,
		ComputedAt:   time.Now(),
	}

	rec := env.do(t, http.MethodGet, "/api/cryptos/ranking?period=24h&limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Period string             `json:"period"`
		Count  int                `json:"count"`
		Data   []contracts.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "24h", body.Period)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Data, 2)
	assert.Equal(t, "BBB", body.Data[0].Symbol)
}

func TestGetRankingRejectsBadParams(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/cryptos/ranking?period=2h", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cryptos/ranking?period=24h&limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cryptos/ranking?period=24h&offset=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCrypto(t *testing.T) {
	env := newTestEnv()
	env.records.records["BTC"] = &contracts.Record{
		Symbol:   "BTC",
		PriceUSD: contracts.Float(50000),
	}

	// Lowercase path resolves to the uppercase symbol
	rec := env.do(t, http.MethodGet, "/api/cryptos/btc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var record contracts.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "BTC", record.Symbol)

	rec = env.do(t, http.MethodGet, "/api/cryptos/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCount(t *testing.T) {
	env := newTestEnv()
	env.records.records["BTC"] = &contracts.Record{Symbol: "BTC"}
	env.records.records["ETH"] = &contracts.Record{Symbol: "ETH"}

	rec := env.do(t, http.MethodGet, "/api/cryptos/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body["count"])
}

func TestRefreshStartsJob(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/cryptos/refresh", handlers.RefreshRequest{Force: true})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "started", body["status"])
	assert.NotEmpty(t, body["job_id"])

	rec = env.do(t, http.MethodGet, "/api/cryptos/refresh/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshRejectsInvalidPeriod(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/cryptos/refresh", handlers.RefreshRequest{
		Periods: []string{"24h", "13d"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv()
	env.records.records["BTC"] = &contracts.Record{Symbol: "BTC"}

	rec := env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot contracts.StatsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, 1, snapshot.TotalRecords)
}

func TestTriggerEnrichment(t *testing.T) {
	env := newTestEnv()
	env.records.records["BTC"] = &contracts.Record{Symbol: "BTC", QualityScore: 40}

	rec := env.do(t, http.MethodPost, "/api/enrichment/trigger", handlers.EnrichmentRequest{
		Symbols: []string{"btc"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body struct {
		Status  string `json:"status"`
		Created int    `json:"created"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "scheduled", body.Status)
	assert.Equal(t, 1, body.Created)
}

func TestComputationStatusEndpoint(t *testing.T) {
	env := newTestEnv()
	env.snapshots.snapshots["24h"] = contracts.RankingSnapshot{
		Period:       "24h",
		TotalRecords: 5,
		ComputedAt:   time.Now(),
		RefreshCount: 2,
	}

	rec := env.do(t, http.MethodGet, "/api/rankings/computation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status ranking.ComputationStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Contains(t, status.Snapshots, "24h")
	assert.Equal(t, 5, status.Snapshots["24h"].TotalRecords)
}
