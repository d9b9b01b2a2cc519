package aggregator

import (
	"sync"
	"time"
)

// Period freshness thresholds. If the last full aggregation for a period is
// within its threshold, outbound provider calls are skipped for that request.
var periodThresholds = map[string]time.Duration{
	"1h":  8 * time.Second,
	"24h": 3 * time.Minute,
	"7d":  20 * time.Minute,
	"30d": 90 * time.Minute,
}

const defaultThreshold = 3 * time.Minute

// FreshnessGate is the coarse per-period gate deciding whether an
// aggregation pass should run at all.
type FreshnessGate struct {
	mu      sync.Mutex
	lastRun map[string]time.Time
}

// NewFreshnessGate creates a gate with no recorded runs
func NewFreshnessGate() *FreshnessGate {
	return &FreshnessGate{
		lastRun: make(map[string]time.Time),
	}
}

// Threshold returns the gate threshold for a period
func Threshold(period string) time.Duration {
	if t, ok := periodThresholds[period]; ok {
		return t
	}
	return defaultThreshold
}

// ShouldAggregate reports whether the last pass for period is old enough
// that providers should be called again
func (g *FreshnessGate) ShouldAggregate(period string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastRun[period]
	if !ok {
		return true
	}
	return time.Since(last) > Threshold(period)
}

// MarkAggregated records a completed pass for period
func (g *FreshnessGate) MarkAggregated(period string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastRun[period] = time.Now()
}

// LastAggregated returns when the period last completed a pass
func (g *FreshnessGate) LastAggregated(period string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastRun[period]
	return last, ok
}
