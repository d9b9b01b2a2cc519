package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// MemoryCache is an in-process, query-keyed cache of ranking results. It is
// purely a performance layer: a miss always falls through to the store or the
// aggregator, never a correctness hazard.
// ⭐ SSOT: 쿼리 결과 메모리 캐싱은 이 구조체에서만
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	logger  *logger.Logger
}

type entry struct {
	records  []contracts.Record
	storedAt time.Time
}

// NewMemoryCache creates a memory cache with the given TTL
func NewMemoryCache(ttl time.Duration, log *logger.Logger) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		logger:  log.WithField("module", "memory_cache"),
	}
}

// Key builds the canonical cache key for a ranking query
func Key(period string, limit, offset int) string {
	return fmt.Sprintf("ranking_%s_%d_%d", period, limit, offset)
}

// Get returns the cached records for key, or (nil, false) on miss or expiry
func (c *MemoryCache) Get(key string) ([]contracts.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if time.Since(e.storedAt) > c.ttl {
		return nil, false
	}

	return e.records, true
}

// Set stores records under key, replacing any previous entry
func (c *MemoryCache) Set(key string, records []contracts.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		records:  records,
		storedAt: time.Now(),
	}

	c.logger.WithFields(map[string]interface{}{
		"key":   key,
		"count": len(records),
	}).Debug("Cached ranking result")
}

// Delete removes one entry
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Clear drops every entry. Called after a full refresh so stale rankings
// are not served next to fresh records.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.logger.Info("Cleared memory cache")
}

// Len returns the number of live entries, expired included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// CleanExpired removes expired entries and returns how many were dropped
func (c *MemoryCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	count := 0

	for key, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, key)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Info("Cleaned expired cache entries")
	}

	return count
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{TotalCount: len(c.entries)}

	now := time.Now()
	for _, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			stats.ExpiredCount++
		}
	}

	stats.FreshCount = stats.TotalCount - stats.ExpiredCount

	return stats
}

// Stats represents cache statistics
type Stats struct {
	TotalCount   int `json:"total_count"`
	FreshCount   int `json:"fresh_count"`
	ExpiredCount int `json:"expired_count"`
}
