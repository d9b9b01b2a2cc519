package enrichment

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/internal/provider"
)

// Backoff never grows the interval past this
const maxInterval = time.Minute

// adaptiveLimiter spaces calls to one provider. The interval starts at the
// provider's baseline, doubles on an explicit rate-limit signal and decays
// back toward the baseline floor on success.
type adaptiveLimiter struct {
	mu      sync.Mutex
	base    time.Duration
	current time.Duration
	limiter *rate.Limiter
}

func newAdaptiveLimiter(base time.Duration) *adaptiveLimiter {
	if base <= 0 {
		base = time.Second
	}
	return &adaptiveLimiter{
		base:    base,
		current: base,
		limiter: rate.NewLimiter(rate.Every(base), 1),
	}
}

// Wait blocks until the next call is allowed
func (l *adaptiveLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Backoff doubles the call interval
func (l *adaptiveLimiter) Backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current *= 2
	if l.current > maxInterval {
		l.current = maxInterval
	}
	l.limiter.SetLimit(rate.Every(l.current))
}

// Relax decays the interval toward the baseline floor
func (l *adaptiveLimiter) Relax() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == l.base {
		return
	}
	l.current = l.current * 3 / 4
	if l.current < l.base {
		l.current = l.base
	}
	l.limiter.SetLimit(rate.Every(l.current))
}

// Interval returns the current call spacing
func (l *adaptiveLimiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// limiterSet lazily keeps one adaptive limiter per provider
type limiterSet struct {
	mu       sync.Mutex
	limiters map[contracts.DataSource]*adaptiveLimiter
}

func newLimiterSet() *limiterSet {
	return &limiterSet{
		limiters: make(map[contracts.DataSource]*adaptiveLimiter),
	}
}

// For returns the limiter for a source, creating it at the provider's
// baseline interval on first use
func (s *limiterSet) For(source contracts.DataSource) *adaptiveLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[source]
	if !ok {
		l = newAdaptiveLimiter(provider.MinInterval(source))
		s.limiters[source] = l
	}
	return l
}
