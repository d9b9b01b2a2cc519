package contracts

import (
	"context"
	"time"
)

// RawRecord is one instrument as reported by a single provider, before
// validation and merging. Field names mirror Record; a provider fills only
// what it knows.
type RawRecord struct {
	Symbol string
	Name   string

	PriceUSD     *float64
	MarketCapUSD *float64
	Volume24hUSD *float64

	CirculatingSupply *float64
	TotalSupply       *float64
	MaxSupply         *float64

	PercentChange    map[string]float64
	HistoricalPrices map[string]float64
	MaxPrice1Y       *float64
	MinPrice1Y       *float64

	Source    DataSource
	FetchedAt time.Time
}

// Provider is the uniform contract every external data source implements
// ⭐ SSOT: 외부 데이터 소스 인터페이스는 여기서만 정의
type Provider interface {
	// Source returns the provider identifier
	Source() DataSource

	// Fetch returns up to limit raw records. An empty slice with nil error
	// means the provider had nothing to report.
	Fetch(ctx context.Context, limit int) ([]RawRecord, error)

	// Available reports whether the provider can currently be called
	// (e.g. an API key is configured)
	Available() bool
}

// HistoryProvider is implemented by providers that can serve one symbol's
// daily price history on top of their bulk listing. Enrichment uses it to
// backfill historical prices and the yearly extrema.
type HistoryProvider interface {
	Provider

	// FetchHistory returns a raw record carrying the symbol's daily close
	// history and the extrema derived from it
	FetchHistory(ctx context.Context, symbol string) (*RawRecord, error)
}

// ProviderDescriptor carries the static metadata the aggregator and the
// enrichment scheduler need about a provider.
type ProviderDescriptor struct {
	Source DataSource

	// Priority resolves merge conflicts; lower wins
	Priority int

	// FetchLimit caps how many records one full pull may request
	FetchLimit int

	// PreferredFields lists the record fields this provider is a good
	// source for, best first. Used by enrichment.
	PreferredFields []string

	// MinInterval is the baseline spacing between calls for rate limiting
	MinInterval time.Duration
}
