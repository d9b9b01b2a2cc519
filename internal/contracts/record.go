package contracts

import "time"

// DataSource identifies an external data provider
type DataSource string

const (
	SourceCoinMarketCap DataSource = "coinmarketcap"
	SourceCryptoCompare DataSource = "cryptocompare"
	SourceCoinAPI       DataSource = "coinapi"
	SourceCoinPaprika   DataSource = "coinpaprika"
	SourceBitfinex      DataSource = "bitfinex"
	SourceBinance       DataSource = "binance"
	SourceYahoo         DataSource = "yahoo"
	SourceFallback      DataSource = "fallback"
)

// QualityLevel is the ordinal quality classification of a record
type QualityLevel string

const (
	QualityHigh    QualityLevel = "high"
	QualityMedium  QualityLevel = "medium"
	QualityLow     QualityLevel = "low"
	QualityInvalid QualityLevel = "invalid"
)

// QualityLevelForScore maps a 0-100 quality score to its level
// ⭐ SSOT: 품질 등급 판정은 이 함수에서만
func QualityLevelForScore(score float64) QualityLevel {
	switch {
	case score >= 80:
		return QualityHigh
	case score >= 60:
		return QualityMedium
	case score >= 30:
		return QualityLow
	default:
		return QualityInvalid
	}
}

// Canonical ranking periods, shortest first
var Periods = []string{"1h", "24h", "7d", "30d", "90d", "180d", "270d", "365d"}

// PeriodHours maps each canonical period to its length in hours
var PeriodHours = map[string]float64{
	"1h":   1,
	"24h":  24,
	"7d":   168,
	"30d":  720,
	"90d":  2160,
	"180d": 4320,
	"270d": 6480,
	"365d": 8760,
}

// IsValidPeriod reports whether p is one of the canonical periods
func IsValidPeriod(p string) bool {
	_, ok := PeriodHours[p]
	return ok
}

// Record is the canonical, merged, quality-scored representation of one
// instrument. Optional numeric fields are pointers: nil means the field was
// never observed from any source.
type Record struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`

	PriceUSD     *float64 `json:"price_usd,omitempty"`
	MarketCapUSD *float64 `json:"market_cap_usd,omitempty"`
	Volume24hUSD *float64 `json:"volume_24h_usd,omitempty"`

	CirculatingSupply *float64 `json:"circulating_supply,omitempty"`
	TotalSupply       *float64 `json:"total_supply,omitempty"`
	MaxSupply         *float64 `json:"max_supply,omitempty"`

	// Percent changes per period, sparse. Keys are canonical period labels.
	PercentChange map[string]float64 `json:"percent_change,omitempty"`

	// Historical snapshot prices keyed by horizon label ("1d", "7d", ...)
	HistoricalPrices map[string]float64 `json:"historical_prices,omitempty"`
	MaxPrice1Y       *float64           `json:"max_price_1y,omitempty"`
	MinPrice1Y       *float64           `json:"min_price_1y,omitempty"`
	MaxPrice1YDate   *time.Time         `json:"max_price_1y_date,omitempty"`
	MinPrice1YDate   *time.Time         `json:"min_price_1y_date,omitempty"`

	Rank int `json:"rank,omitempty"`

	// Merge provenance
	PrimarySource  DataSource   `json:"primary_source,omitempty"`
	SourcePriority int          `json:"source_priority,omitempty"`
	DataSources    []DataSource `json:"data_sources,omitempty"`

	// Per-field last-fetched timestamps, keyed by field name
	FieldTimestamps map[string]time.Time `json:"field_timestamps,omitempty"`

	// Quality metadata
	QualityScore      float64      `json:"quality_score"`
	DataQuality       QualityLevel `json:"data_quality"`
	CompletenessScore float64      `json:"completeness_score"`
	FreshnessScore    float64      `json:"freshness_score"`
	ConsistencyScore  float64      `json:"consistency_score"`
	AccuracyScore     float64      `json:"accuracy_score"`

	// Operational counters
	APICallCount    int  `json:"api_call_count"`
	ErrorCount      int  `json:"error_count"`
	NeedsEnrichment bool `json:"needs_enrichment"`

	LastUpdated    time.Time  `json:"last_updated"`
	LastEnrichment *time.Time `json:"last_enrichment,omitempty"`

	// Ranking scores, populated by the ranking engine
	PerformanceScore      *float64 `json:"performance_score,omitempty"`
	DrawdownScore         *float64 `json:"drawdown_score,omitempty"`
	ReboundPotentialScore *float64 `json:"rebound_potential_score,omitempty"`
	MomentumScore         *float64 `json:"momentum_score,omitempty"`
	TotalScore            *float64 `json:"total_score,omitempty"`

	RecoveryPotential75 string   `json:"recovery_potential_75,omitempty"`
	DrawdownPercentage  *float64 `json:"drawdown_percentage,omitempty"`
}

// HasSource reports whether src already contributed to this record
func (r *Record) HasSource(src DataSource) bool {
	for _, s := range r.DataSources {
		if s == src {
			return true
		}
	}
	return false
}

// AddSource records src as a contributor, without duplicates
func (r *Record) AddSource(src DataSource) {
	if src != "" && !r.HasSource(src) {
		r.DataSources = append(r.DataSources, src)
	}
}

// Change returns the percent change for a period, if known
func (r *Record) Change(period string) (float64, bool) {
	if r.PercentChange == nil {
		return 0, false
	}
	v, ok := r.PercentChange[period]
	return v, ok
}

// Float returns a pointer to v. Convenience for optional fields.
func Float(v float64) *float64 { return &v }

// FloatValue dereferences p, returning 0 when nil
func FloatValue(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
