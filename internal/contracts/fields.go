package contracts

import "time"

// Canonical record field names, used for per-field timestamps, freshness
// gating and enrichment task targeting
// ⭐ SSOT: 필드 이름은 여기서만 정의
const (
	FieldPrice            = "price"
	FieldMarketCap        = "market_cap"
	FieldVolume24h        = "volume_24h"
	FieldPercentChange24h = "percent_change_24h"
	FieldHistoricalPrices = "historical_prices"
	FieldMaxPrice1Y       = "max_price_1y"
	FieldMinPrice1Y       = "min_price_1y"
)

// FieldMaxAge is how old each field may get before it counts as stale.
// Volatile fields expire fast, slow-moving ones last longer.
var FieldMaxAge = map[string]time.Duration{
	FieldPrice:            5 * time.Minute,
	FieldPercentChange24h: 15 * time.Minute,
	FieldMarketCap:        30 * time.Minute,
	FieldVolume24h:        30 * time.Minute,
	FieldHistoricalPrices: 2 * time.Hour,
	FieldMaxPrice1Y:       24 * time.Hour,
	FieldMinPrice1Y:       24 * time.Hour,
}

// FieldFresh reports whether the record's named field was fetched within its
// max age as of now. Fields without a timestamp are never fresh; fields
// without a configured max age never expire.
func (r *Record) FieldFresh(field string, now time.Time) bool {
	if r.FieldTimestamps == nil {
		return false
	}
	ts, ok := r.FieldTimestamps[field]
	if !ok {
		return false
	}
	maxAge, ok := FieldMaxAge[field]
	if !ok {
		return true
	}
	return now.Sub(ts) <= maxAge
}

// TouchField stamps the named field as fetched at ts
func (r *Record) TouchField(field string, ts time.Time) {
	if r.FieldTimestamps == nil {
		r.FieldTimestamps = make(map[string]time.Time)
	}
	r.FieldTimestamps[field] = ts
}

// MissingFields returns the canonical fields the record has no value for,
// in a stable order.
func (r *Record) MissingFields() []string {
	var missing []string
	if r.PriceUSD == nil {
		missing = append(missing, FieldPrice)
	}
	if r.MarketCapUSD == nil {
		missing = append(missing, FieldMarketCap)
	}
	if r.Volume24hUSD == nil {
		missing = append(missing, FieldVolume24h)
	}
	if _, ok := r.Change("24h"); !ok {
		missing = append(missing, FieldPercentChange24h)
	}
	if len(r.HistoricalPrices) == 0 {
		missing = append(missing, FieldHistoricalPrices)
	}
	if r.MaxPrice1Y == nil {
		missing = append(missing, FieldMaxPrice1Y)
	}
	if r.MinPrice1Y == nil {
		missing = append(missing, FieldMinPrice1Y)
	}
	return missing
}
