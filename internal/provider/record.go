package provider

import (
	"time"

	"github.com/wonny/rebound/backend/internal/contracts"
)

// RecordFromRaw lifts a provider record into the canonical shape, stamping
// field timestamps for everything the provider filled.
func RecordFromRaw(raw *contracts.RawRecord) *contracts.Record {
	r := &contracts.Record{
		Symbol:            raw.Symbol,
		Name:              raw.Name,
		PriceUSD:          raw.PriceUSD,
		MarketCapUSD:      raw.MarketCapUSD,
		Volume24hUSD:      raw.Volume24hUSD,
		CirculatingSupply: raw.CirculatingSupply,
		TotalSupply:       raw.TotalSupply,
		MaxSupply:         raw.MaxSupply,
		PercentChange:     raw.PercentChange,
		HistoricalPrices:  raw.HistoricalPrices,
		MaxPrice1Y:        raw.MaxPrice1Y,
		MinPrice1Y:        raw.MinPrice1Y,
		PrimarySource:     raw.Source,
		SourcePriority:    Priority(raw.Source),
		DataSources:       []contracts.DataSource{raw.Source},
		LastUpdated:       raw.FetchedAt,
	}

	ts := raw.FetchedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	if raw.PriceUSD != nil {
		r.TouchField(contracts.FieldPrice, ts)
	}
	if raw.MarketCapUSD != nil {
		r.TouchField(contracts.FieldMarketCap, ts)
	}
	if raw.Volume24hUSD != nil {
		r.TouchField(contracts.FieldVolume24h, ts)
	}
	if _, ok := raw.PercentChange["24h"]; ok {
		r.TouchField(contracts.FieldPercentChange24h, ts)
	}
	if len(raw.HistoricalPrices) > 0 {
		r.TouchField(contracts.FieldHistoricalPrices, ts)
	}
	if raw.MaxPrice1Y != nil {
		r.TouchField(contracts.FieldMaxPrice1Y, ts)
	}
	if raw.MinPrice1Y != nil {
		r.TouchField(contracts.FieldMinPrice1Y, ts)
	}

	return r
}

// RawHasField reports whether the raw record carries a value for the named
// canonical field
func RawHasField(raw *contracts.RawRecord, field string) bool {
	switch field {
	case contracts.FieldPrice:
		return raw.PriceUSD != nil
	case contracts.FieldMarketCap:
		return raw.MarketCapUSD != nil
	case contracts.FieldVolume24h:
		return raw.Volume24hUSD != nil
	case contracts.FieldPercentChange24h:
		_, ok := raw.PercentChange["24h"]
		return ok
	case contracts.FieldHistoricalPrices:
		return len(raw.HistoricalPrices) > 0
	case contracts.FieldMaxPrice1Y:
		return raw.MaxPrice1Y != nil
	case contracts.FieldMinPrice1Y:
		return raw.MinPrice1Y != nil
	}
	return false
}
