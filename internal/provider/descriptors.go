package provider

import (
	"time"

	"github.com/wonny/rebound/backend/internal/contracts"
)

// Descriptors is the static provider table: merge priority (lower = more
// authoritative), per-pull fetch limit, the fields each source is good for
// and its baseline call spacing.
// ⭐ SSOT: 프로바이더 메타데이터는 여기서만
var Descriptors = map[contracts.DataSource]contracts.ProviderDescriptor{
	contracts.SourceCoinMarketCap: {
		Source:     contracts.SourceCoinMarketCap,
		Priority:   1,
		FetchLimit: 5000,
		PreferredFields: []string{
			contracts.FieldPrice, contracts.FieldMarketCap,
			contracts.FieldVolume24h, contracts.FieldPercentChange24h,
		},
		MinInterval: 2 * time.Second,
	},
	contracts.SourceCryptoCompare: {
		Source:     contracts.SourceCryptoCompare,
		Priority:   2,
		FetchLimit: 100,
		PreferredFields: []string{
			contracts.FieldPrice, contracts.FieldHistoricalPrices,
			contracts.FieldMaxPrice1Y, contracts.FieldMinPrice1Y,
		},
		MinInterval: time.Second,
	},
	contracts.SourceCoinAPI: {
		Source:          contracts.SourceCoinAPI,
		Priority:        3,
		FetchLimit:      1000,
		PreferredFields: []string{contracts.FieldPrice, contracts.FieldVolume24h},
		MinInterval:     time.Second,
	},
	contracts.SourceCoinPaprika: {
		Source:     contracts.SourceCoinPaprika,
		Priority:   4,
		FetchLimit: 2500,
		PreferredFields: []string{
			contracts.FieldPrice, contracts.FieldMarketCap,
			contracts.FieldVolume24h, contracts.FieldPercentChange24h,
			contracts.FieldMaxPrice1Y, contracts.FieldMinPrice1Y,
		},
		MinInterval: 1500 * time.Millisecond,
	},
	contracts.SourceBitfinex: {
		Source:          contracts.SourceBitfinex,
		Priority:        5,
		FetchLimit:      250,
		PreferredFields: []string{contracts.FieldPrice, contracts.FieldVolume24h},
		MinInterval:     time.Second,
	},
	contracts.SourceBinance: {
		Source:          contracts.SourceBinance,
		Priority:        6,
		FetchLimit:      2000,
		PreferredFields: []string{contracts.FieldPrice, contracts.FieldPercentChange24h, contracts.FieldVolume24h},
		MinInterval:     100 * time.Millisecond,
	},
	contracts.SourceYahoo: {
		Source:          contracts.SourceYahoo,
		Priority:        7,
		FetchLimit:      200,
		PreferredFields: []string{contracts.FieldHistoricalPrices, contracts.FieldMaxPrice1Y, contracts.FieldMinPrice1Y},
		MinInterval:     500 * time.Millisecond,
	},
	contracts.SourceFallback: {
		Source:     contracts.SourceFallback,
		Priority:   8,
		FetchLimit: 250,
		PreferredFields: []string{
			contracts.FieldPrice, contracts.FieldMarketCap,
			contracts.FieldVolume24h, contracts.FieldPercentChange24h,
			contracts.FieldMaxPrice1Y, contracts.FieldMinPrice1Y,
		},
		MinInterval: time.Second,
	},
}

// Priority returns the merge priority for a source. Unknown sources sort last.
func Priority(source contracts.DataSource) int {
	if d, ok := Descriptors[source]; ok {
		return d.Priority
	}
	return 99
}

// MinInterval returns the baseline call spacing for a source
func MinInterval(source contracts.DataSource) time.Duration {
	if d, ok := Descriptors[source]; ok {
		return d.MinInterval
	}
	return time.Second
}

// PreferredSourcesFor returns the sources that are good at producing the
// given field, most authoritative first.
func PreferredSourcesFor(field string) []contracts.DataSource {
	var out []contracts.DataSource
	for _, src := range byPriority() {
		d := Descriptors[src]
		for _, f := range d.PreferredFields {
			if f == field {
				out = append(out, src)
				break
			}
		}
	}
	return out
}

// byPriority returns every known source ordered by ascending priority
func byPriority() []contracts.DataSource {
	out := make([]contracts.DataSource, 0, len(Descriptors))
	for src := range Descriptors {
		out = append(out, src)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && Priority(out[j]) < Priority(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
