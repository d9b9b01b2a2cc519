package contracts

import "time"

// MergeRecord folds incoming into current under the priority merge rule and
// returns the merged document. current may be nil (first sighting).
//
// Rules:
//   - The record from the lowest-numbered (most authoritative) source becomes
//     primary; non-null fields of the superseded record survive as gap fill.
//   - Volatile fields (price, 24h volume, 1h/24h change) always take the most
//     recently observed value, regardless of priority.
//   - Stable fields (name, supplies, yearly extrema, historical prices) fill
//     only when previously absent.
//   - Contributing sources are unioned, never duplicated.
//
// ⭐ SSOT: 우선순위 병합 규칙은 이 함수에서만
func MergeRecord(current, incoming *Record, now time.Time) *Record {
	if current == nil {
		out := *incoming
		out.AddSource(out.PrimarySource)
		out.LastUpdated = now
		return &out
	}

	var out Record
	if incoming.SourcePriority <= current.SourcePriority {
		// Incoming is at least as authoritative: it becomes primary and its
		// fields win; the superseded record fills the gaps.
		out = *incoming
		fillAbsent(&out, current)
	} else {
		out = *current
		fillStableAbsent(&out, incoming)
	}

	// Volatile fields: latest observation wins when present
	if incoming.PriceUSD != nil {
		out.PriceUSD = incoming.PriceUSD
	}
	if incoming.Volume24hUSD != nil {
		out.Volume24hUSD = incoming.Volume24hUSD
	}
	out.PercentChange = mergeChanges(current.PercentChange, incoming.PercentChange)

	// Union provenance from both sides
	out.DataSources = nil
	for _, src := range current.DataSources {
		out.AddSource(src)
	}
	for _, src := range incoming.DataSources {
		out.AddSource(src)
	}
	out.AddSource(current.PrimarySource)
	out.AddSource(incoming.PrimarySource)

	out.FieldTimestamps = mergeTimestamps(current.FieldTimestamps, incoming.FieldTimestamps)
	out.LastUpdated = now

	if out.LastEnrichment == nil {
		out.LastEnrichment = current.LastEnrichment
	}

	// Operational counters accumulate on the stored document
	out.APICallCount = current.APICallCount + 1
	out.ErrorCount = current.ErrorCount

	return &out
}

// fillAbsent copies every non-null field of from into r where r lacks one
func fillAbsent(r, from *Record) {
	if r.Name == "" {
		r.Name = from.Name
	}
	if r.PriceUSD == nil {
		r.PriceUSD = from.PriceUSD
	}
	if r.MarketCapUSD == nil {
		r.MarketCapUSD = from.MarketCapUSD
	}
	if r.Volume24hUSD == nil {
		r.Volume24hUSD = from.Volume24hUSD
	}
	fillStableAbsent(r, from)
}

// fillStableAbsent copies only the stable fields of from into r when absent
func fillStableAbsent(r, from *Record) {
	if r.Name == "" {
		r.Name = from.Name
	}
	if r.CirculatingSupply == nil {
		r.CirculatingSupply = from.CirculatingSupply
	}
	if r.TotalSupply == nil {
		r.TotalSupply = from.TotalSupply
	}
	if r.MaxSupply == nil {
		r.MaxSupply = from.MaxSupply
	}
	if r.MaxPrice1Y == nil {
		r.MaxPrice1Y = from.MaxPrice1Y
		r.MaxPrice1YDate = from.MaxPrice1YDate
	}
	if r.MinPrice1Y == nil {
		r.MinPrice1Y = from.MinPrice1Y
		r.MinPrice1YDate = from.MinPrice1YDate
	}
	if len(r.HistoricalPrices) == 0 {
		r.HistoricalPrices = from.HistoricalPrices
	}
}

// mergeChanges overlays incoming percent changes on top of current ones.
// Short windows (1h, 24h) are volatile and always take the incoming value;
// longer windows fill only when absent.
func mergeChanges(current, incoming map[string]float64) map[string]float64 {
	if len(current) == 0 && len(incoming) == 0 {
		return nil
	}

	out := make(map[string]float64, len(current)+len(incoming))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range incoming {
		if k == "1h" || k == "24h" {
			out[k] = v
			continue
		}
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

// mergeTimestamps keeps the newest timestamp per field
func mergeTimestamps(current, incoming map[string]time.Time) map[string]time.Time {
	if len(current) == 0 && len(incoming) == 0 {
		return nil
	}

	out := make(map[string]time.Time, len(current)+len(incoming))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range incoming {
		if existing, ok := out[k]; !ok || v.After(existing) {
			out[k] = v
		}
	}
	return out
}
