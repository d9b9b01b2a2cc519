package ranking

import (
	"fmt"
	"math"

	"github.com/wonny/rebound/backend/internal/contracts"
)

// Composite weights. They intentionally sum to 1.15, matching the source
// system's tuning; rebound potential dominates.
const (
	weightPerformance = 0.15
	weightDrawdown    = 0.15
	weightRebound     = 0.60
	weightMomentum    = 0.25
)

// Per-period flattening multipliers: long horizons get compressed so a
// single lucky year does not drown the short-term signal.
var periodMultipliers = map[string]float64{
	"1h":   1.0,
	"24h":  1.0,
	"7d":   0.95,
	"30d":  0.9,
	"90d":  0.8,
	"180d": 0.7,
	"270d": 0.65,
	"365d": 0.6,
}

// A window whose change magnitude exceeds this counts as volatile and gets
// its extrapolation dampened
const volatileChangeThreshold = 30.0

// Score computes every component score for one record and period, writes
// them onto the record and returns the total. Records without a positive
// price must be excluded by the caller before scoring.
func Score(r *contracts.Record, period string) float64 {
	perf := performanceScore(r, period)
	dd := drawdownScore(r)
	rebound := reboundScore(r)
	momentum := momentumScore(r)

	total := weightPerformance*perf +
		weightDrawdown*dd +
		weightRebound*rebound +
		weightMomentum*momentum

	r.PerformanceScore = contracts.Float(perf)
	r.DrawdownScore = contracts.Float(dd)
	r.ReboundPotentialScore = contracts.Float(rebound)
	r.MomentumScore = contracts.Float(momentum)
	r.TotalScore = contracts.Float(total)

	r.DrawdownPercentage = contracts.Float(drawdownPercent(r))
	r.RecoveryPotential75 = recoveryPotential75(r)

	return total
}

// performanceScore maps the period's percent change onto 0..100, centered
// at 50 for a flat market.
func performanceScore(r *contracts.Record, period string) float64 {
	change, ok := periodChange(r, period)
	if !ok {
		return 50 // unknown performance is neutral
	}
	return clamp(50 + change/2)
}

// periodChange returns the percent change for period, extrapolating from the
// nearest available window when the period itself is missing. A directly
// reported change is used as-is; only extrapolations are scaled by the ratio
// of window lengths, sqrt-dampened for volatile records and flattened by the
// period multiplier.
func periodChange(r *contracts.Record, period string) (float64, bool) {
	targetHours, ok := contracts.PeriodHours[period]
	if !ok {
		return 0, false
	}

	if change, ok := r.Change(period); ok {
		return change, true
	}

	// Nearest available window by length ratio
	bestPeriod := ""
	bestDistance := math.MaxFloat64
	for _, p := range contracts.Periods {
		if _, ok := r.Change(p); !ok {
			continue
		}
		ratio := targetHours / contracts.PeriodHours[p]
		distance := math.Abs(math.Log(ratio))
		if distance < bestDistance {
			bestDistance = distance
			bestPeriod = p
		}
	}
	if bestPeriod == "" {
		return 0, false
	}

	change, _ := r.Change(bestPeriod)
	ratio := targetHours / contracts.PeriodHours[bestPeriod]

	scale := ratio
	if math.Abs(change) > volatileChangeThreshold {
		scale = math.Sqrt(ratio)
	}

	return change * scale * periodMultipliers[period], true
}

// drawdownScore rewards records trading near their yearly high. Deep
// drawdowns bottom out at a floor instead of zero.
func drawdownScore(r *contracts.Record) float64 {
	dd, ok := drawdown(r)
	if !ok {
		return 50
	}

	score := 100 * (1 - dd)
	if score < 10 {
		score = 10
	}
	return clamp(score)
}

// reboundScore is the dominant factor: distance below the yearly high,
// scaled up for small caps and down for giants.
func reboundScore(r *contracts.Record) float64 {
	dd, ok := drawdown(r)
	if !ok {
		return 0
	}

	base := dd * 125
	if base > 100 {
		base = 100
	}

	return clamp(base * capSizeFactor(r))
}

// capSizeFactor boosts small caps and dampens megacaps, bounded [0.8, 1.2]
func capSizeFactor(r *contracts.Record) float64 {
	if r.MarketCapUSD == nil {
		return 1.0
	}
	mcap := *r.MarketCapUSD
	switch {
	case mcap <= 0:
		return 1.0
	case mcap < 100e6:
		return 1.2
	case mcap < 1e9:
		return 1.1
	case mcap < 10e9:
		return 1.0
	case mcap < 100e9:
		return 0.9
	default:
		return 0.8
	}
}

// momentumScore compares the short-term daily rate against the medium-term
// one, amplified or dampened by relative volume.
func momentumScore(r *contracts.Record) float64 {
	change24h, ok24 := r.Change("24h")
	change7d, ok7 := r.Change("7d")
	if !ok24 && !ok7 {
		return 50
	}

	var slope float64
	switch {
	case ok24 && ok7:
		slope = change24h - change7d/7
	case ok24:
		slope = change24h
	default:
		slope = change7d / 7
	}

	score := 50 + slope*5

	return clamp(score * volumeFactor(r))
}

// volumeFactor scales momentum by the volume to market cap ratio
func volumeFactor(r *contracts.Record) float64 {
	if r.Volume24hUSD == nil || r.MarketCapUSD == nil || *r.MarketCapUSD <= 0 {
		return 1.0
	}
	ratio := *r.Volume24hUSD / *r.MarketCapUSD
	switch {
	case ratio > 0.1:
		return 1.2
	case ratio > 0.05:
		return 1.1
	case ratio < 0.01:
		return 0.9
	default:
		return 1.0
	}
}

// drawdown returns the fractional distance below the yearly high
func drawdown(r *contracts.Record) (float64, bool) {
	if r.PriceUSD == nil || r.MaxPrice1Y == nil || *r.MaxPrice1Y <= 0 {
		return 0, false
	}
	dd := (*r.MaxPrice1Y - *r.PriceUSD) / *r.MaxPrice1Y
	if dd < 0 {
		dd = 0
	}
	if dd > 1 {
		dd = 1
	}
	return dd, true
}

// drawdownPercent is the drawdown as a percentage, 0 when unknown
func drawdownPercent(r *contracts.Record) float64 {
	dd, ok := drawdown(r)
	if !ok {
		return 0
	}
	return dd * 100
}

// recoveryPotential75 is the gain needed to reach 75% of the yearly high,
// formatted as a percentage of the current price.
func recoveryPotential75(r *contracts.Record) string {
	if r.PriceUSD == nil || r.MaxPrice1Y == nil || *r.PriceUSD <= 0 || *r.MaxPrice1Y <= 0 {
		return ""
	}

	target := 0.75 * *r.MaxPrice1Y
	if *r.PriceUSD >= target {
		return "0.0%"
	}

	gain := (target - *r.PriceUSD) / *r.PriceUSD * 100
	return fmt.Sprintf("%.1f%%", gain)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
