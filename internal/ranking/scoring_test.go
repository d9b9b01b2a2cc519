package ranking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/rebound/backend/internal/contracts"
)

func TestReboundScoreBands(t *testing.T) {
	// Trading at the yearly high: no drawdown, nothing to rebound from
	atHigh := &contracts.Record{
		Symbol:     "PEAK",
		PriceUSD:   contracts.Float(100),
		MaxPrice1Y: contracts.Float(100),
	}
	assert.Equal(t, 0.0, reboundScore(atHigh))

	// 80% below the yearly high lands in the maximum band
	crashed := &contracts.Record{
		Symbol:     "DIP",
		PriceUSD:   contracts.Float(20),
		MaxPrice1Y: contracts.Float(100),
	}
	assert.Equal(t, 100.0, reboundScore(crashed))

	// Unknown yearly high yields no rebound signal at all
	unknown := &contracts.Record{
		Symbol:   "MYST",
		PriceUSD: contracts.Float(20),
	}
	assert.Equal(t, 0.0, reboundScore(unknown))
}

func TestReboundScoreCapSizeFactor(t *testing.T) {
	tests := []struct {
		name      string
		marketCap *float64
		want      float64
	}{
		{"unknown cap is neutral", nil, 1.0},
		{"micro cap boosted", contracts.Float(50e6), 1.2},
		{"small cap boosted", contracts.Float(500e6), 1.1},
		{"mid cap neutral", contracts.Float(5e9), 1.0},
		{"large cap dampened", contracts.Float(50e9), 0.9},
		{"mega cap dampened", contracts.Float(500e9), 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &contracts.Record{MarketCapUSD: tt.marketCap}
			assert.Equal(t, tt.want, capSizeFactor(r))
		})
	}

	// A moderate drawdown shows the factor end to end: dd=0.4, base 50
	r := &contracts.Record{
		PriceUSD:     contracts.Float(60),
		MaxPrice1Y:   contracts.Float(100),
		MarketCapUSD: contracts.Float(50e6),
	}
	assert.InDelta(t, 60.0, reboundScore(r), 0.001)
}

func TestDrawdownScore(t *testing.T) {
	atHigh := &contracts.Record{
		PriceUSD:   contracts.Float(100),
		MaxPrice1Y: contracts.Float(100),
	}
	assert.Equal(t, 100.0, drawdownScore(atHigh))

	// Deep drawdowns bottom out at the floor, never zero
	deep := &contracts.Record{
		PriceUSD:   contracts.Float(5),
		MaxPrice1Y: contracts.Float(100),
	}
	assert.Equal(t, 10.0, drawdownScore(deep))

	noHigh := &contracts.Record{PriceUSD: contracts.Float(100)}
	assert.Equal(t, 50.0, drawdownScore(noHigh))
}

func TestPerformanceScoreDirect(t *testing.T) {
	r := &contracts.Record{
		PercentChange: map[string]float64{"24h": 20},
	}
	assert.InDelta(t, 60.0, performanceScore(r, "24h"), 0.001)

	// No change data at all is neutral
	empty := &contracts.Record{}
	assert.Equal(t, 50.0, performanceScore(empty, "24h"))
}

func TestPeriodChangeDirectIsNotFlattened(t *testing.T) {
	// A directly reported long-horizon change is real data and keeps its
	// magnitude; flattening applies to extrapolations only
	r := &contracts.Record{
		PercentChange: map[string]float64{"365d": 60},
	}

	change, ok := periodChange(r, "365d")
	assert.True(t, ok)
	assert.InDelta(t, 60.0, change, 0.001)
}

func TestPeriodChangeExtrapolation(t *testing.T) {
	// Only a 24h window: a 7d request extrapolates by the length ratio
	r := &contracts.Record{
		PercentChange: map[string]float64{"24h": 10},
	}

	change, ok := periodChange(r, "7d")
	assert.True(t, ok)
	// 10 * (168/24) * 0.95
	assert.InDelta(t, 66.5, change, 0.001)
}

func TestPeriodChangeVolatileDampening(t *testing.T) {
	r := &contracts.Record{
		PercentChange: map[string]float64{"24h": 40},
	}

	change, ok := periodChange(r, "7d")
	assert.True(t, ok)
	// |40| > 30: sqrt(7) instead of 7, then the 7d multiplier
	want := 40 * math.Sqrt(168.0/24.0) * 0.95
	assert.InDelta(t, want, change, 0.001)
}

func TestPeriodChangePicksNearestWindow(t *testing.T) {
	// 30d requested, 7d and 365d known: 7d is closer in log space
	r := &contracts.Record{
		PercentChange: map[string]float64{"7d": 10, "365d": 10},
	}

	change, ok := periodChange(r, "30d")
	assert.True(t, ok)
	// 10 * (720/168) * 0.9
	assert.InDelta(t, 10*(720.0/168.0)*0.9, change, 0.001)
}

func TestMomentumScore(t *testing.T) {
	// Daily rate matches the weekly average: slope 1, mild positive
	r := &contracts.Record{
		PercentChange: map[string]float64{"24h": 2, "7d": 7},
	}
	assert.InDelta(t, 55.0, momentumScore(r), 0.001)

	// High relative volume amplifies the signal
	hot := &contracts.Record{
		PercentChange: map[string]float64{"24h": 2, "7d": 7},
		Volume24hUSD:  contracts.Float(200e6),
		MarketCapUSD:  contracts.Float(1e9),
	}
	assert.InDelta(t, 66.0, momentumScore(hot), 0.001)

	// No windows at all is neutral
	empty := &contracts.Record{}
	assert.Equal(t, 50.0, momentumScore(empty))
}

func TestRecoveryPotential75(t *testing.T) {
	// Needs (75-20)/20 = 275% to reach 75% of the high
	crashed := &contracts.Record{
		PriceUSD:   contracts.Float(20),
		MaxPrice1Y: contracts.Float(100),
	}
	assert.Equal(t, "275.0%", recoveryPotential75(crashed))

	// Already at or above the 75% line
	recovered := &contracts.Record{
		PriceUSD:   contracts.Float(80),
		MaxPrice1Y: contracts.Float(100),
	}
	assert.Equal(t, "0.0%", recoveryPotential75(recovered))

	unknown := &contracts.Record{PriceUSD: contracts.Float(80)}
	assert.Equal(t, "", recoveryPotential75(unknown))
}

func TestScoreWritesComponents(t *testing.T) {
	r := &contracts.Record{
		Symbol:        "BTC",
		PriceUSD:      contracts.Float(20),
		MaxPrice1Y:    contracts.Float(100),
		MarketCapUSD:  contracts.Float(5e9),
		PercentChange: map[string]float64{"24h": 4, "7d": 14},
	}

	total := Score(r, "24h")

	assert.NotNil(t, r.PerformanceScore)
	assert.NotNil(t, r.DrawdownScore)
	assert.NotNil(t, r.ReboundPotentialScore)
	assert.NotNil(t, r.MomentumScore)
	assert.NotNil(t, r.TotalScore)
	assert.Equal(t, total, *r.TotalScore)

	assert.InDelta(t, 80.0, *r.DrawdownPercentage, 0.001)
	assert.Equal(t, "275.0%", r.RecoveryPotential75)

	want := weightPerformance**r.PerformanceScore +
		weightDrawdown**r.DrawdownScore +
		weightRebound**r.ReboundPotentialScore +
		weightMomentum**r.MomentumScore
	assert.InDelta(t, want, total, 0.0001)
}

func TestDeepDrawdownOutranksNoDrawdown(t *testing.T) {
	crashed := &contracts.Record{
		Symbol:     "DIP",
		PriceUSD:   contracts.Float(20),
		MaxPrice1Y: contracts.Float(100),
	}
	atHigh := &contracts.Record{
		Symbol:     "PEAK",
		PriceUSD:   contracts.Float(100),
		MaxPrice1Y: contracts.Float(100),
	}

	assert.Greater(t, Score(crashed, "24h"), Score(atHigh, "24h"))
}
