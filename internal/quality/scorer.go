package quality

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// Fixed sub-score weights. They sum to 1.0.
const (
	weightCompleteness = 0.30
	weightFreshness    = 0.25
	weightConsistency  = 0.25
	weightAccuracy     = 0.20
)

// Hard validation bounds. Candidates outside these are garbage, not data.
const (
	minPriceUSD    = 1e-7
	maxPriceUSD    = 1e6
	minChange24h   = -99.9
	maxChange24h   = 10000
	maxMcapPerUnit = 1e13 // market cap / price, roughly max plausible supply
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// reliableSources are the authoritative providers; their presence in a
// record's source set earns an accuracy bonus.
var reliableSources = map[contracts.DataSource]bool{
	contracts.SourceCoinMarketCap: true,
	contracts.SourceCryptoCompare: true,
	contracts.SourceCoinAPI:       true,
}

// Breakdown carries the sub-scores behind a quality score
type Breakdown struct {
	Completeness float64
	Freshness    float64
	Consistency  float64
	Accuracy     float64
	Total        float64
	Level        contracts.QualityLevel
}

// Scorer validates candidate records and computes their quality score
// ⭐ SSOT: 품질 점수 계산은 여기서만
type Scorer struct {
	log *logger.Logger
}

// NewScorer creates a quality scorer
func NewScorer(log *logger.Logger) *Scorer {
	return &Scorer{
		log: log.WithField("module", "quality"),
	}
}

// Validate runs hard validation. A non-nil error means the candidate must be
// rejected outright and never persisted.
func (s *Scorer) Validate(r *contracts.Record) error {
	if !symbolPattern.MatchString(r.Symbol) {
		return fmt.Errorf("%w: invalid symbol %q", contracts.ErrRejected, r.Symbol)
	}

	if r.PriceUSD != nil {
		p := *r.PriceUSD
		if p < minPriceUSD || p > maxPriceUSD {
			return fmt.Errorf("%w: price %g out of range", contracts.ErrRejected, p)
		}
	}

	if c, ok := r.Change("24h"); ok {
		if c < minChange24h || c > maxChange24h {
			return fmt.Errorf("%w: 24h change %g out of range", contracts.ErrRejected, c)
		}
	}

	if r.PriceUSD != nil && r.MarketCapUSD != nil && *r.PriceUSD > 0 {
		if *r.MarketCapUSD / *r.PriceUSD > maxMcapPerUnit {
			return fmt.Errorf("%w: market cap %g implausible for price %g",
				contracts.ErrRejected, *r.MarketCapUSD, *r.PriceUSD)
		}
	}

	return nil
}

// Score computes the weighted quality score and its breakdown as of now.
// It does not mutate the record; use Apply for that.
func (s *Scorer) Score(r *contracts.Record, now time.Time) Breakdown {
	b := Breakdown{
		Completeness: s.completeness(r),
		Freshness:    s.freshness(r, now),
		Consistency:  s.consistency(r),
		Accuracy:     s.accuracy(r),
	}

	b.Total = clamp(weightCompleteness*b.Completeness +
		weightFreshness*b.Freshness +
		weightConsistency*b.Consistency +
		weightAccuracy*b.Accuracy)
	b.Level = contracts.QualityLevelForScore(b.Total)

	return b
}

// Apply scores the record and writes the result onto it
func (s *Scorer) Apply(r *contracts.Record, now time.Time) Breakdown {
	b := s.Score(r, now)

	r.QualityScore = b.Total
	r.DataQuality = b.Level
	r.CompletenessScore = b.Completeness
	r.FreshnessScore = b.Freshness
	r.ConsistencyScore = b.Consistency
	r.AccuracyScore = b.Accuracy
	r.NeedsEnrichment = b.Total < 60 || len(r.MissingFields()) > 0

	return b
}

// completeness is a weighted fill rate. Essential fields count double.
func (s *Scorer) completeness(r *contracts.Record) float64 {
	type field struct {
		filled bool
		weight float64
	}

	_, has24h := r.Change("24h")
	_, has7d := r.Change("7d")
	_, has30d := r.Change("30d")

	fields := []field{
		// Essential
		{r.Symbol != "", 2},
		{r.Name != "", 2},
		{r.PriceUSD != nil, 2},
		{r.MarketCapUSD != nil, 2},
		{has24h, 2},
		// Important
		{r.Volume24hUSD != nil, 1},
		{has7d, 1},
		{has30d, 1},
		{r.MaxPrice1Y != nil, 1},
		{r.MinPrice1Y != nil, 1},
	}

	var filled, total float64
	for _, f := range fields {
		total += f.weight
		if f.filled {
			filled += f.weight
		}
	}

	return clamp(filled / total * 100)
}

// freshness is a step function of the age of the most recent field timestamp
func (s *Scorer) freshness(r *contracts.Record, now time.Time) float64 {
	newest := r.LastUpdated
	for _, ts := range r.FieldTimestamps {
		if ts.After(newest) {
			newest = ts
		}
	}
	if newest.IsZero() {
		return 5
	}

	age := now.Sub(newest)
	switch {
	case age <= 5*time.Minute:
		return 100
	case age <= 30*time.Minute:
		return 90
	case age <= time.Hour:
		return 70
	case age <= 4*time.Hour:
		return 50
	case age <= 24*time.Hour:
		return 25
	default:
		return 5
	}
}

// consistency starts at 100 and is penalized for internal contradictions
func (s *Scorer) consistency(r *contracts.Record) float64 {
	score := 100.0

	// Market cap should roughly equal price * circulating supply
	if r.PriceUSD != nil && r.MarketCapUSD != nil && r.CirculatingSupply != nil &&
		*r.MarketCapUSD > 0 && *r.CirculatingSupply > 0 {
		implied := *r.PriceUSD * *r.CirculatingSupply
		if math.Abs(implied-*r.MarketCapUSD) / *r.MarketCapUSD > 0.10 {
			score -= 20
		}
	}

	// Change magnitude outliers
	var changes []float64
	outlier := false
	for _, c := range r.PercentChange {
		changes = append(changes, c)
		if math.Abs(c) > 1000 {
			outlier = true
		}
	}
	if outlier {
		score -= 15
	}
	if len(changes) >= 3 && stddev(changes) > 500 {
		score -= 10
	}

	// Price should respect its own recorded yearly bounds
	if r.PriceUSD != nil {
		if r.MaxPrice1Y != nil && *r.PriceUSD > *r.MaxPrice1Y*1.1 {
			score -= 10
		}
		if r.MinPrice1Y != nil && *r.MinPrice1Y > 0 && *r.PriceUSD < *r.MinPrice1Y*0.9 {
			score -= 10
		}
	}

	if score < 0 {
		score = 0
	}
	return score
}

// accuracy starts at 100, rewarded for corroboration and penalized for a
// noisy error history
func (s *Scorer) accuracy(r *contracts.Record) float64 {
	score := 100.0

	switch {
	case len(r.DataSources) >= 2:
		score += 10
	case len(r.DataSources) == 0:
		score -= 20
	}

	for _, src := range r.DataSources {
		if reliableSources[src] {
			score += 5
			break
		}
	}

	if r.ErrorCount > 3 {
		score -= float64(r.ErrorCount) * 5
	}

	return clamp(score)
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
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
