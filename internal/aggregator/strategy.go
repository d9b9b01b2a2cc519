package aggregator

import (
	"github.com/wonny/rebound/backend/internal/contracts"
)

// Strategy names a provider subset and quota for one pull size. Small pulls
// lean on lightweight free sources; large authoritative pulls bring in the
// premium ones.
type Strategy struct {
	Name    string
	Sources []contracts.DataSource
}

// Size tier thresholds
const (
	smallMax  = 150
	mediumMax = 700
	largeMax  = 2000
)

var (
	strategySmall = Strategy{
		Name: "small",
		Sources: []contracts.DataSource{
			contracts.SourceCoinPaprika,
			contracts.SourceFallback,
		},
	}
	strategyMedium = Strategy{
		Name: "medium",
		Sources: []contracts.DataSource{
			contracts.SourceCoinPaprika,
			contracts.SourceBinance,
			contracts.SourceFallback,
		},
	}
	strategyLarge = Strategy{
		Name: "large",
		Sources: []contracts.DataSource{
			contracts.SourceCoinMarketCap,
			contracts.SourceCoinPaprika,
			contracts.SourceBinance,
			contracts.SourceFallback,
		},
	}
	strategyXLarge = Strategy{
		Name: "xlarge",
		Sources: []contracts.DataSource{
			contracts.SourceCoinMarketCap,
			contracts.SourceCryptoCompare,
			contracts.SourceCoinAPI,
			contracts.SourceCoinPaprika,
			contracts.SourceBitfinex,
			contracts.SourceBinance,
			contracts.SourceYahoo,
			contracts.SourceFallback,
		},
	}
)

// SelectStrategy picks the fetch strategy for a size hint
// ⭐ SSOT: 전략 선택은 이 함수에서만
func SelectStrategy(sizeHint int) Strategy {
	switch {
	case sizeHint <= smallMax:
		return strategySmall
	case sizeHint <= mediumMax:
		return strategyMedium
	case sizeHint <= largeMax:
		return strategyLarge
	default:
		return strategyXLarge
	}
}
