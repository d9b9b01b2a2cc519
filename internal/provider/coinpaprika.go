package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/pkg/config"
	"github.com/wonny/rebound/backend/pkg/httputil"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// CoinPaprika is the keyless bulk ticker source
// ⭐ SSOT: CoinPaprika API 호출은 이 클라이언트에서만
type CoinPaprika struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewCoinPaprika creates a CoinPaprika provider
func NewCoinPaprika(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *CoinPaprika {
	return &CoinPaprika{
		httpClient: httpClient,
		logger:     log.WithField("provider", "coinpaprika"),
		baseURL:    cfg.Providers.CoinPaprikaBaseURL,
	}
}

// Source returns the provider identifier
func (p *CoinPaprika) Source() contracts.DataSource {
	return contracts.SourceCoinPaprika
}

// Available reports readiness; CoinPaprika needs no key
func (p *CoinPaprika) Available() bool {
	return true
}

type paprikaTicker struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Rank   int    `json:"rank"`
	Quotes struct {
		USD struct {
			Price            float64  `json:"price"`
			MarketCap        float64  `json:"market_cap"`
			Volume24h        float64  `json:"volume_24h"`
			PercentChange1h  float64  `json:"percent_change_1h"`
			PercentChange24h float64  `json:"percent_change_24h"`
			PercentChange7d  float64  `json:"percent_change_7d"`
			PercentChange30d float64  `json:"percent_change_30d"`
			PercentChange1y  float64  `json:"percent_change_1y"`
			ATHPrice         *float64 `json:"ath_price"`
		} `json:"USD"`
	} `json:"quotes"`
}

// Fetch pulls up to limit tickers
func (p *CoinPaprika) Fetch(ctx context.Context, limit int) ([]contracts.RawRecord, error) {
	fullURL := fmt.Sprintf("%s/tickers?quotes=USD&limit=%d", p.baseURL, limit)

	resp, err := p.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("coinpaprika request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("coinpaprika: %w", contracts.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinpaprika unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coinpaprika read body failed: %w", err)
	}

	var tickers []paprikaTicker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("coinpaprika parse failed: %w", err)
	}

	now := time.Now()
	records := make([]contracts.RawRecord, 0, len(tickers))
	for _, t := range tickers {
		symbol := strings.ToUpper(t.Symbol)
		if symbol == "" {
			continue
		}

		usd := t.Quotes.USD
		record := contracts.RawRecord{
			Symbol:       symbol,
			Name:         t.Name,
			PriceUSD:     contracts.Float(usd.Price),
			MarketCapUSD: contracts.Float(usd.MarketCap),
			Volume24hUSD: contracts.Float(usd.Volume24h),
			PercentChange: map[string]float64{
				"1h":   usd.PercentChange1h,
				"24h":  usd.PercentChange24h,
				"7d":   usd.PercentChange7d,
				"30d":  usd.PercentChange30d,
				"365d": usd.PercentChange1y,
			},
			MaxPrice1Y: usd.ATHPrice,
			Source:     contracts.SourceCoinPaprika,
			FetchedAt:  now,
		}
		records = append(records, record)
	}

	p.logger.WithField("count", len(records)).Debug("Fetched tickers")
	return records, nil
}
