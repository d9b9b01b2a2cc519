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

// CoinMarketCap is the most authoritative source. Key-gated: without an API
// key it reports unavailable and the aggregator routes around it.
// ⭐ SSOT: CoinMarketCap API 호출은 이 클라이언트에서만
type CoinMarketCap struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewCoinMarketCap creates a CoinMarketCap provider
func NewCoinMarketCap(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *CoinMarketCap {
	return &CoinMarketCap{
		httpClient: httpClient,
		logger:     log.WithField("provider", "coinmarketcap"),
		apiKey:     cfg.Providers.CoinMarketCapKey,
		baseURL:    cfg.Providers.CoinMarketCapBaseURL,
	}
}

// Source returns the provider identifier
func (p *CoinMarketCap) Source() contracts.DataSource {
	return contracts.SourceCoinMarketCap
}

// Available reports whether an API key is configured
func (p *CoinMarketCap) Available() bool {
	return p.apiKey != ""
}

type cmcListing struct {
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	CirculatingSupply *float64 `json:"circulating_supply"`
	TotalSupply       *float64 `json:"total_supply"`
	MaxSupply         *float64 `json:"max_supply"`
	Quote             struct {
		USD struct {
			Price            float64 `json:"price"`
			MarketCap        float64 `json:"market_cap"`
			Volume24h        float64 `json:"volume_24h"`
			PercentChange1h  float64 `json:"percent_change_1h"`
			PercentChange24h float64 `json:"percent_change_24h"`
			PercentChange7d  float64 `json:"percent_change_7d"`
			PercentChange30d float64 `json:"percent_change_30d"`
			PercentChange90d float64 `json:"percent_change_90d"`
		} `json:"USD"`
	} `json:"quote"`
}

type cmcResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data []cmcListing `json:"data"`
}

// Fetch pulls the latest listings
func (p *CoinMarketCap) Fetch(ctx context.Context, limit int) ([]contracts.RawRecord, error) {
	if !p.Available() {
		return nil, fmt.Errorf("coinmarketcap: no API key configured")
	}

	fullURL := fmt.Sprintf("%s/v1/cryptocurrency/listings/latest?limit=%d&convert=USD", p.baseURL, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap create request failed: %w", err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("coinmarketcap: %w", contracts.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinmarketcap unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap read body failed: %w", err)
	}

	var parsed cmcResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("coinmarketcap parse failed: %w", err)
	}
	if parsed.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("coinmarketcap API error %d: %s",
			parsed.Status.ErrorCode, parsed.Status.ErrorMessage)
	}

	now := time.Now()
	records := make([]contracts.RawRecord, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		symbol := strings.ToUpper(d.Symbol)
		if symbol == "" {
			continue
		}

		usd := d.Quote.USD
		records = append(records, contracts.RawRecord{
			Symbol:            symbol,
			Name:              d.Name,
			PriceUSD:          contracts.Float(usd.Price),
			MarketCapUSD:      contracts.Float(usd.MarketCap),
			Volume24hUSD:      contracts.Float(usd.Volume24h),
			CirculatingSupply: d.CirculatingSupply,
			TotalSupply:       d.TotalSupply,
			MaxSupply:         d.MaxSupply,
			PercentChange: map[string]float64{
				"1h":  usd.PercentChange1h,
				"24h": usd.PercentChange24h,
				"7d":  usd.PercentChange7d,
				"30d": usd.PercentChange30d,
				"90d": usd.PercentChange90d,
			},
			Source:    contracts.SourceCoinMarketCap,
			FetchedAt: now,
		})
	}

	p.logger.WithField("count", len(records)).Debug("Fetched listings")
	return records, nil
}
