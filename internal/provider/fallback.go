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

// Fallback is the last-resort keyless source, backed by the CoinGecko
// markets endpoint. Lowest merge priority but the richest free field set,
// which makes it the workhorse for enrichment backfills.
// ⭐ SSOT: 폴백 소스 호출은 이 클라이언트에서만
type Fallback struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewFallback creates the fallback provider
func NewFallback(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Fallback {
	return &Fallback{
		httpClient: httpClient,
		logger:     log.WithField("provider", "fallback"),
		baseURL:    cfg.Providers.CoinGeckoBaseURL,
	}
}

// Source returns the provider identifier
func (p *Fallback) Source() contracts.DataSource {
	return contracts.SourceFallback
}

// Available reports readiness; the markets endpoint needs no key
func (p *Fallback) Available() bool {
	return true
}

type geckoMarket struct {
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	CurrentPrice      float64  `json:"current_price"`
	MarketCap         float64  `json:"market_cap"`
	TotalVolume       float64  `json:"total_volume"`
	CirculatingSupply *float64 `json:"circulating_supply"`
	TotalSupply       *float64 `json:"total_supply"`
	MaxSupply         *float64 `json:"max_supply"`
	ATH               *float64 `json:"ath"`
	ATHDate           string   `json:"ath_date"`
	ATL               *float64 `json:"atl"`
	ATLDate           string   `json:"atl_date"`

	Change1h  *float64 `json:"price_change_percentage_1h_in_currency"`
	Change24h *float64 `json:"price_change_percentage_24h_in_currency"`
	Change7d  *float64 `json:"price_change_percentage_7d_in_currency"`
	Change30d *float64 `json:"price_change_percentage_30d_in_currency"`
	Change1y  *float64 `json:"price_change_percentage_1y_in_currency"`
}

// Fetch pulls markets pages, 250 per page, until limit is reached
func (p *Fallback) Fetch(ctx context.Context, limit int) ([]contracts.RawRecord, error) {
	const perPage = 250

	now := time.Now()
	var records []contracts.RawRecord

	for page := 1; len(records) < limit; page++ {
		fullURL := fmt.Sprintf(
			"%s/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=%d&price_change_percentage=1h,24h,7d,30d,1y",
			p.baseURL, perPage, page,
		)

		markets, err := p.fetchPage(ctx, fullURL)
		if err != nil {
			// A later page failing should not discard what we already have
			if len(records) > 0 {
				p.logger.WithError(err).Warn("Fallback page fetch failed, returning partial result")
				break
			}
			return nil, err
		}
		if len(markets) == 0 {
			break
		}

		for _, m := range markets {
			symbol := strings.ToUpper(m.Symbol)
			if symbol == "" || m.CurrentPrice <= 0 {
				continue
			}

			record := contracts.RawRecord{
				Symbol:            symbol,
				Name:              m.Name,
				PriceUSD:          contracts.Float(m.CurrentPrice),
				MarketCapUSD:      contracts.Float(m.MarketCap),
				Volume24hUSD:      contracts.Float(m.TotalVolume),
				CirculatingSupply: m.CirculatingSupply,
				TotalSupply:       m.TotalSupply,
				MaxSupply:         m.MaxSupply,
				MaxPrice1Y:        m.ATH,
				MinPrice1Y:        m.ATL,
				PercentChange:     map[string]float64{},
				Source:            contracts.SourceFallback,
				FetchedAt:         now,
			}
			setChange(record.PercentChange, "1h", m.Change1h)
			setChange(record.PercentChange, "24h", m.Change24h)
			setChange(record.PercentChange, "7d", m.Change7d)
			setChange(record.PercentChange, "30d", m.Change30d)
			setChange(record.PercentChange, "365d", m.Change1y)

			records = append(records, record)
			if len(records) >= limit {
				break
			}
		}

		if len(markets) < perPage {
			break
		}
	}

	p.logger.WithField("count", len(records)).Debug("Fetched markets")
	return records, nil
}

func (p *Fallback) fetchPage(ctx context.Context, fullURL string) ([]geckoMarket, error) {
	resp, err := p.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fallback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("fallback: %w", contracts.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fallback unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fallback read body failed: %w", err)
	}

	var markets []geckoMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("fallback parse failed: %w", err)
	}
	return markets, nil
}

func setChange(changes map[string]float64, period string, v *float64) {
	if v != nil {
		changes[period] = *v
	}
}
