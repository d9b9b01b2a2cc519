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

// One year of daily closes per history pull
const historyDays = 365

// CryptoCompare serves a bulk top list and, unlike the other sources, daily
// price history per symbol. Works keyless at low volume; a key raises the
// quota.
// ⭐ SSOT: CryptoCompare 호출은 이 클라이언트에서만
type CryptoCompare struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewCryptoCompare creates a CryptoCompare provider
func NewCryptoCompare(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *CryptoCompare {
	return &CryptoCompare{
		httpClient: httpClient,
		logger:     log.WithField("provider", "cryptocompare"),
		apiKey:     cfg.Providers.CryptoCompareKey,
		baseURL:    cfg.Providers.CryptoCompareBaseURL,
	}
}

// Source returns the provider identifier
func (p *CryptoCompare) Source() contracts.DataSource {
	return contracts.SourceCryptoCompare
}

// Available always reports true; the keyless tier is enough for our volume
func (p *CryptoCompare) Available() bool {
	return true
}

type ccTopEntry struct {
	CoinInfo struct {
		Name     string `json:"Name"`
		FullName string `json:"FullName"`
	} `json:"CoinInfo"`
	Raw struct {
		USD struct {
			Price          float64 `json:"PRICE"`
			MarketCap      float64 `json:"MKTCAP"`
			TotalVolume24h float64 `json:"TOTALVOLUME24HTO"`
			ChangePct24h   float64 `json:"CHANGEPCT24HOUR"`
		} `json:"USD"`
	} `json:"RAW"`
}

type ccTopResponse struct {
	Message string       `json:"Message"`
	Data    []ccTopEntry `json:"Data"`
}

// Fetch pulls the top list by market cap. CryptoCompare caps one page at 100
// entries; the descriptor's fetch limit matches.
func (p *CryptoCompare) Fetch(ctx context.Context, limit int) ([]contracts.RawRecord, error) {
	if limit > 100 {
		limit = 100
	}
	fullURL := fmt.Sprintf("%s/data/top/mktcapfull?limit=%d&tsym=USD", p.baseURL, limit)

	body, err := p.get(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	var parsed ccTopResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cryptocompare parse failed: %w", err)
	}

	now := time.Now()
	records := make([]contracts.RawRecord, 0, len(parsed.Data))
	for _, e := range parsed.Data {
		symbol := strings.ToUpper(e.CoinInfo.Name)
		if symbol == "" || e.Raw.USD.Price <= 0 {
			continue
		}

		usd := e.Raw.USD
		records = append(records, contracts.RawRecord{
			Symbol:       symbol,
			Name:         e.CoinInfo.FullName,
			PriceUSD:     contracts.Float(usd.Price),
			MarketCapUSD: contracts.Float(usd.MarketCap),
			Volume24hUSD: contracts.Float(usd.TotalVolume24h),
			PercentChange: map[string]float64{
				"24h": usd.ChangePct24h,
			},
			Source:    contracts.SourceCryptoCompare,
			FetchedAt: now,
		})
	}

	p.logger.WithField("count", len(records)).Debug("Fetched top list")
	return records, nil
}

type ccHistoResponse struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
	Data     struct {
		Data []struct {
			Time  int64   `json:"time"`
			Close float64 `json:"close"`
		} `json:"Data"`
	} `json:"Data"`
}

// FetchHistory pulls one symbol's daily closes for the past year and derives
// the yearly extrema from them
func (p *CryptoCompare) FetchHistory(ctx context.Context, symbol string) (*contracts.RawRecord, error) {
	fullURL := fmt.Sprintf("%s/data/v2/histoday?fsym=%s&tsym=USD&limit=%d",
		p.baseURL, strings.ToUpper(symbol), historyDays)

	body, err := p.get(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	var parsed ccHistoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cryptocompare parse failed: %w", err)
	}
	if parsed.Response == "Error" {
		return nil, fmt.Errorf("cryptocompare history for %s: %s", symbol, parsed.Message)
	}

	prices := make(map[string]float64, len(parsed.Data.Data))
	var maxClose, minClose float64
	for _, point := range parsed.Data.Data {
		if point.Close <= 0 {
			continue
		}
		day := time.Unix(point.Time, 0).UTC().Format("2006-01-02")
		prices[day] = point.Close

		if maxClose == 0 || point.Close > maxClose {
			maxClose = point.Close
		}
		if minClose == 0 || point.Close < minClose {
			minClose = point.Close
		}
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("cryptocompare history for %s: no data", symbol)
	}

	p.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"days":   len(prices),
	}).Debug("Fetched price history")

	return &contracts.RawRecord{
		Symbol:           strings.ToUpper(symbol),
		HistoricalPrices: prices,
		MaxPrice1Y:       contracts.Float(maxClose),
		MinPrice1Y:       contracts.Float(minClose),
		Source:           contracts.SourceCryptoCompare,
		FetchedAt:        time.Now(),
	}, nil
}

// get performs one keyed GET and returns the body
func (p *CryptoCompare) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptocompare create request failed: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Apikey "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cryptocompare request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("cryptocompare: %w", contracts.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cryptocompare unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cryptocompare read body failed: %w", err)
	}
	return body, nil
}
