package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/pkg/config"
	"github.com/wonny/rebound/backend/pkg/httputil"
	"github.com/wonny/rebound/backend/pkg/logger"
)

// Binance serves fast spot tickers. It only knows USDT pairs, so records
// carry price/volume/24h change but no market cap.
// ⭐ SSOT: Binance API 호출은 이 클라이언트에서만
type Binance struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewBinance creates a Binance provider
func NewBinance(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Binance {
	return &Binance{
		httpClient: httpClient,
		logger:     log.WithField("provider", "binance"),
		baseURL:    cfg.Providers.BinanceBaseURL,
	}
}

// Source returns the provider identifier
func (p *Binance) Source() contracts.DataSource {
	return contracts.SourceBinance
}

// Available reports readiness; the public ticker endpoint needs no key
func (p *Binance) Available() bool {
	return true
}

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

// Fetch pulls the full 24h ticker list and keeps the first limit USDT pairs
func (p *Binance) Fetch(ctx context.Context, limit int) ([]contracts.RawRecord, error) {
	fullURL := p.baseURL + "/api/v3/ticker/24hr"

	resp, err := p.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("binance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("binance: %w", contracts.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("binance read body failed: %w", err)
	}

	var tickers []binanceTicker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("binance parse failed: %w", err)
	}

	now := time.Now()
	var records []contracts.RawRecord
	for _, t := range tickers {
		symbol, ok := strings.CutSuffix(t.Symbol, "USDT")
		if !ok || symbol == "" {
			continue
		}

		price, err := strconv.ParseFloat(t.LastPrice, 64)
		if err != nil || price <= 0 {
			continue
		}
		change24h, _ := strconv.ParseFloat(t.PriceChangePercent, 64)
		volume, _ := strconv.ParseFloat(t.QuoteVolume, 64)

		records = append(records, contracts.RawRecord{
			Symbol:        symbol,
			PriceUSD:      contracts.Float(price),
			Volume24hUSD:  contracts.Float(volume),
			PercentChange: map[string]float64{"24h": change24h},
			Source:        contracts.SourceBinance,
			FetchedAt:     now,
		})

		if len(records) >= limit {
			break
		}
	}

	p.logger.WithField("count", len(records)).Debug("Fetched tickers")
	return records, nil
}
