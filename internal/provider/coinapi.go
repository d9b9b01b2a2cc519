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

// CoinAPI serves exchange-rate style asset data. Key-gated like
// CoinMarketCap.
// ⭐ SSOT: CoinAPI 호출은 이 클라이언트에서만
type CoinAPI struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewCoinAPI creates a CoinAPI provider
func NewCoinAPI(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *CoinAPI {
	return &CoinAPI{
		httpClient: httpClient,
		logger:     log.WithField("provider", "coinapi"),
		apiKey:     cfg.Providers.CoinAPIKey,
		baseURL:    cfg.Providers.CoinAPIBaseURL,
	}
}

// Source returns the provider identifier
func (p *CoinAPI) Source() contracts.DataSource {
	return contracts.SourceCoinAPI
}

// Available reports whether an API key is configured
func (p *CoinAPI) Available() bool {
	return p.apiKey != ""
}

type coinAPIAsset struct {
	AssetID   string   `json:"asset_id"`
	Name      string   `json:"name"`
	TypeIsCrypto int   `json:"type_is_crypto"`
	PriceUSD  *float64 `json:"price_usd"`
	Volume1dUSD *float64 `json:"volume_1day_usd"`
}

// Fetch pulls the asset list and keeps the first limit crypto assets with a
// USD price
func (p *CoinAPI) Fetch(ctx context.Context, limit int) ([]contracts.RawRecord, error) {
	if !p.Available() {
		return nil, fmt.Errorf("coinapi: no API key configured")
	}

	fullURL := p.baseURL + "/v1/assets"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coinapi create request failed: %w", err)
	}
	req.Header.Set("X-CoinAPI-Key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("coinapi: %w", contracts.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinapi unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coinapi read body failed: %w", err)
	}

	var assets []coinAPIAsset
	if err := json.Unmarshal(body, &assets); err != nil {
		return nil, fmt.Errorf("coinapi parse failed: %w", err)
	}

	now := time.Now()
	var records []contracts.RawRecord
	for _, a := range assets {
		if a.TypeIsCrypto != 1 || a.PriceUSD == nil || *a.PriceUSD <= 0 {
			continue
		}
		symbol := strings.ToUpper(a.AssetID)
		if symbol == "" {
			continue
		}

		records = append(records, contracts.RawRecord{
			Symbol:       symbol,
			Name:         a.Name,
			PriceUSD:     a.PriceUSD,
			Volume24hUSD: a.Volume1dUSD,
			Source:       contracts.SourceCoinAPI,
			FetchedAt:    now,
		})

		if len(records) >= limit {
			break
		}
	}

	p.logger.WithField("count", len(records)).Debug("Fetched assets")
	return records, nil
}
