package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
)

const allPricesCacheKey = "all_prices"

// Default quote universe, matching the seeded assets.
var (
	defaultCryptoIDs = []string{"bitcoin", "ethereum"}

	// Local-exchange quotes are not served by any free API; a static table
	// stands in, same as the original data source.
	staticBistQuotes = map[string]models.AssetPrice{
		"XU100.IS": {Symbol: "XU100.IS", Price: 8500, Change24h: 1.2},
		"EREGL.IS": {Symbol: "EREGL.IS", Price: 45.75, Change24h: -0.5},
		"GARAN.IS": {Symbol: "GARAN.IS", Price: 62.30, Change24h: 2.1},
		"AKBNK.IS": {Symbol: "AKBNK.IS", Price: 38.90, Change24h: 0.8},
	}

	defaultBistSymbols = []string{"XU100.IS", "EREGL.IS", "GARAN.IS", "AKBNK.IS"}
)

type priceServiceImpl struct {
	httpClient *http.Client
	baseURL    string
	quoteCache *cache.Cache
	cacheTTL   time.Duration
}

// NewPriceService creates the CoinGecko-backed price service. Quotes are
// cached; staleness within the TTL is acceptable by contract.
func NewPriceService(baseURL string, fetchTimeout, cacheTTL, cacheCleanup time.Duration) PriceService {
	return &priceServiceImpl{
		httpClient: &http.Client{Timeout: fetchTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		quoteCache: cache.New(cacheTTL, cacheCleanup),
		cacheTTL:   cacheTTL,
	}
}

// GetCryptoPrices queries the CoinGecko simple-price endpoint. A network or
// decode failure returns an empty map together with the error; callers log
// and degrade rather than fail.
func (s *priceServiceImpl) GetCryptoPrices(ctx context.Context, apiSymbols []string) (map[string]models.AssetPrice, error) {
	prices := make(map[string]models.AssetPrice)
	if len(apiSymbols) == 0 {
		return prices, nil
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true",
		s.baseURL, url.QueryEscape(strings.Join(apiSymbols, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return prices, fmt.Errorf("build price request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return prices, fmt.Errorf("fetch crypto prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return prices, fmt.Errorf("crypto price endpoint returned status %d", resp.StatusCode)
	}

	var payload map[string]struct {
		USD          float64 `json:"usd"`
		USD24hChange float64 `json:"usd_24h_change"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return prices, fmt.Errorf("decode crypto price response: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, apiSymbol := range apiSymbols {
		quote, ok := payload[apiSymbol]
		if !ok {
			continue
		}
		prices[apiSymbol] = models.AssetPrice{
			Symbol:      apiSymbol,
			Price:       quote.USD,
			Change24h:   quote.USD24hChange,
			LastUpdated: now,
		}
	}
	return prices, nil
}

// GetBistPrices serves quotes from the static local-exchange table.
func (s *priceServiceImpl) GetBistPrices(symbols []string) map[string]models.AssetPrice {
	now := time.Now().UnixMilli()
	prices := make(map[string]models.AssetPrice)
	for _, symbol := range symbols {
		quote, ok := staticBistQuotes[symbol]
		if !ok {
			continue
		}
		quote.LastUpdated = now
		prices[symbol] = quote
	}
	return prices
}

// GetAllPrices returns the union of crypto and local-exchange quotes for the
// default universe, served from cache within the TTL. Every call gets its own
// copy: callers may decorate the map without racing each other or leaking
// entries into the cache.
func (s *priceServiceImpl) GetAllPrices(ctx context.Context) (map[string]models.AssetPrice, error) {
	if cached, found := s.quoteCache.Get(allPricesCacheKey); found {
		logger.L.Debug("price cache hit")
		return copyPrices(cached.(map[string]models.AssetPrice)), nil
	}

	prices := make(map[string]models.AssetPrice)

	cryptoPrices, err := s.GetCryptoPrices(ctx, defaultCryptoIDs)
	if err != nil {
		// Degrade: crypto holdings will be valued as price-unknown.
		logger.L.Warn("crypto price fetch failed, continuing without crypto quotes", "error", err)
	}
	for symbol, price := range cryptoPrices {
		prices[symbol] = price
	}
	for symbol, price := range s.GetBistPrices(defaultBistSymbols) {
		prices[symbol] = price
	}

	s.quoteCache.Set(allPricesCacheKey, prices, s.cacheTTL)
	return copyPrices(prices), nil
}

func copyPrices(prices map[string]models.AssetPrice) map[string]models.AssetPrice {
	copied := make(map[string]models.AssetPrice, len(prices))
	for symbol, price := range prices {
		copied[symbol] = price
	}
	return copied
}
