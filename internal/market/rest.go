package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultBaseURL        = "https://api.bitget.com"
	defaultRequestTimeout = 15 * time.Second
	defaultSymbolCacheTTL = 60 * time.Second
)

// fallbackSymbols keeps the scanner alive when every symbol endpoint is down.
var fallbackSymbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}

// RestClientConfig configures the REST gateway.
type RestClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	SymbolCacheTTL time.Duration
}

// RestClient is a Gateway over the exchange's public REST endpoints. For
// every call it walks an ordered list of endpoint variants and accepts
// the first well-shaped response.
type RestClient struct {
	config RestClientConfig
	http   *http.Client
	log    *logger.Logger

	cacheMu       sync.Mutex
	cachedAt      time.Time
	cachedSymbols []string
}

// NewRestClient creates a REST gateway with defaults filled in.
func NewRestClient(config RestClientConfig, log *logger.Logger) *RestClient {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaultRequestTimeout
	}

	if config.SymbolCacheTTL == 0 {
		config.SymbolCacheTTL = defaultSymbolCacheTTL
	}

	return &RestClient{
		config: config,
		http:   &http.Client{Timeout: config.RequestTimeout},
		log:    log,
	}
}

// get fetches a URL and returns the body bytes.
func (c *RestClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable, "unexpected status %d from %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}

// ListSymbols implements Gateway. The universe is cached with a TTL to
// stay inside upstream rate limits.
func (c *RestClient) ListSymbols(ctx context.Context, limit int) ([]string, error) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if c.cachedSymbols != nil && time.Since(c.cachedAt) < c.config.SymbolCacheTTL {
		return truncate(c.cachedSymbols, limit), nil
	}

	tryURLs := []string{
		c.config.BaseURL + "/api/mix/v1/market/tickers",
		c.config.BaseURL + "/api/spot/v1/market/tickers",
	}

	var symbols []string

	for _, url := range tryURLs {
		body, err := c.get(ctx, url)
		if err != nil {
			c.log.Warn("symbol endpoint failed",
				zap.String("url", url),
				zap.Error(err),
			)

			continue
		}

		parsed, err := parseSymbols(body)
		if err != nil || len(parsed) == 0 {
			continue
		}

		symbols = parsed

		break
	}

	if len(symbols) == 0 {
		// the fixed core pairs keep the scanner from stalling
		c.log.Warn("all symbol endpoints failed, using fallback set")

		symbols = append([]string(nil), fallbackSymbols...)
	}

	c.cachedSymbols = symbols
	c.cachedAt = time.Now()

	return truncate(symbols, limit), nil
}

// parseSymbols extracts USDT-quoted symbols from a tickers response.
func parseSymbols(body []byte) ([]string, error) {
	var envelope struct {
		Data []struct {
			Symbol string `json:"symbol"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataParse, "unrecognized tickers envelope", err)
	}

	symbols := make([]string, 0, len(envelope.Data))

	for _, entry := range envelope.Data {
		if entry.Symbol == "" {
			continue
		}

		if strings.HasSuffix(strings.ToUpper(entry.Symbol), "USDT") {
			symbols = append(symbols, entry.Symbol)
		}
	}

	return symbols, nil
}

func truncate(symbols []string, limit int) []string {
	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}

	return append([]string(nil), symbols...)
}

// FetchCandles implements Gateway. It tries multiple endpoint and
// parameter shapes and normalizes whichever encoding answers first.
func (c *RestClient) FetchCandles(ctx context.Context, symbol string, timeframeMinutes int, limit int) ([]types.Candle, error) {
	tryURLs := []string{
		fmt.Sprintf("%s/api/mix/v1/market/candles?symbol=%s&granularity=%d&limit=%d",
			c.config.BaseURL, symbol, timeframeMinutes*60, limit),
		fmt.Sprintf("%s/api/spot/v1/market/candles?symbol=%s&limit=%d",
			c.config.BaseURL, symbol, limit),
		fmt.Sprintf("%s/api/spot/v1/market/candles?symbol=%s&bar=%dm&limit=%d",
			c.config.BaseURL, symbol, timeframeMinutes, limit),
	}

	sawShort := false

	for _, url := range tryURLs {
		body, err := c.get(ctx, url)
		if err != nil {
			continue
		}

		candles, err := parseKlines(body)
		if err != nil {
			continue
		}

		if len(candles) < MinCandles {
			// too little history to compute indicators, try the next shape
			sawShort = true

			continue
		}

		return candles, nil
	}

	if sawShort {
		return nil, errors.Newf(errors.ErrCodeInsufficientHistory, "no candle endpoint produced %d candles for %s", MinCandles, symbol)
	}

	return nil, errors.Newf(errors.ErrCodeDataUnavailable, "no candle endpoint reachable for %s", symbol)
}

// MarkPrice implements Gateway.
func (c *RestClient) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	tryURLs := []string{
		fmt.Sprintf("%s/api/mix/v1/market/ticker?symbol=%s", c.config.BaseURL, symbol),
		fmt.Sprintf("%s/api/spot/v1/market/ticker?symbol=%s", c.config.BaseURL, symbol),
	}

	for _, url := range tryURLs {
		body, err := c.get(ctx, url)
		if err != nil {
			continue
		}

		price, err := parseTickerPrice(body)
		if err != nil || price <= 0 {
			continue
		}

		return price, nil
	}

	return 0, errors.Newf(errors.ErrCodePriceUnavailable, "no mark price for %s", symbol)
}
