package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// BinanceGateway is a Gateway over the Binance public API. It is the
// alternate upstream: same contract as the REST fallback client,
// selected by configuration.
type BinanceGateway struct {
	client *binance.Client
	log    *logger.Logger

	cacheMu       sync.Mutex
	cachedAt      time.Time
	cachedSymbols []string
	cacheTTL      time.Duration
}

// NewBinanceGateway creates a gateway over the public (unauthenticated)
// Binance endpoints.
func NewBinanceGateway(log *logger.Logger) *BinanceGateway {
	return &BinanceGateway{
		client:   binance.NewClient("", ""),
		log:      log,
		cacheTTL: defaultSymbolCacheTTL,
	}
}

// ListSymbols implements Gateway.
func (g *BinanceGateway) ListSymbols(ctx context.Context, limit int) ([]string, error) {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()

	if g.cachedSymbols != nil && time.Since(g.cachedAt) < g.cacheTTL {
		return truncate(g.cachedSymbols, limit), nil
	}

	info, err := g.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		if g.cachedSymbols != nil {
			// stale universe beats a stalled scanner
			return truncate(g.cachedSymbols, limit), nil
		}

		return append([]string(nil), fallbackSymbols...), nil
	}

	symbols := make([]string, 0, len(info.Symbols))

	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}

		if strings.HasSuffix(s.Symbol, "USDT") {
			symbols = append(symbols, s.Symbol)
		}
	}

	if len(symbols) == 0 {
		symbols = append([]string(nil), fallbackSymbols...)
	}

	g.cachedSymbols = symbols
	g.cachedAt = time.Now()

	return truncate(symbols, limit), nil
}

// FetchCandles implements Gateway.
func (g *BinanceGateway) FetchCandles(ctx context.Context, symbol string, timeframeMinutes int, limit int) ([]types.Candle, error) {
	interval := fmt.Sprintf("%dm", timeframeMinutes)

	klines, err := g.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataUnavailable, err, "klines fetch failed for %s", symbol)
	}

	candles := make([]types.Candle, 0, len(klines))

	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		candles = append(candles, types.Candle{
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	if len(candles) < MinCandles {
		return nil, errors.Newf(errors.ErrCodeInsufficientHistory, "got %d candles for %s, need %d", len(candles), symbol, MinCandles)
	}

	return candles, nil
}

// MarkPrice implements Gateway.
func (g *BinanceGateway) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil || len(prices) == 0 {
		return 0, errors.Newf(errors.ErrCodePriceUnavailable, "no mark price for %s", symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil || price <= 0 {
		return 0, errors.Newf(errors.ErrCodePriceUnavailable, "unparsable mark price for %s", symbol)
	}

	return price, nil
}
