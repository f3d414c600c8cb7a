// Package market fetches the tradable symbol universe and OHLCV candle
// series from upstream exchange endpoints, normalizing the several
// response encodings the upstreams use into the canonical Candle shape.
package market

import (
	"context"

	"github.com/pulse-lab/pulse-trading/internal/types"
)

// Gateway is the market data surface consumed by the scanner, the
// monitor and the backtest job runner. Implementations degrade to an
// error on upstream failure, never to a crash; callers skip and continue.
type Gateway interface {
	// ListSymbols returns up to limit tradable symbols. Cached with a TTL;
	// a fixed fallback set is returned after total upstream failure so the
	// scanner never stalls.
	ListSymbols(ctx context.Context, limit int) ([]string, error)
	// FetchCandles returns at least MinCandles chronological candles for
	// the symbol, or ErrCodeInsufficientHistory/ErrCodeDataUnavailable.
	FetchCandles(ctx context.Context, symbol string, timeframeMinutes int, limit int) ([]types.Candle, error)
	// MarkPrice returns the current reference price for the symbol, or
	// ErrCodePriceUnavailable when every endpoint shape fails.
	MarkPrice(ctx context.Context, symbol string) (float64, error)
}

// MinCandles is the minimum candle count FetchCandles must deliver
// before indicators are considered computable.
const MinCandles = 100
