// Package backtest replays a candle series through a strategy with the
// same target math as live execution. The engine is a pure function of
// its inputs; the JobRunner wraps it with persistence and job state.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/pulse-lab/pulse-trading/internal/executor"
	"github.com/pulse-lab/pulse-trading/internal/strategy"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// warmupBars is the number of leading bars reserved for indicator
	// history before the first evaluation.
	warmupBars = 30
	// snapshotEvery is the equity sampling stride in bars.
	snapshotEvery = 20
	// sizeFraction is the share of initial capital committed per trade.
	sizeFraction = 0.01
)

// EngineConfig tunes the replay.
type EngineConfig struct {
	SLPercent  float64
	RiskReward float64
	// Progress, when set, is called once per processed bar.
	Progress func(done, total int)
}

// Result is the outcome of one engine run.
type Result struct {
	Summary types.Summary
	Trades  []types.BacktestTrade
	Equity  []types.EquityPoint
	Logs    []string
}

// Engine replays candles through a strategy.
type Engine struct {
	config EngineConfig
}

// NewEngine creates an engine with defaults filled in.
func NewEngine(config EngineConfig) *Engine {
	if config.SLPercent == 0 {
		config.SLPercent = 1
	}

	if config.RiskReward == 0 {
		config.RiskReward = 1.3
	}

	return &Engine{config: config}
}

// openTrade is the in-flight simulated position.
type openTrade struct {
	side       types.Side
	entryPrice float64
	entryIndex int
	sl         float64
	tp         float64
	sizeUSD    float64
}

// Run replays the candles. At bar i the strategy sees the prefix
// [0..i]; entries fill at the next bar's open, stop and target are
// checked intrabar on the current bar with the stop winning ties, and a
// reversal signal exits at the next open. Whatever is still open at the
// end closes on the final bar's close.
func (e *Engine) Run(ctx context.Context, symbol string, candles []types.Candle, strat strategy.Strategy, params strategy.Params, initialCapital float64) (Result, error) {
	if len(candles) <= warmupBars+1 {
		return Result{}, errors.Newf(errors.ErrCodeBacktestNoData, "need more than %d candles, got %d", warmupBars+1, len(candles))
	}

	if initialCapital <= 0 {
		return Result{}, errors.New(errors.ErrCodeInvalidParameter, "initial capital must be positive")
	}

	var (
		result   Result
		position *openTrade
	)

	equity := initialCapital
	sizeUSD := initialCapital * sizeFraction
	if sizeUSD < 1 {
		sizeUSD = 1
	}

	total := len(candles) - 1 - warmupBars

	for i := warmupBars; i < len(candles)-1; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, errors.Wrap(errors.ErrCodeBacktestAborted, "backtest aborted", err)
		}

		bar := candles[i]
		evaluated := strat.Evaluate(symbol, candles[:i+1], params)

		if position == nil && evaluated.IsSome() {
			signal := evaluated.Unwrap()
			next := candles[i+1]

			entryPrice := next.Open
			if entryPrice == 0 {
				entryPrice = next.Close
			}

			sl, tp := executor.ComputeTargets(entryPrice, signal.Side, e.config.SLPercent, e.config.RiskReward)
			position = &openTrade{
				side:       signal.Side,
				entryPrice: entryPrice,
				entryIndex: i + 1,
				sl:         sl,
				tp:         tp,
				sizeUSD:    sizeUSD,
			}

			result.Logs = append(result.Logs, fmt.Sprintf("%s OPEN %s @ %g idx %d",
				bar.Time.UTC().Format(time.RFC3339), signal.Side, entryPrice, i+1))

			e.progress(i-warmupBars+1, total)

			continue
		}

		if position != nil {
			exitPrice, reason := e.exitOn(bar, position)

			if reason == "" && evaluated.IsSome() && evaluated.Unwrap().Side == position.side.Opposite() {
				exitPrice = candles[i+1].Open
				reason = types.CloseReasonReversal
			}

			if reason != "" {
				equity = e.settle(&result, candles, position, i, exitPrice, reason, equity)
				position = nil
			}
		}

		if i%snapshotEvery == 0 {
			result.Equity = append(result.Equity, types.EquityPoint{Time: bar.Time, Equity: equity})
		}

		e.progress(i-warmupBars+1, total)
	}

	if position != nil {
		last := len(candles) - 1
		equity = e.settle(&result, candles, position, last, candles[last].Close, types.CloseReasonEndOfData, equity)
	}

	result.Summary = summarize(result, initialCapital, equity)

	return result, nil
}

// exitOn checks the intrabar stop and target on the given bar. The stop
// is checked first: when both would fill inside one bar the pessimistic
// outcome wins.
func (e *Engine) exitOn(bar types.Candle, position *openTrade) (float64, string) {
	if position.side == types.SideBuy {
		if bar.Low <= position.sl {
			return position.sl, types.CloseReasonStopLoss
		}

		if bar.High >= position.tp {
			return position.tp, types.CloseReasonTakeProfit
		}

		return 0, ""
	}

	if bar.High >= position.sl {
		return position.sl, types.CloseReasonStopLoss
	}

	if bar.Low <= position.tp {
		return position.tp, types.CloseReasonTakeProfit
	}

	return 0, ""
}

// settle books the trade, advances equity and samples the curve.
func (e *Engine) settle(result *Result, candles []types.Candle, position *openTrade, exitIndex int, exitPrice float64, reason string, equity float64) float64 {
	pnl := tradePnl(position.entryPrice, exitPrice, position.sizeUSD, position.side)
	equity += pnl

	result.Trades = append(result.Trades, types.BacktestTrade{
		EntryIndex: position.entryIndex,
		EntryTime:  candles[position.entryIndex].Time,
		EntryPrice: position.entryPrice,
		ExitIndex:  exitIndex,
		ExitTime:   candles[exitIndex].Time,
		ExitPrice:  exitPrice,
		Side:       position.side,
		SizeUSD:    position.sizeUSD,
		PnlUSD:     pnl,
		Reason:     reason,
	})
	result.Equity = append(result.Equity, types.EquityPoint{Time: candles[exitIndex].Time, Equity: equity})
	result.Logs = append(result.Logs, fmt.Sprintf("%s CLOSE %s @ %g idx %d reason:%s pnl:%g",
		candles[exitIndex].Time.UTC().Format(time.RFC3339), position.side, exitPrice, exitIndex, reason, pnl))

	return equity
}

// tradePnl books pnl on the unlevered notional, rounded to micro-dollars.
func tradePnl(entry, exit, sizeUSD float64, side types.Side) float64 {
	entryDec := decimal.NewFromFloat(entry)
	move := decimal.NewFromFloat(exit).Sub(entryDec).Div(entryDec)
	pnl, _ := move.
		Mul(decimal.NewFromFloat(sizeUSD)).
		Mul(decimal.NewFromFloat(side.Sign())).
		Round(6).
		Float64()

	return pnl
}

func (e *Engine) progress(done, total int) {
	if e.config.Progress != nil {
		e.config.Progress(done, total)
	}
}

func summarize(result Result, initialCapital, finalEquity float64) types.Summary {
	var wins, losses int

	for _, trade := range result.Trades {
		if trade.PnlUSD > 0 {
			wins++
		} else {
			losses++
		}
	}

	winRate := 0.0
	if len(result.Trades) > 0 {
		winRate = float64(wins) / float64(len(result.Trades))
	}

	return types.Summary{
		InitialCapital: initialCapital,
		FinalEquity:    finalEquity,
		TotalPnl:       finalEquity - initialCapital,
		TradesCount:    len(result.Trades),
		Wins:           wins,
		Losses:         losses,
		WinRate:        winRate,
		MaxDrawdown:    maxDrawdown(result.Equity, initialCapital),
	}
}

// maxDrawdown is the largest peak-to-trough fraction of the equity curve.
func maxDrawdown(equity []types.EquityPoint, initialCapital float64) float64 {
	peak := initialCapital
	maxDD := 0.0

	for _, point := range equity {
		if point.Equity > peak {
			peak = point.Equity
		}

		if dd := (peak - point.Equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}
