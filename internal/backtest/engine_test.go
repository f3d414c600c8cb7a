package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/strategy"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// scriptStrategy signals at fixed bar indices, which makes engine runs
// fully predictable.
type scriptStrategy struct {
	signalAt map[int]types.Side
}

func (s *scriptStrategy) Name() string {
	return "scripted"
}

func (s *scriptStrategy) Evaluate(symbol string, candles []types.Candle, params strategy.Params) optional.Option[types.CandidateSignal] {
	last := len(candles) - 1

	side, ok := s.signalAt[last]
	if !ok {
		return optional.None[types.CandidateSignal]()
	}

	return optional.Some(types.CandidateSignal{
		Symbol:   symbol,
		Side:     side,
		Price:    candles[last].Close,
		Strategy: s.Name(),
		Time:     candles[last].Time,
	})
}

// flatSeries builds n bars pinned at 100 with a 99.5..100.5 range.
func flatSeries(n int) []types.Candle {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, n)

	for i := range candles {
		candles[i] = types.Candle{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   100,
			High:   100.5,
			Low:    99.5,
			Close:  100,
			Volume: 50,
		}
	}

	return candles
}

type EngineTestSuite struct {
	suite.Suite
	engine *Engine
}

func (s *EngineTestSuite) SetupTest() {
	s.engine = NewEngine(EngineConfig{})
}

func (s *EngineTestSuite) TestBuyTakeProfit() {
	candles := flatSeries(100)
	candles[50].High = 101.5

	strat := &scriptStrategy{signalAt: map[int]types.Side{40: types.SideBuy}}

	result, err := s.engine.Run(context.Background(), "BTCUSDT", candles, strat, strategy.DefaultParams(), 1000)
	s.Require().NoError(err)
	s.Require().Len(result.Trades, 1)

	trade := result.Trades[0]
	s.Equal(41, trade.EntryIndex)
	s.Equal(100.0, trade.EntryPrice)
	s.Equal(50, trade.ExitIndex)
	s.Equal(101.3, trade.ExitPrice)
	s.Equal(types.CloseReasonTakeProfit, trade.Reason)
	s.Equal(10.0, trade.SizeUSD)
	s.InDelta(0.13, trade.PnlUSD, 1e-9)

	s.InDelta(1000.13, result.Summary.FinalEquity, 1e-9)
	s.InDelta(0.13, result.Summary.TotalPnl, 1e-9)
	s.Equal(1, result.Summary.Wins)
	s.Equal(0, result.Summary.Losses)
	s.Equal(1.0, result.Summary.WinRate)
	s.Equal(0.0, result.Summary.MaxDrawdown)
}

func (s *EngineTestSuite) TestStopBeatsTargetInsideOneBar() {
	candles := flatSeries(100)
	// bar 45 sweeps both levels of a SELL from 100 (sl 101, tp 98.7)
	candles[45].High = 101.5
	candles[45].Low = 98

	strat := &scriptStrategy{signalAt: map[int]types.Side{40: types.SideSell}}

	result, err := s.engine.Run(context.Background(), "BTCUSDT", candles, strat, strategy.DefaultParams(), 1000)
	s.Require().NoError(err)
	s.Require().Len(result.Trades, 1)

	trade := result.Trades[0]
	s.Equal(types.CloseReasonStopLoss, trade.Reason)
	s.Equal(101.0, trade.ExitPrice)
	s.InDelta(-0.1, trade.PnlUSD, 1e-9)

	// the losing trade shows up as drawdown
	s.InDelta(0.0001, result.Summary.MaxDrawdown, 1e-9)
	s.Equal(0, result.Summary.Wins)
	s.Equal(1, result.Summary.Losses)
}

func (s *EngineTestSuite) TestReversalSignalExitsAtNextOpen() {
	candles := flatSeries(100)
	candles[61].Open = 100.2

	strat := &scriptStrategy{signalAt: map[int]types.Side{
		40: types.SideBuy,
		60: types.SideSell,
	}}

	result, err := s.engine.Run(context.Background(), "BTCUSDT", candles, strat, strategy.DefaultParams(), 1000)
	s.Require().NoError(err)
	s.Require().Len(result.Trades, 1)

	trade := result.Trades[0]
	s.Equal(types.CloseReasonReversal, trade.Reason)
	s.Equal(60, trade.ExitIndex)
	s.Equal(100.2, trade.ExitPrice)
	s.InDelta(0.02, trade.PnlUSD, 1e-9)
}

func (s *EngineTestSuite) TestEndOfDataClose() {
	candles := flatSeries(100)
	candles[99].Close = 100.4

	strat := &scriptStrategy{signalAt: map[int]types.Side{95: types.SideBuy}}

	result, err := s.engine.Run(context.Background(), "BTCUSDT", candles, strat, strategy.DefaultParams(), 1000)
	s.Require().NoError(err)
	s.Require().Len(result.Trades, 1)

	trade := result.Trades[0]
	s.Equal(types.CloseReasonEndOfData, trade.Reason)
	s.Equal(99, trade.ExitIndex)
	s.Equal(100.4, trade.ExitPrice)
	s.InDelta(0.04, trade.PnlUSD, 1e-9)
}

func (s *EngineTestSuite) TestMeanRevertComposedScenario() {
	// 300 three-minute bars pinned at 100 with a two-bar dip to 99, which
	// puts the close more than 0.6% under the 20-bar average
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, 300)

	for i := range candles {
		price := 100.0
		if i == 100 || i == 101 {
			price = 99
		}

		candles[i] = types.Candle{
			Time:   base.Add(time.Duration(i) * 3 * time.Minute),
			Open:   price,
			High:   price + 0.4,
			Low:    price - 0.4,
			Close:  price,
			Volume: 50,
		}
	}

	result, err := s.engine.Run(context.Background(), "BTCUSDT", candles,
		strategy.NewMeanRevert(), strategy.DefaultParams(), 1000)
	s.Require().NoError(err)
	s.Require().Len(result.Trades, 1)

	trade := result.Trades[0]
	s.Equal(types.SideBuy, trade.Side)
	s.Equal(101, trade.EntryIndex)
	s.Equal(99.0, trade.EntryPrice)
	s.Equal(10.0, trade.SizeUSD)
	s.Equal(102, trade.ExitIndex)
	s.Equal(100.287, trade.ExitPrice)
	s.Equal(types.CloseReasonTakeProfit, trade.Reason)
	s.InDelta(0.13, trade.PnlUSD, 1e-9)

	s.Equal(1, result.Summary.TradesCount)
	s.InDelta(1000.13, result.Summary.FinalEquity, 1e-9)
}

func (s *EngineTestSuite) TestSignalsBeforeWarmupIgnored() {
	candles := flatSeries(100)
	candles[50].High = 101.5

	strat := &scriptStrategy{signalAt: map[int]types.Side{10: types.SideBuy}}

	result, err := s.engine.Run(context.Background(), "BTCUSDT", candles, strat, strategy.DefaultParams(), 1000)
	s.Require().NoError(err)
	s.Empty(result.Trades)
	s.Equal(1000.0, result.Summary.FinalEquity)
}

func (s *EngineTestSuite) TestMinimumTradeSize() {
	candles := flatSeries(100)
	candles[50].High = 101.5

	strat := &scriptStrategy{signalAt: map[int]types.Side{40: types.SideBuy}}

	// 1% of 50 would be 0.50, the floor lifts it to 1 USD
	result, err := s.engine.Run(context.Background(), "BTCUSDT", candles, strat, strategy.DefaultParams(), 50)
	s.Require().NoError(err)
	s.Require().Len(result.Trades, 1)
	s.Equal(1.0, result.Trades[0].SizeUSD)
}

func (s *EngineTestSuite) TestDeterministicAcrossRuns() {
	candles := flatSeries(200)
	candles[60].High = 101.5
	candles[150].Low = 98.5

	strat := &scriptStrategy{signalAt: map[int]types.Side{
		40:  types.SideBuy,
		120: types.SideBuy,
	}}

	first, err := s.engine.Run(context.Background(), "BTCUSDT", candles, strat, strategy.DefaultParams(), 1000)
	s.Require().NoError(err)

	second, err := s.engine.Run(context.Background(), "BTCUSDT", candles, strat, strategy.DefaultParams(), 1000)
	s.Require().NoError(err)

	s.Equal(first.Summary, second.Summary)
	s.Equal(first.Trades, second.Trades)
	s.Equal(first.Equity, second.Equity)
	s.Equal(first.Logs, second.Logs)
}

func (s *EngineTestSuite) TestTooFewCandles() {
	_, err := s.engine.Run(context.Background(), "BTCUSDT", flatSeries(20), &scriptStrategy{}, strategy.DefaultParams(), 1000)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeBacktestNoData))
}

func (s *EngineTestSuite) TestAbortOnCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.engine.Run(ctx, "BTCUSDT", flatSeries(100), &scriptStrategy{}, strategy.DefaultParams(), 1000)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeBacktestAborted))
}

func (s *EngineTestSuite) TestProgressCallback() {
	var (
		calls     int
		lastTotal int
	)

	engine := NewEngine(EngineConfig{
		Progress: func(done, total int) {
			calls++
			lastTotal = total
		},
	})

	_, err := engine.Run(context.Background(), "BTCUSDT", flatSeries(100), &scriptStrategy{}, strategy.DefaultParams(), 1000)
	s.Require().NoError(err)

	// 100 candles, 30 warmup bars, final bar excluded
	s.Equal(69, calls)
	s.Equal(69, lastTotal)
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
