package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/pulse-lab/pulse-trading/internal/executor"
	"github.com/pulse-lab/pulse-trading/internal/lifecycle"
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/notify"
	"github.com/pulse-lab/pulse-trading/internal/store"
	"github.com/pulse-lab/pulse-trading/internal/strategy"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// fakeGateway serves scripted candles per symbol.
type fakeGateway struct {
	symbols []string
	candles map[string][]types.Candle
}

func (g *fakeGateway) ListSymbols(ctx context.Context, limit int) ([]string, error) {
	if limit > 0 && len(g.symbols) > limit {
		return g.symbols[:limit], nil
	}

	return g.symbols, nil
}

func (g *fakeGateway) FetchCandles(ctx context.Context, symbol string, timeframeMinutes, limit int) ([]types.Candle, error) {
	candles, ok := g.candles[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable, "no candles for %s", symbol)
	}

	return candles, nil
}

func (g *fakeGateway) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	return 0, errors.Newf(errors.ErrCodePriceUnavailable, "no mark price for %s", symbol)
}

// flatCandles returns n candles pinned at price.
func flatCandles(n int, price float64) []types.Candle {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, n)

	for i := range candles {
		candles[i] = types.Candle{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price + 0.1,
			Low:    price - 0.1,
			Close:  price,
			Volume: 100,
		}
	}

	return candles
}

// buySetup is a series whose last close sits 1.1% below the 20 bar mean,
// a mean reversion BUY.
func buySetup() []types.Candle {
	candles := flatCandles(120, 100)
	candles[len(candles)-1].Close = 98.9
	candles[len(candles)-1].Low = 98.8

	return candles
}

type ScannerTestSuite struct {
	suite.Suite
	store   *store.Store
	gateway *fakeGateway
	scanner *Scanner
}

func (s *ScannerTestSuite) SetupTest() {
	st, err := store.NewStore(":memory:", logger.NewNopLogger())
	s.Require().NoError(err)
	s.Require().NoError(st.Initialize())
	s.store = st

	settings, err := st.GetSettings()
	s.Require().NoError(err)
	settings.ActiveStrategy = "mean_revert_v1"
	s.Require().NoError(st.SaveSettings(settings))

	s.gateway = &fakeGateway{
		symbols: []string{"BTCUSDT", "ETHUSDT"},
		candles: map[string][]types.Candle{
			"BTCUSDT": buySetup(),
			"ETHUSDT": flatCandles(120, 2500),
		},
	}

	log := logger.NewNopLogger()
	service := lifecycle.NewService(st, executor.NewPaperExecutor(st, log),
		notify.NewLogNotifier(log), log, 1000)

	s.scanner = NewScanner(Config{
		ScanInterval: time.Hour,
		SymbolDelay:  time.Millisecond,
	}, s.gateway, strategy.NewDefaultRegistry(), st, service, log)
}

func (s *ScannerTestSuite) TearDownTest() {
	s.store.Close()
}

func (s *ScannerTestSuite) TestScanNowCreatesCandidates() {
	candidates := s.scanner.ScanNow(context.Background())
	s.Require().Len(candidates, 1)
	s.Equal("BTCUSDT", candidates[0].Symbol)
	s.Equal(types.SideBuy, candidates[0].Side)

	signals, err := s.store.ListSignals(0)
	s.Require().NoError(err)
	s.Require().Len(signals, 1)
	s.Equal(types.SignalStatusCandidate, signals[0].Status)

	snapshot := s.scanner.Latest()
	s.False(snapshot.Time.IsZero())
	s.Len(snapshot.Candidates, 1)

	// auto-trade off, nothing was opened
	positions, err := s.store.ListPositions(0)
	s.Require().NoError(err)
	s.Empty(positions)
}

func (s *ScannerTestSuite) TestAutoTradeExecutesImmediately() {
	settings, err := s.store.GetSettings()
	s.Require().NoError(err)
	settings.AutoTrade = true
	s.Require().NoError(s.store.SaveSettings(settings))

	candidates := s.scanner.ScanNow(context.Background())
	s.Require().Len(candidates, 1)

	signals, err := s.store.ListSignals(0)
	s.Require().NoError(err)
	s.Require().Len(signals, 1)
	s.Equal(types.SignalStatusExecuted, signals[0].Status)

	positions, err := s.store.ListOpenPositions()
	s.Require().NoError(err)
	s.Require().Len(positions, 1)
	s.Equal("BTCUSDT", positions[0].Symbol)
	s.Equal(types.SideBuy, positions[0].Side)
}

func (s *ScannerTestSuite) TestFailingSymbolSkipped() {
	delete(s.gateway.candles, "BTCUSDT")
	s.gateway.symbols = []string{"BTCUSDT", "ETHUSDT"}

	candidates := s.scanner.ScanNow(context.Background())
	s.Empty(candidates)

	// the pass still completed and recorded a snapshot
	s.False(s.scanner.Latest().Time.IsZero())
}

func (s *ScannerTestSuite) TestUnknownActiveStrategySkipsPass() {
	settings, err := s.store.GetSettings()
	s.Require().NoError(err)
	settings.ActiveStrategy = "does_not_exist"
	s.Require().NoError(s.store.SaveSettings(settings))

	candidates := s.scanner.ScanNow(context.Background())
	s.Nil(candidates)
}

func (s *ScannerTestSuite) TestSymbolLimitApplied() {
	scanner := NewScanner(Config{
		ScanInterval: time.Hour,
		SymbolDelay:  time.Millisecond,
		SymbolLimit:  1,
	}, s.gateway, strategy.NewDefaultRegistry(), s.store,
		lifecycle.NewService(s.store, executor.NewPaperExecutor(s.store, logger.NewNopLogger()),
			notify.NewLogNotifier(logger.NewNopLogger()), logger.NewNopLogger(), 1000),
		logger.NewNopLogger())

	candidates := scanner.ScanNow(context.Background())
	s.Len(candidates, 1)
}

func (s *ScannerTestSuite) TestStartStop() {
	s.False(s.scanner.IsRunning())

	s.Require().NoError(s.scanner.Start(context.Background()))
	s.True(s.scanner.IsRunning())
	s.Require().Error(s.scanner.Start(context.Background()))

	s.scanner.Stop()
	s.False(s.scanner.IsRunning())

	s.scanner.Stop()
}

func TestScannerTestSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}
