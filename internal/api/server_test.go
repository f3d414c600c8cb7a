package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulse-lab/pulse-trading/internal/backtest"
	"github.com/pulse-lab/pulse-trading/internal/executor"
	"github.com/pulse-lab/pulse-trading/internal/lifecycle"
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/notify"
	"github.com/pulse-lab/pulse-trading/internal/scanner"
	"github.com/pulse-lab/pulse-trading/internal/store"
	"github.com/pulse-lab/pulse-trading/internal/strategy"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// stubGateway serves one flat candle series for every symbol. A zero
// price means the mark price endpoint is down.
type stubGateway struct {
	candles []types.Candle
	price   float64
}

func (g *stubGateway) ListSymbols(ctx context.Context, limit int) ([]string, error) {
	return []string{"BTCUSDT"}, nil
}

func (g *stubGateway) FetchCandles(ctx context.Context, symbol string, timeframeMinutes, limit int) ([]types.Candle, error) {
	return g.candles, nil
}

func (g *stubGateway) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	if g.price > 0 {
		return g.price, nil
	}

	return 0, errors.Newf(errors.ErrCodePriceUnavailable, "no mark price for %s", symbol)
}

func flatCandles(n int) []types.Candle {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
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

type ServerTestSuite struct {
	suite.Suite
	store     *store.Store
	lifecycle *lifecycle.Service
	gateway   *stubGateway
	server    *Server
	ts        *httptest.Server
}

func (s *ServerTestSuite) SetupTest() {
	st, err := store.NewStore(":memory:", logger.NewNopLogger())
	s.Require().NoError(err)
	s.Require().NoError(st.Initialize())
	s.store = st

	log := logger.NewNopLogger()
	registry := strategy.NewDefaultRegistry()
	notifier := notify.NewLogNotifier(log)
	s.gateway = &stubGateway{candles: flatCandles(120)}

	s.lifecycle = lifecycle.NewService(st, executor.NewPaperExecutor(st, log), notifier, log, 1000)

	sc := scanner.NewScanner(scanner.Config{
		ScanInterval: time.Hour,
		SymbolDelay:  time.Millisecond,
	}, s.gateway, registry, st, s.lifecycle, log)

	runner := backtest.NewJobRunner(backtest.NewEngine(backtest.EngineConfig{}),
		st, s.gateway, registry, notifier, log)

	s.server = NewServer(st, sc, s.lifecycle, runner, registry, s.gateway, log)
	s.ts = httptest.NewServer(s.server.Router())
}

func (s *ServerTestSuite) TearDownTest() {
	s.ts.Close()
	s.store.Close()
}

func (s *ServerTestSuite) get(path string) (*http.Response, map[string]json.RawMessage) {
	resp, err := http.Get(s.ts.URL + path)
	s.Require().NoError(err)

	return resp, s.decode(resp)
}

func (s *ServerTestSuite) post(path string, payload any) (*http.Response, map[string]json.RawMessage) {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)

	resp, err := http.Post(s.ts.URL+path, "application/json", bytes.NewReader(body))
	s.Require().NoError(err)

	return resp, s.decode(resp)
}

func (s *ServerTestSuite) decode(resp *http.Response) map[string]json.RawMessage {
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))

	return body
}

func (s *ServerTestSuite) TestGetSettingsDefaults() {
	resp, body := s.get("/api/settings")
	s.Equal(http.StatusOK, resp.StatusCode)

	var settings types.Settings
	s.Require().NoError(json.Unmarshal(body["settings"], &settings))
	s.Equal("scalping_v1", settings.ActiveStrategy)
	s.False(settings.AutoTrade)
}

func (s *ServerTestSuite) TestSetStrategy() {
	resp, body := s.post("/api/settings/strategy", map[string]string{"strategy": "mean_revert_v1"})
	s.Equal(http.StatusOK, resp.StatusCode)

	var settings types.Settings
	s.Require().NoError(json.Unmarshal(body["settings"], &settings))
	s.Equal("mean_revert_v1", settings.ActiveStrategy)

	resp, _ = s.post("/api/settings/strategy", map[string]string{"strategy": "ghost"})
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *ServerTestSuite) TestSetAutoTrade() {
	resp, body := s.post("/api/settings/auto-trade", map[string]bool{"enabled": true})
	s.Equal(http.StatusOK, resp.StatusCode)

	var settings types.Settings
	s.Require().NoError(json.Unmarshal(body["settings"], &settings))
	s.True(settings.AutoTrade)
}

func (s *ServerTestSuite) TestSignalActionFlow() {
	signal, err := s.lifecycle.Create(types.CandidateSignal{
		Symbol: "BTCUSDT", Side: types.SideBuy, Price: 100, Strategy: "scalping_v1",
	})
	s.Require().NoError(err)

	resp, body := s.post("/api/signals/"+signal.ID+"/action", map[string]string{"action": "confirm_execute"})
	s.Equal(http.StatusOK, resp.StatusCode)

	var resolved types.Signal
	s.Require().NoError(json.Unmarshal(body["signal"], &resolved))
	s.Equal(types.SignalStatusExecuted, resolved.Status)

	// a second tap conflicts
	resp, _ = s.post("/api/signals/"+signal.ID+"/action", map[string]string{"action": "reject"})
	s.Equal(http.StatusConflict, resp.StatusCode)

	// signal and position both visible on the list endpoints
	resp, body = s.get("/api/signals")
	s.Equal(http.StatusOK, resp.StatusCode)

	var signals []types.Signal
	s.Require().NoError(json.Unmarshal(body["signals"], &signals))
	s.Len(signals, 1)

	resp, body = s.get("/api/positions")
	s.Equal(http.StatusOK, resp.StatusCode)

	var positions []types.Position
	s.Require().NoError(json.Unmarshal(body["positions"], &positions))
	s.Require().Len(positions, 1)
	s.Equal(signal.ID, positions[0].SignalID)
}

func (s *ServerTestSuite) TestListPositionsUnrealizedPnl() {
	signal, err := s.lifecycle.Create(types.CandidateSignal{
		Symbol: "BTCUSDT", Side: types.SideBuy, Price: 100, Strategy: "scalping_v1",
	})
	s.Require().NoError(err)

	_, err = s.lifecycle.Confirm(context.Background(), signal.ID, true)
	s.Require().NoError(err)

	s.gateway.price = 102

	resp, body := s.get("/api/positions")
	s.Equal(http.StatusOK, resp.StatusCode)

	var positions []types.Position
	s.Require().NoError(json.Unmarshal(body["positions"], &positions))
	s.Require().Len(positions, 1)

	var unrealized map[string]float64
	s.Require().NoError(json.Unmarshal(body["unrealizedPnl"], &unrealized))
	// 2% move on the 50 USD levered notional
	s.InDelta(1.0, unrealized[positions[0].ID], 1e-9)

	// without a mark price the list still works, just unenriched
	s.gateway.price = 0
	resp, body = s.get("/api/positions")
	s.Equal(http.StatusOK, resp.StatusCode)
	unrealized = nil
	s.Require().NoError(json.Unmarshal(body["unrealizedPnl"], &unrealized))
	s.Empty(unrealized)
}

func (s *ServerTestSuite) TestListenAndServeStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- s.server.ListenAndServe(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.Fail("server did not shut down")
	}
}

func (s *ServerTestSuite) TestSignalActionValidation() {
	resp, _ := s.post("/api/signals/missing/action", map[string]string{"action": "confirm"})
	s.Equal(http.StatusNotFound, resp.StatusCode)

	signal, err := s.lifecycle.Create(types.CandidateSignal{
		Symbol: "BTCUSDT", Side: types.SideBuy, Price: 100, Strategy: "scalping_v1",
	})
	s.Require().NoError(err)

	resp, _ = s.post("/api/signals/"+signal.ID+"/action", map[string]string{"action": "snooze"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *ServerTestSuite) TestScannerControl() {
	resp, body := s.get("/api/scanner/latest")
	s.Equal(http.StatusOK, resp.StatusCode)

	var running bool
	s.Require().NoError(json.Unmarshal(body["running"], &running))
	s.False(running)

	resp, _ = s.post("/api/scanner/start", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	// starting twice is a client error
	resp, _ = s.post("/api/scanner/start", nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.post("/api/scanner/stop", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *ServerTestSuite) TestScanNow() {
	resp, body := s.post("/api/scanner/scan-now", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var candidates []types.CandidateSignal
	s.Require().NoError(json.Unmarshal(body["candidates"], &candidates))
	// flat series produces no setups
	s.Empty(candidates)
}

func (s *ServerTestSuite) TestBacktestRoundTrip() {
	resp, body := s.post("/api/backtests", backtest.JobRequest{
		Symbol:   "BTCUSDT",
		Strategy: "mean_revert_v1",
	})
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)

	var job types.BacktestResult
	s.Require().NoError(json.Unmarshal(body["job"], &job))
	s.NotEmpty(job.ID)

	s.Eventually(func() bool {
		resp, body := s.get("/api/backtests/" + job.ID)
		if resp.StatusCode != http.StatusOK {
			return false
		}

		var result types.BacktestResult
		if err := json.Unmarshal(body["backtest"], &result); err != nil {
			return false
		}

		return result.Status == types.JobStatusDone
	}, 5*time.Second, 20*time.Millisecond)

	resp, body = s.get("/api/backtests")
	s.Equal(http.StatusOK, resp.StatusCode)

	var results []types.BacktestResult
	s.Require().NoError(json.Unmarshal(body["backtests"], &results))
	s.Len(results, 1)

	resp, _ = s.get("/api/backtests/missing")
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *ServerTestSuite) TestBacktestSchema() {
	resp, err := http.Get(s.ts.URL + "/api/backtests/schema")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("application/json", resp.Header.Get("Content-Type"))
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
