package executor

import (
	"context"
	"testing"

	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/store"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ExecutorTestSuite struct {
	suite.Suite
	store *store.Store
}

func (s *ExecutorTestSuite) SetupTest() {
	st, err := store.NewStore(":memory:", logger.NewNopLogger())
	s.Require().NoError(err)
	s.Require().NoError(st.Initialize())
	s.store = st
}

func (s *ExecutorTestSuite) TearDownTest() {
	s.store.Close()
}

func (s *ExecutorTestSuite) TestComputeTargetsBuy() {
	sl, tp := ComputeTargets(100, types.SideBuy, 1, 1.3)
	s.Equal(99.0, sl)
	s.Equal(101.3, tp)
}

func (s *ExecutorTestSuite) TestComputeTargetsSell() {
	sl, tp := ComputeTargets(100, types.SideSell, 1, 1.3)
	s.Equal(101.0, sl)
	s.Equal(98.7, tp)
}

func (s *ExecutorTestSuite) TestComputeTargetsScalesWithPrice() {
	sl, tp := ComputeTargets(2500, types.SideBuy, 2, 1.5)
	s.Equal(2450.0, sl)
	s.Equal(2575.0, tp)
}

func (s *ExecutorTestSuite) TestPaperOpenPersistsPosition() {
	exec := NewPaperExecutor(s.store, logger.NewNopLogger())

	signal := types.Signal{
		ID:     "sig-1",
		Symbol: "BTCUSDT",
		Side:   types.SideBuy,
		Price:  100,
		Status: types.SignalStatusConfirmed,
	}

	position, err := exec.Open(context.Background(), signal, 1000)
	s.Require().NoError(err)
	s.Equal("sig-1", position.SignalID)
	s.Equal(10.0, position.SizeUSD)
	s.Equal(5.0, position.Leverage)
	s.Equal(99.0, position.SL)
	s.Equal(101.3, position.TP)
	s.Equal(ModePaper, position.Mode)
	s.Equal(types.PositionStatusOpen, position.Status)

	stored, err := s.store.GetPosition(position.ID)
	s.Require().NoError(err)
	s.Equal(position.SL, stored.SL)
}

func (s *ExecutorTestSuite) TestPaperOpenUsesCurrentSettings() {
	settings, err := s.store.GetSettings()
	s.Require().NoError(err)

	settings.SLPercent = 2
	settings.RiskReward = 2
	settings.Leverage = 10
	s.Require().NoError(s.store.SaveSettings(settings))

	exec := NewPaperExecutor(s.store, logger.NewNopLogger())

	position, err := exec.Open(context.Background(), types.Signal{
		ID: "sig-2", Symbol: "ETHUSDT", Side: types.SideSell, Price: 2000,
	}, 500)
	s.Require().NoError(err)
	s.Equal(2040.0, position.SL)
	s.Equal(1920.0, position.TP)
	s.Equal(10.0, position.Leverage)
	s.Equal(5.0, position.SizeUSD)
}

func (s *ExecutorTestSuite) TestPaperOpenRejectsBadInput() {
	exec := NewPaperExecutor(s.store, logger.NewNopLogger())

	_, err := exec.Open(context.Background(), types.Signal{ID: "sig-3", Price: 0}, 1000)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = exec.Open(context.Background(), types.Signal{ID: "sig-4", Price: 100}, 0)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (s *ExecutorTestSuite) TestPaperOpenValidatesRequest() {
	exec := NewPaperExecutor(s.store, logger.NewNopLogger())

	// a signal without a symbol must be rejected before anything persists
	_, err := exec.Open(context.Background(), types.Signal{
		ID: "sig-6", Side: types.SideBuy, Price: 100,
	}, 1000)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	positions, err := s.store.ListPositions(10)
	s.Require().NoError(err)
	s.Empty(positions)
}

func (s *ExecutorTestSuite) TestLiveExecutorNotImplemented() {
	exec := NewLiveExecutor()

	_, err := exec.Open(context.Background(), types.Signal{ID: "sig-5", Price: 100}, 1000)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeNotImplemented))
}

func (s *ExecutorTestSuite) TestModeSelection() {
	exec, err := New("", s.store, logger.NewNopLogger())
	s.Require().NoError(err)
	s.Equal(ModePaper, exec.Mode())

	exec, err = New(ModeLive, s.store, logger.NewNopLogger())
	s.Require().NoError(err)
	s.Equal(ModeLive, exec.Mode())

	_, err = New("shadow", s.store, logger.NewNopLogger())
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func TestExecutorTestSuite(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}
