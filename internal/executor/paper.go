package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"go.uber.org/zap"
)

// PositionStore is the slice of the store the executor needs.
type PositionStore interface {
	InsertPosition(position types.Position) error
	GetSettings() (types.Settings, error)
}

// PaperExecutor opens simulated positions sized against a virtual
// account. Leverage, stop percent and risk/reward come from the runtime
// settings at open time.
type PaperExecutor struct {
	store  PositionStore
	logger *logger.Logger
}

// NewPaperExecutor creates a paper executor over the store.
func NewPaperExecutor(store PositionStore, log *logger.Logger) *PaperExecutor {
	return &PaperExecutor{store: store, logger: log}
}

// Mode implements Executor.
func (e *PaperExecutor) Mode() string {
	return ModePaper
}

// Open implements Executor.
func (e *PaperExecutor) Open(ctx context.Context, signal types.Signal, accountUSD float64) (types.Position, error) {
	request := types.OpenRequest{
		SignalID:   signal.ID,
		Symbol:     signal.Symbol,
		Side:       signal.Side,
		Price:      signal.Price,
		AccountUSD: accountUSD,
	}

	if err := request.Validate(); err != nil {
		return types.Position{}, err
	}

	settings, err := e.store.GetSettings()
	if err != nil {
		return types.Position{}, err
	}

	sl, tp := ComputeTargets(request.Price, request.Side, settings.SLPercent, settings.RiskReward)

	position := types.Position{
		ID:       uuid.New().String(),
		SignalID: request.SignalID,
		Symbol:   request.Symbol,
		Side:     request.Side,
		Entry:    request.Price,
		SizeUSD:  positionSize(request.AccountUSD),
		Leverage: settings.Leverage,
		SL:       sl,
		TP:       tp,
		Status:   types.PositionStatusOpen,
		Mode:     ModePaper,
		OpenedAt: time.Now().UTC(),
	}

	if err := e.store.InsertPosition(position); err != nil {
		return types.Position{}, err
	}

	e.logger.Info("paper position opened",
		zap.String("position_id", position.ID),
		zap.String("signal_id", signal.ID),
		zap.String("symbol", position.Symbol),
		zap.Float64("entry", position.Entry),
		zap.Float64("size_usd", position.SizeUSD),
		zap.Float64("leverage", position.Leverage),
	)

	return position, nil
}
