// Package notify fans lifecycle events out to the operator channel.
package notify

import (
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"go.uber.org/zap"
)

// Position update event tags.
const (
	EventStopMoved = "stop_moved"
	EventClosed    = "closed"
)

// Notifier receives lifecycle events. Implementations must not block;
// callers fire events inline on hot paths. The chat or dashboard layer
// plugs in here.
type Notifier interface {
	CandidateCreated(signal types.Signal)
	SignalResolved(signal types.Signal)
	PositionOpened(position types.Position)
	PositionUpdated(position types.Position, event string)
	BacktestFinished(result types.BacktestResult)
}

// LogNotifier writes every event to the structured log. It is the
// default sink when no external channel is configured.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) CandidateCreated(signal types.Signal) {
	n.logger.Info("candidate signal created",
		zap.String("id", signal.ID),
		zap.String("symbol", signal.Symbol),
		zap.String("side", string(signal.Side)),
		zap.String("strategy", signal.Strategy),
		zap.Strings("confirmations", signal.Confirmations),
		zap.Float64("price", signal.Price),
	)
}

func (n *LogNotifier) SignalResolved(signal types.Signal) {
	n.logger.Info("signal resolved",
		zap.String("id", signal.ID),
		zap.String("symbol", signal.Symbol),
		zap.String("status", string(signal.Status)),
		zap.String("position_id", signal.ExecResult.TakeOr("")),
	)
}

func (n *LogNotifier) PositionOpened(position types.Position) {
	n.logger.Info("position opened",
		zap.String("id", position.ID),
		zap.String("symbol", position.Symbol),
		zap.String("side", string(position.Side)),
		zap.Float64("entry", position.Entry),
		zap.Float64("sl", position.SL),
		zap.Float64("tp", position.TP),
		zap.String("mode", position.Mode),
	)
}

func (n *LogNotifier) PositionUpdated(position types.Position, event string) {
	n.logger.Info("position updated",
		zap.String("id", position.ID),
		zap.String("symbol", position.Symbol),
		zap.String("event", event),
		zap.Float64("sl", position.SL),
		zap.Float64("pnl_usd", position.PnlUSD.TakeOr(0)),
		zap.String("reason", position.CloseReason.TakeOr("")),
	)
}

func (n *LogNotifier) BacktestFinished(result types.BacktestResult) {
	n.logger.Info("backtest finished",
		zap.String("id", result.ID),
		zap.String("job", result.JobName),
		zap.String("status", string(result.Status)),
		zap.Float64("total_pnl", result.Summary.TotalPnl),
		zap.Int("trades", result.Summary.TradesCount),
	)
}
