// Package executor turns confirmed signals into positions. The paper
// path synthesizes and persists a simulated position; the live path is a
// declared stub until a real exchange account is wired in.
package executor

import (
	"context"

	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"github.com/shopspring/decimal"
)

// Execution modes.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// RiskFraction is the share of the account balance committed per trade.
const RiskFraction = 0.01

// Executor opens a position for a confirmed signal.
type Executor interface {
	// Mode identifies the execution path, recorded on the position.
	Mode() string
	// Open creates and persists a position for the signal, sized from
	// accountUSD.
	Open(ctx context.Context, signal types.Signal, accountUSD float64) (types.Position, error)
}

// ComputeTargets derives the stop loss and take profit from the entry
// price. The stop distance is price * slPercent / 100; the take profit
// sits rr times that distance on the profitable side.
func ComputeTargets(price float64, side types.Side, slPercent, rr float64) (sl, tp float64) {
	priceDec := decimal.NewFromFloat(price)
	distance := priceDec.Mul(decimal.NewFromFloat(slPercent)).Div(decimal.NewFromInt(100))
	reward := distance.Mul(decimal.NewFromFloat(rr))

	if side == types.SideSell {
		sl, _ = priceDec.Add(distance).Float64()
		tp, _ = priceDec.Sub(reward).Float64()

		return sl, tp
	}

	sl, _ = priceDec.Sub(distance).Float64()
	tp, _ = priceDec.Add(reward).Float64()

	return sl, tp
}

// positionSize computes sizeUSD = accountUSD * RiskFraction, rounded to
// cents.
func positionSize(accountUSD float64) float64 {
	size, _ := decimal.NewFromFloat(accountUSD).
		Mul(decimal.NewFromFloat(RiskFraction)).
		Round(2).
		Float64()

	return size
}

// New selects the executor for the configured mode.
func New(mode string, store PositionStore, log *logger.Logger) (Executor, error) {
	switch mode {
	case ModePaper, "":
		return NewPaperExecutor(store, log), nil
	case ModeLive:
		return NewLiveExecutor(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown execution mode %q", mode)
	}
}
