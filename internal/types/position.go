package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"github.com/shopspring/decimal"
)

// PositionStatus is the lifecycle status of a position. Monotonic:
// open -> closed, never back.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Close reasons recorded when a position is closed.
const (
	CloseReasonStopLoss   = "SL"
	CloseReasonTakeProfit = "TP"
	CloseReasonReversal   = "rev_signal"
	CloseReasonEndOfData  = "end_close"
	CloseReasonManual     = "manual"
)

// Position is an open or closed trade bound 1:1 to the signal that
// produced it. SL and TP are fixed at creation; the monitor may only
// tighten SL toward breakeven, never loosen it.
type Position struct {
	ID       string  `yaml:"id" json:"id"`
	SignalID string  `yaml:"signal_id" json:"signalId" validate:"required"`
	Symbol   string  `yaml:"symbol" json:"symbol" validate:"required"`
	Side     Side    `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Entry    float64 `yaml:"entry" json:"entry" validate:"required,gt=0"`
	SizeUSD  float64 `yaml:"size_usd" json:"sizeUsd" validate:"required,gt=0"`
	Leverage float64 `yaml:"leverage" json:"leverage" validate:"gte=1"`
	SL       float64 `yaml:"sl" json:"sl" validate:"required,gt=0"`
	TP       float64 `yaml:"tp" json:"tp" validate:"required,gt=0"`

	Status   PositionStatus `yaml:"status" json:"status"`
	OpenedAt time.Time      `yaml:"opened_at" json:"openedAt"`

	ClosedAt    optional.Option[time.Time] `yaml:"closed_at" json:"closedAt"`
	ClosePrice  optional.Option[float64]   `yaml:"close_price" json:"closePrice"`
	PnlUSD      optional.Option[float64]   `yaml:"pnl_usd" json:"pnlUsd"`
	CloseReason optional.Option[string]    `yaml:"close_reason" json:"closeReason"`

	// Mode records the execution path that created the position.
	Mode string `yaml:"mode" json:"mode"`
}

// Validate validates the Position struct.
func (p *Position) Validate() error {
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid position", err)
	}

	return nil
}

// UnrealizedPnl computes the mark-to-market PnL at the given price using
// the same settlement formula as the monitor's close path.
func (p *Position) UnrealizedPnl(mark float64) float64 {
	return SettlePnl(p.Entry, mark, p.SizeUSD, p.Leverage, p.Side)
}

// SettlePnl computes pnlUSD = ((close-entry)/entry) * sizeUSD * leverage * dir
// with decimal arithmetic to keep settlement exact.
func SettlePnl(entry, closePrice, sizeUSD, leverage float64, side Side) float64 {
	if entry == 0 {
		return 0
	}

	entryDec := decimal.NewFromFloat(entry)
	moveDec := decimal.NewFromFloat(closePrice).Sub(entryDec).Div(entryDec)
	notionalDec := decimal.NewFromFloat(sizeUSD).Mul(decimal.NewFromFloat(leverage))
	pnl, _ := moveDec.Mul(notionalDec).Mul(decimal.NewFromFloat(side.Sign())).Float64()

	return pnl
}
