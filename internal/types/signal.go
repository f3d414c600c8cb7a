package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Side is the direction of a signal or position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for BUY and -1 for SELL.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}

	return 1
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}

	return SideBuy
}

// SignalStatus is the lifecycle status of a signal. Transitions are
// monotonic: candidate -> confirmed -> executed, or candidate -> rejected.
type SignalStatus string

const (
	SignalStatusCandidate SignalStatus = "candidate"
	SignalStatusConfirmed SignalStatus = "confirmed"
	SignalStatusRejected  SignalStatus = "rejected"
	SignalStatusExecuted  SignalStatus = "executed"
)

// IsResolved reports whether the status is past the candidate stage.
func (s SignalStatus) IsResolved() bool {
	return s != SignalStatusCandidate
}

// Confirmation reason codes emitted by strategies.
const (
	ConfirmationRSIBuy   = "RSI_BUY"
	ConfirmationRSISell  = "RSI_SELL"
	ConfirmationEMABull  = "EMA_BULL"
	ConfirmationEMABear  = "EMA_BEAR"
	ConfirmationVolSpike = "VOL_SPIKE"
	ConfirmationATRMove  = "ATR_MOVE"
	ConfirmationBelowMA  = "below_ma"
	ConfirmationAboveMA  = "above_ma"
)

// IndicatorSnapshot captures the indicator values observed when a
// candidate was produced.
type IndicatorSnapshot struct {
	RSI       float64 `yaml:"rsi" json:"rsi"`
	EMA9      float64 `yaml:"ema9" json:"ema9"`
	EMA21     float64 `yaml:"ema21" json:"ema21"`
	ATR       float64 `yaml:"atr" json:"atr"`
	VolumeNow float64 `yaml:"volume_now" json:"volumeNow"`
	AvgVolume float64 `yaml:"avg_volume" json:"avgVolume"`
}

// CandidateSignal is the ephemeral output of a strategy evaluation. It
// becomes a Signal once persisted by the lifecycle.
type CandidateSignal struct {
	Symbol        string            `yaml:"symbol" json:"symbol"`
	Side          Side              `yaml:"side" json:"side"`
	Price         float64           `yaml:"price" json:"price"`
	Confirmations []string          `yaml:"confirmations" json:"confirmations"`
	Indicators    IndicatorSnapshot `yaml:"indicators" json:"indicators"`
	// Score ranks candidates from the same pass: confirmation count for
	// scoring strategies, absolute deviation for mean reversion.
	Score    float64   `yaml:"score" json:"score"`
	Strategy string    `yaml:"strategy" json:"strategy"`
	Time     time.Time `yaml:"time" json:"time"`
}

// Signal is a persisted candidate with a lifecycle status.
type Signal struct {
	ID            string            `yaml:"id" json:"id"`
	Symbol        string            `yaml:"symbol" json:"symbol"`
	Side          Side              `yaml:"side" json:"side"`
	Price         float64           `yaml:"price" json:"price"`
	Confirmations []string          `yaml:"confirmations" json:"confirmations"`
	Indicators    IndicatorSnapshot `yaml:"indicators" json:"indicators"`
	Strategy      string            `yaml:"strategy" json:"strategy"`
	Status        SignalStatus      `yaml:"status" json:"status"`
	CreatedAt     time.Time         `yaml:"created_at" json:"createdAt"`
	// ExecutedAt is set when the signal transitions to executed.
	ExecutedAt optional.Option[time.Time] `yaml:"executed_at" json:"executedAt"`
	// ExecResult is the id of the position opened for this signal.
	ExecResult optional.Option[string] `yaml:"exec_result" json:"execResult"`
}
