// Package strategy contains the signal evaluation strategies. Every
// strategy is pure with respect to its inputs so the same implementation
// is shared unmodified by the live scanner and the backtest engine.
package strategy

import (
	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/types"
)

// MinCandles is the minimum history every strategy requires before it
// will evaluate a symbol.
const MinCandles = 60

// Params are the tunable strategy parameters. Zero values fall back to
// the defaults below.
type Params struct {
	// MeanThresholdPct is the fractional deviation from the 20-period SMA
	// that triggers a mean reversion entry (0.006 = 0.6%).
	MeanThresholdPct float64 `yaml:"mean_threshold_pct" json:"mean_threshold_pct"`
	// ConfirmationsRequired is the minimum confirmation count for the
	// scoring strategy to emit a side without a directionally unanimous pair.
	ConfirmationsRequired int `yaml:"confirmations_required" json:"confirmations_required"`
	// RSIPeriod is the RSI lookback window.
	RSIPeriod int `yaml:"rsi_period" json:"rsi_period"`
	// RSIBuyBelow and RSISellAbove are the oversold/overbought thresholds.
	RSIBuyBelow  float64 `yaml:"rsi_buy_below" json:"rsi_buy_below"`
	RSISellAbove float64 `yaml:"rsi_sell_above" json:"rsi_sell_above"`
	// VolumeSpikeRatio is the multiple of average volume that counts as a spike.
	VolumeSpikeRatio float64 `yaml:"volume_spike_ratio" json:"volume_spike_ratio"`
	// ATRMoveRatio is the fraction of ATR the last close move must exceed.
	ATRMoveRatio float64 `yaml:"atr_move_ratio" json:"atr_move_ratio"`
}

// DefaultParams returns the parameter defaults shared by scanner and
// backtest runs.
func DefaultParams() Params {
	return Params{
		MeanThresholdPct:      0.006,
		ConfirmationsRequired: 3,
		RSIPeriod:             14,
		RSIBuyBelow:           35,
		RSISellAbove:          65,
		VolumeSpikeRatio:      1.2,
		ATRMoveRatio:          0.5,
	}
}

// withDefaults fills zero-valued fields with the defaults.
func (p Params) withDefaults() Params {
	def := DefaultParams()

	if p.MeanThresholdPct == 0 {
		p.MeanThresholdPct = def.MeanThresholdPct
	}

	if p.ConfirmationsRequired == 0 {
		p.ConfirmationsRequired = def.ConfirmationsRequired
	}

	if p.RSIPeriod == 0 {
		p.RSIPeriod = def.RSIPeriod
	}

	if p.RSIBuyBelow == 0 {
		p.RSIBuyBelow = def.RSIBuyBelow
	}

	if p.RSISellAbove == 0 {
		p.RSISellAbove = def.RSISellAbove
	}

	if p.VolumeSpikeRatio == 0 {
		p.VolumeSpikeRatio = def.VolumeSpikeRatio
	}

	if p.ATRMoveRatio == 0 {
		p.ATRMoveRatio = def.ATRMoveRatio
	}

	return p
}

// FromMap builds Params from the loosely-typed parameter map stored with
// a backtest job.
func FromMap(m map[string]float64) Params {
	p := Params{}

	if v, ok := m["mean_threshold_pct"]; ok {
		p.MeanThresholdPct = v
	}

	if v, ok := m["confirmations_required"]; ok {
		p.ConfirmationsRequired = int(v)
	}

	if v, ok := m["rsi_period"]; ok {
		p.RSIPeriod = int(v)
	}

	if v, ok := m["rsi_buy_below"]; ok {
		p.RSIBuyBelow = v
	}

	if v, ok := m["rsi_sell_above"]; ok {
		p.RSISellAbove = v
	}

	if v, ok := m["volume_spike_ratio"]; ok {
		p.VolumeSpikeRatio = v
	}

	if v, ok := m["atr_move_ratio"]; ok {
		p.ATRMoveRatio = v
	}

	return p
}

// Strategy evaluates a candle history and optionally emits a candidate
// signal. Implementations must be pure: no hidden state, no I/O.
type Strategy interface {
	// Name returns the registry name of the strategy.
	Name() string
	// Evaluate inspects the candle history and returns a candidate signal,
	// or None when no entry condition holds.
	Evaluate(symbol string, candles []types.Candle, params Params) optional.Option[types.CandidateSignal]
}
