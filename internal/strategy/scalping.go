package strategy

import (
	"math"
	"slices"

	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/indicator"
	"github.com/pulse-lab/pulse-trading/internal/types"
)

const scalpingName = "scalping_v1"

const (
	emaFastPeriod   = 9
	emaSlowPeriod   = 21
	avgVolumePeriod = 20
	atrPeriod       = 14
)

// Scalping accumulates independent confirmations (RSI extreme, EMA cross
// direction, volume spike, ATR-scaled move) and emits a side when either
// a directionally unanimous RSI+EMA pair is present or the confirmation
// count reaches the configured minimum, with EMA direction as tie-break.
type Scalping struct{}

// NewScalping creates the confirmation-scoring strategy.
func NewScalping() Strategy {
	return &Scalping{}
}

// Name implements Strategy.
func (s *Scalping) Name() string {
	return scalpingName
}

// Evaluate implements Strategy.
func (s *Scalping) Evaluate(symbol string, candles []types.Candle, params Params) optional.Option[types.CandidateSignal] {
	if len(candles) < MinCandles {
		return optional.None[types.CandidateSignal]()
	}

	params = params.withDefaults()

	closes := types.Closes(candles)
	volumes := types.Volumes(candles)
	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	rsi := indicator.RSI(closes, params.RSIPeriod)
	emaFast := indicator.EMA(closes, emaFastPeriod)
	emaSlow := indicator.EMA(closes, emaSlowPeriod)
	atr := indicator.ATR(candles, atrPeriod)
	avgVolume := indicator.SMA(volumes, avgVolumePeriod)
	volumeNow := volumes[len(volumes)-1]

	confirmations := make([]string, 0, 6)

	if rsi.IsSome() {
		if rsi.Unwrap() < params.RSIBuyBelow {
			confirmations = append(confirmations, types.ConfirmationRSIBuy)
		}

		if rsi.Unwrap() > params.RSISellAbove {
			confirmations = append(confirmations, types.ConfirmationRSISell)
		}
	}

	if emaFast.IsSome() && emaSlow.IsSome() {
		if emaFast.Unwrap() > emaSlow.Unwrap() {
			confirmations = append(confirmations, types.ConfirmationEMABull)
		}

		if emaFast.Unwrap() < emaSlow.Unwrap() {
			confirmations = append(confirmations, types.ConfirmationEMABear)
		}
	}

	if avgVolume.IsSome() && volumeNow > avgVolume.Unwrap()*params.VolumeSpikeRatio {
		confirmations = append(confirmations, types.ConfirmationVolSpike)
	}

	if atr.IsSome() && math.Abs(last.Close-prev.Close) > params.ATRMoveRatio*atr.Unwrap() {
		confirmations = append(confirmations, types.ConfirmationATRMove)
	}

	var side types.Side

	has := func(c string) bool { return slices.Contains(confirmations, c) }

	switch {
	case has(types.ConfirmationRSIBuy) && has(types.ConfirmationEMABull):
		side = types.SideBuy
	case has(types.ConfirmationRSISell) && has(types.ConfirmationEMABear):
		side = types.SideSell
	case len(confirmations) >= params.ConfirmationsRequired:
		// EMA direction breaks the tie when no unanimous pair exists
		if emaFast.IsSome() && emaSlow.IsSome() && emaFast.Unwrap() > emaSlow.Unwrap() {
			side = types.SideBuy
		} else {
			side = types.SideSell
		}
	default:
		return optional.None[types.CandidateSignal]()
	}

	snapshot := types.IndicatorSnapshot{
		RSI:       rsi.TakeOr(0),
		EMA9:      emaFast.TakeOr(0),
		EMA21:     emaSlow.TakeOr(0),
		ATR:       atr.TakeOr(0),
		VolumeNow: volumeNow,
		AvgVolume: avgVolume.TakeOr(0),
	}

	return optional.Some(types.CandidateSignal{
		Symbol:        symbol,
		Side:          side,
		Price:         last.Close,
		Confirmations: confirmations,
		Indicators:    snapshot,
		Score:         float64(len(confirmations)),
		Strategy:      scalpingName,
		Time:          last.Time,
	})
}
