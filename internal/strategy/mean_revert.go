package strategy

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/indicator"
	"github.com/pulse-lab/pulse-trading/internal/types"
)

const meanRevertName = "mean_revert_v1"

// smaPeriod is the reference moving average for the deviation check.
const smaPeriod = 20

// MeanRevert compares the last close to a 20-period SMA and trades the
// reversion: BUY when price has deviated below the average by more than
// the threshold, SELL when above.
type MeanRevert struct{}

// NewMeanRevert creates the mean reversion strategy.
func NewMeanRevert() Strategy {
	return &MeanRevert{}
}

// Name implements Strategy.
func (s *MeanRevert) Name() string {
	return meanRevertName
}

// Evaluate implements Strategy.
func (s *MeanRevert) Evaluate(symbol string, candles []types.Candle, params Params) optional.Option[types.CandidateSignal] {
	if len(candles) < MinCandles {
		return optional.None[types.CandidateSignal]()
	}

	params = params.withDefaults()
	closes := types.Closes(candles)
	last := closes[len(closes)-1]

	ma := indicator.SMA(closes, smaPeriod)
	if ma.IsNone() {
		return optional.None[types.CandidateSignal]()
	}

	maValue := ma.Unwrap()
	if maValue == 0 {
		return optional.None[types.CandidateSignal]()
	}

	dev := (last - maValue) / maValue

	var side types.Side

	var reason string

	switch {
	case dev < -params.MeanThresholdPct:
		side, reason = types.SideBuy, types.ConfirmationBelowMA
	case dev > params.MeanThresholdPct:
		side, reason = types.SideSell, types.ConfirmationAboveMA
	default:
		return optional.None[types.CandidateSignal]()
	}

	return optional.Some(types.CandidateSignal{
		Symbol:        symbol,
		Side:          side,
		Price:         last,
		Confirmations: []string{reason},
		Indicators:    types.IndicatorSnapshot{},
		Score:         math.Abs(dev),
		Strategy:      meanRevertName,
		Time:          candles[len(candles)-1].Time,
	})
}
