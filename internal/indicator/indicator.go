// Package indicator provides deterministic, side-effect-free technical
// indicator functions over numeric series. Every function returns None
// when the input is shorter than the required window; callers treat this
// as "indicator not yet available", not as an error.
package indicator

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/types"
)

// SMA returns the simple moving average of the trailing n values.
func SMA(series []float64, n int) optional.Option[float64] {
	if n <= 0 || len(series) < n {
		return optional.None[float64]()
	}

	sum := 0.0
	for _, v := range series[len(series)-n:] {
		sum += v
	}

	return optional.Some(sum / float64(n))
}

// EMA returns the exponential moving average over the whole series,
// seeded with the simple average of the first n values and smoothed with
// k = 2/(n+1).
func EMA(series []float64, n int) optional.Option[float64] {
	if n <= 0 || len(series) < n {
		return optional.None[float64]()
	}

	seed := 0.0
	for _, v := range series[:n] {
		seed += v
	}

	ema := seed / float64(n)
	k := 2.0 / float64(n+1)

	for _, v := range series[n:] {
		ema = v*k + ema*(1-k)
	}

	return optional.Some(ema)
}

// RSI returns the Wilder-style relative strength index over the trailing
// window. Returns exactly 100 when the average loss is zero.
func RSI(closes []float64, period int) optional.Option[float64] {
	if period <= 0 || len(closes) < period+1 {
		return optional.None[float64]()
	}

	gains, losses := 0.0, 0.0

	for i := len(closes) - period; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses += math.Abs(diff)
		}
	}

	if losses == 0 {
		return optional.Some(100.0)
	}

	rs := (gains / float64(period)) / (losses / float64(period))

	return optional.Some(100 - 100/(1+rs))
}

// ATR returns the average true range over the trailing window, where
// true range = max(high-low, |high-prevClose|, |low-prevClose|).
func ATR(candles []types.Candle, period int) optional.Option[float64] {
	if period <= 0 || len(candles) < period+1 {
		return optional.None[float64]()
	}

	trs := make([]float64, 0, len(candles)-1)

	for i := 1; i < len(candles); i++ {
		high, low, prevClose := candles[i].High, candles[i].Low, candles[i-1].Close
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trs = append(trs, tr)
	}

	sum := 0.0
	for _, tr := range trs[len(trs)-period:] {
		sum += tr
	}

	return optional.Some(sum / float64(period))
}
