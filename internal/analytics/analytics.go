// Package analytics turns bar windows into sentiment, trading metrics, alerts
// and quotes. Every function is pure over its input; a computation whose
// window is too short is left out of the result instead of failing.
package analytics

import (
	"math"

	"github.com/shopspring/decimal"

	"marketcore/internal/model"
)

// Calendar assumptions for 5-minute bars.
const (
	SamplesPerDay   = 78
	TradingDays     = 252
	SamplesPerWeek  = 390
	SamplesPerMonth = 1680
	YearWindow      = TradingDays * SamplesPerDay
)

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// pctChange returns (to/from - 1) * 100.
func pctChange(from, to float64) float64 {
	return (to/from - 1) * 100
}

// lastReturnPct is the percent change of the final bar's close over the one
// before it.
func lastReturnPct(bars []model.Bar) (float64, bool) {
	n := len(bars)
	if n < 2 || bars[n-2].Close == 0 {
		return 0, false
	}
	return pctChange(bars[n-2].Close, bars[n-1].Close), true
}

// volumeRatio compares the final bar's volume to the mean of the lookback
// bars before it.
func volumeRatio(bars []model.Bar, lookback int) (float64, bool) {
	n := len(bars)
	if n < lookback+1 {
		return 0, false
	}
	var sum float64
	for _, b := range bars[n-1-lookback : n-1] {
		sum += float64(b.Volume)
	}
	avg := sum / float64(lookback)
	if avg == 0 {
		return 0, false
	}
	return float64(bars[n-1].Volume) / avg, true
}

// returns computes simple per-bar returns of closes.
func returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// sampleStdDev uses the n-1 denominator.
func sampleStdDev(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)-1)), true
}
