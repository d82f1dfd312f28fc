package analytics

import (
	"math"

	"github.com/dustin/go-humanize"
	"github.com/guregu/null/v6"

	"marketcore/internal/indicator"
	"marketcore/internal/model"
)

// Metrics computes range, volume, volatility, beta, moving averages and
// period returns for bars (oldest first). reference is the benchmark series
// used for beta. Beta is exactly 1 when symbol is the benchmark itself and
// null when it cannot be computed, so a real beta of 1 is distinguishable
// from a missing one.
func Metrics(symbol string, bars []model.Bar, refSymbol string, reference []model.Bar) model.TradingMetrics {
	tm := model.TradingMetrics{Symbol: symbol, BetaReference: refSymbol}
	if len(bars) == 0 {
		return tm
	}
	if len(bars) > YearWindow {
		bars = bars[len(bars)-YearWindow:]
	}
	closes := model.Closes(bars)
	last := closes[len(closes)-1]

	hi, lo := bars[0].High, bars[0].Low
	var volSum float64
	for _, b := range bars {
		hi = math.Max(hi, b.High)
		lo = math.Min(lo, b.Low)
		volSum += float64(b.Volume)
	}
	tm.High52w = null.FloatFrom(round(hi, 2))
	tm.Low52w = null.FloatFrom(round(lo, 2))
	if hi > 0 {
		tm.DistanceFromHighPct = null.FloatFrom(round(pctChange(hi, last), 2))
	}
	if lo > 0 {
		tm.DistanceFromLowPct = null.FloatFrom(round(pctChange(lo, last), 2))
	}

	avgVol := volSum / float64(len(bars))
	tm.AverageVolume = null.FloatFrom(math.Round(avgVol))
	tm.AverageVolumeFormatted = humanize.SIWithDigits(avgVol, 2, "")

	rets := returns(closes)
	if sd, ok := sampleStdDev(rets); ok {
		tm.Volatility = null.FloatFrom(round(sd*math.Sqrt(TradingDays), 4))
	}

	tm.Beta = beta(symbol, bars, refSymbol, reference)

	tm.MA50 = roundNull(indicator.Last(indicator.SMA(closes, 50)), 2)
	tm.MA200 = roundNull(indicator.Last(indicator.SMA(closes, 200)), 2)

	tm.Returns = model.PeriodReturns{
		Day:   periodReturn(closes, SamplesPerDay),
		Week:  periodReturn(closes, SamplesPerWeek),
		Month: periodReturn(closes, SamplesPerMonth),
	}
	return tm
}

func beta(symbol string, bars []model.Bar, refSymbol string, reference []model.Bar) null.Float {
	if symbol == refSymbol {
		return null.FloatFrom(1.0)
	}
	if len(reference) > YearWindow {
		reference = reference[len(reference)-YearWindow:]
	}
	xs, ys := pairCloses(bars, reference)
	x, y := returns(xs), returns(ys)
	n := len(x)
	if n < 2 {
		return null.Float{}
	}

	mx, my := mean(x), mean(y)
	var cov, varY float64
	for i := 0; i < n; i++ {
		cov += (x[i] - mx) * (y[i] - my)
		varY += (y[i] - my) * (y[i] - my)
	}
	if varY == 0 {
		return null.Float{}
	}
	return null.FloatFrom(round(cov/varY, 4))
}

// pairCloses joins bars and reference on the minute their timestamps fall
// in and returns the matched closes in time order. Within a minute the last
// bar wins. Bars with no counterpart are dropped, so returns are only taken
// between consecutive matched minutes.
func pairCloses(bars, reference []model.Bar) (xs, ys []float64) {
	ref := make(map[int64]float64, len(reference))
	for _, b := range reference {
		ref[minuteOf(b)] = b.Close
	}
	for i, b := range bars {
		m := minuteOf(b)
		if i+1 < len(bars) && minuteOf(bars[i+1]) == m {
			continue
		}
		if c, ok := ref[m]; ok {
			xs = append(xs, b.Close)
			ys = append(ys, c)
		}
	}
	return xs, ys
}

func minuteOf(b model.Bar) int64 {
	return b.Timestamp.Unix() / 60
}

// periodReturn is the percent change over the last lookback bars. It needs
// lookback+1 closes.
func periodReturn(closes []float64, lookback int) null.Float {
	n := len(closes)
	if n <= lookback || closes[n-1-lookback] == 0 {
		return null.Float{}
	}
	return null.FloatFrom(round(pctChange(closes[n-1-lookback], closes[n-1]), 2))
}

func roundNull(v null.Float, places int32) null.Float {
	if !v.Valid {
		return v
	}
	return null.FloatFrom(round(v.ValueOrZero(), places))
}
