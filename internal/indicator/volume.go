package indicator

import "math"

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) for every
// bar after the first.
func TrueRange(high, low, close []float64) []float64 {
	n := len(close)
	if len(high) != n || len(low) != n || n < 2 {
		return nil
	}
	out := make([]float64, n-1)
	for i := 1; i < n; i++ {
		prev := close[i-1]
		out[i-1] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-prev), math.Abs(low[i]-prev)))
	}
	return out
}

// ATR returns the Average True Range using Wilder's smoothing: the first value
// is the mean of the first period true ranges, then
// atr = (prevATR*(period-1) + tr) / period.
func ATR(high, low, close []float64, period int) []float64 {
	tr := TrueRange(high, low, close)
	if period <= 0 || len(tr) < period {
		return nil
	}
	p := float64(period)
	out := make([]float64, 0, len(tr)-period+1)

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += tr[i]
	}
	prev := seed / p
	out = append(out, prev)

	for i := period; i < len(tr); i++ {
		prev = (prev*(p-1) + tr[i]) / p
		out = append(out, prev)
	}
	return out
}

// OBV returns On-Balance Volume: a running total that adds the bar's volume on
// an up close, subtracts it on a down close and is unchanged otherwise.
// The first value is 0.
func OBV(close, volume []float64) []float64 {
	n := len(close)
	if len(volume) != n || n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		switch {
		case close[i] > close[i-1]:
			out[i] = out[i-1] + volume[i]
		case close[i] < close[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}
