package indicator

import "math"

// SMA returns the simple moving average of series over period.
// The result has len(series)-period+1 values; element i is the mean of
// series[i : i+period]. A rolling sum keeps it O(n).
func SMA(series []float64, period int) []float64 {
	if period <= 0 || len(series) < period {
		return nil
	}
	out := make([]float64, 0, len(series)-period+1)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += series[i]
	}
	out = append(out, sum/float64(period))

	for i := period; i < len(series); i++ {
		// Subtract the value leaving the window
		sum += series[i] - series[i-period]
		out = append(out, sum/float64(period))
	}
	return out
}

// StdDev returns the rolling population standard deviation over period,
// aligned with SMA(series, period).
func StdDev(series []float64, period int) []float64 {
	means := SMA(series, period)
	if len(means) == 0 {
		return nil
	}
	out := make([]float64, len(means))
	for i, mean := range means {
		var sq float64
		for _, v := range series[i : i+period] {
			d := v - mean
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(period))
	}
	return out
}
