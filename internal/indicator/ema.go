package indicator

// EMA returns the exponential moving average of series over period.
// It is seeded with the SMA of the first period values and then follows
// ema[i] = price[i]*k + ema[i-1]*(1-k) with k = 2/(period+1).
// The result is aligned with SMA: len(series)-period+1 values.
func EMA(series []float64, period int) []float64 {
	if period <= 0 || len(series) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(series)-period+1)

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += series[i]
	}
	prev := seed / float64(period)
	out = append(out, prev)

	for i := period; i < len(series); i++ {
		prev = series[i]*k + prev*(1-k)
		out = append(out, prev)
	}
	return out
}
