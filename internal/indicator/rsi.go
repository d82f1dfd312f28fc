package indicator

// RSI returns the Relative Strength Index of series.
// Each value uses plain averages of gains and losses over the trailing period
// deltas. The first value needs period+1 prices, so the result has
// len(series)-period values. RSI is 100 when the average loss is zero.
func RSI(series []float64, period int) []float64 {
	if period <= 0 || len(series) < period+1 {
		return nil
	}
	gains := make([]float64, len(series)-1)
	losses := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		delta := series[i] - series[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else {
			losses[i-1] = -delta
		}
	}

	avgGains := SMA(gains, period)
	avgLosses := SMA(losses, period)
	out := make([]float64, len(avgGains))
	for i := range avgGains {
		out[i] = rsiValue(avgGains[i], avgLosses[i])
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
