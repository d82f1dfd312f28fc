package indicator

// BollingerSeries holds the upper, middle and lower bands, all aligned with
// SMA(series, period).
type BollingerSeries struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger returns the middle SMA band and the bands k population standard
// deviations above and below it.
func Bollinger(series []float64, period int, k float64) BollingerSeries {
	middle := SMA(series, period)
	if len(middle) == 0 {
		return BollingerSeries{}
	}
	sd := StdDev(series, period)
	upper := make([]float64, len(middle))
	lower := make([]float64, len(middle))
	for i := range middle {
		upper[i] = middle[i] + k*sd[i]
		lower[i] = middle[i] - k*sd[i]
	}
	return BollingerSeries{Upper: upper, Middle: middle, Lower: lower}
}

// StochasticSeries holds %K and %D. D is aligned on the tail of K.
type StochasticSeries struct {
	K []float64
	D []float64
}

// Stochastic returns the fast %K over period and %D as the smoothing-period
// SMA of %K. A flat window (highest high == lowest low) reads 50.
func Stochastic(high, low, close []float64, period, smoothing int) StochasticSeries {
	n := len(close)
	if len(high) != n || len(low) != n || period <= 0 || n < period {
		return StochasticSeries{}
	}
	k := make([]float64, 0, n-period+1)
	for i := period - 1; i < n; i++ {
		hh, ll := high[i-period+1], low[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if high[j] > hh {
				hh = high[j]
			}
			if low[j] < ll {
				ll = low[j]
			}
		}
		if hh == ll {
			k = append(k, 50)
			continue
		}
		k = append(k, 100*(close[i]-ll)/(hh-ll))
	}
	return StochasticSeries{K: k, D: SMA(k, smoothing)}
}
