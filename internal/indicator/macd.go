package indicator

// Default MACD periods.
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// MACDSeries holds the three MACD sequences. Line has
// len(series)-slow+1 values; Signal and Histogram are aligned on the tail of
// Line and have len(Line)-signal+1 values.
type MACDSeries struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow) aligned on their overlapping tail, the
// signal EMA of that line, and the histogram line - signal.
func MACD(series []float64, fast, slow, signal int) MACDSeries {
	if fast <= 0 || slow <= fast || signal <= 0 {
		return MACDSeries{}
	}
	fastEMA := EMA(series, fast)
	slowEMA := EMA(series, slow)
	if len(slowEMA) == 0 {
		return MACDSeries{}
	}

	// fastEMA starts slow-fast samples earlier than slowEMA.
	offset := len(fastEMA) - len(slowEMA)
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	sig := EMA(line, signal)
	if len(sig) == 0 {
		return MACDSeries{Line: line}
	}
	shift := len(line) - len(sig)
	hist := make([]float64, len(sig))
	for i := range sig {
		hist[i] = line[i+shift] - sig[i]
	}
	return MACDSeries{Line: line, Signal: sig, Histogram: hist}
}
