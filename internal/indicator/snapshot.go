package indicator

import "marketcore/internal/model"

// Snapshot windows.
const (
	BollingerPeriod = 20
	BollingerK      = 2.0
	StochPeriod     = 14
	StochSmoothing  = 3
	ATRPeriod       = 14
	RSIPeriod       = 14
)

// Snapshot computes the most recent value of every indicator from bars
// ordered oldest first. Fields whose warm-up exceeds len(bars) stay null.
func Snapshot(symbol string, bars []model.Bar) model.IndicatorSnapshot {
	snap := model.IndicatorSnapshot{Symbol: symbol}
	if len(bars) == 0 {
		return snap
	}
	snap.AsOf = bars[len(bars)-1].Timestamp

	closes := model.Closes(bars)
	highs := model.Highs(bars)
	lows := model.Lows(bars)

	snap.SMA20 = Last(SMA(closes, 20))
	snap.SMA50 = Last(SMA(closes, 50))
	snap.EMA12 = Last(EMA(closes, 12))
	snap.EMA26 = Last(EMA(closes, 26))
	snap.RSI14 = Last(RSI(closes, RSIPeriod))

	m := MACD(closes, MACDFast, MACDSlow, MACDSignal)
	snap.MACD = model.MACDValue{
		Line:      Last(m.Line),
		Signal:    Last(m.Signal),
		Histogram: Last(m.Histogram),
	}

	bb := Bollinger(closes, BollingerPeriod, BollingerK)
	snap.Bollinger = model.BollingerValue{
		Upper:  Last(bb.Upper),
		Middle: Last(bb.Middle),
		Lower:  Last(bb.Lower),
	}

	st := Stochastic(highs, lows, closes, StochPeriod, StochSmoothing)
	snap.Stochastic = model.StochasticValue{K: Last(st.K), D: Last(st.D)}

	snap.ATR14 = Last(ATR(highs, lows, closes, ATRPeriod))
	snap.OBV = Last(OBV(closes, model.Volumes(bars)))
	return snap
}
