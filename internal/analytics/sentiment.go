package analytics

import (
	"fmt"
	"math"

	"marketcore/internal/indicator"
	"marketcore/internal/model"
)

// Signal weights.
const (
	WeightRSIExtreme     = 1.0
	WeightRSICenterline  = 0.2
	WeightMACDCross      = 0.75
	WeightHistogramAccel = 0.5
	WeightSMATrend       = 0.75
	WeightPriceMove      = 0.5
	WeightVolumeMove     = 0.5

	// ScoreScale maps the raw weight sum onto [-100, 100].
	ScoreScale = 25.0

	priceMoveThresholdPct = 1.0
	volumeSpikeRatio      = 1.5
	volumeLookback        = 10
)

// Sentiment scores bars (oldest first) from independent indicator signals.
// Signals that cannot be computed from the window are omitted. The report
// depends only on bars, so repeated calls on unchanged data are identical.
func Sentiment(symbol string, bars []model.Bar) model.SentimentReport {
	report := model.SentimentReport{Symbol: symbol, Label: model.Neutral, Signals: []model.Signal{}}
	if len(bars) == 0 {
		return report
	}
	report.AsOf = bars[len(bars)-1].Timestamp
	closes := model.Closes(bars)

	add := func(s model.Signal) {
		report.Signals = append(report.Signals, s)
		report.RawScore += s.Weight
	}

	if rsi := indicator.Last(indicator.RSI(closes, indicator.RSIPeriod)); rsi.Valid {
		add(rsiSignal(rsi.ValueOrZero()))
	}

	m := indicator.MACD(closes, indicator.MACDFast, indicator.MACDSlow, indicator.MACDSignal)
	line, sig := indicator.Last(m.Line), indicator.Last(m.Signal)
	if line.Valid && sig.Valid {
		add(macdSignal(line.ValueOrZero(), sig.ValueOrZero()))

		hist, prevHist := indicator.Last(m.Histogram), indicator.Prev(m.Histogram)
		if hist.Valid && prevHist.Valid {
			add(histogramSignal(line.ValueOrZero(), sig.ValueOrZero(), hist.ValueOrZero(), prevHist.ValueOrZero()))
		}
	}

	sma20 := indicator.Last(indicator.SMA(closes, 20))
	sma50 := indicator.Last(indicator.SMA(closes, 50))
	if sma20.Valid && sma50.Valid {
		add(trendSignal(sma20.ValueOrZero(), sma50.ValueOrZero()))
	}

	ret, hasRet := lastReturnPct(bars)
	if hasRet {
		add(priceMoveSignal(ret))
	}

	if ratio, ok := volumeRatio(bars, volumeLookback); ok && hasRet {
		add(volumeSignal(ratio, ret))
	}

	report.RawScore = round(report.RawScore, 4)
	report.Score = round(math.Max(-100, math.Min(100, report.RawScore*ScoreScale)), 2)
	report.Label = labelFor(report.RawScore)
	return report
}

func labelFor(raw float64) model.SentimentLabel {
	switch {
	case raw < -2:
		return model.Bearish
	case raw < -0.5:
		return model.SlightlyBearish
	case raw < 0.5:
		return model.Neutral
	case raw < 2:
		return model.SlightlyBullish
	default:
		return model.Bullish
	}
}

func rsiSignal(rsi float64) model.Signal {
	s := model.Signal{Indicator: "RSI", Value: round(rsi, 2), Direction: model.DirectionNeutral}
	switch {
	case rsi < 30:
		s.Direction, s.Weight = model.DirectionBullish, WeightRSIExtreme
		s.Interpretation = fmt.Sprintf("RSI %.1f is oversold", rsi)
	case rsi > 70:
		s.Direction, s.Weight = model.DirectionBearish, -WeightRSIExtreme
		s.Interpretation = fmt.Sprintf("RSI %.1f is overbought", rsi)
	case rsi > 50:
		s.Direction, s.Weight = model.DirectionBullish, WeightRSICenterline
		s.Interpretation = fmt.Sprintf("RSI %.1f is above the 50 centerline", rsi)
	case rsi < 50:
		s.Direction, s.Weight = model.DirectionBearish, -WeightRSICenterline
		s.Interpretation = fmt.Sprintf("RSI %.1f is below the 50 centerline", rsi)
	default:
		s.Interpretation = "RSI is at the centerline"
	}
	return s
}

func macdSignal(line, sig float64) model.Signal {
	s := model.Signal{Indicator: "MACD", Value: round(line-sig, 4), Direction: model.DirectionNeutral}
	switch {
	case line > sig:
		s.Direction, s.Weight = model.DirectionBullish, WeightMACDCross
		s.Interpretation = "MACD line is above the signal line"
	case line < sig:
		s.Direction, s.Weight = model.DirectionBearish, -WeightMACDCross
		s.Interpretation = "MACD line is below the signal line"
	default:
		s.Interpretation = "MACD line is on the signal line"
	}
	return s
}

// histogramSignal rewards a histogram that strictly grows in the direction
// the MACD already points. A shrinking histogram earns nothing even when the
// line is still on the right side of the signal.
func histogramSignal(line, sig, hist, prevHist float64) model.Signal {
	s := model.Signal{
		Indicator: "MACD Histogram",
		Value:     round(hist, 4),
		Direction: model.DirectionNeutral,
	}
	switch {
	case line > sig && hist > prevHist:
		s.Direction, s.Weight = model.DirectionBullish, WeightHistogramAccel
		s.Interpretation = "Bullish momentum is accelerating"
	case line < sig && hist < prevHist:
		s.Direction, s.Weight = model.DirectionBearish, -WeightHistogramAccel
		s.Interpretation = "Bearish momentum is accelerating"
	default:
		s.Interpretation = "Momentum is not accelerating"
	}
	return s
}

func trendSignal(sma20, sma50 float64) model.Signal {
	s := model.Signal{Indicator: "SMA 20/50", Value: round(sma20-sma50, 4), Direction: model.DirectionNeutral}
	switch {
	case sma20 > sma50:
		s.Direction, s.Weight = model.DirectionBullish, WeightSMATrend
		s.Interpretation = "SMA20 is above SMA50"
	case sma20 < sma50:
		s.Direction, s.Weight = model.DirectionBearish, -WeightSMATrend
		s.Interpretation = "SMA20 is below SMA50"
	default:
		s.Interpretation = "SMA20 equals SMA50"
	}
	return s
}

func priceMoveSignal(retPct float64) model.Signal {
	s := model.Signal{Indicator: "Price Change", Value: round(retPct, 2), Direction: model.DirectionNeutral}
	switch {
	case retPct > priceMoveThresholdPct:
		s.Direction, s.Weight = model.DirectionBullish, WeightPriceMove
		s.Interpretation = fmt.Sprintf("Price rose %.2f%% in the last bar", retPct)
	case retPct < -priceMoveThresholdPct:
		s.Direction, s.Weight = model.DirectionBearish, -WeightPriceMove
		s.Interpretation = fmt.Sprintf("Price fell %.2f%% in the last bar", -retPct)
	default:
		s.Interpretation = "Price change is within 1%"
	}
	return s
}

func volumeSignal(ratio, retPct float64) model.Signal {
	s := model.Signal{Indicator: "Volume", Value: round(ratio, 2), Direction: model.DirectionNeutral}
	switch {
	case ratio > volumeSpikeRatio && retPct > 0:
		s.Direction, s.Weight = model.DirectionBullish, WeightVolumeMove
		s.Interpretation = fmt.Sprintf("Volume %.1fx average confirms the advance", ratio)
	case ratio > volumeSpikeRatio && retPct < 0:
		s.Direction, s.Weight = model.DirectionBearish, -WeightVolumeMove
		s.Interpretation = fmt.Sprintf("Volume %.1fx average confirms the decline", ratio)
	default:
		s.Interpretation = "Volume does not confirm the move"
	}
	return s
}
