package analytics

import (
	"fmt"
	"math"
	"time"

	"marketcore/internal/indicator"
	"marketcore/internal/model"
)

const consolidationRangePct = 0.5

// Alerts runs the rule checks over bars (oldest first) in a fixed order:
// price move, volume spike, consolidation, then SMA20/50 crossover. Each rule
// yields at most one alert and is skipped when the window is too short.
func Alerts(bars []model.Bar, now time.Time) []model.Alert {
	alerts := []model.Alert{}
	if len(bars) == 0 {
		return alerts
	}
	symbol := bars[len(bars)-1].Symbol
	emit := func(kind model.AlertKind, format string, args ...any) {
		alerts = append(alerts, model.Alert{
			Kind:       kind,
			Message:    fmt.Sprintf(format, args...),
			ComputedAt: now,
		})
	}

	if ret, ok := lastReturnPct(bars); ok && math.Abs(ret) > priceMoveThresholdPct {
		emit(model.AlertPriceMove, "%s moved %+.2f%% in the last bar", symbol, ret)
	}

	if ratio, ok := volumeRatio(bars, volumeLookback); ok && ratio > volumeSpikeRatio {
		emit(model.AlertVolumeSpike, "%s volume is %.1fx its 10-bar average", symbol, ratio)
	}

	if len(bars) >= volumeLookback {
		window := bars[len(bars)-volumeLookback:]
		hi, lo := window[0].High, window[0].Low
		for _, b := range window[1:] {
			hi = math.Max(hi, b.High)
			lo = math.Min(lo, b.Low)
		}
		if lo > 0 {
			if rangePct := (hi - lo) / lo * 100; rangePct < consolidationRangePct {
				emit(model.AlertConsolidation, "%s is consolidating: 10-bar range %.2f%%", symbol, rangePct)
			}
		}
	}

	closes := model.Closes(bars)
	sma20 := indicator.SMA(closes, 20)
	sma50 := indicator.SMA(closes, 50)
	if len(sma50) >= 2 {
		cur20, prev20 := indicator.Last(sma20).ValueOrZero(), indicator.Prev(sma20).ValueOrZero()
		cur50, prev50 := indicator.Last(sma50).ValueOrZero(), indicator.Prev(sma50).ValueOrZero()
		switch {
		case prev20 <= prev50 && cur20 > cur50:
			emit(model.AlertMACrossoverUp, "%s SMA20 crossed above SMA50", symbol)
		case prev20 >= prev50 && cur20 < cur50:
			emit(model.AlertMACrossoverDown, "%s SMA20 crossed below SMA50", symbol)
		}
	}
	return alerts
}
