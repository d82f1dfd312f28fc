package analytics

import (
	"math"
	"sort"

	"marketcore/internal/model"
)

// Quote summarizes the latest bar against the one before it. With a single
// bar the change is measured from its open.
func Quote(bars []model.Bar) (model.Quote, bool) {
	n := len(bars)
	if n == 0 {
		return model.Quote{}, false
	}
	last := bars[n-1]
	prevClose := last.Open
	if n > 1 {
		prevClose = bars[n-2].Close
	}
	q := model.Quote{
		Symbol:    last.Symbol,
		Price:     last.Close,
		Volume:    last.Volume,
		Timestamp: last.Timestamp,
	}
	if prevClose > 0 {
		q.Change = round(last.Close-prevClose, 2)
		q.PercentChange = round(pctChange(prevClose, last.Close), 2)
	}
	return q, true
}

// RankMovers sorts movers by descending absolute percent change (ties by
// symbol) and keeps the first limit.
func RankMovers(movers []model.Mover, limit int) []model.Mover {
	sorted := append([]model.Mover(nil), movers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := math.Abs(sorted[i].PercentChange), math.Abs(sorted[j].PercentChange)
		if ai != aj {
			return ai > aj
		}
		return sorted[i].Symbol < sorted[j].Symbol
	})
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
