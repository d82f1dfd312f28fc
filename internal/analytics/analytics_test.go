package analytics

import (
	"math"
	"reflect"
	"testing"
	"time"

	"marketcore/internal/model"
)

var start = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

// barsFrom builds bars around closes. Volume defaults to 100k when vols is nil.
func barsFrom(symbol string, closes []float64, vols []int64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		v := int64(100000)
		if vols != nil {
			v = vols[i]
		}
		bars[i] = model.Bar{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      open,
			High:      math.Max(open, c) * 1.0001,
			Low:       math.Min(open, c) * 0.9999,
			Close:     c,
			Volume:    v,
		}
	}
	return bars
}

func ramp(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

func countKind(alerts []model.Alert, kind model.AlertKind) int {
	n := 0
	for _, a := range alerts {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

func findSignal(r model.SentimentReport, name string) (model.Signal, bool) {
	for _, s := range r.Signals {
		if s.Indicator == name {
			return s, true
		}
	}
	return model.Signal{}, false
}

// ────────────────────────────────────────────────────────────
// Sentiment
// ────────────────────────────────────────────────────────────

func TestSentiment_Idempotent(t *testing.T) {
	bars := barsFrom("SPY", ramp(80, 450, 0.3), nil)
	a := Sentiment("SPY", bars)
	b := Sentiment("SPY", bars)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("reports differ:\n%+v\n%+v", a, b)
	}
}

func TestSentiment_StrongUptrendIsBullish(t *testing.T) {
	closes := ramp(80, 100, 0.5)
	// final bar jumps 2% on double volume
	closes = append(closes, closes[len(closes)-1]*1.02)
	vols := make([]int64, len(closes))
	for i := range vols {
		vols[i] = 100000
	}
	vols[len(vols)-1] = 250000

	r := Sentiment("SPY", barsFrom("SPY", closes, vols))
	if r.Label != model.Bullish {
		t.Errorf("label = %s (raw %.2f), want Bullish", r.Label, r.RawScore)
	}
	if r.Score <= 0 || r.Score > 100 {
		t.Errorf("score %.2f out of range", r.Score)
	}
	assertClose(t, "score = raw*25", r.Score, math.Min(100, r.RawScore*ScoreScale), 0.01)

	for _, name := range []string{"RSI", "MACD", "SMA 20/50", "Price Change", "Volume"} {
		s, ok := findSignal(r, name)
		if !ok {
			t.Errorf("missing %s signal", name)
			continue
		}
		if s.Direction != model.DirectionBearish && s.Weight < 0 {
			t.Errorf("%s: direction %s with negative weight", name, s.Direction)
		}
	}
}

func TestSentiment_SignalOrder(t *testing.T) {
	r := Sentiment("SPY", barsFrom("SPY", ramp(80, 100, 0.5), nil))
	want := []string{"RSI", "MACD", "MACD Histogram", "SMA 20/50", "Price Change", "Volume"}
	if len(r.Signals) != len(want) {
		t.Fatalf("got %d signals: %+v", len(r.Signals), r.Signals)
	}
	for i, name := range want {
		if r.Signals[i].Indicator != name {
			t.Errorf("signal %d = %s, want %s", i, r.Signals[i].Indicator, name)
		}
	}
}

func TestSentiment_ShrinkingHistogramGetsNoBonus(t *testing.T) {
	// Steady rise, a faster leg, then a slower one: the MACD line stays above
	// the signal line on the last two bars while the histogram shrinks
	// (1.82 -> 1.76).
	closes := ramp(40, 100, 1)
	for i := 0; i < 10; i++ {
		closes = append(closes, closes[len(closes)-1]+3)
	}
	for i := 0; i < 2; i++ {
		closes = append(closes, closes[len(closes)-1]+2)
	}

	r := Sentiment("SPY", barsFrom("SPY", closes, nil))
	macd, ok := findSignal(r, "MACD")
	if !ok || macd.Direction != model.DirectionBullish {
		t.Fatalf("expected bullish MACD cross signal, got %+v", macd)
	}
	hist, ok := findSignal(r, "MACD Histogram")
	if !ok {
		t.Fatal("missing histogram signal")
	}
	if hist.Weight != 0 || hist.Direction != model.DirectionNeutral {
		t.Errorf("shrinking histogram must not score: %+v", hist)
	}
}

func TestHistogramSignal(t *testing.T) {
	cases := []struct {
		name                 string
		line, sig, hist, prv float64
		want                 float64
	}{
		{"bullish accelerating", 2, 1, 1.0, 0.8, WeightHistogramAccel},
		{"bullish flat", 2, 1, 1.0, 1.0, 0},
		{"bullish shrinking", 2, 1, 0.9, 1.0, 0},
		{"bearish accelerating", -2, -1, -1.0, -0.8, -WeightHistogramAccel},
		{"bearish recovering", -2, -1, -0.7, -0.8, 0},
	}
	for _, tc := range cases {
		if got := histogramSignal(tc.line, tc.sig, tc.hist, tc.prv).Weight; got != tc.want {
			t.Errorf("%s: weight %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRSISignal(t *testing.T) {
	cases := map[float64]float64{
		25: WeightRSIExtreme, 75: -WeightRSIExtreme,
		55: WeightRSICenterline, 45: -WeightRSICenterline, 50: 0,
	}
	for rsi, want := range cases {
		if got := rsiSignal(rsi).Weight; got != want {
			t.Errorf("RSI %.0f: weight %v, want %v", rsi, got, want)
		}
	}
}

func TestLabelFor(t *testing.T) {
	cases := []struct {
		raw  float64
		want model.SentimentLabel
	}{
		{-3, model.Bearish}, {-2.01, model.Bearish}, {-2, model.SlightlyBearish},
		{-0.51, model.SlightlyBearish}, {-0.5, model.Neutral}, {0.49, model.Neutral},
		{0.5, model.SlightlyBullish}, {1.99, model.SlightlyBullish}, {2, model.Bullish},
	}
	for _, tc := range cases {
		if got := labelFor(tc.raw); got != tc.want {
			t.Errorf("labelFor(%v) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestSentiment_ShortWindowOmitsSignals(t *testing.T) {
	r := Sentiment("SPY", barsFrom("SPY", []float64{100, 101}, nil))
	if _, ok := findSignal(r, "RSI"); ok {
		t.Error("RSI needs 15 bars")
	}
	if _, ok := findSignal(r, "Price Change"); !ok {
		t.Error("price change needs only 2 bars")
	}
	if empty := Sentiment("SPY", nil); empty.Label != model.Neutral || len(empty.Signals) != 0 {
		t.Errorf("empty input: %+v", empty)
	}
}

// ────────────────────────────────────────────────────────────
// Alerts
// ────────────────────────────────────────────────────────────

func TestAlerts_VolumeSpike(t *testing.T) {
	// 10-bar average 15,000, last bar 30,000 (ratio 2.0) on a small gain.
	closes := ramp(20, 100, 0.01)
	closes = append(closes, closes[len(closes)-1]*1.002)
	vols := make([]int64, len(closes))
	for i := range vols {
		vols[i] = 15000
	}
	vols[len(vols)-1] = 30000

	alerts := Alerts(barsFrom("SPY", closes, vols), start)
	if n := countKind(alerts, model.AlertVolumeSpike); n != 1 {
		t.Fatalf("VolumeSpike alerts = %d, want 1 (%+v)", n, alerts)
	}
	if countKind(alerts, model.AlertPriceMove) != 0 {
		t.Error("0.2% move must not raise PriceMove")
	}
}

func TestAlerts_PriceMoveFirst(t *testing.T) {
	closes := ramp(20, 100, 0)
	closes = append(closes, 102)
	vols := make([]int64, len(closes))
	for i := range vols {
		vols[i] = 10000
	}
	vols[len(vols)-1] = 40000

	alerts := Alerts(barsFrom("SPY", closes, vols), start)
	if len(alerts) < 2 {
		t.Fatalf("expected price move and volume spike, got %+v", alerts)
	}
	if alerts[0].Kind != model.AlertPriceMove || alerts[1].Kind != model.AlertVolumeSpike {
		t.Errorf("wrong order: %s, %s", alerts[0].Kind, alerts[1].Kind)
	}
	if !alerts[0].ComputedAt.Equal(start) {
		t.Errorf("ComputedAt = %v", alerts[0].ComputedAt)
	}
}

func TestAlerts_Consolidation(t *testing.T) {
	alerts := Alerts(barsFrom("SPY", ramp(12, 100, 0.01), nil), start)
	if countKind(alerts, model.AlertConsolidation) != 1 {
		t.Errorf("expected consolidation alert, got %+v", alerts)
	}
	wide := Alerts(barsFrom("SPY", ramp(12, 100, 0.5), nil), start)
	if countKind(wide, model.AlertConsolidation) != 0 {
		t.Errorf("5%% range is not consolidation: %+v", wide)
	}
}

func TestAlerts_CrossoverUp(t *testing.T) {
	// 60 falling bars then 14 bars rising 2 per bar: SMA20 crosses SMA50 on
	// the final bar.
	closes := ramp(60, 200, -0.5)
	for j := 1; j <= 14; j++ {
		closes = append(closes, closes[59]+float64(j)*2)
	}
	alerts := Alerts(barsFrom("SPY", closes, nil), start)
	if countKind(alerts, model.AlertMACrossoverUp) != 1 {
		t.Errorf("expected MACrossoverUp, got %+v", alerts)
	}
	// One bar earlier there is no crossover yet.
	if countKind(Alerts(barsFrom("SPY", closes[:73], nil), start), model.AlertMACrossoverUp) != 0 {
		t.Error("crossover reported a bar early")
	}
}

func TestAlerts_CrossoverDown(t *testing.T) {
	closes := ramp(60, 100, 0.5)
	for j := 1; j <= 14; j++ {
		closes = append(closes, closes[59]-float64(j)*2)
	}
	alerts := Alerts(barsFrom("SPY", closes, nil), start)
	if countKind(alerts, model.AlertMACrossoverDown) != 1 {
		t.Errorf("expected MACrossoverDown, got %+v", alerts)
	}
}

func TestAlerts_EmptyAndShort(t *testing.T) {
	if a := Alerts(nil, start); len(a) != 0 {
		t.Errorf("expected no alerts, got %+v", a)
	}
	if a := Alerts(barsFrom("SPY", []float64{100}, nil), start); len(a) != 0 {
		t.Errorf("single bar: %+v", a)
	}
}

// ────────────────────────────────────────────────────────────
// Trading metrics
// ────────────────────────────────────────────────────────────

func zigzag(n int) []float64 {
	out := make([]float64, n)
	out[0] = 100
	for i := 1; i < n; i++ {
		r := 0.01
		if i%3 == 0 {
			r = -0.015
		}
		out[i] = out[i-1] * (1 + r)
	}
	return out
}

func TestMetrics_BetaOfLeveragedSeries(t *testing.T) {
	ref := zigzag(120)
	// returns exactly twice the reference's
	sym := make([]float64, len(ref))
	sym[0] = 50
	for i := 1; i < len(ref); i++ {
		sym[i] = sym[i-1] * (1 + 2*(ref[i]/ref[i-1]-1))
	}
	tm := Metrics("TQQQ", barsFrom("TQQQ", sym, nil), "SPY", barsFrom("SPY", ref, nil))
	if !tm.Beta.Valid {
		t.Fatal("beta should be computable")
	}
	assertClose(t, "beta", tm.Beta.ValueOrZero(), 2.0, 1e-3)
	if tm.BetaReference != "SPY" {
		t.Errorf("BetaReference = %q", tm.BetaReference)
	}
}

func TestMetrics_BetaReferenceAndMissing(t *testing.T) {
	bars := barsFrom("SPY", zigzag(30), nil)
	if tm := Metrics("SPY", bars, "SPY", nil); tm.Beta.ValueOrZero() != 1.0 || !tm.Beta.Valid {
		t.Errorf("reference beta = %+v, want 1.0", tm.Beta)
	}
	if tm := Metrics("AAPL", bars, "SPY", nil); tm.Beta.Valid {
		t.Errorf("beta without reference data must be null, got %v", tm.Beta.ValueOrZero())
	}
	flat := barsFrom("SPY", ramp(30, 100, 0), nil)
	if tm := Metrics("AAPL", bars, "SPY", flat); tm.Beta.Valid {
		t.Error("zero-variance reference must give null beta")
	}
}

// leveraged returns closes whose per-bar returns are exactly twice ref's.
func leveraged(ref []float64) []float64 {
	out := make([]float64, len(ref))
	out[0] = 50
	for i := 1; i < len(ref); i++ {
		out[i] = out[i-1] * (1 + 2*(ref[i]/ref[i-1]-1))
	}
	return out
}

func TestMetrics_BetaPairsBarsByTimestamp(t *testing.T) {
	ref := zigzag(121)
	spy := barsFrom("SPY", ref, nil)
	// AAPL has not been advanced yet: SPY carries one extra, newer bar.
	aapl := barsFrom("AAPL", leveraged(ref)[:120], nil)

	tm := Metrics("AAPL", aapl, "SPY", spy)
	if !tm.Beta.Valid {
		t.Fatal("beta should be computable")
	}
	assertClose(t, "beta with reference one bar ahead", tm.Beta.ValueOrZero(), 2.0, 1e-3)

	// Same idea with the symbol ahead of the reference.
	tm = Metrics("AAPL", barsFrom("AAPL", leveraged(ref), nil), "SPY", spy[:100])
	assertClose(t, "beta with symbol ahead", tm.Beta.ValueOrZero(), 2.0, 1e-3)
}

func TestMetrics_BetaNullWithoutCommonTimestamps(t *testing.T) {
	ref := zigzag(120)
	spy := barsFrom("SPY", ref, nil)
	aapl := barsFrom("AAPL", leveraged(ref), nil)
	for i := range aapl {
		aapl[i].Timestamp = aapl[i].Timestamp.Add(30 * 24 * time.Hour)
	}
	if tm := Metrics("AAPL", aapl, "SPY", spy); tm.Beta.Valid {
		t.Errorf("disjoint series must give null beta, got %v", tm.Beta.ValueOrZero())
	}

	// Two shared bars give one paired return, not enough for a covariance.
	aapl = barsFrom("AAPL", leveraged(ref), nil)[:2]
	if tm := Metrics("AAPL", aapl, "SPY", spy); tm.Beta.Valid {
		t.Errorf("a single paired return must give null beta, got %v", tm.Beta.ValueOrZero())
	}
}

func TestPairCloses_LastBarPerMinuteWins(t *testing.T) {
	bars := []model.Bar{
		{Timestamp: start, Close: 10},
		{Timestamp: start.Add(20 * time.Second), Close: 11},
		{Timestamp: start.Add(time.Minute), Close: 12},
	}
	ref := []model.Bar{
		{Timestamp: start.Add(5 * time.Second), Close: 100},
		{Timestamp: start.Add(time.Minute + 3*time.Second), Close: 101},
		{Timestamp: start.Add(2 * time.Minute), Close: 102},
	}
	xs, ys := pairCloses(bars, ref)
	if !reflect.DeepEqual(xs, []float64{11, 12}) || !reflect.DeepEqual(ys, []float64{100, 101}) {
		t.Errorf("pairCloses = %v / %v", xs, ys)
	}
}

func TestMetrics_RangeVolumeAndVolatility(t *testing.T) {
	closes := []float64{100, 110, 90, 100}
	vols := []int64{100000, 200000, 150000, 150000}
	tm := Metrics("SPY", barsFrom("SPY", closes, vols), "SPY", nil)

	assertClose(t, "high52w", tm.High52w.ValueOrZero(), 110.01, 0.01)
	assertClose(t, "low52w", tm.Low52w.ValueOrZero(), 89.99, 0.01)
	assertClose(t, "avg volume", tm.AverageVolume.ValueOrZero(), 150000, 0)
	if tm.AverageVolumeFormatted != "150 k" {
		t.Errorf("formatted volume = %q", tm.AverageVolumeFormatted)
	}
	if tm.DistanceFromHighPct.ValueOrZero() >= 0 || tm.DistanceFromLowPct.ValueOrZero() <= 0 {
		t.Errorf("distances: %v / %v", tm.DistanceFromHighPct.ValueOrZero(), tm.DistanceFromLowPct.ValueOrZero())
	}
	if !tm.Volatility.Valid || tm.Volatility.ValueOrZero() <= 0 {
		t.Errorf("volatility = %+v", tm.Volatility)
	}
	if tm.MA50.Valid || tm.Returns.Day.Valid {
		t.Error("4 bars cannot give MA50 or a day return")
	}
}

func TestMetrics_ConstantReturnsHaveZeroVolatility(t *testing.T) {
	closes := make([]float64, 50)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * 1.001
	}
	tm := Metrics("SPY", barsFrom("SPY", closes, nil), "SPY", nil)
	assertClose(t, "volatility", tm.Volatility.ValueOrZero(), 0, 1e-4)
}

func TestMetrics_PeriodReturns(t *testing.T) {
	closes := ramp(SamplesPerDay+1, 100, 0)
	closes[len(closes)-1] = 101
	tm := Metrics("SPY", barsFrom("SPY", closes, nil), "SPY", nil)
	if !tm.Returns.Day.Valid {
		t.Fatal("79 bars should give a day return")
	}
	assertClose(t, "day return", tm.Returns.Day.ValueOrZero(), 1.0, 1e-9)
	if tm.Returns.Week.Valid || tm.Returns.Month.Valid {
		t.Error("week and month need more bars")
	}
	if !tm.MA50.Valid || tm.MA200.Valid {
		t.Error("79 bars: MA50 present, MA200 absent")
	}
}

func TestMetrics_Empty(t *testing.T) {
	tm := Metrics("SPY", nil, "SPY", nil)
	if tm.High52w.Valid || tm.Volatility.Valid || tm.Beta.Valid {
		t.Errorf("empty input should produce null fields: %+v", tm)
	}
}

// ────────────────────────────────────────────────────────────
// Quotes and movers
// ────────────────────────────────────────────────────────────

func TestQuote(t *testing.T) {
	q, ok := Quote(barsFrom("SPY", []float64{400, 404}, nil))
	if !ok {
		t.Fatal("expected quote")
	}
	assertClose(t, "price", q.Price, 404, 0)
	assertClose(t, "change", q.Change, 4, 1e-9)
	assertClose(t, "pct", q.PercentChange, 1, 1e-9)

	if _, ok := Quote(nil); ok {
		t.Error("no bars, no quote")
	}
}

func TestRankMovers(t *testing.T) {
	in := []model.Mover{
		{Symbol: "AAPL", PercentChange: 0.5},
		{Symbol: "TSLA", PercentChange: -3.2},
		{Symbol: "NVDA", PercentChange: 2.1},
		{Symbol: "MSFT", PercentChange: -0.5},
	}
	got := RankMovers(in, 3)
	want := []string{"TSLA", "NVDA", "AAPL"}
	if len(got) != 3 {
		t.Fatalf("got %d movers", len(got))
	}
	for i, sym := range want {
		if got[i].Symbol != sym {
			t.Errorf("position %d: %s, want %s", i, got[i].Symbol, sym)
		}
	}
	if in[0].Symbol != "AAPL" {
		t.Error("RankMovers mutated its input")
	}
}
