// Package generator synthesizes plausible OHLCV bars. It seeds empty series,
// advances a series by one bar on each scheduler tick, and stands in for the
// store when a read times out.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketcore/internal/model"
)

const (
	// Interval is the bar cadence.
	Interval = 5 * time.Minute

	// MaxBackfill bounds how many bars a single backfill may persist.
	MaxBackfill = 1000
	// MaxSimulate bounds the long-horizon simulation.
	MaxSimulate = 20000

	// DefaultBasePrice is used for symbols missing from the base price table.
	DefaultBasePrice = 100.0

	// GBM parameters for long-horizon simulation.
	AnnualDrift     = 0.08
	AnnualVol       = 0.15
	TradingDays     = 252
	IntervalsPerDay = 78 // 6.5h session of 5-minute bars

	minVolume = 50_000
	maxVolume = 200_000
	minPrice  = 0.01
)

var basePrices = map[string]float64{
	"SPY":   450,
	"QQQ":   380,
	"DIA":   350,
	"IWM":   200,
	"AAPL":  180,
	"MSFT":  330,
	"GOOGL": 135,
	"AMZN":  130,
	"TSLA":  250,
	"META":  300,
	"NVDA":  450,
}

// BasePrice returns the starting price for symbol.
func BasePrice(symbol string) float64 {
	if p, ok := basePrices[strings.ToUpper(symbol)]; ok {
		return p
	}
	return DefaultBasePrice
}

// Generator produces bars from a private random source. It is safe for
// concurrent use; a fixed seed makes its output reproducible.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a generator seeded with seed.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// NewRandom creates a generator seeded from the clock.
func NewRandom() *Generator {
	return New(time.Now().UnixNano())
}

// Backfill produces count bars for symbol at a 5-minute cadence ending at now
// (truncated to the interval), oldest first. The close follows a slow and a
// medium sinusoid around the base price plus uniform noise.
func (g *Generator) Backfill(symbol string, count int, now time.Time) ([]model.Bar, error) {
	if count < 1 || count > MaxBackfill {
		return nil, fmt.Errorf("%w: backfill count %d outside [1, %d]", model.ErrValidation, count, MaxBackfill)
	}
	symbol = strings.ToUpper(symbol)
	base := BasePrice(symbol)
	end := now.UTC().Truncate(Interval)
	const volatility = 1.0

	g.mu.Lock()
	defer g.mu.Unlock()

	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		x := float64(i)
		wave := 0.02*math.Sin(2*math.Pi*x/30) + 0.01*math.Sin(2*math.Pi*x/8)
		noise := g.uniform(-0.005, 0.005)
		closePx := base * (1 + volatility*(wave+noise))
		openPx := closePx * (1 + g.uniform(-0.002, 0.002))

		bars[i] = g.shape(symbol, end.Add(-time.Duration(count-1-i)*Interval), openPx, closePx, 0.003)
	}
	return bars, nil
}

// Next produces the bar following prev at time now. The open equals the
// previous close and the step size scales with the square root of the elapsed
// minutes, as a Brownian walk would.
func (g *Generator) Next(prev model.Bar, now time.Time) model.Bar {
	ts := now.UTC().Truncate(time.Second)
	if !ts.After(prev.Timestamp) {
		ts = prev.Timestamp.Add(Interval)
	}
	elapsed := math.Max(1, ts.Sub(prev.Timestamp).Minutes())
	sigma := 0.001 * math.Sqrt(elapsed)

	g.mu.Lock()
	defer g.mu.Unlock()

	openPx := prev.Close
	closePx := math.Max(minPrice, openPx*(1+g.rng.NormFloat64()*sigma))
	return g.shape(prev.Symbol, ts, openPx, closePx, sigma/2)
}

// Simulate produces count bars for symbol with a geometric Brownian walk at
// annual drift 8% and volatility 15%, scaled to the 5-minute interval. Used for
// horizons too long to persist.
func (g *Generator) Simulate(symbol string, count int, now time.Time) ([]model.Bar, error) {
	if count < 1 || count > MaxSimulate {
		return nil, fmt.Errorf("%w: simulate count %d outside [1, %d]", model.ErrValidation, count, MaxSimulate)
	}
	symbol = strings.ToUpper(symbol)
	intervals := float64(TradingDays * IntervalsPerDay)
	intervalDrift := AnnualDrift / intervals
	intervalVol := AnnualVol / math.Sqrt(intervals)
	end := now.UTC().Truncate(Interval)

	g.mu.Lock()
	defer g.mu.Unlock()

	bars := make([]model.Bar, count)
	price := BasePrice(symbol)
	for i := 0; i < count; i++ {
		openPx := price
		price = math.Max(minPrice, price*(1+intervalDrift+intervalVol*g.rng.NormFloat64()))
		bars[i] = g.shape(symbol, end.Add(-time.Duration(count-1-i)*Interval), openPx, price, intervalVol)
	}
	return bars, nil
}

// shape builds a bar around open and close: high and low extend the body by up
// to wiggle in proportion. Prices are rounded to cents, which preserves the
// ordering so the OHLC invariants still hold. Caller holds g.mu.
func (g *Generator) shape(symbol string, ts time.Time, openPx, closePx, wiggle float64) model.Bar {
	hi := math.Max(openPx, closePx) * (1 + g.uniform(0, wiggle))
	lo := math.Min(openPx, closePx) * (1 - g.uniform(0, wiggle))
	return model.Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      round2(openPx),
		High:      round2(hi),
		Low:       math.Max(minPrice, round2(lo)),
		Close:     round2(closePx),
		Volume:    int64(minVolume + g.rng.Intn(maxVolume-minVolume+1)),
		Source:    model.SourceSimulated,
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
