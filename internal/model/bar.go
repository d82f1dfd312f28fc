package model

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Source tags where a bar came from.
type Source string

const (
	SourceSimulated Source = "SIMULATED"
	SourceExternal  Source = "EXTERNAL"
	SourceCustom    Source = "CUSTOM"
)

// Valid reports whether s is one of the known source tags.
func (s Source) Valid() bool {
	switch s {
	case SourceSimulated, SourceExternal, SourceCustom:
		return true
	}
	return false
}

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.]{1,10}$`)

// NormalizeSymbol validates a symbol and returns its canonical upper-case form.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.TrimSpace(symbol)
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("%w: symbol %q must match %s", ErrValidation, symbol, symbolPattern.String())
	}
	return strings.ToUpper(s), nil
}

// Bar is one OHLCV sample for a symbol.
// Timestamps are UTC with second precision.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Source    Source    `json:"source"`
}

// Key returns "symbol@unix" which uniquely identifies the bar.
func (b *Bar) Key() string {
	return b.Symbol + "@" + strconv.FormatInt(b.Timestamp.Unix(), 10)
}

// Validate checks the OHLC invariants. The range is checked against both open
// and close, not just open.
func (b *Bar) Validate() error {
	if !symbolPattern.MatchString(b.Symbol) {
		return fmt.Errorf("%w: invalid symbol %q", ErrValidation, b.Symbol)
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("%w: %s: zero timestamp", ErrValidation, b.Symbol)
	}
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if !(p > 0) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: %s: prices must be positive, got o=%v h=%v l=%v c=%v",
				ErrValidation, b.Symbol, b.Open, b.High, b.Low, b.Close)
		}
	}
	if b.High < math.Max(b.Open, b.Close) {
		return fmt.Errorf("%w: %s: high %v below max(open, close)", ErrValidation, b.Symbol, b.High)
	}
	if b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("%w: %s: low %v above min(open, close)", ErrValidation, b.Symbol, b.Low)
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: %s: high %v below low %v", ErrValidation, b.Symbol, b.High, b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("%w: %s: negative volume %d", ErrValidation, b.Symbol, b.Volume)
	}
	if b.Source != "" && !b.Source.Valid() {
		return fmt.Errorf("%w: %s: unknown source %q", ErrValidation, b.Symbol, b.Source)
	}
	return nil
}

// Normalize upper-cases the symbol, truncates the timestamp to the second in
// UTC and defaults the source tag.
func (b Bar) Normalize() Bar {
	b.Symbol = strings.ToUpper(b.Symbol)
	b.Timestamp = b.Timestamp.UTC().Truncate(time.Second)
	if b.Source == "" {
		b.Source = SourceSimulated
	}
	return b
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}

// Closes extracts close prices, oldest first.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// Highs extracts high prices, oldest first.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].High
	}
	return out
}

// Lows extracts low prices, oldest first.
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Low
	}
	return out
}

// Volumes extracts volumes as floats, oldest first.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = float64(bars[i].Volume)
	}
	return out
}

// Reverse returns a reversed copy of bars. Stores return newest first and
// analytics want oldest first.
func Reverse(bars []Bar) []Bar {
	out := make([]Bar, len(bars))
	for i := range bars {
		out[len(bars)-1-i] = bars[i]
	}
	return out
}
