package model

import (
	"errors"
	"testing"
	"time"
)

func validBar() Bar {
	return Bar{
		Symbol:    "SPY",
		Timestamp: time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC),
		Open:      450,
		High:      452,
		Low:       449,
		Close:     451,
		Volume:    100000,
		Source:    SourceSimulated,
	}
}

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"spy", "SPY", false},
		{"BRK.B", "BRK.B", false},
		{" aapl ", "AAPL", false},
		{"INVALID123456", "", true},
		{"", "", true},
		{"SP Y", "", true},
		{"SPY$", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeSymbol(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("NormalizeSymbol(%q): expected ErrValidation, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeSymbol(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBar_Validate(t *testing.T) {
	b := validBar()
	if err := b.Validate(); err != nil {
		t.Fatalf("expected valid bar, got %v", err)
	}

	cases := map[string]func(b *Bar){
		"high below close":   func(b *Bar) { b.High = 450.5 },
		"low above open":     func(b *Bar) { b.Low = 450.5; b.Open = 450.2 },
		"zero price":         func(b *Bar) { b.Open = 0 },
		"negative volume":    func(b *Bar) { b.Volume = -1 },
		"zero timestamp":     func(b *Bar) { b.Timestamp = time.Time{} },
		"bad symbol":         func(b *Bar) { b.Symbol = "TOOLONGSYMBOL" },
		"unknown source tag": func(b *Bar) { b.Source = "ALPHA_VANTAGE" },
	}
	for name, mutate := range cases {
		bad := validBar()
		mutate(&bad)
		if err := bad.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

// A close above the open must widen the required high, not just the open.
func TestBar_Validate_UsesMaxOfOpenClose(t *testing.T) {
	b := validBar()
	b.Open = 450
	b.Close = 455
	b.High = 452 // >= open but < close
	if err := b.Validate(); err == nil {
		t.Fatal("expected high < close to be rejected")
	}
}

func TestBar_Normalize(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	b := Bar{Symbol: "spy", Timestamp: time.Date(2024, 1, 15, 9, 30, 0, 999, loc)}
	n := b.Normalize()
	if n.Symbol != "SPY" {
		t.Errorf("symbol: got %q", n.Symbol)
	}
	if n.Timestamp.Location() != time.UTC || n.Timestamp.Nanosecond() != 0 {
		t.Errorf("timestamp not normalized: %v", n.Timestamp)
	}
	if n.Source != SourceSimulated {
		t.Errorf("source: got %q", n.Source)
	}
}

func TestReverse(t *testing.T) {
	bars := []Bar{{Close: 1}, {Close: 2}, {Close: 3}}
	r := Reverse(bars)
	if r[0].Close != 3 || r[2].Close != 1 {
		t.Errorf("unexpected order: %v", Closes(r))
	}
	if bars[0].Close != 1 {
		t.Error("Reverse mutated its input")
	}
}
