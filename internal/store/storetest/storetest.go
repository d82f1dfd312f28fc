// Package storetest runs the same behavioural checks against every
// model.BarStore implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketcore/internal/model"
)

var base = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

// MakeBar returns a valid bar for symbol, i intervals after a fixed start.
func MakeBar(symbol string, i int) model.Bar {
	c := 100 + float64(i)
	return model.Bar{
		Symbol:    symbol,
		Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
		Open:      c - 0.25,
		High:      c + 0.5,
		Low:       c - 0.5,
		Close:     c,
		Volume:    int64(100000 + i),
		Source:    model.SourceSimulated,
	}
}

// Run exercises newStore with the shared BarStore contract.
func Run(t *testing.T, newStore func(t *testing.T) model.BarStore) {
	t.Run("AppendThenLatest", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if err := s.Append(ctx, MakeBar("SPY", i)); err != nil {
				t.Fatalf("Append %d: %v", i, err)
			}
		}
		got, ok, err := s.Latest(ctx, "SPY")
		if err != nil || !ok {
			t.Fatalf("Latest: ok=%v err=%v", ok, err)
		}
		if want := MakeBar("SPY", 2); got != want {
			t.Errorf("Latest = %+v, want %+v", got, want)
		}
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		b := MakeBar("SPY", 0)
		if err := s.Append(ctx, b); err != nil {
			t.Fatalf("first Append: %v", err)
		}
		b2 := b
		b2.Close = b.Close + 0.1
		b2.High = b.High + 0.1
		if err := s.Append(ctx, b2); !errors.Is(err, model.ErrDuplicateBar) {
			t.Fatalf("second Append: expected ErrDuplicateBar, got %v", err)
		}
		got, _, _ := s.Latest(ctx, "SPY")
		if got.Close != b.Close {
			t.Errorf("duplicate overwrote the stored bar: close=%v", got.Close)
		}
	})

	t.Run("InvalidRejected", func(t *testing.T) {
		s := newStore(t)
		b := MakeBar("SPY", 0)
		b.High = b.Low - 1
		if err := s.Append(context.Background(), b); !errors.Is(err, model.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if _, ok, _ := s.Latest(context.Background(), "SPY"); ok {
			t.Error("invalid bar was stored")
		}
	})

	t.Run("QueryNewestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		// insert out of order
		for _, i := range []int{3, 0, 4, 1, 2} {
			if err := s.Append(ctx, MakeBar("QQQ", i)); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.Append(ctx, MakeBar("SPY", 9)); err != nil {
			t.Fatal(err)
		}
		got, err := s.Query(ctx, "QQQ", 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d bars, want 3", len(got))
		}
		for i, want := range []int{4, 3, 2} {
			if got[i] != MakeBar("QQQ", want) {
				t.Errorf("position %d: got %v, want bar %d", i, got[i].Timestamp, want)
			}
		}
		all, _ := s.Query(ctx, "QQQ", 100)
		if len(all) != 5 {
			t.Errorf("limit above size: got %d bars", len(all))
		}
	})

	t.Run("UnknownSymbol", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Query(context.Background(), "NOPE", 10)
		if err != nil || len(got) != 0 {
			t.Errorf("Query unknown: %v, %v", got, err)
		}
		if _, ok, err := s.Latest(context.Background(), "NOPE"); ok || err != nil {
			t.Errorf("Latest unknown: ok=%v err=%v", ok, err)
		}
	})

	t.Run("AppendBatchSkipsDuplicates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Append(ctx, MakeBar("DIA", 1)); err != nil {
			t.Fatal(err)
		}
		batch := []model.Bar{MakeBar("DIA", 0), MakeBar("DIA", 1), MakeBar("DIA", 2), MakeBar("IWM", 0)}
		n, err := s.AppendBatch(ctx, batch)
		if err != nil {
			t.Fatalf("AppendBatch: %v", err)
		}
		if n != 3 {
			t.Errorf("inserted = %d, want 3", n)
		}
		syms, err := s.Symbols(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(syms) != 2 || syms[0] != "DIA" || syms[1] != "IWM" {
			t.Errorf("Symbols = %v", syms)
		}
	})

	t.Run("AppendBatchRejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		bad := MakeBar("DIA", 1)
		bad.Volume = -5
		_, err := s.AppendBatch(context.Background(), []model.Bar{MakeBar("DIA", 0), bad})
		if !errors.Is(err, model.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if _, ok, _ := s.Latest(context.Background(), "DIA"); ok {
			t.Error("batch with an invalid bar must not be partially applied")
		}
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		for _, sym := range []string{"SPY", "QQQ", "DIA", "IWM"} {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					if err := s.Append(ctx, MakeBar(sym, i)); err != nil {
						t.Errorf("%s %d: %v", sym, i, err)
						return
					}
				}
			}(sym)
		}
		wg.Wait()
		for _, sym := range []string{"SPY", "QQQ", "DIA", "IWM"} {
			bars, _ := s.Query(ctx, sym, 1000)
			if len(bars) != 25 {
				t.Errorf("%s: %d bars", sym, len(bars))
			}
		}
	})
}
