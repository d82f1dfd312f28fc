// Package memory is an in-process BarStore. Each symbol keeps its bars sorted
// by timestamp: appending the newest bar is amortized O(1), an out-of-order
// insert is a binary search plus a copy, and the "latest N" query reads the
// tail.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"marketcore/internal/model"
	"marketcore/internal/store"
)

// Store implements model.BarStore in memory.
type Store struct {
	mu     sync.RWMutex
	series map[string][]model.Bar // ascending by timestamp
	locks  *store.KeyedMutex
}

var _ model.BarStore = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		series: make(map[string][]model.Bar),
		locks:  store.NewKeyedMutex(),
	}
}

func (s *Store) Append(ctx context.Context, bar model.Bar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bar = bar.Normalize()
	if err := bar.Validate(); err != nil {
		return err
	}
	unlock := s.locks.Lock(bar.Symbol)
	defer unlock()

	if !s.insert(bar) {
		return fmt.Errorf("%w: %s", model.ErrDuplicateBar, bar.Key())
	}
	return nil
}

// AppendBatch validates every bar first so an invalid bar leaves the store
// untouched, then inserts the rest skipping duplicates.
func (s *Store) AppendBatch(ctx context.Context, bars []model.Bar) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	normalized := make([]model.Bar, len(bars))
	for i, b := range bars {
		normalized[i] = b.Normalize()
		if err := normalized[i].Validate(); err != nil {
			return 0, err
		}
	}

	inserted := 0
	for _, b := range normalized {
		unlock := s.locks.Lock(b.Symbol)
		if s.insert(b) {
			inserted++
		}
		unlock()
	}
	return inserted, nil
}

// insert places bar in timestamp order. Caller holds the symbol lock.
func (s *Store) insert(bar model.Bar) bool {
	s.mu.RLock()
	bars := s.series[bar.Symbol]
	s.mu.RUnlock()

	i := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Timestamp.Before(bar.Timestamp)
	})
	if i < len(bars) && bars[i].Timestamp.Equal(bar.Timestamp) {
		return false
	}

	if i == len(bars) {
		// Newest bar, the usual tick: readers only see bars[:len] of the old
		// header, so growing in place is safe.
		s.mu.Lock()
		s.series[bar.Symbol] = append(bars, bar)
		s.mu.Unlock()
		return true
	}

	// Copy-on-write so readers holding the old slice never see a shifted one.
	next := make([]model.Bar, 0, len(bars)+1)
	next = append(next, bars[:i]...)
	next = append(next, bar)
	next = append(next, bars[i:]...)

	s.mu.Lock()
	s.series[bar.Symbol] = next
	s.mu.Unlock()
	return true
}

func (s *Store) Query(ctx context.Context, symbol string, limit int) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	bars := s.series[symbol]
	s.mu.RUnlock()

	if limit > len(bars) {
		limit = len(bars)
	}
	out := make([]model.Bar, 0, limit)
	for i := len(bars) - 1; i >= len(bars)-limit; i-- {
		out = append(out, bars[i])
	}
	return out, nil
}

func (s *Store) Latest(ctx context.Context, symbol string) (model.Bar, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Bar{}, false, err
	}
	unlock := s.locks.RLock(symbol)
	defer unlock()

	s.mu.RLock()
	bars := s.series[symbol]
	s.mu.RUnlock()
	if len(bars) == 0 {
		return model.Bar{}, false, nil
	}
	return bars[len(bars)-1], true, nil
}

func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.series))
	for sym, bars := range s.series {
		if len(bars) > 0 {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Close() error { return nil }
