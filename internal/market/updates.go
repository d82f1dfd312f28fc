package market

import (
	"context"
	"fmt"
	"log"
	"sort"

	"marketcore/internal/broadcast"
	"marketcore/internal/model"
)

// Register adds a broadcast subscriber. An empty id gets a generated one.
func (s *Service) Register(id string) *broadcast.Subscriber {
	return s.subs.Register(id)
}

// Unregister drops the subscriber and closes its channel.
func (s *Service) Unregister(id string) {
	s.subs.Unregister(id)
}

// Subscribe adds symbol to the subscriber's set.
func (s *Service) Subscribe(subscriberID, symbol string) error {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	return s.subs.Subscribe(subscriberID, sym)
}

// Unsubscribe removes symbol from the subscriber's set.
func (s *Service) Unsubscribe(subscriberID, symbol string) error {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	return s.subs.Unsubscribe(subscriberID, sym)
}

// Subscriptions lists the symbols subscriberID receives, sorted.
func (s *Service) Subscriptions(subscriberID string) []string {
	return s.subs.Subscriptions(subscriberID)
}

// SubscriberCount is the number of registered subscribers.
func (s *Service) SubscriberCount() int { return s.subs.Count() }

// InvalidateCache drops every cached response mentioning symbol and returns
// how many entries were removed.
func (s *Service) InvalidateCache(symbol string) (int, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return 0, err
	}
	n := s.cache.Invalidate(sym)
	log.Printf("[market] invalidated %d cache entries for %s", n, sym)
	return n, nil
}

// TrackedSymbols is the configured universe plus every symbol with at least
// one subscriber, sorted.
func (s *Service) TrackedSymbols() []string {
	set := make(map[string]struct{}, len(s.cfg.Symbols))
	for _, sym := range s.cfg.Symbols {
		set[sym] = struct{}{}
	}
	for _, sym := range s.subs.Symbols() {
		set[sym] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Seed backfills count generated bars ending now into the store. Bars that
// already exist are kept. Returns how many were inserted.
func (s *Service) Seed(ctx context.Context, symbol string, count int) (int, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return 0, err
	}
	n, err := s.seed(ctx, sym, count)
	if err != nil {
		return 0, fmt.Errorf("seed %s: %w", sym, err)
	}
	return n, nil
}

// Advance appends the next bar of symbol's series, drops the cached
// responses that depend on it and publishes it. An empty series is seeded
// first. Publish failures are logged; the bar is already persisted.
func (s *Service) Advance(ctx context.Context, symbol string) (model.Bar, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return model.Bar{}, err
	}

	prev, ok, err := s.latest(ctx, sym)
	if err != nil {
		return model.Bar{}, fmt.Errorf("%w: advance %s: latest: %v", model.ErrDependency, sym, err)
	}
	if !ok {
		if _, err := s.seed(ctx, sym, s.cfg.SeedBars); err != nil {
			return model.Bar{}, fmt.Errorf("%w: advance %s: seed: %v", model.ErrDependency, sym, err)
		}
		if prev, ok, err = s.latest(ctx, sym); err != nil || !ok {
			return model.Bar{}, fmt.Errorf("%w: advance %s: no bar after seeding (err=%v)", model.ErrDependency, sym, err)
		}
	}

	next := s.gen.Next(prev, s.now())
	wctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.store.Append(wctx, next); err != nil {
		return model.Bar{}, fmt.Errorf("advance %s: %w", sym, err)
	}

	s.cache.Invalidate(sym)
	s.cache.Invalidate("movers")
	if sym == s.cfg.BetaReference {
		// every symbol's beta is computed against this series
		s.cache.Invalidate("metrics/")
	}

	if err := s.pub.Publish(ctx, next); err != nil {
		log.Printf("[market] advance %s: publish failed: %v", sym, err)
	}
	return next, nil
}

func (s *Service) latest(ctx context.Context, symbol string) (model.Bar, bool, error) {
	qctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.Latest(qctx, symbol)
}
