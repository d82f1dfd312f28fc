package market

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"marketcore/internal/analytics"
	"marketcore/internal/cache"
	"marketcore/internal/indicator"
	"marketcore/internal/model"
)

// GetMarketSummary quotes each symbol in parallel. Symbols whose data cannot
// be loaded are left out of the map. An empty list means the index symbols.
func (s *Service) GetMarketSummary(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	if len(symbols) == 0 {
		symbols = s.cfg.IndexSymbols
	}
	syms, err := normalizeAll(symbols)
	if err != nil {
		return nil, err
	}
	key := routeKey("summary", "", "symbols", strings.Join(syms, ","))
	return cached(s, key, cache.TTLHistorical, func() (map[string]model.Quote, bool, error) {
		quotes, fresh := s.quotes(ctx, "summary", syms)
		return quotes, fresh, nil
	})
}

// GetTopMovers ranks the tracked universe by absolute percent change of the
// latest bar. limit must be in [1, 50].
func (s *Service) GetTopMovers(ctx context.Context, limit int) ([]model.Mover, error) {
	if err := validateLimit("limit", limit, MaxMoversLimit); err != nil {
		return nil, err
	}
	key := routeKey("movers", "", "limit", strconv.Itoa(limit))
	return cached(s, key, cache.TTLRealtime, func() ([]model.Mover, bool, error) {
		quotes, fresh := s.quotes(ctx, "movers", s.cfg.Symbols)
		movers := make([]model.Mover, 0, len(quotes))
		for sym, q := range quotes {
			movers = append(movers, model.Mover{Symbol: sym, PercentChange: q.PercentChange})
		}
		return analytics.RankMovers(movers, limit), fresh, nil
	})
}

// quotes loads the last two bars of every symbol concurrently. fresh is false
// when any symbol was served from generated data.
func (s *Service) quotes(ctx context.Context, op string, symbols []string) (map[string]model.Quote, bool) {
	var (
		mu     sync.Mutex
		quotes = make(map[string]model.Quote, len(symbols))
		fresh  = true
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, sym := range symbols {
		g.Go(func() error {
			bars, ok, err := s.loadBars(gctx, op, sym, 2)
			if err != nil {
				log.Printf("[market] %s: skipping %s: %v", op, sym, err)
				return nil
			}
			q, found := analytics.Quote(bars)
			if !found {
				return nil
			}
			mu.Lock()
			quotes[sym] = q
			fresh = fresh && ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return quotes, fresh
}

// GetSentiment scores the recent window of symbol.
func (s *Service) GetSentiment(ctx context.Context, symbol string) (model.SentimentReport, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return model.SentimentReport{}, err
	}
	return cached(s, routeKey("sentiment", sym), cache.TTLRealtime, func() (model.SentimentReport, bool, error) {
		bars, fresh, err := s.loadBars(ctx, "sentiment", sym, s.cfg.Window)
		if err != nil {
			return model.SentimentReport{}, false, err
		}
		return analytics.Sentiment(sym, bars), fresh, nil
	})
}

// GetMetrics computes trading metrics for symbol against the beta reference.
// When the reference cannot be loaded beta is left null.
func (s *Service) GetMetrics(ctx context.Context, symbol string) (model.TradingMetrics, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return model.TradingMetrics{}, err
	}
	return cached(s, routeKey("metrics", sym), cache.TTLHistorical, func() (model.TradingMetrics, bool, error) {
		bars, fresh, err := s.loadBars(ctx, "metrics", sym, s.cfg.Window)
		if err != nil {
			return model.TradingMetrics{}, false, err
		}
		ref := s.cfg.BetaReference
		var refBars []model.Bar
		if sym != ref {
			var refFresh bool
			refBars, refFresh, err = s.loadBars(ctx, "metrics", ref, s.cfg.Window)
			if err != nil {
				log.Printf("[market] metrics %s: reference %s unavailable: %v", sym, ref, err)
			}
			fresh = fresh && refFresh
		}
		return analytics.Metrics(sym, bars, ref, refBars), fresh, nil
	})
}

// GetAlerts evaluates the alert rules on the recent window. Alerts are
// recomputed on every call.
func (s *Service) GetAlerts(ctx context.Context, symbol string) ([]model.Alert, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	bars, _, err := s.loadBars(ctx, "alerts", sym, s.cfg.Window)
	if err != nil {
		return nil, err
	}
	return analytics.Alerts(bars, s.now().UTC()), nil
}

// GetIndicators returns the latest indicator values for symbol.
func (s *Service) GetIndicators(ctx context.Context, symbol string) (model.IndicatorSnapshot, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return model.IndicatorSnapshot{}, err
	}
	return cached(s, routeKey("indicators", sym), cache.TTLRealtime, func() (model.IndicatorSnapshot, bool, error) {
		bars, fresh, err := s.loadBars(ctx, "indicators", sym, s.cfg.Window)
		if err != nil {
			return model.IndicatorSnapshot{}, false, err
		}
		return indicator.Snapshot(sym, bars), fresh, nil
	})
}
