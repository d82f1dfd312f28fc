// Package market is the read/write façade over the bar store, the generator,
// the analytics functions and the response cache. Transports (REST, websocket)
// and the refresh scheduler only talk to Service.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketcore/internal/broadcast"
	"marketcore/internal/cache"
	"marketcore/internal/generator"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
)

// Defaults applied by New when the matching Config field is zero.
const (
	DefaultStoreTimeout  = 2 * time.Second
	DefaultSeedBars      = 200
	DefaultWindow        = generator.MaxBackfill
	DefaultBetaReference = "SPY"

	MaxLatestLimit = 1000
	MaxMoversLimit = 50
)

// DefaultIndexSymbols is the market summary used when the caller names none.
var DefaultIndexSymbols = []string{"SPY", "QQQ", "DIA", "IWM"}

// DefaultSymbols is the tracked universe when none is configured.
var DefaultSymbols = []string{"SPY", "QQQ", "DIA", "IWM", "AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA"}

// Periods maps a history period to its number of 5-minute samples.
var Periods = map[string]int{
	"1d": 75,
	"1w": 390,
	"1m": 1680,
	"3m": 5000,
	"6m": 10000,
	"1y": 20000,
}

// Config tunes the façade.
type Config struct {
	// Symbols is the tracked universe: refreshed by the scheduler and ranked
	// by GetTopMovers.
	Symbols []string
	// IndexSymbols is the default market summary.
	IndexSymbols []string
	// BetaReference is the benchmark used for beta.
	BetaReference string
	// StoreTimeout bounds every store call before falling back to generated data.
	StoreTimeout time.Duration
	// SeedBars is how many bars are backfilled into an empty series on first read.
	SeedBars int
	// Window is how many recent bars feed indicators, sentiment, metrics and alerts.
	Window int
}

func (c Config) withDefaults() Config {
	if len(c.Symbols) == 0 {
		c.Symbols = DefaultSymbols
	}
	if len(c.IndexSymbols) == 0 {
		c.IndexSymbols = DefaultIndexSymbols
	}
	if c.BetaReference == "" {
		c.BetaReference = DefaultBetaReference
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.SeedBars <= 0 {
		c.SeedBars = DefaultSeedBars
	}
	if c.SeedBars > generator.MaxBackfill {
		c.SeedBars = generator.MaxBackfill
	}
	if c.Window <= 0 || c.Window > generator.MaxBackfill {
		c.Window = DefaultWindow
	}
	return c
}

// Service implements the market operations.
type Service struct {
	cfg   Config
	store model.BarStore
	gen   *generator.Generator
	cache *cache.Cache
	subs  *broadcast.Broadcaster
	pub   model.BarPublisher
	now   func() time.Time
}

// New wires a Service. pub receives every bar appended by Advance; when nil
// the broadcaster is used on its own.
func New(cfg Config, store model.BarStore, gen *generator.Generator, c *cache.Cache, subs *broadcast.Broadcaster, pub model.BarPublisher) *Service {
	if pub == nil {
		pub = subs
	}
	return &Service{
		cfg:   cfg.withDefaults(),
		store: store,
		gen:   gen,
		cache: c,
		subs:  subs,
		pub:   pub,
		now:   time.Now,
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// ────────────────────────────────────────────────────────────
// Input validation
// ────────────────────────────────────────────────────────────

func validateLimit(name string, v, hi int) error {
	if v < 1 || v > hi {
		return fmt.Errorf("%w: %s must be in [1, %d], got %d", model.ErrValidation, name, hi, v)
	}
	return nil
}

func normalizeAll(symbols []string) ([]string, error) {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, raw := range symbols {
		sym, err := model.NormalizeSymbol(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out, nil
}

// ────────────────────────────────────────────────────────────
// Cache helper
// ────────────────────────────────────────────────────────────

// cached serves key from the cache or computes, stores and returns it.
// compute reports whether its result may be cached; generated fallback data
// is never cached so the next read retries the store.
func cached[T any](s *Service, key string, ttl time.Duration, compute func() (T, bool, error)) (T, error) {
	if raw, ok := s.cache.Get(key); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		log.Printf("[market] dropping undecodable cache entry %s", key)
		s.cache.Invalidate(key)
	}
	v, cacheable, err := compute()
	if err != nil {
		return v, err
	}
	if cacheable {
		if raw, err := json.Marshal(v); err == nil {
			s.cache.Set(key, raw, ttl)
		}
	}
	return v, nil
}

func routeKey(route, symbol string, params ...string) string {
	var b strings.Builder
	b.WriteString(route)
	if symbol != "" {
		b.WriteString("/")
		b.WriteString(symbol)
	}
	for i := 0; i+1 < len(params); i += 2 {
		if i == 0 {
			b.WriteString("?")
		} else {
			b.WriteString("&")
		}
		b.WriteString(params[i])
		b.WriteString("=")
		b.WriteString(params[i+1])
	}
	return b.String()
}

// ────────────────────────────────────────────────────────────
// Bar loading
// ────────────────────────────────────────────────────────────

// loadBars returns up to n of the newest bars for symbol, oldest first.
// An empty series is seeded from the generator and persisted. When the store
// fails or times out the bars are generated on the fly; fresh is false then.
func (s *Service) loadBars(ctx context.Context, op, symbol string, n int) (bars []model.Bar, fresh bool, err error) {
	bars, err = s.query(ctx, symbol, n)
	if err == nil && len(bars) == 0 {
		if _, seedErr := s.seed(ctx, symbol, max(n, s.cfg.SeedBars)); seedErr != nil {
			err = seedErr
		} else {
			bars, err = s.query(ctx, symbol, n)
		}
	}
	if err != nil {
		log.Printf("[market] %s %s: store unavailable, serving generated bars: %v", op, symbol, err)
		metrics.StoreFallbacks.WithLabelValues(op).Inc()
		gen, genErr := s.gen.Backfill(symbol, min(n, generator.MaxBackfill), s.now())
		if genErr != nil {
			return nil, false, fmt.Errorf("%w: %s %s: store: %v; fallback: %v", model.ErrDependency, op, symbol, err, genErr)
		}
		return gen, false, nil
	}
	if len(bars) == 0 {
		return nil, false, fmt.Errorf("%w: no bars for %s", model.ErrNotFound, symbol)
	}
	return model.Reverse(bars), true, nil
}

func (s *Service) query(ctx context.Context, symbol string, n int) ([]model.Bar, error) {
	qctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.Query(qctx, symbol, n)
}

func (s *Service) seed(ctx context.Context, symbol string, count int) (int, error) {
	count = min(count, generator.MaxBackfill)
	bars, err := s.gen.Backfill(symbol, count, s.now())
	if err != nil {
		return 0, err
	}
	wctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	inserted, err := s.store.AppendBatch(wctx, bars)
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		log.Printf("[market] seeded %s with %d bars", symbol, inserted)
		s.cache.Invalidate(symbol)
	}
	return inserted, nil
}

// ────────────────────────────────────────────────────────────
// Bars
// ────────────────────────────────────────────────────────────

// GetLatestBars returns the newest limit bars for symbol in ascending time
// order. limit must be in [1, 1000].
func (s *Service) GetLatestBars(ctx context.Context, symbol string, limit int) ([]model.Bar, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := validateLimit("limit", limit, MaxLatestLimit); err != nil {
		return nil, err
	}
	key := routeKey("bars", sym, "limit", strconv.Itoa(limit))
	return cached(s, key, cache.TTLRealtime, func() ([]model.Bar, bool, error) {
		return s.loadBars(ctx, "latest", sym, limit)
	})
}

// GetHistoricalBars returns the bars covering period, oldest first. Periods
// longer than the persistence cap come from the long-horizon simulation.
func (s *Service) GetHistoricalBars(ctx context.Context, symbol, period string) ([]model.Bar, error) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	count, ok := Periods[period]
	if !ok {
		return nil, fmt.Errorf("%w: unknown period %q (want one of %s)", model.ErrValidation, period, periodNames())
	}
	key := routeKey("history", sym, "period", period)
	return cached(s, key, cache.TTLHistorical, func() ([]model.Bar, bool, error) {
		if count > generator.MaxBackfill {
			bars, err := s.gen.Simulate(sym, count, s.now())
			if err != nil {
				return nil, false, err
			}
			return bars, true, nil
		}
		return s.loadBars(ctx, "history", sym, count)
	})
}

func periodNames() string {
	names := make([]string, 0, len(Periods))
	for p := range Periods {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool { return Periods[names[i]] < Periods[names[j]] })
	return strings.Join(names, ", ")
}

// ListSymbols returns the tracked universe plus every symbol already in the
// store, sorted.
func (s *Service) ListSymbols(ctx context.Context) ([]string, error) {
	return cached(s, "symbols", cache.TTLSearch, func() ([]string, bool, error) {
		set := make(map[string]struct{})
		for _, sym := range s.cfg.Symbols {
			set[sym] = struct{}{}
		}
		qctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		defer cancel()
		stored, err := s.store.Symbols(qctx)
		if err != nil {
			log.Printf("[market] symbols: store unavailable, listing configured universe: %v", err)
			metrics.StoreFallbacks.WithLabelValues("symbols").Inc()
		}
		for _, sym := range stored {
			set[sym] = struct{}{}
		}
		out := make([]string, 0, len(set))
		for sym := range set {
			out = append(out, sym)
		}
		sort.Strings(out)
		return out, err == nil, nil
	})
}
