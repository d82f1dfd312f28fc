// Package scheduler refreshes every tracked symbol on a fixed cadence.
//
// Each tick advances the series by one bar per symbol on a bounded worker
// pool, then evaluates alerts for the new bar and hands them to the notifier.
// A symbol still fetching from a previous tick is skipped, and a failing
// symbol is logged and skipped without affecting the others.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"marketcore/internal/logger"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
	"marketcore/internal/notification"
)

const (
	DefaultInterval = time.Minute
	DefaultWorkers  = 4
)

// Refresher is the slice of the market service the scheduler drives.
type Refresher interface {
	TrackedSymbols() []string
	Advance(ctx context.Context, symbol string) (model.Bar, error)
	GetAlerts(ctx context.Context, symbol string) ([]model.Alert, error)
}

// Config tunes the scheduler.
type Config struct {
	Interval time.Duration
	Workers  int
}

// State is a symbol's refresh state.
type State int

const (
	Idle State = iota
	Fetching
)

func (s State) String() string {
	if s == Fetching {
		return "Fetching"
	}
	return "Idle"
}

// TickResult summarizes one RunOnce.
type TickResult struct {
	TraceID  string
	Symbols  int
	Advanced int
	Failed   int
	Skipped  int
	Alerts   int
}

// Scheduler runs RunOnce on a cron cadence.
type Scheduler struct {
	cfg      Config
	src      Refresher
	notifier notification.Notifier
	health   *metrics.HealthStatus
	cron     *cron.Cron

	mu     sync.Mutex
	states map[string]State
}

// New creates a Scheduler. notifier and health may be nil.
func New(cfg Config, src Refresher, notifier notification.Notifier, health *metrics.HealthStatus) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Scheduler{
		cfg:      cfg,
		src:      src,
		notifier: notifier,
		health:   health,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		states:   make(map[string]State),
	}
}

// Start registers the tick and starts the cron runner. Ticks stop when ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("register refresh tick %q: %w", spec, err)
	}
	s.cron.Start()
	slog.Info("scheduler started", "interval", s.cfg.Interval.String(), "workers", s.cfg.Workers)
	return nil
}

// Stop stops the cron runner and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// State returns symbol's refresh state.
func (s *Scheduler) State(symbol string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[symbol]
}

// begin moves symbol from Idle to Fetching. It reports false if the symbol is
// already fetching.
func (s *Scheduler) begin(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[symbol] == Fetching {
		return false
	}
	s.states[symbol] = Fetching
	return true
}

func (s *Scheduler) end(symbol string) {
	s.mu.Lock()
	s.states[symbol] = Idle
	s.mu.Unlock()
}

// RunOnce refreshes every tracked symbol once and waits for all of them.
func (s *Scheduler) RunOnce(ctx context.Context) TickResult {
	start := time.Now()
	traceID := logger.NewTraceID("tick", start)
	ctx = logger.WithTrace(ctx, traceID)
	log := logger.From(ctx)

	symbols := s.src.TrackedSymbols()
	var advanced, failed, skipped, alerts atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, sym := range symbols {
		if !s.begin(sym) {
			skipped.Add(1)
			metrics.RefreshSkipped.Inc()
			log.Warn("symbol still fetching, skipped", "symbol", sym)
			continue
		}
		g.Go(func() error {
			defer s.end(sym)
			n, err := s.refresh(ctx, log, sym)
			if err != nil {
				failed.Add(1)
				metrics.RefreshFailures.Inc()
				log.Error("refresh failed", "symbol", sym, "err", err)
				return nil
			}
			advanced.Add(1)
			alerts.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	metrics.TicksTotal.Inc()
	metrics.TickDuration.Observe(elapsed.Seconds())
	if s.health != nil {
		s.health.SetLastTickTime(time.Now())
		s.health.SetSymbols(symbols)
	}

	res := TickResult{
		TraceID:  traceID,
		Symbols:  len(symbols),
		Advanced: int(advanced.Load()),
		Failed:   int(failed.Load()),
		Skipped:  int(skipped.Load()),
		Alerts:   int(alerts.Load()),
	}
	log.Info("tick complete",
		"symbols", res.Symbols, "advanced", res.Advanced, "failed", res.Failed,
		"skipped", res.Skipped, "alerts", res.Alerts, "elapsed", elapsed.String())
	return res
}

// refresh advances symbol and notifies its alerts. It returns the number of
// alerts raised. Alert evaluation and delivery failures are logged only; the
// bar has already been appended and published.
func (s *Scheduler) refresh(ctx context.Context, log *slog.Logger, symbol string) (int, error) {
	bar, err := s.src.Advance(ctx, symbol)
	if err != nil {
		return 0, err
	}
	metrics.BarsAppended.Inc()
	log.Debug("advanced", "symbol", symbol, "ts", bar.Timestamp, "close", bar.Close)

	alerts, err := s.src.GetAlerts(ctx, symbol)
	if err != nil {
		log.Warn("alert evaluation failed", "symbol", symbol, "err", err)
		return 0, nil
	}
	for _, a := range alerts {
		metrics.AlertsTotal.WithLabelValues(string(a.Kind)).Inc()
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.Send(ctx, notification.New(symbol, a)); err != nil {
			log.Warn("notification failed", "symbol", symbol, "kind", a.Kind, "err", err)
		}
	}
	return len(alerts), nil
}
