package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Overall health values reported on /healthz.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusStale    = "stale"
)

// staleAfter is how many tick intervals may pass without a tick before the
// scheduler is considered stuck.
const staleAfter = 3

type probe struct {
	OK        bool      `json:"ok"`
	LatencyMs float64   `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthStatus aggregates what the process knows about its dependencies and
// the refresh loop. Safe for concurrent use.
type HealthStatus struct {
	mu sync.RWMutex

	storeKind    string
	startedAt    time.Time
	lastTick     time.Time
	tickInterval time.Duration
	symbols      []string
	redisEnabled bool
	store        probe
	redis        probe
	now          func() time.Time
}

// NewHealthStatus returns a status for the given store kind. The store is
// assumed healthy until a probe says otherwise.
func NewHealthStatus(storeKind string) *HealthStatus {
	return &HealthStatus{
		storeKind: storeKind,
		startedAt: time.Now(),
		store:     probe{OK: true},
		now:       time.Now,
	}
}

// SetLastTickTime records a completed scheduler tick.
func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.lastTick = t
	h.mu.Unlock()
}

// SetTickInterval enables the staleness check.
func (h *HealthStatus) SetTickInterval(d time.Duration) {
	h.mu.Lock()
	h.tickInterval = d
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.symbols = append([]string(nil), symbols...)
	h.mu.Unlock()
}

// SetRedisEnabled marks Redis as a dependency whose failure degrades health.
func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.redisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) check(ctx context.Context, ping func(context.Context) error) probe {
	start := time.Now()
	err := ping(ctx)
	p := probe{
		OK:        err == nil,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
		CheckedAt: h.now(),
	}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

// CheckRedis pings Redis and records the result.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	p := h.check(ctx, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	h.mu.Lock()
	h.redis = p
	h.mu.Unlock()
}

// CheckStore pings the store database and records the result.
func (h *HealthStatus) CheckStore(ctx context.Context, db Pinger) {
	p := h.check(ctx, db.PingContext)
	h.mu.Lock()
	h.store = p
	h.mu.Unlock()
}

// StartLivenessChecker probes the dependencies every interval until ctx is
// done. Either dependency may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db Pinger, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if db != nil {
					h.CheckStore(probeCtx, db)
				}
				cancel()
			}
		}
	}()
}

// HealthReport is the /healthz body.
type HealthReport struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	LastTickTime string    `json:"last_tick_time,omitempty"`
	TickAge      string    `json:"tick_age,omitempty"`
	StoreKind    string    `json:"store_kind"`
	StoreOK      bool      `json:"store_ok"`
	Store        probe     `json:"store"`
	RedisEnabled bool      `json:"redis_enabled"`
	Redis        *probe    `json:"redis,omitempty"`
	Symbols      []string  `json:"symbols"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Report computes the current status.
func (h *HealthStatus) Report() HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	now := h.now()

	r := HealthReport{
		Status:       StatusHealthy,
		Uptime:       now.Sub(h.startedAt).Round(time.Second).String(),
		StoreKind:    h.storeKind,
		StoreOK:      h.store.OK,
		Store:        h.store,
		RedisEnabled: h.redisEnabled,
		Symbols:      h.symbols,
		GeneratedAt:  now,
	}
	if h.redisEnabled {
		redis := h.redis
		r.Redis = &redis
	}
	if !h.lastTick.IsZero() {
		age := now.Sub(h.lastTick)
		r.LastTickTime = h.lastTick.UTC().Format(time.RFC3339)
		r.TickAge = age.Round(time.Millisecond).String()
		if h.tickInterval > 0 && age > staleAfter*h.tickInterval {
			r.Status = StatusStale
		}
	}
	// Reads fall back to generated data, so a failing dependency degrades
	// the service rather than taking it down.
	if !h.store.OK || (h.redisEnabled && !h.redis.OK) {
		r.Status = StatusDegraded
	}
	return r
}

// ServeHTTP handles /healthz: 200 when healthy, 503 otherwise.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Report()
	code := http.StatusOK
	if report.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

// ServeReady handles /readyz: ready once the first refresh tick completed.
func (h *HealthStatus) ServeReady(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	ready := !h.lastTick.IsZero()
	h.mu.RUnlock()

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
