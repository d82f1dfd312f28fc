package gateway

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LatencyStats summarises the retained samples of one route, in milliseconds.
type LatencyStats struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// LatencyTracker keeps the last N request latencies per route in a circular
// buffer and reports percentiles. Safe for concurrent use.
type LatencyTracker struct {
	mu       sync.Mutex
	capacity int
	routes   map[string]*ring
}

type ring struct {
	samples []float64
	pos     int
	count   int
}

// NewLatencyTracker creates a tracker that holds the last capacity samples
// of every route.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{
		capacity: capacity,
		routes:   make(map[string]*ring),
	}
}

// Record adds one sample for route.
func (lt *LatencyTracker) Record(route string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	lt.mu.Lock()
	defer lt.mu.Unlock()
	r, ok := lt.routes[route]
	if !ok {
		r = &ring{samples: make([]float64, lt.capacity)}
		lt.routes[route] = r
	}
	r.samples[r.pos] = ms
	r.pos = (r.pos + 1) % lt.capacity
	if r.count < lt.capacity {
		r.count++
	}
}

// Stats returns the percentiles of one route. ok is false when nothing was
// recorded for it.
func (lt *LatencyTracker) Stats(route string) (LatencyStats, bool) {
	lt.mu.Lock()
	r, ok := lt.routes[route]
	if !ok {
		lt.mu.Unlock()
		return LatencyStats{}, false
	}
	sorted := r.ordered()
	lt.mu.Unlock()
	return summarise(sorted), true
}

// Snapshot returns the percentiles of every route.
func (lt *LatencyTracker) Snapshot() map[string]LatencyStats {
	lt.mu.Lock()
	copies := make(map[string][]float64, len(lt.routes))
	for route, r := range lt.routes {
		copies[route] = r.ordered()
	}
	lt.mu.Unlock()

	out := make(map[string]LatencyStats, len(copies))
	for route, samples := range copies {
		out[route] = summarise(samples)
	}
	return out
}

// ordered copies the retained samples. Caller holds the tracker lock.
func (r *ring) ordered() []float64 {
	out := make([]float64, r.count)
	if r.count == len(r.samples) {
		copy(out, r.samples[r.pos:])
		copy(out[len(r.samples)-r.pos:], r.samples[:r.pos])
	} else {
		copy(out, r.samples[:r.count])
	}
	return out
}

func summarise(samples []float64) LatencyStats {
	sort.Float64s(samples)
	return LatencyStats{
		Count: len(samples),
		P50:   percentile(samples, 0.50),
		P95:   percentile(samples, 0.95),
		P99:   percentile(samples, 0.99),
	}
}

// percentile interpolates the p-th percentile (0.0–1.0) of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
