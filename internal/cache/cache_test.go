package cache

import (
	"net/url"
	"sync"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New(16)
	c.Set("k", []byte("v"), TTLRealtime)
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("unexpected hit for missing key")
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(16)
	c.Set("k", []byte("v"), 40*time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before ttl")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("served past ttl")
	}
}

func TestCache_FakeClockExpiry(t *testing.T) {
	c := New(16)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("hist", []byte("v"), 2*time.Minute)
	now = now.Add(119 * time.Second)
	if _, ok := c.Get("hist"); !ok {
		t.Fatal("expected hit just before expiry")
	}
	now = now.Add(time.Second)
	if _, ok := c.Get("hist"); ok {
		t.Error("expected miss at expiry")
	}
}

func TestCache_SetMovesBetweenClasses(t *testing.T) {
	c := New(16)
	c.Set("k", []byte("short"), TTLRealtime)
	c.Set("k", []byte("long"), TTLHistorical)
	if c.Len() != 1 {
		t.Fatalf("expected one entry, got %d", c.Len())
	}
	got, _ := c.Get("k")
	if string(got) != "long" {
		t.Errorf("Get = %q", got)
	}
}

func TestCache_InvalidatePattern(t *testing.T) {
	c := New(16)
	c.Set("/api/bars/SPY?limit=10", []byte("a"), TTLRealtime)
	c.Set("/api/history/SPY?period=1w", []byte("b"), TTLHistorical)
	c.Set("/api/bars/QQQ?limit=10", []byte("c"), TTLRealtime)

	if n := c.Invalidate("SPY"); n != 2 {
		t.Errorf("Invalidate removed %d, want 2", n)
	}
	if _, ok := c.Get("/api/bars/SPY?limit=10"); ok {
		t.Error("SPY entry survived invalidation")
	}
	if _, ok := c.Get("/api/bars/QQQ?limit=10"); !ok {
		t.Error("QQQ entry should survive")
	}
	if n := c.Invalidate(""); n != 1 || c.Len() != 0 {
		t.Errorf("empty pattern should clear: removed %d, len %d", n, c.Len())
	}
}

func TestCache_NonPositiveTTLIgnored(t *testing.T) {
	c := New(16)
	c.Set("k", []byte("v"), 0)
	if _, ok := c.Get("k"); ok {
		t.Error("zero ttl should not store")
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key("/api/summary", url.Values{"symbols": {"QQQ", "SPY"}, "a": {"1"}})
	b := Key("/api/summary", url.Values{"a": {"1"}, "symbols": {"SPY", "QQQ"}})
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if want := "/api/summary?a=1&symbols=QQQ&symbols=SPY"; a != want {
		t.Errorf("Key = %q, want %q", a, want)
	}
	if got := Key("/api/movers", nil); got != "/api/movers" {
		t.Errorf("Key without params = %q", got)
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New(64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := Key("/api/bars/SPY", url.Values{"limit": {string(rune('a' + j%26))}})
				c.Set(key, []byte("x"), TTLRealtime)
				c.Get(key)
				if j%50 == 0 {
					c.Invalidate("SPY")
				}
			}
		}(i)
	}
	wg.Wait()
}
