package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestHealth_HealthyWithoutRedis(t *testing.T) {
	h := NewHealthStatus("memory")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "healthy" {
		t.Errorf("status = %v", got)
	}
}

func TestHealth_StoreFailureDegrades(t *testing.T) {
	h := NewHealthStatus("sqlite")
	h.CheckStore(context.Background(), fakePinger{err: errors.New("disk I/O error")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "degraded" || body["store_ok"] != false {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHealth_RedisEnabledButDown(t *testing.T) {
	h := NewHealthStatus("memory")
	h.SetRedisEnabled(true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealth_StaleWhenTicksStop(t *testing.T) {
	base := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	now := base
	h := NewHealthStatus("memory")
	h.now = func() time.Time { return now }
	h.SetTickInterval(time.Minute)
	h.SetLastTickTime(base)

	cases := []struct {
		after time.Duration
		want  string
	}{
		{30 * time.Second, StatusHealthy},
		{3 * time.Minute, StatusHealthy},
		{3*time.Minute + time.Second, StatusStale},
	}
	for _, tc := range cases {
		now = base.Add(tc.after)
		if got := h.Report().Status; got != tc.want {
			t.Errorf("after %s: status = %q, want %q", tc.after, got, tc.want)
		}
	}
}

func TestHealth_ReadyAfterFirstTick(t *testing.T) {
	h := NewHealthStatus("memory")

	rec := httptest.NewRecorder()
	h.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("before first tick: status = %d", rec.Code)
	}

	h.SetLastTickTime(time.Now())
	rec = httptest.NewRecorder()
	h.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["ready"] != true {
		t.Errorf("after first tick: status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestServerRoutes(t *testing.T) {
	h := NewHealthStatus("memory")
	h.SetLastTickTime(time.Now())
	srv := NewServer(":0", h)

	for _, path := range []string{"/metrics", "/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}
}
