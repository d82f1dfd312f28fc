// Package gateway exposes market.Service over REST (gin) and a websocket
// stream of live bars (gorilla/websocket).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketcore/internal/market"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
)

// Query defaults.
const (
	DefaultBarsLimit   = 100
	DefaultMoversLimit = 10
	DefaultPeriod      = "1m"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Server is the public HTTP surface.
type Server struct {
	svc     *market.Service
	engine  *gin.Engine
	latency *LatencyTracker
	addr    string
	srv     *http.Server
}

// New builds the router. health, when non-nil, is mounted on /healthz.
func New(addr string, svc *market.Service, health http.Handler) *Server {
	s := &Server{
		svc:     svc,
		engine:  gin.New(),
		latency: NewLatencyTracker(1000),
		addr:    addr,
	}
	s.engine.Use(gin.Recovery(), cors(), s.observe())

	api := s.engine.Group("/api")
	{
		api.GET("/bars/:symbol", s.getBars)
		api.GET("/history/:symbol", s.getHistory)
		api.GET("/summary", s.getSummary)
		api.GET("/movers", s.getMovers)
		api.GET("/sentiment/:symbol", s.getSentiment)
		api.GET("/metrics/:symbol", s.getMetrics)
		api.GET("/alerts/:symbol", s.getAlerts)
		api.GET("/indicators/:symbol", s.getIndicators)
		api.GET("/symbols", s.getSymbols)
		api.GET("/stats", s.getStats)
		api.DELETE("/cache/:symbol", s.deleteCache)
	}
	s.engine.GET("/ws", s.serveWS)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if health != nil {
		s.engine.GET("/healthz", gin.WrapH(health))
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[gateway] listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[gateway] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server. Websocket connections are hijacked
// and are not waited for.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ────────────────────────────────────────────────────────────
// Middleware
// ────────────────────────────────────────────────────────────

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.IsWebsocket() {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()

		s.latency.Record(route, elapsed)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		slog.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}

// ────────────────────────────────────────────────────────────
// Errors
// ────────────────────────────────────────────────────────────

// statusFor maps an error category to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDependency):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrDuplicateBar):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[gateway] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", model.ErrValidation, name, raw)
	}
	return v, nil
}

// ────────────────────────────────────────────────────────────
// Handlers
// ────────────────────────────────────────────────────────────

func (s *Server) getBars(c *gin.Context) {
	limit, err := queryInt(c, "limit", DefaultBarsLimit)
	if err != nil {
		fail(c, err)
		return
	}
	bars, err := s.svc.GetLatestBars(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bars, "count": len(bars)})
}

func (s *Server) getHistory(c *gin.Context) {
	period := c.DefaultQuery("period", DefaultPeriod)
	bars, err := s.svc.GetHistoricalBars(c.Request.Context(), c.Param("symbol"), period)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bars, "count": len(bars), "period": period})
}

func (s *Server) getSummary(c *gin.Context) {
	var symbols []string
	for _, part := range strings.Split(c.Query("symbols"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			symbols = append(symbols, part)
		}
	}
	quotes, err := s.svc.GetMarketSummary(c.Request.Context(), symbols)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quotes})
}

func (s *Server) getMovers(c *gin.Context) {
	limit, err := queryInt(c, "limit", DefaultMoversLimit)
	if err != nil {
		fail(c, err)
		return
	}
	movers, err := s.svc.GetTopMovers(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": movers})
}

func (s *Server) getSentiment(c *gin.Context) {
	report, err := s.svc.GetSentiment(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) getMetrics(c *gin.Context) {
	m, err := s.svc.GetMetrics(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": m})
}

func (s *Server) getAlerts(c *gin.Context) {
	alerts, err := s.svc.GetAlerts(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": alerts})
}

func (s *Server) getIndicators(c *gin.Context) {
	snap, err := s.svc.GetIndicators(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snap})
}

func (s *Server) getSymbols(c *gin.Context) {
	symbols, err := s.svc.ListSymbols(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": symbols})
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Subscribers:    s.svc.SubscriberCount(),
		TrackedSymbols: s.svc.TrackedSymbols(),
		Latency:        s.latency.Snapshot(),
	})
}

func (s *Server) deleteCache(c *gin.Context) {
	n, err := s.svc.InvalidateCache(c.Param("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cache invalidated", "removed": n})
}

func (s *Server) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	newClient(conn, s.svc).run()
}
