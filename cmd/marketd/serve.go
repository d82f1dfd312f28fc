package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"marketcore/config"
	"marketcore/internal/broadcast"
	"marketcore/internal/cache"
	"marketcore/internal/gateway"
	"marketcore/internal/market"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
	"marketcore/internal/notification"
	redisstore "marketcore/internal/store/redis"
	"marketcore/internal/scheduler"
)

var (
	serveStoreKind string
	serveHTTPAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST/websocket gateway and the refresh scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveStoreKind, "store", "", "override store.kind (sqlite, memory)")
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "override server.http_addr")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveStoreKind != "" {
		cfg.Store.Kind = serveStoreKind
	}
	if serveHTTPAddr != "" {
		cfg.Server.HTTPAddr = serveHTTPAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCloser := setupLogging(cfg)
	defer logCloser.Close()
	log.Println("[marketd] starting...")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- Metrics & health ----
	health := metrics.NewHealthStatus(cfg.Store.Kind)
	health.SetSymbols(cfg.Market.Symbols)
	health.SetTickInterval(cfg.Scheduler.Interval)
	metricsSrv := metrics.NewServer(cfg.Server.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Store ----
	st, db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(st)

	// ---- Fan-out: in-process broadcaster, optionally mirrored to Redis ----
	subs := broadcast.New(cfg.Broadcast.BufferSize)
	subs.OnDrop = func(id string, bar model.Bar) {
		log.Printf("[marketd] subscriber %s is slow, dropped %s", id, bar.Key())
	}
	var pub model.BarPublisher = subs

	var rdb *redisstore.Publisher
	if cfg.Redis.Enabled {
		instanceID := cfg.Redis.InstanceID
		if instanceID == "" {
			instanceID = uuid.NewString()
		}
		rdb, err = redisstore.New(redisstore.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			InstanceID: instanceID,
		})
		if err != nil {
			log.Printf("[marketd] WARNING: redis init failed: %v (continuing without redis)", err)
		} else {
			defer rdb.Close()
			health.SetRedisEnabled(true)
			health.CheckRedis(ctx, rdb.Client())
			pub = model.MultiPublisher{subs, rdb}
			go func() {
				if err := redisstore.NewSubscriber(rdb.Client(), instanceID).Run(ctx, subs); err != nil {
					log.Printf("[marketd] redis subscriber stopped: %v", err)
				}
			}()
			log.Printf("[marketd] redis fan-out ready at %s (instance %s)", cfg.Redis.Addr, instanceID)
		}
	}

	// ---- Liveness probes ----
	switch {
	case rdb != nil && db != nil:
		health.StartLivenessChecker(ctx, rdb.Client(), db, 10*time.Second)
	case rdb != nil:
		health.StartLivenessChecker(ctx, rdb.Client(), nil, 10*time.Second)
	case db != nil:
		health.StartLivenessChecker(ctx, nil, db, 10*time.Second)
	}

	// ---- Market service ----
	svc := market.New(marketConfig(cfg), st, newGenerator(cfg), cache.New(cfg.Cache.Size), subs, pub)

	// ---- Alert notifications ----
	sinks := notification.Multi{notification.NewLogNotifier()}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.TelegramBotToken != "" {
		sinks = append(sinks, notification.NewTelegramNotifier(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID))
	}
	notifier := notification.NewThrottled(sinks, cfg.Notify.Cooldown)

	// ---- Scheduler ----
	sched := scheduler.New(scheduler.Config{
		Interval: cfg.Scheduler.Interval,
		Workers:  cfg.Scheduler.Workers,
	}, svc, notifier, health)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	// ---- Gateway ----
	gin.SetMode(gin.ReleaseMode)
	api := gateway.New(cfg.Server.HTTPAddr, svc, health)
	api.Start()

	log.Printf("[marketd] ready: api=%s metrics=%s store=%s symbols=%v every %s",
		cfg.Server.HTTPAddr, cfg.Server.MetricsAddr, cfg.Store.Kind, cfg.Market.Symbols, cfg.Scheduler.Interval)

	// ---- Wait for shutdown signal ----
	<-ctx.Done()
	log.Println("[marketd] shutdown signal received, cleaning up...")

	sched.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := api.Stop(shutdownCtx); err != nil {
		log.Printf("[marketd] gateway shutdown: %v", err)
	}
	if err := metricsSrv.Stop(shutdownCtx); err != nil {
		log.Printf("[marketd] metrics shutdown: %v", err)
	}

	log.Println("[marketd] shutdown complete.")
	return nil
}

// exitOnSignal is used by the short-lived commands so Ctrl-C aborts a long
// seed cleanly.
func exitOnSignal() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
