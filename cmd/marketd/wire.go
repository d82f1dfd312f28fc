package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"marketcore/config"
	"marketcore/internal/generator"
	"marketcore/internal/logger"
	"marketcore/internal/market"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
	"marketcore/internal/store/memory"
	"marketcore/internal/store/sqlite"
)

// loadConfig reads and validates the config named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the JSON slog default. The returned closer flushes
// the rotating file sink, if any.
func setupLogging(cfg *config.Config) io.Closer {
	level := logger.ParseLevel(cfg.Log.Level)
	if cfg.Log.File == "" {
		logger.Init("marketd", level)
		return io.NopCloser(nil)
	}
	_, closer := logger.InitWithFile("marketd", level, logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	return closer
}

// openStore returns the configured bar store. db is non-nil only for SQLite
// and feeds the health probe.
func openStore(cfg *config.Config) (st model.BarStore, db metrics.Pinger, err error) {
	switch cfg.Store.Kind {
	case "memory":
		log.Println("[marketd] using in-memory store")
		return memory.New(), nil, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create %s: %w", dir, err)
			}
		}
		s, err := sqlite.New(sqlite.Config{DBPath: cfg.Store.SQLitePath})
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[marketd] sqlite store ready at %s", cfg.Store.SQLitePath)
		return s, s.DB(), nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store kind %q", model.ErrValidation, cfg.Store.Kind)
	}
}

func newGenerator(cfg *config.Config) *generator.Generator {
	if cfg.Market.GeneratorSeed != 0 {
		return generator.New(cfg.Market.GeneratorSeed)
	}
	return generator.NewRandom()
}

func marketConfig(cfg *config.Config) market.Config {
	return market.Config{
		Symbols:       cfg.Market.Symbols,
		IndexSymbols:  cfg.Market.IndexSymbols,
		BetaReference: cfg.Market.BetaReference,
		StoreTimeout:  cfg.Store.Timeout,
		SeedBars:      cfg.Market.SeedBars,
		Window:        cfg.Market.Window,
	}
}

func closeStore(st model.BarStore) {
	if err := st.Close(); err != nil {
		slog.Error("store close failed", "error", err)
	}
}
