// Package config loads marketd settings from an optional YAML file, then
// environment overrides, then defaults.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marketcore/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		HTTPAddr    string `yaml:"http_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`
	Store struct {
		Kind       string        `yaml:"kind"` // sqlite | memory
		SQLitePath string        `yaml:"sqlite_path"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"store"`
	Redis struct {
		Enabled    bool   `yaml:"enabled"`
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		InstanceID string `yaml:"instance_id"`
	} `yaml:"redis"`
	Market struct {
		Symbols       []string `yaml:"symbols"`
		IndexSymbols  []string `yaml:"index_symbols"`
		BetaReference string   `yaml:"beta_reference"`
		SeedBars      int      `yaml:"seed_bars"`
		Window        int      `yaml:"window"`
		GeneratorSeed int64    `yaml:"generator_seed"` // 0 seeds from the clock
	} `yaml:"market"`
	Scheduler struct {
		Interval time.Duration `yaml:"interval"`
		Workers  int           `yaml:"workers"`
	} `yaml:"scheduler"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Broadcast struct {
		BufferSize int `yaml:"buffer_size"`
	} `yaml:"broadcast"`
	Notify struct {
		WebhookURL       string        `yaml:"webhook_url"`
		TelegramBotToken string        `yaml:"telegram_bot_token"`
		TelegramChatID   string        `yaml:"telegram_chat_id"`
		Cooldown         time.Duration `yaml:"cooldown"`
	} `yaml:"notify"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. An empty or missing path is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.MetricsAddr = getEnv("METRICS_ADDR", c.Server.MetricsAddr)

	c.Store.Kind = getEnv("STORE_KIND", c.Store.Kind)
	c.Store.SQLitePath = getEnv("SQLITE_PATH", c.Store.SQLitePath)
	c.Store.Timeout = getEnvDuration("STORE_TIMEOUT", c.Store.Timeout)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.InstanceID = getEnv("INSTANCE_ID", c.Redis.InstanceID)
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Redis.Enabled = b
		} else {
			log.Printf("[config] ignoring invalid REDIS_ENABLED=%q", v)
		}
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Market.Symbols = splitList(v)
	}
	if v := os.Getenv("INDEX_SYMBOLS"); v != "" {
		c.Market.IndexSymbols = splitList(v)
	}
	c.Market.BetaReference = getEnv("BETA_REFERENCE", c.Market.BetaReference)
	c.Market.GeneratorSeed = int64(getEnvInt("GENERATOR_SEED", int(c.Market.GeneratorSeed)))

	c.Scheduler.Interval = getEnvDuration("TICK_INTERVAL", c.Scheduler.Interval)
	c.Scheduler.Workers = getEnvInt("WORKERS", c.Scheduler.Workers)

	c.Notify.WebhookURL = getEnv("WEBHOOK_URL", c.Notify.WebhookURL)
	c.Notify.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Notify.TelegramBotToken)
	c.Notify.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Notify.TelegramChatID)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9090"
	}
	if c.Store.Kind == "" {
		c.Store.Kind = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/marketcore.db"
	}
	if c.Store.Timeout == 0 {
		c.Store.Timeout = 2 * time.Second
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if len(c.Market.Symbols) == 0 {
		c.Market.Symbols = []string{"SPY", "QQQ", "DIA", "IWM", "AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA"}
	}
	if len(c.Market.IndexSymbols) == 0 {
		c.Market.IndexSymbols = []string{"SPY", "QQQ", "DIA", "IWM"}
	}
	if c.Market.BetaReference == "" {
		c.Market.BetaReference = "SPY"
	}
	if c.Market.SeedBars == 0 {
		c.Market.SeedBars = 200
	}
	if c.Market.Window == 0 {
		c.Market.Window = 1000
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = time.Minute
	}
	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = 4
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = 1024
	}
	if c.Broadcast.BufferSize == 0 {
		c.Broadcast.BufferSize = 64
	}
	if c.Notify.Cooldown == 0 {
		c.Notify.Cooldown = 15 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks ranges and normalizes symbol lists to upper case.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("store.kind must be sqlite or memory, got %q", c.Store.Kind)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store.timeout must be positive")
	}
	if c.Scheduler.Interval < time.Second {
		return fmt.Errorf("scheduler.interval must be at least 1s, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be positive")
	}
	if c.Market.SeedBars < 1 || c.Market.SeedBars > 1000 {
		return fmt.Errorf("market.seed_bars must be in [1, 1000], got %d", c.Market.SeedBars)
	}
	if c.Market.Window < 2 || c.Market.Window > 1000 {
		return fmt.Errorf("market.window must be in [2, 1000], got %d", c.Market.Window)
	}
	if c.Notify.TelegramBotToken != "" && c.Notify.TelegramChatID == "" {
		return fmt.Errorf("notify.telegram_chat_id is required with a bot token")
	}

	var err error
	if c.Market.Symbols, err = normalizeSymbols("market.symbols", c.Market.Symbols); err != nil {
		return err
	}
	if c.Market.IndexSymbols, err = normalizeSymbols("market.index_symbols", c.Market.IndexSymbols); err != nil {
		return err
	}
	if c.Market.BetaReference, err = model.NormalizeSymbol(c.Market.BetaReference); err != nil {
		return fmt.Errorf("market.beta_reference: %w", err)
	}
	return nil
}

func normalizeSymbols(field string, symbols []string) ([]string, error) {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym, err := model.NormalizeSymbol(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		out = append(out, sym)
	}
	return out, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return d
}
