package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marketd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Kind != "sqlite" || cfg.Store.Timeout != 2*time.Second {
		t.Errorf("store defaults: %+v", cfg.Store)
	}
	if cfg.Scheduler.Interval != time.Minute || cfg.Scheduler.Workers != 4 {
		t.Errorf("scheduler defaults: %+v", cfg.Scheduler)
	}
	if len(cfg.Market.IndexSymbols) != 4 || cfg.Market.BetaReference != "SPY" {
		t.Errorf("market defaults: %+v", cfg.Market)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Errorf("missing file: %v", err)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
store:
  kind: memory
  timeout: 500ms
market:
  symbols: [spy, aapl]
scheduler:
  interval: 30s
  workers: 8
`)
	t.Setenv("WORKERS", "2")
	t.Setenv("SYMBOLS", "msft, nvda ,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Kind != "memory" || cfg.Store.Timeout != 500*time.Millisecond {
		t.Errorf("yaml store: %+v", cfg.Store)
	}
	if cfg.Scheduler.Interval != 30*time.Second {
		t.Errorf("interval = %v", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.Workers != 2 {
		t.Errorf("env should override workers, got %d", cfg.Scheduler.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Market.Symbols) != 2 || cfg.Market.Symbols[0] != "MSFT" || cfg.Market.Symbols[1] != "NVDA" {
		t.Errorf("symbols = %v", cfg.Market.Symbols)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	if _, err := Load(writeFile(t, "store: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown store":    func(c *Config) { c.Store.Kind = "postgres" },
		"fast interval":    func(c *Config) { c.Scheduler.Interval = 100 * time.Millisecond },
		"seed too large":   func(c *Config) { c.Market.SeedBars = 5000 },
		"bad symbol":       func(c *Config) { c.Market.Symbols = []string{"INVALID123456"} },
		"bad reference":    func(c *Config) { c.Market.BetaReference = "S P Y" },
		"telegram no chat": func(c *Config) { c.Notify.TelegramBotToken = "t" },
	}
	for name, mutate := range cases {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
