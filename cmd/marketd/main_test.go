package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"marketcore/config"
	"marketcore/internal/model"
)

func TestSimulateCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"simulate", "spy", "-n", "5", "--seed", "3"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), out.String())
	}
	for i, line := range lines {
		var b model.Bar
		if err := json.Unmarshal([]byte(line), &b); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if b.Symbol != "SPY" {
			t.Errorf("line %d: symbol %q", i, b.Symbol)
		}
		if err := b.Validate(); err != nil {
			t.Errorf("line %d: %v", i, err)
		}
	}
}

func TestOpenStore(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Kind = "memory"
	st, db, err := openStore(cfg)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	defer st.Close()
	if db != nil {
		t.Error("memory store should not expose a pinger")
	}

	cfg.Store.Kind = "postgres"
	if _, _, err := openStore(cfg); !errors.Is(err, model.ErrValidation) {
		t.Errorf("unknown kind: expected ErrValidation, got %v", err)
	}
}

func TestMarketConfigCarriesSettings(t *testing.T) {
	cfg := &config.Config{}
	cfg.Market.Symbols = []string{"AAPL"}
	cfg.Market.BetaReference = "QQQ"
	cfg.Market.SeedBars = 50
	mc := marketConfig(cfg)
	if len(mc.Symbols) != 1 || mc.BetaReference != "QQQ" || mc.SeedBars != 50 {
		t.Errorf("unexpected market config %+v", mc)
	}
}
