package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, `driftflow:
  name: "TestApp"
  version: "1.0"
feed:
  reconnect_delay: 1s
markets:
  default_symbol: "ETH"
  allowed_symbols: ["SOL", "ETH"]
  networks:
    mainnet-beta:
      0: SOL-PERP
      2: ETH-PERP
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Driftflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Driftflow.Name)
	}
	if cfg.Feed.ReconnectDelay != time.Second {
		t.Errorf("unexpected reconnect delay: %v", cfg.Feed.ReconnectDelay)
	}

	// Unset fields keep their defaults.
	if cfg.Feed.URL != "wss://dlob.drift.trade/ws" {
		t.Errorf("unexpected feed url: %s", cfg.Feed.URL)
	}
	if cfg.Feed.MaxReconnectAttempts != 20 {
		t.Errorf("unexpected max reconnect attempts: %d", cfg.Feed.MaxReconnectAttempts)
	}
	if cfg.Feed.HeartbeatInterval != 30*time.Second {
		t.Errorf("unexpected heartbeat interval: %v", cfg.Feed.HeartbeatInterval)
	}
	if cfg.Feed.OrderbookDepth != 10 || cfg.Feed.TradeHistory != 30 {
		t.Errorf("unexpected ingestion bounds: depth=%d history=%d", cfg.Feed.OrderbookDepth, cfg.Feed.TradeHistory)
	}

	if cfg.Markets.DefaultSymbol != "ETH" {
		t.Errorf("unexpected default symbol: %s", cfg.Markets.DefaultSymbol)
	}
	table := cfg.Markets.Table()
	if table[0] != "SOL-PERP" || table[2] != "ETH-PERP" {
		t.Errorf("unexpected market table: %#v", table)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	path := writeTempConfig(t, `feed:
  orderbook_depth: -1
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for negative orderbook depth")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeTempConfig(t, `driftflow:
  name: "TestApp"
`)

	t.Setenv("FEED_URL", "wss://staging.example.com/ws")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Feed.URL != "wss://staging.example.com/ws" {
		t.Errorf("env override not applied: %s", cfg.Feed.URL)
	}
}

func TestDashboardAddressDefault(t *testing.T) {
	path := writeTempConfig(t, `dashboard:
  enabled: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Dashboard.Address != ":8090" {
		t.Errorf("unexpected dashboard address: %s", cfg.Dashboard.Address)
	}
}

func TestAppEnvironment(t *testing.T) {
	t.Setenv(appEnvVar, "")
	if env := AppEnvironment(); env != environmentDevelopment {
		t.Errorf("expected development default, got %s", env)
	}

	t.Setenv(appEnvVar, "PROD")
	if env := AppEnvironment(); env != environmentProduction {
		t.Errorf("expected production alias, got %s", env)
	}

	if !IsProductionLike(environmentStaging) || IsProductionLike(environmentDevelopment) {
		t.Error("IsProductionLike misclassified environments")
	}
}
