package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testYAML = `
storage:
  sqlite_path: "/tmp/tradeflow/tradeflow.db"
  data_dir: "/tmp/tradeflow/data"
server:
  host: "0.0.0.0"
  port: 8080
  metrics_port: 9100
broker:
  name: "simulator"
  min_latency_ms: 50
  max_latency_ms: 250
  reject_rate: 0.0
  max_concurrent_fills: 16
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
feed:
  provider: "stub"
  symbols: ["AAPL", "MSFT"]
  interval_ms: 500
  buffer_size: 64
risk:
  max_order_size: 100
  daily_loss_limit: 1000.0
  reset_timezone: "America/New_York"
trading:
  account_id: "paper-1"
  strategy: "sma-cross"
  short_window: 2
  long_window: 4
  order_size: 10
logging:
  level: "info"
  format: "json"
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tradeflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	os.Unsetenv("ALPACA_API_KEY")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("MAX_ORDER_SIZE")

	cfg, err := Load(writeTestConfig(t, testYAML))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Storage.SQLitePath != "/tmp/tradeflow/tradeflow.db" {
		t.Errorf("SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/tradeflow/tradeflow.db")
	}
	if cfg.Broker.Name != "simulator" {
		t.Errorf("Broker.Name = %q, want %q", cfg.Broker.Name, "simulator")
	}
	if cfg.Risk.MaxOrderSize != 100 {
		t.Errorf("Risk.MaxOrderSize = %d, want 100", cfg.Risk.MaxOrderSize)
	}
	if len(cfg.Feed.Symbols) != 2 || cfg.Feed.Symbols[0] != "AAPL" {
		t.Errorf("Feed.Symbols = %v, want [AAPL MSFT]", cfg.Feed.Symbols)
	}
	if cfg.Trading.ShortWindow != 2 || cfg.Trading.LongWindow != 4 {
		t.Errorf("windows = (%d, %d), want (2, 4)", cfg.Trading.ShortWindow, cfg.Trading.LongWindow)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAX_ORDER_SIZE", "7")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SQLITE_PATH", "/elsewhere/t.db")

	cfg, err := Load(writeTestConfig(t, testYAML))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Risk.MaxOrderSize != 7 {
		t.Errorf("Risk.MaxOrderSize = %d, want 7 (env override)", cfg.Risk.MaxOrderSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Storage.SQLitePath != "/elsewhere/t.db" {
		t.Errorf("SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/elsewhere/t.db")
	}
}

func TestLoadRejectsMissingResetTimezone(t *testing.T) {
	bad := `
risk:
  max_order_size: 100
  daily_loss_limit: 1000.0
`
	if _, err := Load(writeTestConfig(t, bad)); err == nil {
		t.Fatal("Load accepted config without risk.reset_timezone")
	}
}

func TestLoadRejectsInvertedWindows(t *testing.T) {
	bad := `
risk:
  max_order_size: 100
  daily_loss_limit: 1000.0
  reset_timezone: "UTC"
trading:
  short_window: 4
  long_window: 2
`
	if _, err := Load(writeTestConfig(t, bad)); err == nil {
		t.Fatal("Load accepted short_window >= long_window")
	}
}
