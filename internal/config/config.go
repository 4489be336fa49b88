package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradeflow pipeline.
type Config struct {
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Broker  Broker  `yaml:"broker"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Feed    Feed    `yaml:"feed"`
	Risk    Risk    `yaml:"risk"`
	Trading Trading `yaml:"trading"`
	Logging Logging `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	DataDir    string `yaml:"data_dir"` // parquet fill journal root
}

// Server holds network listener configuration.
type Server struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// Broker selects and tunes the order execution backend.
type Broker struct {
	Name               string  `yaml:"name"` // "simulator" or "alpaca"
	MinLatencyMs       int     `yaml:"min_latency_ms"`
	MaxLatencyMs       int     `yaml:"max_latency_ms"`
	RejectRate         float64 `yaml:"reject_rate"`
	SlippageBps        float64 `yaml:"slippage_bps"`
	CommissionBps      float64 `yaml:"commission_bps"`
	MaxConcurrentFills int     `yaml:"max_concurrent_fills"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Feed configures the tick source.
type Feed struct {
	Provider   string   `yaml:"provider"` // "stub" or "ws"
	Symbols    []string `yaml:"symbols"`
	IntervalMs int      `yaml:"interval_ms"` // stub tick cadence
	WSURL      string   `yaml:"ws_url"`
	BufferSize int      `yaml:"buffer_size"` // per-subscriber channel depth
}

// Risk defines the pre-trade gates enforced by the risk manager.
type Risk struct {
	MaxOrderSize   int     `yaml:"max_order_size"`
	DailyLossLimit float64 `yaml:"daily_loss_limit"`
	// ResetTimezone names the IANA zone whose midnight resets the daily
	// realized-loss accumulator. The reset boundary is deliberately a
	// required input rather than a built-in guess.
	ResetTimezone string `yaml:"reset_timezone"`
}

// Trading defines the strategy runner parameters.
type Trading struct {
	AccountID   string `yaml:"account_id"`
	Strategy    string `yaml:"strategy"`
	ShortWindow int    `yaml:"short_window"`
	LongWindow  int    `yaml:"long_window"`
	OrderSize   int    `yaml:"order_size"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Risk.MaxOrderSize <= 0 {
		return fmt.Errorf("risk.max_order_size must be positive, got %d", c.Risk.MaxOrderSize)
	}
	if c.Risk.DailyLossLimit <= 0 {
		return fmt.Errorf("risk.daily_loss_limit must be positive, got %v", c.Risk.DailyLossLimit)
	}
	if c.Risk.ResetTimezone == "" {
		return fmt.Errorf("risk.reset_timezone is required (e.g. \"America/New_York\")")
	}
	if c.Trading.ShortWindow > 0 && c.Trading.LongWindow > 0 && c.Trading.ShortWindow >= c.Trading.LongWindow {
		return fmt.Errorf("trading.short_window (%d) must be less than trading.long_window (%d)",
			c.Trading.ShortWindow, c.Trading.LongWindow)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("BROKER_NAME"); v != "" {
		cfg.Broker.Name = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("FEED_WS_URL"); v != "" {
		cfg.Feed.WSURL = v
	}

	if v := os.Getenv("MAX_ORDER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Risk.MaxOrderSize = n
		}
	}
	if v := os.Getenv("DAILY_LOSS_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.DailyLossLimit = f
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars take highest priority, matching the SDK names.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
