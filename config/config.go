package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Driftflow DriftflowConfig `yaml:"driftflow"`
	Feed      FeedConfig      `yaml:"feed"`
	Contracts ContractsConfig `yaml:"contracts"`
	Markets   MarketsConfig   `yaml:"markets"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type DriftflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// FeedConfig controls the persistent websocket connection to the DLOB
// market-data endpoint and the ingestion bounds applied to its streams.
type FeedConfig struct {
	URL                   string        `yaml:"url"`
	HandshakeTimeout      time.Duration `yaml:"handshake_timeout"`
	ReconnectDelay        time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts  int           `yaml:"max_reconnect_attempts"`
	HeartbeatInterval     time.Duration `yaml:"heartbeat_interval"`
	SubscribePollInterval time.Duration `yaml:"subscribe_poll_interval"`
	SubscribePollAttempts int           `yaml:"subscribe_poll_attempts"`
	OrderbookDepth        int           `yaml:"orderbook_depth"`
	TradeHistory          int           `yaml:"trade_history"`
}

// ContractsConfig describes the contract-listing REST endpoint and its
// client-side cache.
type ContractsConfig struct {
	URL               string        `yaml:"url"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
}

// MarketsConfig holds the symbol-selection defaults and the per-network
// market index tables used by symbol resolution.
type MarketsConfig struct {
	Network        string                    `yaml:"network"`
	DefaultSymbol  string                    `yaml:"default_symbol"`
	AllowedSymbols []string                  `yaml:"allowed_symbols"`
	Networks       map[string]map[int]string `yaml:"networks"`
}

// Table returns the market index table for the configured network.
func (m MarketsConfig) Table() map[int]string {
	if m.Networks == nil {
		return nil
	}
	return m.Networks[m.Network]
}

type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch     bool          `yaml:"cloudwatch"`
	Region         string        `yaml:"region"`
	Namespace      string        `yaml:"namespace"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// LoadConfig reads, parses and validates the application configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment overrides for deployment-specific endpoints.
	if v := os.Getenv("FEED_URL"); v != "" {
		config.Feed.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("CONTRACTS_URL"); v != "" {
		config.Contracts.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" && config.Metrics.CloudWatch {
		config.Metrics.Region = strings.TrimSpace(v)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			URL:                   "wss://dlob.drift.trade/ws",
			HandshakeTimeout:      10 * time.Second,
			ReconnectDelay:        3 * time.Second,
			MaxReconnectAttempts:  20,
			HeartbeatInterval:     30 * time.Second,
			SubscribePollInterval: 200 * time.Millisecond,
			SubscribePollAttempts: 50,
			OrderbookDepth:        10,
			TradeHistory:          30,
		},
		Contracts: ContractsConfig{
			URL:               "https://data.api.drift.trade/contracts",
			CacheTTL:          30 * time.Second,
			RequestsPerSecond: 5,
			BurstSize:         1,
		},
		Markets: MarketsConfig{
			Network:       "mainnet-beta",
			DefaultSymbol: "SOL",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			ReportInterval: 30 * time.Second,
		},
	}
}

func (c *Config) validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed url must be configured")
	}
	if c.Feed.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max_reconnect_attempts must not be negative")
	}
	if c.Feed.OrderbookDepth <= 0 {
		return fmt.Errorf("orderbook_depth must be positive")
	}
	if c.Feed.TradeHistory <= 0 {
		return fmt.Errorf("trade_history must be positive")
	}
	if c.Dashboard.Enabled && c.Dashboard.Address == "" {
		c.Dashboard.Address = ":8090"
	}
	return nil
}
