// Package config defines the runtime configuration for the order book
// engine. Config is loaded from a TOML file (default: ./config.toml); if
// the file does not exist it is created with defaults so the program can
// run out of the box on first invocation.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the TOML file.
type Config struct {
	OrderbookInitialSnapshotDepth int     `mapstructure:"orderbook_initial_snapshot_depth"`
	OrderbookImbalanceDepthLevels int     `mapstructure:"orderbook_imbalance_depth_levels"`
	RecentTradesStartingCapacity  int     `mapstructure:"recent_trades_starting_capacity"`
	SignificantTradesRetentionSec int64   `mapstructure:"significant_trades_retention_secs"`
	SignificantTradeVolumePct     float64 `mapstructure:"significant_trade_volume_pct"`
	MinTradesForSignificance      int     `mapstructure:"min_trades_for_significance"`

	MaxReconnectAttempts int   `mapstructure:"max_reconnect_attempts"`
	InitialBackoffMs     int64 `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs         int64 `mapstructure:"max_backoff_ms"`
	MessageTimeoutMs     int64 `mapstructure:"message_timeout_ms"`

	OrderbookDepthDisplayCount    int `mapstructure:"orderbook_depth_display_count"`
	RecentTradesDisplayCount      int `mapstructure:"recent_trades_display_count"`
	SignificantTradesDisplayCount int `mapstructure:"significant_trades_display_count"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	DashboardEnabled bool `mapstructure:"dashboard_enabled"`
	DashboardPort    int  `mapstructure:"dashboard_port"`
}

// Default returns the configuration's zero-state defaults, matching §6 of
// the specification this engine implements.
func Default() Config {
	return Config{
		OrderbookInitialSnapshotDepth: 1000,
		OrderbookImbalanceDepthLevels: 10,

		RecentTradesStartingCapacity:  1000,
		SignificantTradesRetentionSec: 120,
		SignificantTradeVolumePct:     0.05,
		MinTradesForSignificance:      50,

		MaxReconnectAttempts: 10,
		InitialBackoffMs:     100,
		MaxBackoffMs:         30000,
		MessageTimeoutMs:     30000,

		OrderbookDepthDisplayCount:    5,
		RecentTradesDisplayCount:      10,
		SignificantTradesDisplayCount: 20,

		LogLevel:  "info",
		LogFormat: "text",

		DashboardEnabled: false,
		DashboardPort:    8090,
	}
}

func registerDefaults(v *viper.Viper, d Config) {
	v.SetDefault("orderbook_initial_snapshot_depth", d.OrderbookInitialSnapshotDepth)
	v.SetDefault("orderbook_imbalance_depth_levels", d.OrderbookImbalanceDepthLevels)
	v.SetDefault("recent_trades_starting_capacity", d.RecentTradesStartingCapacity)
	v.SetDefault("significant_trades_retention_secs", d.SignificantTradesRetentionSec)
	v.SetDefault("significant_trade_volume_pct", d.SignificantTradeVolumePct)
	v.SetDefault("min_trades_for_significance", d.MinTradesForSignificance)
	v.SetDefault("max_reconnect_attempts", d.MaxReconnectAttempts)
	v.SetDefault("initial_backoff_ms", d.InitialBackoffMs)
	v.SetDefault("max_backoff_ms", d.MaxBackoffMs)
	v.SetDefault("message_timeout_ms", d.MessageTimeoutMs)
	v.SetDefault("orderbook_depth_display_count", d.OrderbookDepthDisplayCount)
	v.SetDefault("recent_trades_display_count", d.RecentTradesDisplayCount)
	v.SetDefault("significant_trades_display_count", d.SignificantTradesDisplayCount)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("dashboard_enabled", d.DashboardEnabled)
	v.SetDefault("dashboard_port", d.DashboardPort)
}

// Load reads config from a TOML file at path, creating it with defaults if
// it does not already exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	defaults := Default()
	registerDefaults(v, defaults)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := v.SafeWriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	} else if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.OrderbookInitialSnapshotDepth <= 0 {
		return fmt.Errorf("orderbook_initial_snapshot_depth must be > 0")
	}
	if c.OrderbookImbalanceDepthLevels <= 0 {
		return fmt.Errorf("orderbook_imbalance_depth_levels must be > 0")
	}
	if c.SignificantTradeVolumePct <= 0 || c.SignificantTradeVolumePct > 1 {
		return fmt.Errorf("significant_trade_volume_pct must be in (0, 1]")
	}
	if c.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("max_reconnect_attempts must be > 0")
	}
	if c.InitialBackoffMs <= 0 {
		return fmt.Errorf("initial_backoff_ms must be > 0")
	}
	if c.MaxBackoffMs < c.InitialBackoffMs {
		return fmt.Errorf("max_backoff_ms must be >= initial_backoff_ms")
	}
	switch c.LogFormat {
	case "json", "text", "":
	default:
		return fmt.Errorf("log_format must be \"json\" or \"text\"")
	}
	return nil
}
