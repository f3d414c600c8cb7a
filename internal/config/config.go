// Package config loads the engine configuration from YAML. Durations
// are written as strings ("30s", "5m") and parsed into the component
// configs by the Build methods.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pulse-lab/pulse-trading/internal/backtest"
	"github.com/pulse-lab/pulse-trading/internal/market"
	"github.com/pulse-lab/pulse-trading/internal/monitor"
	"github.com/pulse-lab/pulse-trading/internal/scanner"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Market data providers.
const (
	ProviderRest    = "rest"
	ProviderBinance = "binance"
)

// Config is the full engine configuration.
type Config struct {
	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	// DatabasePath is the DuckDB file, or ":memory:".
	DatabasePath string `yaml:"database_path"`
	// AccountUSD is the virtual balance positions are sized against.
	AccountUSD float64 `yaml:"account_usd" validate:"gt=0"`
	// ListenAddr is the API bind address.
	ListenAddr string `yaml:"listen_addr"`
	// Provider selects the market data upstream.
	Provider string `yaml:"provider" validate:"omitempty,oneof=rest binance"`
	// ExecutionMode is paper or live.
	ExecutionMode string `yaml:"execution_mode" validate:"omitempty,oneof=paper live"`

	Market   MarketConfig   `yaml:"market"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Backtest BacktestConfig `yaml:"backtest"`
}

// MarketConfig is the YAML shape of the REST gateway settings.
type MarketConfig struct {
	BaseURL        string `yaml:"base_url"`
	RequestTimeout string `yaml:"request_timeout"`
	SymbolCacheTTL string `yaml:"symbol_cache_ttl"`
}

// Build converts the YAML shape into the gateway config.
func (m MarketConfig) Build() (market.RestClientConfig, error) {
	timeout, err := parseDuration(m.RequestTimeout, "market.request_timeout")
	if err != nil {
		return market.RestClientConfig{}, err
	}

	ttl, err := parseDuration(m.SymbolCacheTTL, "market.symbol_cache_ttl")
	if err != nil {
		return market.RestClientConfig{}, err
	}

	return market.RestClientConfig{
		BaseURL:        m.BaseURL,
		RequestTimeout: timeout,
		SymbolCacheTTL: ttl,
	}, nil
}

// ScannerConfig is the YAML shape of the scan loop settings.
type ScannerConfig struct {
	ScanInterval     string             `yaml:"scan_interval"`
	SymbolDelay      string             `yaml:"symbol_delay"`
	SymbolLimit      int                `yaml:"symbol_limit" validate:"gte=0"`
	TimeframeMinutes int                `yaml:"timeframe_minutes" validate:"gte=0"`
	CandleLimit      int                `yaml:"candle_limit" validate:"gte=0"`
	Params           map[string]float64 `yaml:"params"`
}

// Build converts the YAML shape into the scanner config.
func (s ScannerConfig) Build() (scanner.Config, error) {
	interval, err := parseDuration(s.ScanInterval, "scanner.scan_interval")
	if err != nil {
		return scanner.Config{}, err
	}

	delay, err := parseDuration(s.SymbolDelay, "scanner.symbol_delay")
	if err != nil {
		return scanner.Config{}, err
	}

	return scanner.Config{
		ScanInterval:     interval,
		SymbolDelay:      delay,
		SymbolLimit:      s.SymbolLimit,
		TimeframeMinutes: s.TimeframeMinutes,
		CandleLimit:      s.CandleLimit,
		Params:           s.Params,
	}, nil
}

// MonitorConfig is the YAML shape of the monitor loop settings.
type MonitorConfig struct {
	PollInterval string  `yaml:"poll_interval"`
	TrailTrigger float64 `yaml:"trail_trigger" validate:"gte=0,lte=1"`
}

// Build converts the YAML shape into the monitor config.
func (m MonitorConfig) Build() (monitor.Config, error) {
	poll, err := parseDuration(m.PollInterval, "monitor.poll_interval")
	if err != nil {
		return monitor.Config{}, err
	}

	return monitor.Config{
		PollInterval: poll,
		TrailTrigger: m.TrailTrigger,
	}, nil
}

// BacktestConfig is the YAML shape of the engine defaults.
type BacktestConfig struct {
	SLPercent  float64 `yaml:"sl_percent" validate:"gte=0"`
	RiskReward float64 `yaml:"risk_reward" validate:"gte=0"`
}

// Build converts the YAML shape into the engine config.
func (b BacktestConfig) Build() backtest.EngineConfig {
	return backtest.EngineConfig{
		SLPercent:  b.SLPercent,
		RiskReward: b.RiskReward,
	}
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:      "info",
		DatabasePath:  "pulse.db",
		AccountUSD:    1000,
		ListenAddr:    ":10000",
		Provider:      ProviderRest,
		ExecutionMode: "paper",
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (Config, error) {
	config := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config %s", path)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks structural invariants and that every duration parses.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if _, err := c.Market.Build(); err != nil {
		return err
	}

	if _, err := c.Scanner.Build(); err != nil {
		return err
	}

	if _, err := c.Monitor.Build(); err != nil {
		return err
	}

	return nil
}

// parseDuration parses an optional duration string; empty means zero
// and lets the component default apply.
func parseDuration(value, key string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid duration for %s", key)
	}

	return duration, nil
}
