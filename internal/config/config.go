// Package config defines the top-level configuration for the funding
// arbitrage engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FUNDARB_* environment
// variables.
type Config struct {
	Binance     BinanceConfig     `toml:"binance"`
	Hyperliquid HyperliquidConfig `toml:"hyperliquid"`
	Trade       TradeConfig       `toml:"trade"`
	Redis       RedisConfig       `toml:"redis"`
	Notify      NotifyConfig      `toml:"notify"`
	Watch       WatchConfig       `toml:"watch"`
	LogLevel    string            `toml:"log_level"`
}

// BinanceConfig holds Binance USDⓈ-M futures API credentials.
type BinanceConfig struct {
	APIKey    string  `toml:"api_key"`
	APISecret string  `toml:"api_secret"`
	TakerFee  float64 `toml:"taker_fee"`
}

// HyperliquidConfig holds the Hyperliquid endpoint and wallet credentials.
// The private key can be given raw or as an encrypted key file plus password.
type HyperliquidConfig struct {
	BaseURL          string  `toml:"base_url"`
	WalletAddress    string  `toml:"wallet_address"`
	PrivateKey       string  `toml:"private_key"`
	EncryptedKeyPath string  `toml:"encrypted_key_path"`
	KeyPassword      string  `toml:"key_password"`
	TakerFee         float64 `toml:"taker_fee"`
	MarketSlippage   float64 `toml:"market_slippage"`
}

// TradeConfig holds execution guard-rails for Enter and Exit.
type TradeConfig struct {
	MaxSlippageBps float64  `toml:"max_slippage_bps"`
	QuoteTimeout   duration `toml:"quote_timeout"`
	SubmitTimeout  duration `toml:"submit_timeout"`
	LockTTL        duration `toml:"lock_ttl"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; when
// disabled the engine runs without the distributed lock and report log.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// WatchConfig holds settings for the live mark-price watch view.
type WatchConfig struct {
	StreamURL string   `toml:"stream_url"`
	Interval  duration `toml:"interval"`
	Top       int      `toml:"top"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Binance: BinanceConfig{
			TakerFee: 0.0005,
		},
		Hyperliquid: HyperliquidConfig{
			BaseURL:        "https://api.hyperliquid.xyz",
			TakerFee:       0.00035,
			MarketSlippage: 0.005,
		},
		Trade: TradeConfig{
			MaxSlippageBps: 50,
			QuoteTimeout:   duration{10 * time.Second},
			SubmitTimeout:  duration{15 * time.Second},
			LockTTL:        duration{time.Minute},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Notify: NotifyConfig{
			Events: []string{"execution", "partial_leg"},
		},
		Watch: WatchConfig{
			Interval: duration{5 * time.Second},
			Top:      10,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. Credentials are not
// required here; read-only commands work without them and the trading paths
// report missing keys when they are exercised.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Hyperliquid.BaseURL == "" {
		errs = append(errs, "hyperliquid: base_url must not be empty")
	}
	if c.Hyperliquid.EncryptedKeyPath != "" && c.Hyperliquid.KeyPassword == "" {
		errs = append(errs, "hyperliquid: key_password is required when encrypted_key_path is set")
	}
	if c.Hyperliquid.MarketSlippage < 0 || c.Hyperliquid.MarketSlippage >= 1 {
		errs = append(errs, fmt.Sprintf("hyperliquid: market_slippage must be in [0, 1), got %g", c.Hyperliquid.MarketSlippage))
	}

	if c.Binance.TakerFee < 0 || c.Binance.TakerFee >= 1 {
		errs = append(errs, fmt.Sprintf("binance: taker_fee must be in [0, 1), got %g", c.Binance.TakerFee))
	}
	if c.Hyperliquid.TakerFee < 0 || c.Hyperliquid.TakerFee >= 1 {
		errs = append(errs, fmt.Sprintf("hyperliquid: taker_fee must be in [0, 1), got %g", c.Hyperliquid.TakerFee))
	}

	if c.Trade.MaxSlippageBps <= 0 {
		errs = append(errs, "trade: max_slippage_bps must be > 0")
	}
	if c.Trade.QuoteTimeout.Duration <= 0 {
		errs = append(errs, "trade: quote_timeout must be > 0")
	}
	if c.Trade.SubmitTimeout.Duration <= 0 {
		errs = append(errs, "trade: submit_timeout must be > 0")
	}
	if c.Trade.LockTTL.Duration <= 0 {
		errs = append(errs, "trade: lock_ttl must be > 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}

	if c.Watch.Interval.Duration <= 0 {
		errs = append(errs, "watch: interval must be > 0")
	}
	if c.Watch.Top < 1 {
		errs = append(errs, "watch: top must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
