package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FUNDARB_* environment variable overrides, and
// returns the final Config. A missing file is not an error; the defaults plus
// environment are enough for the read-only commands. The returned Config has
// NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FUNDARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Binance ──
	setStr(&cfg.Binance.APIKey, "FUNDARB_BINANCE_API_KEY")
	setStr(&cfg.Binance.APISecret, "FUNDARB_BINANCE_API_SECRET")
	setFloat64(&cfg.Binance.TakerFee, "FUNDARB_BINANCE_TAKER_FEE")

	// ── Hyperliquid ──
	setStr(&cfg.Hyperliquid.BaseURL, "FUNDARB_HYPERLIQUID_BASE_URL")
	setStr(&cfg.Hyperliquid.WalletAddress, "FUNDARB_HYPERLIQUID_WALLET_ADDRESS")
	setStr(&cfg.Hyperliquid.PrivateKey, "FUNDARB_HYPERLIQUID_PRIVATE_KEY")
	setStr(&cfg.Hyperliquid.EncryptedKeyPath, "FUNDARB_HYPERLIQUID_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Hyperliquid.KeyPassword, "FUNDARB_HYPERLIQUID_KEY_PASSWORD")
	setFloat64(&cfg.Hyperliquid.TakerFee, "FUNDARB_HYPERLIQUID_TAKER_FEE")
	setFloat64(&cfg.Hyperliquid.MarketSlippage, "FUNDARB_HYPERLIQUID_MARKET_SLIPPAGE")

	// ── Trade ──
	setFloat64(&cfg.Trade.MaxSlippageBps, "FUNDARB_TRADE_MAX_SLIPPAGE_BPS")
	setDuration(&cfg.Trade.QuoteTimeout, "FUNDARB_TRADE_QUOTE_TIMEOUT")
	setDuration(&cfg.Trade.SubmitTimeout, "FUNDARB_TRADE_SUBMIT_TIMEOUT")
	setDuration(&cfg.Trade.LockTTL, "FUNDARB_TRADE_LOCK_TTL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FUNDARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FUNDARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FUNDARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FUNDARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FUNDARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FUNDARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FUNDARB_REDIS_TLS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FUNDARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FUNDARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FUNDARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FUNDARB_NOTIFY_EVENTS")

	// ── Watch ──
	setStr(&cfg.Watch.StreamURL, "FUNDARB_WATCH_STREAM_URL")
	setDuration(&cfg.Watch.Interval, "FUNDARB_WATCH_INTERVAL")
	setInt(&cfg.Watch.Top, "FUNDARB_WATCH_TOP")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "FUNDARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
