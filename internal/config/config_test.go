package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[binance]
api_key = "k"
api_secret = "s"

[trade]
max_slippage_bps = 25.0
quote_timeout = "3s"

[redis]
enabled = true
addr = "redis:6379"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "k", cfg.Binance.APIKey)
	assert.InDelta(t, 25.0, cfg.Trade.MaxSlippageBps, 1e-9)
	assert.Equal(t, 3*time.Second, cfg.Trade.QuoteTimeout.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Trade.SubmitTimeout.Duration)
	assert.Equal(t, "https://api.hyperliquid.xyz", cfg.Hyperliquid.BaseURL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FUNDARB_BINANCE_API_KEY", "env-key")
	t.Setenv("FUNDARB_TRADE_MAX_SLIPPAGE_BPS", "12.5")
	t.Setenv("FUNDARB_TRADE_LOCK_TTL", "90s")
	t.Setenv("FUNDARB_REDIS_ENABLED", "true")
	t.Setenv("FUNDARB_NOTIFY_EVENTS", "execution, partial_leg ,")

	path := writeConfig(t, `
[binance]
api_key = "file-key"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Binance.APIKey)
	assert.InDelta(t, 12.5, cfg.Trade.MaxSlippageBps, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Trade.LockTTL.Duration)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"execution", "partial_leg"}, cfg.Notify.Events)
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Hyperliquid.BaseURL = ""
	cfg.Trade.MaxSlippageBps = 0
	cfg.Watch.Top = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "base_url")
	assert.Contains(t, err.Error(), "max_slippage_bps")
	assert.Contains(t, err.Error(), "watch: top")
}

func TestValidateEncryptedKeyNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Hyperliquid.EncryptedKeyPath = "/keys/hl.json"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")
}
