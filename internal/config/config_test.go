package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "trade:\n  symbol: eth/usdt\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", cfg.Trade.Symbol)
	assert.Equal(t, "15m", cfg.Trade.Timeframe)
	assert.Equal(t, 96, cfg.Trade.DataPoints)
	assert.Equal(t, 5, cfg.Trade.Leverage)
	assert.InDelta(t, 0.8, cfg.Trade.MarginBuffer, 1e-9)
	assert.Equal(t, 1000, cfg.Trade.SettleDelayMS)
	assert.Equal(t, 2000, cfg.Trade.ConfirmDelayMS)
	assert.Equal(t, "align", cfg.Schedule.Mode)
	assert.Equal(t, 2, cfg.AI.MaxRetries)
	assert.Equal(t, 30, cfg.AI.HistorySize)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoad_ExplicitZeroDelaysKept(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "trade:\n  settle_delay_ms: 0\n  confirm_delay_ms: 0\nai:\n  retry_pause_ms: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Trade.SettleDelay())
	assert.Zero(t, cfg.Trade.ConfirmDelay())
	assert.Zero(t, cfg.AI.RetryPause())
}

func TestLoad_IncludeAndEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TP_TEST_AI_KEY", "sk-test")
	t.Setenv("TP_TEST_CHAT", "12345")
	writeFile(t, dir, "secrets.yaml", "ai:\n  api_key: ${TP_TEST_AI_KEY}\nnotify:\n  telegram:\n    enabled: true\n    bot_token: token\n    chat_id: ${TP_TEST_CHAT}\n")
	path := writeFile(t, dir, "config.yaml", "include:\n  - secrets.yaml\ntrade:\n  leverage: 3\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, int64(12345), cfg.Notify.Telegram.ChatID)
	assert.Equal(t, 3, cfg.Trade.Leverage)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"margin mode":   "trade:\n  margin_mode: portfolio\n",
		"schedule mode": "schedule:\n  mode: cron\n",
		"buffer":        "trade:\n  margin_buffer: 1.5\n",
		"postgres dsn":  "store:\n  driver: postgres\n",
		"log format":    "app:\n  log_format: xml\n",
		"order tag":     "exchange:\n  order_tag: trendpilot-production-x\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, name+".yaml", body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "trade:\n  leverage: 3\n  test_mode: true\n")

	cfg, err := newLoader([]string{
		"TRENDPILOT_TRADE__LEVERAGE=8",
		"TRENDPILOT_TRADE__TEST_MODE=false",
		"TRENDPILOT_NOTIFY__TELEGRAM__CHAT_ID=42",
		"TRENDPILOT_=ignored",
		"PATH=/usr/bin",
	}).load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Trade.Leverage)
	assert.False(t, cfg.Trade.TestMode)
	assert.Equal(t, int64(42), cfg.Notify.Telegram.ChatID)
}

func TestLoad_SingleIncludeAndCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "trade:\n  leverage: 7\n  amount: 2\n")
	path := writeFile(t, dir, "config.yaml", "include: base.yaml\ntrade:\n  amount: 6\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Trade.Leverage)
	assert.InDelta(t, 6.0, cfg.Trade.Amount, 1e-9)

	writeFile(t, dir, "a.yaml", "include: b.yaml\n")
	writeFile(t, dir, "b.yaml", "include: a.yaml\n")
	_, err = Load(filepath.Join(dir, "a.yaml"))
	assert.ErrorContains(t, err, "循环")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "trade.test_mode", envKey("TRADE__TEST_MODE"))
	assert.Equal(t, "notify.telegram.bot_token", envKey("NOTIFY__TELEGRAM__BOT_TOKEN"))
	assert.Empty(t, envKey(""))
	assert.Empty(t, envKey("TRADE____X"))
}

func TestIsValidInterval(t *testing.T) {
	assert.True(t, IsValidInterval("15m"))
	assert.True(t, IsValidInterval("4h"))
	assert.False(t, IsValidInterval("m"))
	assert.False(t, IsValidInterval("15s"))
	assert.False(t, IsValidInterval(""))
}
