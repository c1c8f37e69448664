package config

import (
	"strings"
	"time"
)

// Config 是 trendpilot 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Trade    TradeConfig    `toml:"trade"`
	Schedule ScheduleConfig `toml:"schedule"`
	Exchange ExchangeConfig `toml:"exchange"`
	AI       AIConfig       `toml:"ai"`
	Store    StoreConfig    `toml:"store"`
	Notify   NotifyConfig   `toml:"notify"`
	HTTP     HTTPConfig     `toml:"http"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // text | json
	LogPath   string `toml:"log_path"`
	LLMLog    string `toml:"llm_log_path"`
}

// TradeConfig 描述单一交易对的下单参数。
type TradeConfig struct {
	Symbol     string  `toml:"symbol"`
	Timeframe  string  `toml:"timeframe"`
	Amount     float64 `toml:"amount"`
	Leverage   int     `toml:"leverage"`
	TestMode   bool    `toml:"test_mode"`
	DataPoints int     `toml:"data_points"`
	// ClosedOnly 为 true 时丢弃仍在形成中的最后一根 K 线。
	ClosedOnly     bool    `toml:"closed_candles_only"`
	Lookback       int     `toml:"lookback"`
	QuoteCurrency  string  `toml:"quote_currency"`
	MarginMode     string  `toml:"margin_mode"`   // cross | isolated
	MarginBuffer   float64 `toml:"margin_buffer"` // 所需保证金占可用余额上限，默认 0.8
	SettleDelayMS  int     `toml:"settle_delay_ms"`
	ConfirmDelayMS int     `toml:"confirm_delay_ms"`
}

func (t TradeConfig) SettleDelay() time.Duration {
	return time.Duration(t.SettleDelayMS) * time.Millisecond
}

func (t TradeConfig) ConfirmDelay() time.Duration {
	return time.Duration(t.ConfirmDelayMS) * time.Millisecond
}

// ScheduleConfig 选择周期调度策略。
type ScheduleConfig struct {
	Mode            string `toml:"mode"`   // align | fixed
	Period          string `toml:"period"` // align 模式对齐的周期，如 15m
	GraceSeconds    int    `toml:"grace_seconds"`
	IntervalSeconds int    `toml:"interval_seconds"` // fixed 模式两轮之间的间隔
}

// ExchangeConfig 描述交易所连接。
type ExchangeConfig struct {
	Name               string  `toml:"name"`
	APIKey             string  `toml:"api_key"`
	SecretKey          string  `toml:"secret_key"`
	RESTBaseURL        string  `toml:"rest_base_url"`
	Testnet            bool    `toml:"testnet"`
	OrderTag           string  `toml:"order_tag"`
	RequestsPerSecond  float64 `toml:"requests_per_second"`
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds"`
}

// AIConfig 描述推理服务与决策重试策略。
type AIConfig struct {
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	Headers        map[string]string `toml:"headers"`
	Temperature    float64           `toml:"temperature"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	MaxRetries     int               `toml:"max_retries"`
	RetryPauseMS   int               `toml:"retry_pause_ms"`
	KlineCount     int               `toml:"kline_count"`
	HistorySize    int               `toml:"history_size"`
	PromptsPath    string            `toml:"prompts_path"`
}

func (a AIConfig) RetryPause() time.Duration {
	return time.Duration(a.RetryPauseMS) * time.Millisecond
}

func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// StoreConfig 选择审计日志后端。
type StoreConfig struct {
	Driver      string `toml:"driver"` // sqlite | postgres
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
	HistoryPath string `toml:"history_path"`
}

func (s StoreConfig) UsePostgres() bool {
	return strings.EqualFold(strings.TrimSpace(s.Driver), "postgres")
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   int64  `toml:"chat_id"`
}

type HTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
