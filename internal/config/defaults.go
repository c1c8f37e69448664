package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppLogFormat    = "text"
	defaultTradeSymbol     = "XRP/USDT"
	defaultTradeTimeframe  = "15m"
	defaultTradeAmount     = 4
	defaultTradeLeverage   = 5
	defaultTradeDataPoints = 96
	defaultTradeLookback   = 20
	defaultQuoteCurrency   = "USDT"
	defaultMarginMode      = "cross"
	defaultMarginBuffer    = 0.8
	defaultSettleDelayMS   = 1000
	defaultConfirmDelayMS  = 2000
	defaultScheduleMode    = "align"
	defaultSchedulePeriod  = "15m"
	defaultScheduleGrace   = 10
	defaultScheduleFixed   = 60
	defaultExchangeName    = "binance"
	defaultExchangeREST    = "https://fapi.binance.com"
	defaultExchangeRPS     = 5
	defaultExchangeTimeout = 15
	defaultAIAPIURL        = "https://api.deepseek.com"
	defaultAIModel         = "deepseek-chat"
	defaultAITemperature   = 0.1
	defaultAITimeout       = 60
	defaultAIMaxRetries    = 2
	defaultAIRetryPauseMS  = 1000
	defaultAIKlineCount    = 5
	defaultAIHistorySize   = 30
	defaultPromptsPath     = "configs/prompts.yaml"
	defaultStoreDriver     = "sqlite"
	defaultStoreSQLite     = "data/trading_logs.db"
	defaultStoreHistory    = "data/signal_history.db"
	defaultHTTPAddr        = ":9991"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Trade.applyDefaults(keys)
	c.Schedule.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.AI.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
	)
	a.LogFormat = strings.ToLower(strings.TrimSpace(a.LogFormat))
}

func (t *TradeConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("trade.symbol", &t.Symbol, defaultTradeSymbol),
		stringFieldDefault("trade.timeframe", &t.Timeframe, defaultTradeTimeframe),
		stringFieldDefault("trade.quote_currency", &t.QuoteCurrency, defaultQuoteCurrency),
		stringFieldDefault("trade.margin_mode", &t.MarginMode, defaultMarginMode),
		positiveFloatDefault("trade.amount", &t.Amount, defaultTradeAmount),
		positiveFloatDefault("trade.margin_buffer", &t.MarginBuffer, defaultMarginBuffer),
		positiveIntDefault("trade.leverage", &t.Leverage, defaultTradeLeverage),
		positiveIntDefault("trade.data_points", &t.DataPoints, defaultTradeDataPoints),
		positiveIntDefault("trade.lookback", &t.Lookback, defaultTradeLookback),
		nonNegativeIntDefault("trade.settle_delay_ms", &t.SettleDelayMS, defaultSettleDelayMS),
		nonNegativeIntDefault("trade.confirm_delay_ms", &t.ConfirmDelayMS, defaultConfirmDelayMS),
	)
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	t.QuoteCurrency = strings.ToUpper(strings.TrimSpace(t.QuoteCurrency))
	t.MarginMode = strings.ToLower(strings.TrimSpace(t.MarginMode))
}

func (s *ScheduleConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("schedule.mode", &s.Mode, defaultScheduleMode),
		stringFieldDefault("schedule.period", &s.Period, defaultSchedulePeriod),
		nonNegativeIntDefault("schedule.grace_seconds", &s.GraceSeconds, defaultScheduleGrace),
		positiveIntDefault("schedule.interval_seconds", &s.IntervalSeconds, defaultScheduleFixed),
	)
	s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.name", &e.Name, defaultExchangeName),
		stringFieldDefault("exchange.rest_base_url", &e.RESTBaseURL, defaultExchangeREST),
		positiveFloatDefault("exchange.requests_per_second", &e.RequestsPerSecond, defaultExchangeRPS),
		positiveIntDefault("exchange.http_timeout_seconds", &e.HTTPTimeoutSeconds, defaultExchangeTimeout),
	)
}

func (a *AIConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("ai.api_url", &a.APIURL, defaultAIAPIURL),
		stringFieldDefault("ai.model", &a.Model, defaultAIModel),
		stringFieldDefault("ai.prompts_path", &a.PromptsPath, defaultPromptsPath),
		positiveFloatDefault("ai.temperature", &a.Temperature, defaultAITemperature),
		positiveIntDefault("ai.timeout_seconds", &a.TimeoutSeconds, defaultAITimeout),
		positiveIntDefault("ai.max_retries", &a.MaxRetries, defaultAIMaxRetries),
		nonNegativeIntDefault("ai.retry_pause_ms", &a.RetryPauseMS, defaultAIRetryPauseMS),
		positiveIntDefault("ai.kline_count", &a.KlineCount, defaultAIKlineCount),
		positiveIntDefault("ai.history_size", &a.HistorySize, defaultAIHistorySize),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("store.driver", &s.Driver, defaultStoreDriver),
		stringFieldDefault("store.sqlite_path", &s.SQLitePath, defaultStoreSQLite),
		stringFieldDefault("store.history_path", &s.HistoryPath, defaultStoreHistory),
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func positiveIntDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

// nonNegativeIntDefault 只在未显式配置时生效，允许配置为 0（测试场景关闭延时）。
func nonNegativeIntDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = def },
	}
}

func positiveFloatDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}
