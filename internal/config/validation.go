package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	switch c.App.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json: %s", c.App.LogFormat)
	}
	if err := c.Trade.validate(); err != nil {
		return err
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (t *TradeConfig) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trade.symbol cannot be empty")
	}
	if !IsValidInterval(t.Timeframe) {
		return fmt.Errorf("trade.timeframe invalid: %s", t.Timeframe)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("trade.amount must be > 0")
	}
	if t.Leverage <= 0 {
		return fmt.Errorf("trade.leverage must be > 0")
	}
	if t.DataPoints < 2 {
		return fmt.Errorf("trade.data_points must be >= 2")
	}
	if t.MarginBuffer <= 0 || t.MarginBuffer > 1 {
		return fmt.Errorf("trade.margin_buffer must be in (0, 1]")
	}
	switch t.MarginMode {
	case "cross", "isolated":
	default:
		return fmt.Errorf("trade.margin_mode only supports cross|isolated, got %s", t.MarginMode)
	}
	if t.SettleDelayMS < 0 || t.ConfirmDelayMS < 0 {
		return fmt.Errorf("trade delays must be >= 0")
	}
	return nil
}

func (s *ScheduleConfig) validate() error {
	switch s.Mode {
	case "align":
		if !IsValidInterval(s.Period) {
			return fmt.Errorf("schedule.period invalid: %s", s.Period)
		}
	case "fixed":
		if s.IntervalSeconds <= 0 {
			return fmt.Errorf("schedule.interval_seconds must be > 0")
		}
	default:
		return fmt.Errorf("schedule.mode only supports align|fixed, got %s", s.Mode)
	}
	if s.GraceSeconds < 0 {
		return fmt.Errorf("schedule.grace_seconds must be >= 0")
	}
	return nil
}

func (a *AIConfig) validate() error {
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("ai.model cannot be empty")
	}
	if strings.TrimSpace(a.APIURL) == "" {
		return fmt.Errorf("ai.api_url cannot be empty")
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be in [0, 2]")
	}
	if a.MaxRetries <= 0 {
		return fmt.Errorf("ai.max_retries must be > 0")
	}
	if a.HistorySize <= 0 {
		return fmt.Errorf("ai.history_size must be > 0")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "sqlite":
		if strings.TrimSpace(s.SQLitePath) == "" {
			return fmt.Errorf("store.sqlite_path cannot be empty")
		}
	case "postgres":
		if strings.TrimSpace(s.PostgresDSN) == "" {
			return fmt.Errorf("store.postgres_dsn cannot be empty when driver=postgres")
		}
	default:
		return fmt.Errorf("store.driver only supports sqlite|postgres, got %s", s.Driver)
	}
	return nil
}

// MaxOrderTagLen 保证 clientOrderId（上限 36）中仍留有足够的随机后缀。
const MaxOrderTagLen = 19

func (e *ExchangeConfig) validate() error {
	if len(strings.TrimSpace(e.OrderTag)) > MaxOrderTagLen {
		return fmt.Errorf("exchange.order_tag must be at most %d characters", MaxOrderTagLen)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}

// IsValidInterval 简易校验：以数字开头，以 m/h/d/w 结尾
func IsValidInterval(s string) bool {
	if len(s) < 2 {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
