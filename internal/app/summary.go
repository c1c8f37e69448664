package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	brcfg "trendpilot/internal/config"
	"trendpilot/internal/scheduler"
)

type StartupSummary struct {
	Trade    TradeSummary
	Schedule string
	Model    string
	Store    string
	HTTP     string
	Notify   string
}

type TradeSummary struct {
	Symbol     string
	Timeframe  string
	Amount     float64
	Leverage   int
	MarginMode string
	TestMode   bool
	DataPoints int
}

func newStartupSummary(cfg *brcfg.Config, policy scheduler.Policy) *StartupSummary {
	s := &StartupSummary{
		Trade: TradeSummary{
			Symbol:     cfg.Trade.Symbol,
			Timeframe:  cfg.Trade.Timeframe,
			Amount:     cfg.Trade.Amount,
			Leverage:   cfg.Trade.Leverage,
			MarginMode: cfg.Trade.MarginMode,
			TestMode:   cfg.Trade.TestMode,
			DataPoints: cfg.Trade.DataPoints,
		},
		Model:  cfg.AI.Model,
		Notify: "关闭",
		HTTP:   "关闭",
	}
	if policy != nil {
		s.Schedule = policy.String()
	}
	if cfg.Store.UsePostgres() {
		s.Store = "postgres"
	} else {
		s.Store = "sqlite " + cfg.Store.SQLitePath
	}
	if cfg.Notify.Telegram.Enabled {
		s.Notify = "telegram"
	}
	if cfg.HTTP.Enabled {
		s.HTTP = cfg.HTTP.Addr
	}
	return s
}

func (s *StartupSummary) Print() {
	_, _ = s.WriteTo(os.Stdout)
}

// WriteTo 输出启动摘要；实现 io.WriterTo。
func (s *StartupSummary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	title := "启动配置摘要 (STARTUP SUMMARY)"
	b.WriteString(strings.Repeat("=", 80) + "\n")
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	b.WriteString(strings.Repeat("=", 80) + "\n")

	b.WriteString("[交易参数 (TRADE)]\n")
	fmt.Fprintf(&b, "  交易对: %s\n", s.Trade.Symbol)
	fmt.Fprintf(&b, "  周期: %s  K线数量: %d\n", s.Trade.Timeframe, s.Trade.DataPoints)
	fmt.Fprintf(&b, "  下单数量: %g  杠杆: x%d (%s)\n", s.Trade.Amount, s.Trade.Leverage, s.Trade.MarginMode)
	mode := "实盘"
	if s.Trade.TestMode {
		mode = "模拟"
	}
	fmt.Fprintf(&b, "  模式: %s\n\n", mode)

	b.WriteString("[运行环境 (RUNTIME)]\n")
	fmt.Fprintf(&b, "  调度: %s\n", orDash(s.Schedule))
	fmt.Fprintf(&b, "  模型: %s\n", orDash(s.Model))
	fmt.Fprintf(&b, "  审计存储: %s\n", orDash(s.Store))
	fmt.Fprintf(&b, "  HTTP: %s\n", s.HTTP)
	fmt.Fprintf(&b, "  通知: %s\n", s.Notify)
	b.WriteString(strings.Repeat("=", 80) + "\n")

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
