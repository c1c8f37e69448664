// Package executor 把信号与持仓快照转换为下单动作，负责保证金准入与持仓回读。
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trendpilot/internal/analysis/summary"
	"trendpilot/internal/config"
	"trendpilot/internal/decision"
	"trendpilot/internal/gateway/notifier"
	"trendpilot/internal/logger"
	"trendpilot/internal/market"
	"trendpilot/internal/store"
)

var (
	ErrLowConfidence      = errors.New("low confidence signal")
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrBalanceUnavailable = errors.New("balance unavailable")
)

type Config struct {
	Symbol        string
	Timeframe     string
	Amount        float64
	Leverage      int
	TestMode      bool
	QuoteCurrency string
	MarginBuffer  float64
	SettleDelay   time.Duration
	ConfirmDelay  time.Duration
	OrderTag      string
}

// ConfigFrom 从主配置中抽取执行参数。
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Symbol:        cfg.Trade.Symbol,
		Timeframe:     cfg.Trade.Timeframe,
		Amount:        cfg.Trade.Amount,
		Leverage:      cfg.Trade.Leverage,
		TestMode:      cfg.Trade.TestMode,
		QuoteCurrency: cfg.Trade.QuoteCurrency,
		MarginBuffer:  cfg.Trade.MarginBuffer,
		SettleDelay:   cfg.Trade.SettleDelay(),
		ConfirmDelay:  cfg.Trade.ConfirmDelay(),
		OrderTag:      cfg.Exchange.OrderTag,
	}
}

// Outcome 是单次执行的显式结果，Err 仅在 skipped/failed 时非空。
type Outcome struct {
	Op             store.OperationType
	Status         store.OrderStatus
	RequiredMargin float64
	Orders         []market.OrderResult
	Err            error
}

func (o Outcome) Failed() bool { return o.Status == store.StatusFailed }

type Executor struct {
	cfg      Config
	exchange market.Exchange
	audit    *store.Recorder
	notifier notifier.TextNotifier
	sleep    func(d time.Duration)
}

// New 创建执行器；notifier 可为 nil。
func New(cfg Config, ex market.Exchange, audit *store.Recorder, n notifier.TextNotifier) *Executor {
	if strings.TrimSpace(cfg.QuoteCurrency) == "" {
		cfg.QuoteCurrency = "USDT"
	}
	if cfg.MarginBuffer <= 0 {
		cfg.MarginBuffer = defaultMarginBuffer
	}
	return &Executor{cfg: cfg, exchange: ex, audit: audit, notifier: n, sleep: pause}
}

// Execute 按决策表执行信号。返回执行后的持仓（nil 表示空仓或未知），错误体现在 Outcome 中。
// 执行一旦开始不随 ctx 取消，翻仓不会停在只平不开的状态。
func (e *Executor) Execute(ctx context.Context, sig decision.Signal, snap summary.Snapshot, pos *market.Position) (*market.Position, Outcome) {
	ctx = context.WithoutCancel(ctx)
	plan := PlanFor(sig.Action, pos)
	out := Outcome{Op: plan.Op}
	if plan.Opens() {
		out.RequiredMargin = RequiredMargin(snap.Price, e.cfg.Amount, e.cfg.Leverage)
	}

	if sig.Confidence == decision.ConfidenceLow && !e.cfg.TestMode {
		out.Status = store.StatusSkipped
		out.Err = ErrLowConfidence
		logger.Infof("低信心信号，跳过执行: %s", sig.Reminder())
		e.record(ctx, sig, snap, pos, out, nil, nil)
		return pos, out
	}
	if e.cfg.TestMode {
		out.Status = store.StatusSimulated
		logger.Infof("测试模式，仅模拟: %s %s", plan.Op, sig.Reminder())
		e.record(ctx, sig, snap, pos, out, nil, map[string]any{"test_mode": true})
		return nil, out
	}

	switch plan.Op {
	case store.OpNone:
		out.Status = store.StatusNoop
		logger.Infof("信号为 HOLD，不操作")
		e.record(ctx, sig, snap, pos, out, pos, nil)
		return pos, out
	case store.OpHold:
		out.Status = store.StatusHold
		logger.Infof("已持有 %s 仓位，保持不变", pos.Side)
		e.record(ctx, sig, snap, pos, out, pos, nil)
		return pos, out
	}

	free, err := e.freeBalance(ctx)
	if err != nil {
		out.Status = store.StatusSkipped
		out.Err = err
		logger.Warnf("读取可用余额失败，跳过执行: %v", err)
		e.record(ctx, sig, snap, pos, out, nil, nil)
		return pos, out
	}
	if out.RequiredMargin > 0 && !marginAllowed(out.RequiredMargin, free, e.cfg.MarginBuffer) {
		out.Status = store.StatusSkipped
		out.Err = fmt.Errorf("%w: need %.4f, free %.4f %s", ErrInsufficientMargin, out.RequiredMargin, free, e.cfg.QuoteCurrency)
		logger.Warnf("保证金不足，跳过执行: 需要 %.4f, 可用 %.4f %s", out.RequiredMargin, free, e.cfg.QuoteCurrency)
		e.record(ctx, sig, snap, pos, out, nil, map[string]any{"free_balance": free})
		return pos, out
	}

	out.Status = store.StatusPrecheck
	e.record(ctx, sig, snap, pos, out, nil, map[string]any{"free_balance": free})

	orders, err := e.submit(ctx, plan, sig, pos)
	out.Orders = orders
	if err != nil {
		out.Status = store.StatusFailed
		out.Err = err
		logger.Errorf("下单失败 %s: %v", plan.Op, err)
		e.record(ctx, sig, snap, pos, out, nil, map[string]any{"orders": orders})
		return nil, out
	}

	e.sleep(e.cfg.ConfirmDelay)
	updated, err := e.exchange.FetchPosition(ctx, e.cfg.Symbol)
	if err != nil {
		logger.Warnf("回读持仓失败: %v", err)
		updated = nil
	}
	out.Status = store.StatusSuccess
	logger.Infof("执行完成 %s，最新持仓: %s", plan.Op, updated.Describe(e.cfg.QuoteCurrency))
	e.record(ctx, sig, snap, pos, out, updated, map[string]any{"orders": orders})
	e.notify(plan, sig, snap, updated)
	return updated, out
}

func (e *Executor) freeBalance(ctx context.Context) (float64, error) {
	balances, err := e.exchange.FetchBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBalanceUnavailable, err)
	}
	return balances[e.cfg.QuoteCurrency], nil
}

// submit 依次提交平仓与开仓；翻仓时两单之间等待 SettleDelay。
func (e *Executor) submit(ctx context.Context, plan Plan, sig decision.Signal, pos *market.Position) ([]market.OrderResult, error) {
	var results []market.OrderResult
	if plan.Close {
		req := market.OrderRequest{
			Symbol:     e.cfg.Symbol,
			Side:       plan.CloseSide,
			Size:       pos.Size,
			ReduceOnly: true,
			Tag:        e.cfg.OrderTag,
		}
		res, err := e.exchange.SubmitMarketOrder(ctx, req)
		if err != nil {
			return results, fmt.Errorf("close %s: %w", pos.Side, err)
		}
		results = append(results, res)
		logger.Infof("已平仓 %s %.4f，订单 %s", pos.Side, pos.Size, res.OrderID)
		if plan.Open {
			e.sleep(e.cfg.SettleDelay)
		}
	}
	if plan.Open {
		req := market.OrderRequest{
			Symbol: e.cfg.Symbol,
			Side:   plan.OpenSide,
			Size:   e.cfg.Amount,
			Tag:    e.cfg.OrderTag,
		}
		if !plan.Flip() {
			req.TakeProfit = sig.TakeProfit
			req.StopLoss = sig.StopLoss
		}
		res, err := e.exchange.SubmitMarketOrder(ctx, req)
		if err != nil {
			return results, fmt.Errorf("open %s: %w", plan.OpenSide, err)
		}
		results = append(results, res)
		logger.Infof("已开仓 %s %.4f，订单 %s", plan.OpenSide, e.cfg.Amount, res.OrderID)
	}
	return results, nil
}

func (e *Executor) record(ctx context.Context, sig decision.Signal, snap summary.Snapshot, before *market.Position, out Outcome, after *market.Position, extra map[string]any) {
	if extra == nil {
		extra = make(map[string]any)
	}
	if out.Err != nil {
		extra["error"] = out.Err.Error()
	}
	if sig.IsFallback {
		extra["is_fallback"] = true
	}
	e.audit.Record(ctx, store.AuditRecord{
		Symbol:          e.cfg.Symbol,
		Timeframe:       e.cfg.Timeframe,
		Price:           snap.Price,
		PriceChange:     snap.PriceChangePct,
		Signal:          string(sig.Action),
		Reason:          sig.Reason,
		StopLoss:        sig.StopLoss,
		TakeProfit:      sig.TakeProfit,
		Confidence:      string(sig.Confidence),
		CurrentPosition: before,
		OperationType:   out.Op,
		RequiredMargin:  out.RequiredMargin,
		OrderStatus:     out.Status,
		UpdatedPosition: after,
		Extra:           extra,
	})
}

func (e *Executor) notify(plan Plan, sig decision.Signal, snap summary.Snapshot, updated *market.Position) {
	if e.notifier == nil {
		return
	}
	order := []string{
		fmt.Sprintf("标的: %s (%s)", strings.ToUpper(e.cfg.Symbol), e.cfg.Timeframe),
		fmt.Sprintf("操作: %s  信心: %s", plan.Op, sig.Confidence),
		fmt.Sprintf("价格: %.5f  杠杆: x%d", snap.Price, e.cfg.Leverage),
		fmt.Sprintf("止盈: %.5f  止损: %.5f", sig.TakeProfit, sig.StopLoss),
	}
	msg := notifier.Message{
		Icon:  "✅",
		Title: "交易已执行",
		Sections: []notifier.Section{
			{Title: "订单", Lines: order},
			{Title: "持仓", Lines: []string{updated.Describe(e.cfg.QuoteCurrency)}},
			{Title: "理由", Lines: []string{sig.Reason}},
		},
		Timestamp: time.Now(),
	}
	if err := e.notifier.SendText(msg.Markdown()); err != nil {
		logger.Warnf("发送成交通知失败: %v", err)
	}
}

func pause(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
