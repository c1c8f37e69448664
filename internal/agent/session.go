// Package agent 串起单个交易对的决策周期：取数 → 指标 → 决策 → 执行 → 审计。
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trendpilot/internal/analysis/summary"
	"trendpilot/internal/config"
	"trendpilot/internal/decision"
	"trendpilot/internal/executor"
	"trendpilot/internal/logger"
	"trendpilot/internal/market"
	"trendpilot/internal/scheduler"
	"trendpilot/internal/store"
)

var (
	ErrFetchCandles        = errors.New("market data unavailable")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrExchangeSetup       = errors.New("exchange setup failed")
)

// SignalStore 持久化每轮的最终信号。
type SignalStore interface {
	Append(ctx context.Context, symbol string, sig decision.Signal) error
	Load(ctx context.Context, symbol string, limit int) ([]decision.Signal, error)
}

// CycleResult 是一轮周期的摘要，供 HTTP 面板展示。
type CycleResult struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Price      float64          `json:"price"`
	Signal     *decision.Signal `json:"signal,omitempty"`
	Operation  string           `json:"operation,omitempty"`
	Status     string           `json:"status,omitempty"`
	Position   *market.Position `json:"position"`
	Error      string           `json:"error,omitempty"`
}

type SessionParams struct {
	Config   *config.Config
	Exchange market.Exchange
	Engine   *decision.Engine
	Executor *executor.Executor
	Candles  *store.CandleCache
	Signals  SignalStore
}

// Session 持有一个交易对的全部可变状态；周期串行执行。
type Session struct {
	cfg      *config.Config
	exchange market.Exchange
	engine   *decision.Engine
	executor *executor.Executor
	candles  *store.CandleCache
	signals  SignalStore

	nowFn func() time.Time

	mu   sync.RWMutex
	last *CycleResult
}

func NewSession(p SessionParams) *Session {
	candles := p.Candles
	if candles == nil {
		candles = store.NewCandleCache(p.Config.Trade.DataPoints)
	}
	return &Session{
		cfg:      p.Config,
		exchange: p.Exchange,
		engine:   p.Engine,
		executor: p.Executor,
		candles:  candles,
		signals:  p.Signals,
		nowFn:    time.Now,
	}
}

func (s *Session) Symbol() string              { return s.cfg.Trade.Symbol }
func (s *Session) Timeframe() string           { return s.cfg.Trade.Timeframe }
func (s *Session) TestMode() bool              { return s.cfg.Trade.TestMode }
func (s *Session) History() *decision.History  { return s.engine.History() }
func (s *Session) Candles() *store.CandleCache { return s.candles }

// LastCycle 返回最近一轮的结果副本。
func (s *Session) LastCycle() (CycleResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return CycleResult{}, false
	}
	return *s.last, true
}

// Setup 设置杠杆与保证金模式并打印可用余额。失败将终止启动。
func (s *Session) Setup(ctx context.Context) error {
	t := s.cfg.Trade
	if err := s.exchange.SetLeverage(ctx, t.Symbol, t.Leverage, t.MarginMode); err != nil {
		return fmt.Errorf("%w: %w", ErrExchangeSetup, err)
	}
	logger.Infof("已设置 %s 杠杆 x%d (%s)", t.Symbol, t.Leverage, t.MarginMode)
	balances, err := s.exchange.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("%w: fetch balance: %w", ErrExchangeSetup, err)
	}
	logger.Infof("当前可用余额: %.4f %s", balances[t.QuoteCurrency], t.QuoteCurrency)
	return nil
}

// Restore 从持久化存储恢复信号历史，失败只记录告警。
func (s *Session) Restore(ctx context.Context) {
	if s.signals == nil {
		return
	}
	h := s.engine.History()
	items, err := s.signals.Load(ctx, s.Symbol(), h.Cap())
	if err != nil {
		logger.Warnf("恢复信号历史失败: %v", err)
		return
	}
	h.Restore(items)
	if n := len(items); n > 0 {
		logger.Infof("已恢复 %d 条历史信号，最近一条: %s", n, items[n-1].Reminder())
	}
}

// RunCycle 执行一轮完整周期。取数或持仓查询失败时中止本轮，不产生信号也不下单。
func (s *Session) RunCycle(ctx context.Context) (res CycleResult, err error) {
	res = CycleResult{ID: uuid.NewString(), StartedAt: s.nowFn()}
	log := logger.With("cycle", res.ID[:8], "symbol", s.Symbol())
	defer func() { s.remember(&res) }()

	snap, err := s.snapshot(ctx)
	if err != nil {
		res.Error = err.Error()
		log.Error("本轮中止", "err", err)
		return res, err
	}
	res.Price = snap.Price
	logger.InfoBlock(s.consoleHeader(snap))

	pos, err := s.exchange.FetchPosition(ctx, s.Symbol())
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPositionUnavailable, err)
		res.Error = err.Error()
		log.Error("本轮中止", "err", err)
		return res, err
	}

	sig := s.engine.DecideWithRetry(ctx, snap, pos)
	res.Signal = &sig
	if sig.IsFallback {
		logger.Warnf("⚠️ 使用备用交易信号")
	}
	log.Info("决策完成", "signal", sig.Action, "confidence", sig.Confidence, "fallback", sig.IsFallback)
	s.persist(ctx, sig)

	updated, out := s.executor.Execute(ctx, sig, snap, pos)
	res.Operation = string(out.Op)
	res.Status = string(out.Status)
	res.Position = updated
	if out.Err != nil {
		res.Error = out.Err.Error()
	}
	if out.Failed() {
		log.Error("执行失败", "op", out.Op, "err", out.Err)
	}
	return res, nil
}

func (s *Session) snapshot(ctx context.Context) (summary.Snapshot, error) {
	t := s.cfg.Trade
	candles, err := s.exchange.FetchCandles(ctx, t.Symbol, t.Timeframe, t.DataPoints)
	if err != nil {
		return summary.Snapshot{}, fmt.Errorf("%w: %w", ErrFetchCandles, err)
	}
	if t.ClosedOnly {
		if iv, ok := scheduler.ParsePeriod(t.Timeframe); ok {
			candles = scheduler.DropUnclosed(candles, iv, s.nowFn(), scheduler.DefaultGrace)
		}
	}
	if len(candles) == 0 {
		return summary.Snapshot{}, fmt.Errorf("%w: empty candles", ErrFetchCandles)
	}
	s.candles.Put(candles)
	snap, err := summary.Build(t.Symbol, t.Timeframe, candles, t.Lookback)
	if err != nil {
		return summary.Snapshot{}, fmt.Errorf("%w: %w", ErrFetchCandles, err)
	}
	return snap, nil
}

func (s *Session) consoleHeader(snap summary.Snapshot) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString(fmt.Sprintf("执行时间: %s\n", s.nowFn().Format("2006-01-02 15:04:05")))
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString(fmt.Sprintf("%s 当前价格: %.5f\n", s.Symbol(), snap.Price))
	b.WriteString(fmt.Sprintf("数据周期: %s\n", snap.Timeframe))
	b.WriteString(fmt.Sprintf("价格变化: %+.5f%%\n", snap.PriceChangePct))
	if !snap.IndicatorsOK {
		b.WriteString("技术指标不可用，继续降级决策\n")
	}
	return b.String()
}

func (s *Session) persist(ctx context.Context, sig decision.Signal) {
	if s.signals == nil {
		return
	}
	if err := s.signals.Append(context.WithoutCancel(ctx), s.Symbol(), sig); err != nil {
		logger.Warnf("保存信号历史失败: %v", err)
	}
}

func (s *Session) remember(res *CycleResult) {
	res.FinishedAt = s.nowFn()
	cp := *res
	s.mu.Lock()
	s.last = &cp
	s.mu.Unlock()
}
