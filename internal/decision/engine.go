package decision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trendpilot/internal/analysis/summary"
	"trendpilot/internal/gateway/provider"
	"trendpilot/internal/logger"
	"trendpilot/internal/market"
	"trendpilot/internal/store"
)

// PromptRenderer 渲染系统/用户提示词。
type PromptRenderer interface {
	Render(data any) (system, user string, err error)
}

// Config 是决策引擎的静态参数。
type Config struct {
	Symbol    string
	Timeframe string
	Amount    float64
	Leverage  int
	// QuoteCurrency 为持仓盈亏的计价币。
	QuoteCurrency string
	Temperature   float64
	// KlineCount 为写入 prompt 的最近 K 线数量。
	KlineCount int
	MaxRetries int
	RetryPause time.Duration
}

// Engine 组装 prompt、调用推理服务并把响应转换为 Signal。
type Engine struct {
	cfg      Config
	reasoner provider.ReasoningService
	prompts  PromptRenderer
	parser   *Parser
	history  *History
	audit    *store.Recorder

	mu      sync.RWMutex
	lastRaw string
}

func NewEngine(cfg Config, reasoner provider.ReasoningService, prompts PromptRenderer, parser *Parser, history *History, audit *store.Recorder) *Engine {
	if cfg.KlineCount <= 0 {
		cfg.KlineCount = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if history == nil {
		history = NewHistory(DefaultHistorySize)
	}
	if parser == nil {
		parser = NewParser(nil)
	}
	return &Engine{
		cfg:      cfg,
		reasoner: reasoner,
		prompts:  prompts,
		parser:   parser,
		history:  history,
		audit:    audit,
	}
}

// History 返回引擎写入的信号历史。
func (e *Engine) History() *History { return e.history }

// LastRaw 返回最近一次推理服务的原始输出。
func (e *Engine) LastRaw() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastRaw
}

func (e *Engine) setLastRaw(raw string) {
	e.mu.Lock()
	e.lastRaw = raw
	e.mu.Unlock()
}

// promptData 为 prompt 模板可用的字段。
type promptData struct {
	Symbol         string
	Timeframe      string
	Price          float64
	Time           string
	PriceChangePct float64
	Amount         float64
	Leverage       int
	KlineCount     int
	Klines         string
	Narrative      string
	LastSignal     string
	Position       string
}

func (e *Engine) buildPromptData(snap summary.Snapshot, pos *market.Position) promptData {
	data := promptData{
		Symbol:         e.cfg.Symbol,
		Timeframe:      e.cfg.Timeframe,
		Price:          snap.Price,
		PriceChangePct: snap.PriceChangePct,
		Amount:         e.cfg.Amount,
		Leverage:       e.cfg.Leverage,
		KlineCount:     e.cfg.KlineCount,
		Klines:         snap.Recent.Tail(e.cfg.KlineCount).Describe(),
		Narrative:      summary.Narrative(snap),
		Position:       pos.Describe(e.cfg.QuoteCurrency),
	}
	if snap.Timestamp > 0 {
		data.Time = time.UnixMilli(snap.Timestamp).UTC().Format("2006-01-02 15:04:05")
	}
	if last, ok := e.history.Last(); ok {
		data.LastSignal = last.Reminder()
	}
	return data
}

// Decide 执行一次决策并写入历史。响应不可用时返回兜底信号以及导致兜底的错误。
func (e *Engine) Decide(ctx context.Context, snap summary.Snapshot, pos *market.Position) (Signal, error) {
	sig, err := e.attempt(ctx, snap, pos)
	e.history.Append(sig)
	return sig, err
}

// attempt 执行一次推理并写审计，不触碰历史。
func (e *Engine) attempt(ctx context.Context, snap summary.Snapshot, pos *market.Position) (Signal, error) {
	sig, raw, err := e.decide(ctx, snap, pos)
	if err != nil {
		sig = Fallback(snap.Price, snap.Timestamp)
	}
	sig.Timestamp = snap.Timestamp
	e.recordAnalysis(ctx, snap, pos, sig, raw, err)
	return sig, err
}

func (e *Engine) decide(ctx context.Context, snap summary.Snapshot, pos *market.Position) (Signal, string, error) {
	if e.reasoner == nil || e.prompts == nil {
		return Signal{}, "", fmt.Errorf("%w: engine not configured", ErrReasoningCall)
	}
	system, user, err := e.prompts.Render(e.buildPromptData(snap, pos))
	if err != nil {
		return Signal{}, "", fmt.Errorf("%w: %v", ErrReasoningCall, err)
	}
	raw, err := e.reasoner.Complete(ctx, system, user, e.cfg.Temperature)
	if err != nil {
		return Signal{}, "", fmt.Errorf("%w: %v", ErrReasoningCall, err)
	}
	e.setLastRaw(raw)
	sig, err := e.parser.Parse(raw)
	if err != nil {
		return Signal{}, raw, err
	}
	return sig, raw, nil
}

// DecideWithRetry 最多尝试 MaxRetries 次；失败或兜底后暂停 RetryPause 再试。
// 全部失败时返回新的兜底信号，从不返回错误。每轮只把最终信号写入历史一次。
func (e *Engine) DecideWithRetry(ctx context.Context, snap summary.Snapshot, pos *market.Position) Signal {
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		sig, err := e.attempt(ctx, snap, pos)
		if err == nil && !sig.IsFallback {
			e.history.Append(sig)
			return sig
		}
		logger.Warnf("第%d次决策失败 (%v)，准备重试", attempt, err)
		if attempt == e.cfg.MaxRetries {
			break
		}
		if !pause(ctx, e.cfg.RetryPause) {
			break
		}
	}
	sig := Fallback(snap.Price, snap.Timestamp)
	e.history.Append(sig)
	return sig
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Engine) recordAnalysis(ctx context.Context, snap summary.Snapshot, pos *market.Position, sig Signal, raw string, cause error) {
	extra := map[string]any{"is_fallback": sig.IsFallback}
	if cause != nil {
		extra["error"] = cause.Error()
		var perr *ParseError
		if errors.As(cause, &perr) {
			extra["error_kind"] = perr.Kind.Error()
		}
	}
	e.audit.Record(ctx, store.AuditRecord{
		Symbol:          e.cfg.Symbol,
		Timeframe:       e.cfg.Timeframe,
		Price:           snap.Price,
		PriceChange:     snap.PriceChangePct,
		RawResponse:     raw,
		Signal:          string(sig.Action),
		Reason:          sig.Reason,
		StopLoss:        sig.StopLoss,
		TakeProfit:      sig.TakeProfit,
		Confidence:      string(sig.Confidence),
		CurrentPosition: pos,
		OperationType:   store.OpAnalysis,
		OrderStatus:     store.StatusAnalyzed,
		Extra:           extra,
	})
}
