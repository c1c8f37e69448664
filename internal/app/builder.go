package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"trendpilot/internal/agent"
	brcfg "trendpilot/internal/config"
	"trendpilot/internal/decision"
	"trendpilot/internal/executor"
	"trendpilot/internal/gateway/binance"
	"trendpilot/internal/gateway/notifier"
	"trendpilot/internal/gateway/provider"
	"trendpilot/internal/logger"
	"trendpilot/internal/market"
	"trendpilot/internal/prompt"
	"trendpilot/internal/scheduler"
	"trendpilot/internal/store"
	livehttp "trendpilot/internal/transport/http/live"
)

type AppBuilder struct {
	cfg *brcfg.Config

	exchangeFn    func(brcfg.ExchangeConfig) market.Exchange
	reasonerFn    func(brcfg.AIConfig) provider.ReasoningService
	promptsFn     func(string) (*prompt.Registry, error)
	auditStoreFn  func(context.Context, brcfg.StoreConfig) (store.AuditStore, error)
	signalStoreFn func(brcfg.StoreConfig) (signalStore, error)
	notifierFn    func(brcfg.NotifyConfig) (notifier.TextNotifier, error)
	liveHTTPFn    func(brcfg.Config, livehttp.Source, store.AuditReader) (*livehttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithExchange 替换交易所实现（测试或模拟盘使用）。
func WithExchange(ex market.Exchange) AppBuilderOption {
	return func(b *AppBuilder) {
		b.exchangeFn = func(brcfg.ExchangeConfig) market.Exchange { return ex }
	}
}

// WithReasoner 替换推理服务实现。
func WithReasoner(rs provider.ReasoningService) AppBuilderOption {
	return func(b *AppBuilder) {
		b.reasonerFn = func(brcfg.AIConfig) provider.ReasoningService { return rs }
	}
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		exchangeFn:    buildExchange,
		reasonerFn:    buildReasoner,
		promptsFn:     prompt.NewRegistry,
		auditStoreFn:  buildAuditStore,
		signalStoreFn: buildSignalStore,
		notifierFn:    buildNotifier,
		liveHTTPFn:    buildLiveHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildExchange(cfg brcfg.ExchangeConfig) market.Exchange {
	ex := binance.New(binance.ConfigFrom(cfg))
	logger.Infof("✓ 交易所客户端: %s (testnet=%v)", cfg.Name, cfg.Testnet)
	return ex
}

func buildReasoner(cfg brcfg.AIConfig) provider.ReasoningService {
	client := provider.NewFromConfig(cfg)
	logger.Infof("✓ 推理服务: %s model=%s", cfg.APIURL, cfg.Model)
	return client
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i].Close()
			}
		}
	}()

	policy, err := scheduler.FromConfig(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	prompts, err := b.promptsFn(cfg.AI.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("加载提示词失败: %w", err)
	}

	auditStore, err := b.auditStoreFn(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	closers = append(closers, auditStore)
	audit := store.NewRecorder(auditStore)

	signals, err := b.signalStoreFn(cfg.Store)
	if err != nil {
		return nil, err
	}
	var sessionSignals agent.SignalStore
	if signals != nil {
		closers = append(closers, signals)
		sessionSignals = signals
	}

	textNotifier, err := b.notifierFn(cfg.Notify)
	if err != nil {
		return nil, err
	}

	exchange := b.exchangeFn(cfg.Exchange)
	engine := decision.NewEngine(decision.Config{
		Symbol:        cfg.Trade.Symbol,
		Timeframe:     cfg.Trade.Timeframe,
		Amount:        cfg.Trade.Amount,
		Leverage:      cfg.Trade.Leverage,
		QuoteCurrency: cfg.Trade.QuoteCurrency,
		Temperature:   cfg.AI.Temperature,
		KlineCount:    cfg.AI.KlineCount,
		MaxRetries:    cfg.AI.MaxRetries,
		RetryPause:    cfg.AI.RetryPause(),
	}, b.reasonerFn(cfg.AI), prompts, decision.NewParser(prompts), decision.NewHistory(cfg.AI.HistorySize), audit)
	exec := executor.New(executor.ConfigFrom(cfg), exchange, audit, textNotifier)

	session := agent.NewSession(agent.SessionParams{
		Config:   cfg,
		Exchange: exchange,
		Engine:   engine,
		Executor: exec,
		Candles:  store.NewCandleCache(cfg.Trade.DataPoints),
		Signals:  sessionSignals,
	})
	service := agent.NewService(session, policy)

	var server *livehttp.Server
	if cfg.HTTP.Enabled {
		server, err = b.liveHTTPFn(*cfg, session, auditStore)
		if err != nil {
			return nil, err
		}
	}

	return &App{
		cfg:      cfg,
		service:  service,
		liveHTTP: server,
		closers:  closers,
		Summary:  newStartupSummary(cfg, policy),
	}, nil
}

func buildNotifier(cfg brcfg.NotifyConfig) (notifier.TextNotifier, error) {
	if !cfg.Telegram.Enabled {
		return notifier.Nop{}, nil
	}
	tg, err := notifier.NewTelegram(strings.TrimSpace(cfg.Telegram.BotToken), cfg.Telegram.ChatID)
	if err != nil {
		return nil, fmt.Errorf("初始化 Telegram 失败: %w", err)
	}
	logger.Infof("✓ Telegram 通知已启用 chat=%d", cfg.Telegram.ChatID)
	return tg, nil
}
