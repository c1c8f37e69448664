package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"trendpilot/internal/agent"
	brcfg "trendpilot/internal/config"
	"trendpilot/internal/logger"
	livehttp "trendpilot/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动交易循环与 HTTP 面板。
type App struct {
	cfg      *brcfg.Config
	service  *agent.Service
	liveHTTP *livehttp.Server
	closers  []io.Closer
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动交易循环与 HTTP 服务，任一方返回错误时整体退出。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.service == nil {
		return fmt.Errorf("trading service not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.service.Run(ctx)
	})
	return group.Wait()
}

// Service 暴露交易服务，供测试使用。
func (a *App) Service() *agent.Service {
	if a == nil {
		return nil
	}
	return a.service
}

// Close 依次关闭存储，返回合并后的错误。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
