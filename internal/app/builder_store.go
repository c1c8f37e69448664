package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"trendpilot/internal/agent"
	brcfg "trendpilot/internal/config"
	"trendpilot/internal/logger"
	"trendpilot/internal/store"
	"trendpilot/internal/store/gormstore"
	"trendpilot/internal/store/history"
	"trendpilot/internal/store/pgaudit"
)

type signalStore interface {
	agent.SignalStore
	io.Closer
}

// buildAuditStore 按 store.driver 选择 PostgreSQL 或 SQLite 审计存储。
func buildAuditStore(ctx context.Context, cfg brcfg.StoreConfig) (store.AuditStore, error) {
	if cfg.UsePostgres() {
		st, err := pgaudit.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("初始化 PostgreSQL 审计存储失败: %w", err)
		}
		logger.Infof("✓ 审计日志写入 PostgreSQL")
		return st, nil
	}
	st, err := gormstore.NewGormStore(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("初始化 SQLite 审计存储失败: %w", err)
	}
	logger.Infof("✓ 审计日志写入 %s", absPath(cfg.SQLitePath))
	return st, nil
}

// buildSignalStore 打开信号历史库；未配置路径时返回 nil，历史仅保存在内存。
func buildSignalStore(cfg brcfg.StoreConfig) (signalStore, error) {
	path := strings.TrimSpace(cfg.HistoryPath)
	if path == "" {
		logger.Warnf("未配置 store.history_path，信号历史不会持久化")
		return nil, nil
	}
	st, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("初始化信号历史存储失败: %w", err)
	}
	logger.Infof("✓ 信号历史写入 %s", absPath(path))
	return st, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
