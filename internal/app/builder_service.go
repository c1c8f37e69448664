package app

import (
	"fmt"
	"strings"

	brcfg "trendpilot/internal/config"
	"trendpilot/internal/logger"
	"trendpilot/internal/store"
	livehttp "trendpilot/internal/transport/http/live"
)

func buildLiveHTTPServer(cfg brcfg.Config, src livehttp.Source, logs store.AuditReader) (*livehttp.Server, error) {
	logPaths := map[string]string{}
	if path := strings.TrimSpace(cfg.App.LogPath); path != "" {
		logPaths["app"] = path
	}
	if path := strings.TrimSpace(cfg.App.LLMLog); path != "" {
		logPaths["llm"] = path
	}
	server, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr:     cfg.HTTP.Addr,
		Source:   src,
		Logs:     logs,
		LogPaths: logPaths,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 live HTTP 失败: %w", err)
	}
	logger.Infof("✓ Live HTTP 接口监听 %s", server.Addr())
	return server, nil
}
