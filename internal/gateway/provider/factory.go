package provider

import (
	"time"

	"trendpilot/internal/config"
	"trendpilot/internal/pkg/circuit"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 5 * time.Minute
)

// NewFromConfig 按 ai 配置构建推理服务客户端。
// 传输层重试固定为 2 次，决策层的重试由 ai.max_retries 控制。
func NewFromConfig(cfg config.AIConfig) *OpenAIChatClient {
	return &OpenAIChatClient{
		BaseURL:      cfg.APIURL,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		Timeout:      cfg.Timeout(),
		ExtraHeaders: cfg.Headers,
		MaxRetries:   2,
		Breaker:      circuit.NewCircuitBreaker("reasoning", breakerThreshold, breakerCooldown),
	}
}
