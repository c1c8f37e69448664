package provider

import "context"

// ReasoningService 是同步的文本补全能力；原始输出可能不是合法 JSON。
type ReasoningService interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}
