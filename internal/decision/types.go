package decision

import (
	"fmt"
	"strings"
)

// Action 是模型给出的交易方向。
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Confidence 是模型给出的信心等级。
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// FallbackReason 是兜底信号的理由文本。
const FallbackReason = "technical analysis unavailable, conservative stance"

const (
	fallbackStopLossRatio   = 0.98
	fallbackTakeProfitRatio = 1.02
)

// Signal 是一次经过校验的交易信号。
type Signal struct {
	Action     Action     `json:"signal"`
	Reason     string     `json:"reason"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	Confidence Confidence `json:"confidence"`
	Timestamp  int64      `json:"timestamp"`
	IsFallback bool       `json:"is_fallback"`
}

// Fallback 返回保守的兜底信号：HOLD，止损/止盈为价格 ±2%。
func Fallback(price float64, ts int64) Signal {
	return Signal{
		Action:     ActionHold,
		Reason:     FallbackReason,
		StopLoss:   price * fallbackStopLossRatio,
		TakeProfit: price * fallbackTakeProfitRatio,
		Confidence: ConfidenceLow,
		Timestamp:  ts,
		IsFallback: true,
	}
}

// Reminder 渲染一行“上次信号”提示。
func (s Signal) Reminder() string {
	return fmt.Sprintf("%s (confidence %s): %s", s.Action, s.Confidence, strings.TrimSpace(s.Reason))
}

func validAction(a Action) bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return true
	}
	return false
}

func validConfidence(c Confidence) bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}
