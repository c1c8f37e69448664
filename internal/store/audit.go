// Package store 定义审计日志记录与写入契约，具体存储见子包。
package store

import (
	"context"
	"encoding/json"
	"time"

	"trendpilot/internal/logger"
	"trendpilot/internal/market"
)

// OperationType 描述一条审计记录对应的操作。
type OperationType string

const (
	OpAnalysis  OperationType = "analysis"
	OpOpenLong  OperationType = "open_long"
	OpOpenShort OperationType = "open_short"
	OpFlipLong  OperationType = "close_short_open_long"
	OpFlipShort OperationType = "close_long_open_short"
	OpHold      OperationType = "hold"
	OpNone      OperationType = "none"
)

// OrderStatus 描述审计记录的结果。
type OrderStatus string

const (
	StatusAnalyzed  OrderStatus = "analyzed"
	StatusSkipped   OrderStatus = "skipped"
	StatusSimulated OrderStatus = "simulated"
	StatusHold      OrderStatus = "hold"
	StatusNoop      OrderStatus = "noop"
	StatusPrecheck  OrderStatus = "precheck"
	StatusSuccess   OrderStatus = "success"
	StatusFailed    OrderStatus = "failed"
)

// AuditRecord 是 trade_logs 中的一行，写入后不再修改。
type AuditRecord struct {
	ID              int64            `json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	Symbol          string           `json:"symbol"`
	Timeframe       string           `json:"timeframe"`
	Price           float64          `json:"price"`
	PriceChange     float64          `json:"price_change"`
	RawResponse     string           `json:"raw_response_text"`
	Signal          string           `json:"signal"`
	Reason          string           `json:"reason"`
	StopLoss        float64          `json:"stop_loss"`
	TakeProfit      float64          `json:"take_profit"`
	Confidence      string           `json:"confidence"`
	CurrentPosition *market.Position `json:"current_position"`
	OperationType   OperationType    `json:"operation_type"`
	RequiredMargin  float64          `json:"required_margin"`
	OrderStatus     OrderStatus      `json:"order_status"`
	UpdatedPosition *market.Position `json:"updated_position"`
	Extra           map[string]any   `json:"extra,omitempty"`
}

// AuditSink 追加审计记录。
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// AuditReader 按时间倒序读取最近的审计记录。
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]AuditRecord, error)
}

// AuditStore 同时支持写入与查询。
type AuditStore interface {
	AuditSink
	AuditReader
	Close() error
}

const recordTimeout = 5 * time.Second

// Recorder 包装 AuditSink：写入失败只记日志，不影响交易流程。
type Recorder struct {
	sink AuditSink
	now  func() time.Time
}

func NewRecorder(sink AuditSink) *Recorder {
	return &Recorder{sink: sink, now: time.Now}
}

// Record 写入一条审计记录，未设置 CreatedAt 时补当前时间。
func (r *Recorder) Record(ctx context.Context, rec AuditRecord) {
	if r == nil || r.sink == nil {
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("审计写入 panic op=%s status=%s: %v", rec.OperationType, rec.OrderStatus, p)
		}
	}()
	if err := r.sink.Record(ctx, rec); err != nil {
		logger.Warnf("审计写入失败 op=%s status=%s: %v", rec.OperationType, rec.OrderStatus, err)
	}
}

// EncodePosition 序列化持仓；空仓编码为 JSON null。
func EncodePosition(p *market.Position) ([]byte, error) {
	return json.Marshal(p)
}

// DecodePosition 反序列化持仓；空内容或 null 视为空仓。
func DecodePosition(raw []byte) (*market.Position, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p market.Position
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodeExtra 序列化附加信息；空 map 编码为 "{}"。
func EncodeExtra(extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(extra)
}

func DecodeExtra(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
