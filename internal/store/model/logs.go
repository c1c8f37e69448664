package model

import (
	"time"

	"gorm.io/datatypes"
)

// TradeLogModel maps to 'trade_logs' table.
type TradeLogModel struct {
	ID              int64          `gorm:"column:id;primaryKey;autoIncrement" db:"id"`
	CreatedAt       time.Time      `gorm:"column:created_at;index" db:"created_at"`
	Symbol          string         `gorm:"column:symbol" db:"symbol"`
	Timeframe       string         `gorm:"column:timeframe" db:"timeframe"`
	Price           float64        `gorm:"column:price" db:"price"`
	PriceChange     float64        `gorm:"column:price_change" db:"price_change"`
	RawResponseText string         `gorm:"column:raw_response_text" db:"raw_response_text"`
	Signal          string         `gorm:"column:signal" db:"signal"`
	Reason          string         `gorm:"column:reason" db:"reason"`
	StopLoss        float64        `gorm:"column:stop_loss" db:"stop_loss"`
	TakeProfit      float64        `gorm:"column:take_profit" db:"take_profit"`
	Confidence      string         `gorm:"column:confidence" db:"confidence"`
	CurrentPosition datatypes.JSON `gorm:"column:current_position" db:"current_position"`
	OperationType   string         `gorm:"column:operation_type" db:"operation_type"`
	RequiredMargin  float64        `gorm:"column:required_margin" db:"required_margin"`
	OrderStatus     string         `gorm:"column:order_status" db:"order_status"`
	UpdatedPosition datatypes.JSON `gorm:"column:updated_position" db:"updated_position"`
	Extra           datatypes.JSON `gorm:"column:extra" db:"extra"`
}

func (TradeLogModel) TableName() string { return "trade_logs" }
