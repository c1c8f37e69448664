package store

import (
	"fmt"

	"trendpilot/internal/store/model"

	"gorm.io/datatypes"
)

// ToModel 把审计记录转换为表行。
func ToModel(rec AuditRecord) (model.TradeLogModel, error) {
	current, err := EncodePosition(rec.CurrentPosition)
	if err != nil {
		return model.TradeLogModel{}, fmt.Errorf("encode current_position: %w", err)
	}
	updated, err := EncodePosition(rec.UpdatedPosition)
	if err != nil {
		return model.TradeLogModel{}, fmt.Errorf("encode updated_position: %w", err)
	}
	extra, err := EncodeExtra(rec.Extra)
	if err != nil {
		return model.TradeLogModel{}, fmt.Errorf("encode extra: %w", err)
	}
	return model.TradeLogModel{
		ID:              rec.ID,
		CreatedAt:       rec.CreatedAt,
		Symbol:          rec.Symbol,
		Timeframe:       rec.Timeframe,
		Price:           rec.Price,
		PriceChange:     rec.PriceChange,
		RawResponseText: rec.RawResponse,
		Signal:          rec.Signal,
		Reason:          rec.Reason,
		StopLoss:        rec.StopLoss,
		TakeProfit:      rec.TakeProfit,
		Confidence:      rec.Confidence,
		CurrentPosition: datatypes.JSON(current),
		OperationType:   string(rec.OperationType),
		RequiredMargin:  rec.RequiredMargin,
		OrderStatus:     string(rec.OrderStatus),
		UpdatedPosition: datatypes.JSON(updated),
		Extra:           datatypes.JSON(extra),
	}, nil
}

// FromModel 把表行还原为审计记录。
func FromModel(m model.TradeLogModel) (AuditRecord, error) {
	current, err := DecodePosition(m.CurrentPosition)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("decode current_position id=%d: %w", m.ID, err)
	}
	updated, err := DecodePosition(m.UpdatedPosition)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("decode updated_position id=%d: %w", m.ID, err)
	}
	extra, err := DecodeExtra(m.Extra)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("decode extra id=%d: %w", m.ID, err)
	}
	return AuditRecord{
		ID:              m.ID,
		CreatedAt:       m.CreatedAt,
		Symbol:          m.Symbol,
		Timeframe:       m.Timeframe,
		Price:           m.Price,
		PriceChange:     m.PriceChange,
		RawResponse:     m.RawResponseText,
		Signal:          m.Signal,
		Reason:          m.Reason,
		StopLoss:        m.StopLoss,
		TakeProfit:      m.TakeProfit,
		Confidence:      m.Confidence,
		CurrentPosition: current,
		OperationType:   OperationType(m.OperationType),
		RequiredMargin:  m.RequiredMargin,
		OrderStatus:     OrderStatus(m.OrderStatus),
		UpdatedPosition: updated,
		Extra:           extra,
	}, nil
}
