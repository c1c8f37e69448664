package executor

import (
	"trendpilot/internal/decision"
	"trendpilot/internal/market"
	"trendpilot/internal/store"
)

// Plan 是信号与当前持仓映射出的下单计划。
type Plan struct {
	Op        store.OperationType
	Close     bool
	CloseSide market.OrderSide
	Open      bool
	OpenSide  market.OrderSide
}

// Flip 先平后开。
func (p Plan) Flip() bool { return p.Close && p.Open }

// Opens 表示计划会占用保证金。
func (p Plan) Opens() bool { return p.Open }

// PlanFor 按决策表计算下单计划：
//
//	BUY:  long→hold  short→平空开多  flat→开多
//	SELL: long→平多开空  short→hold  flat→开空
//	HOLD: 一律不动
func PlanFor(action decision.Action, pos *market.Position) Plan {
	switch action {
	case decision.ActionBuy:
		switch {
		case pos.IsLong():
			return Plan{Op: store.OpHold}
		case pos.IsShort():
			return Plan{Op: store.OpFlipLong, Close: true, CloseSide: market.OrderBuy, Open: true, OpenSide: market.OrderBuy}
		default:
			return Plan{Op: store.OpOpenLong, Open: true, OpenSide: market.OrderBuy}
		}
	case decision.ActionSell:
		switch {
		case pos.IsShort():
			return Plan{Op: store.OpHold}
		case pos.IsLong():
			return Plan{Op: store.OpFlipShort, Close: true, CloseSide: market.OrderSell, Open: true, OpenSide: market.OrderSell}
		default:
			return Plan{Op: store.OpOpenShort, Open: true, OpenSide: market.OrderSell}
		}
	default:
		return Plan{Op: store.OpNone}
	}
}
