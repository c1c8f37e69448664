package market

// OrderSide 是下单方向。
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// OrderRequest 描述一笔市价单。
type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Size       float64   `json:"size"`
	ReduceOnly bool      `json:"reduce_only,omitempty"`
	// TakeProfit/StopLoss > 0 时由交易所挂原生触发单。
	TakeProfit float64 `json:"take_profit,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	Tag        string  `json:"tag,omitempty"`
}

// OrderResult 是交易所对下单的回执。
type OrderResult struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Filled  float64 `json:"filled,omitempty"`
}
