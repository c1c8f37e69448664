package market

import "context"

// Exchange 是核心流程依赖的交易所能力。传输错误以 error 返回，由调用方降级处理。
type Exchange interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	// FetchPosition 返回 nil 表示空仓。
	FetchPosition(ctx context.Context, symbol string) (*Position, error)
	// FetchBalance 返回 币种 -> 可用余额。
	FetchBalance(ctx context.Context) (map[string]float64, error)
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	SetLeverage(ctx context.Context, symbol string, leverage int, marginMode string) error
}
