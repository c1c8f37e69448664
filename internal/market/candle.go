package market

// Candle 是单根 OHLCV K 线，时间戳为毫秒。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Bullish 收盘高于开盘。
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// ChangePct 返回该 K 线开→收的涨跌幅（百分比）。
func (c Candle) ChangePct() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open * 100
}
