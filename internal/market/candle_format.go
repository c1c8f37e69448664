package market

import (
	"fmt"
	"strings"
	"time"
)

type Candles []Candle

func (c Candle) TimeString() string {
	ts := c.OpenTime
	if ts <= 0 {
		ts = c.CloseTime
	}
	if ts <= 0 {
		return "-"
	}
	return time.UnixMilli(ts).UTC().Format("01-02 15:04") + "Z"
}

// Tail 返回最后 n 根 K 线（不足 n 根则全部返回）。
func (cs Candles) Tail(n int) Candles {
	if n <= 0 || len(cs) == 0 {
		return nil
	}
	if n >= len(cs) {
		return cs
	}
	return cs[len(cs)-n:]
}

// Describe 渲染逐根 K 线的方向与涨跌幅，供 prompt 使用。
func (cs Candles) Describe() string {
	if len(cs) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, bar := range cs {
		dir := "bearish"
		if bar.Bullish() {
			dir = "bullish"
		}
		sb.WriteString(fmt.Sprintf("K%d %s %s open:%.5f close:%.5f high:%.5f low:%.5f change:%+.2f%% volume:%.2f\n",
			i+1, bar.TimeString(), dir, bar.Open, bar.Close, bar.High, bar.Low, bar.ChangePct(), bar.Volume))
	}
	return sb.String()
}
