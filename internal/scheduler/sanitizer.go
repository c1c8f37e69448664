package scheduler

import (
	"time"

	"trendpilot/internal/market"
)

// DropUnclosed 去掉仍在形成中的最后一根 K 线（收盘 + grace 尚未到达）。
func DropUnclosed(candles []market.Candle, interval time.Duration, now time.Time, grace time.Duration) []market.Candle {
	if len(candles) == 0 || interval <= 0 {
		return candles
	}
	if grace < 0 {
		grace = 0
	}
	last := candles[len(candles)-1]
	if last.OpenTime <= 0 {
		return candles
	}
	cutoffMs := last.OpenTime + interval.Milliseconds() + grace.Milliseconds()
	if now.UnixMilli() < cutoffMs {
		return candles[:len(candles)-1]
	}
	return candles
}
