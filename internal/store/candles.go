package store

import (
	"sync"

	"trendpilot/internal/market"
)

const defaultCandleCap = 500

// CandleCache 在内存中保留最近抓取的 K 线，供图表接口读取。
type CandleCache struct {
	mu      sync.RWMutex
	cap     int
	candles []market.Candle
}

func NewCandleCache(capacity int) *CandleCache {
	if capacity <= 0 {
		capacity = defaultCandleCap
	}
	return &CandleCache{cap: capacity}
}

// Put 按 OpenTime 合并：与末尾同一根时覆盖（未收盘 K 线会变化），更早的忽略。
func (c *CandleCache) Put(ks []market.Candle) {
	if len(ks) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.candles
	for _, candle := range ks {
		n := len(cur)
		switch {
		case n > 0 && cur[n-1].OpenTime == candle.OpenTime:
			cur[n-1] = candle
		case n > 0 && candle.OpenTime < cur[n-1].OpenTime:
			continue
		default:
			cur = append(cur, candle)
		}
	}
	if len(cur) > c.cap {
		cur = append([]market.Candle(nil), cur[len(cur)-c.cap:]...)
	}
	c.candles = cur
}

// Recent 返回最近 limit 根 K 线的副本；limit<=0 返回全部。
func (c *CandleCache) Recent(limit int) []market.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur := c.candles
	if limit > 0 && limit < len(cur) {
		cur = cur[len(cur)-limit:]
	}
	out := make([]market.Candle, len(cur))
	copy(out, cur)
	return out
}
