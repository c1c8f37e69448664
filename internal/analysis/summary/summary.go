// Package summary 由指标表推导趋势与支撑阻力判断，并渲染供模型阅读的技术面文本。
package summary

import (
	"errors"
	"math"

	"trendpilot/internal/analysis/indicator"
	"trendpilot/internal/logger"
	"trendpilot/internal/market"
)

// DefaultLookback 为关键价位的回看 K 线数量。
const DefaultLookback = 20

// recentWindow 为快照保留的最近 K 线数量。
const recentWindow = 10

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

type MACDBias string

const (
	MACDBullish MACDBias = "bullish"
	MACDBearish MACDBias = "bearish"
)

type OverallTrend string

const (
	OverallStrongUp   OverallTrend = "strong_up"
	OverallStrongDown OverallTrend = "strong_down"
	OverallChoppy     OverallTrend = "choppy"
)

// TrendJudgement 为最新一根 K 线的趋势判断。
type TrendJudgement struct {
	ShortTerm  Direction    `json:"short_term"`
	MediumTerm Direction    `json:"medium_term"`
	MACD       MACDBias     `json:"macd"`
	Overall    OverallTrend `json:"overall"`
	RSI        float64      `json:"rsi_level"`
}

// LevelsJudgement 为静态（区间极值）与动态（布林带）支撑阻力。
type LevelsJudgement struct {
	StaticResistance     float64 `json:"static_resistance"`
	StaticSupport        float64 `json:"static_support"`
	DynamicResistance    float64 `json:"dynamic_resistance"`
	DynamicSupport       float64 `json:"dynamic_support"`
	PriceVsResistancePct float64 `json:"price_vs_resistance"`
	PriceVsSupportPct    float64 `json:"price_vs_support"`
}

// Snapshot 是单个周期的市场快照，构建后只读。
type Snapshot struct {
	Symbol         string          `json:"symbol"`
	Timeframe      string          `json:"timeframe"`
	Price          float64         `json:"price"`
	Timestamp      int64           `json:"timestamp"`
	High           float64         `json:"high"`
	Low            float64         `json:"low"`
	Volume         float64         `json:"volume"`
	PriceChangePct float64         `json:"price_change"`
	Recent         market.Candles  `json:"kline_data"`
	Latest         indicator.Row   `json:"-"`
	Trend          TrendJudgement  `json:"trend_analysis"`
	Levels         LevelsJudgement `json:"levels_analysis"`
	Table          indicator.Table `json:"-"`
	// IndicatorsOK 为 false 时叙述退化为“指标不可用”。
	IndicatorsOK bool `json:"indicators_ok"`
}

// Trend 根据最新收盘价与均线、MACD 关系给出趋势判断。
func Trend(latest indicator.Row) TrendJudgement {
	out := TrendJudgement{
		ShortTerm:  DirectionDown,
		MediumTerm: DirectionDown,
		MACD:       MACDBearish,
		Overall:    OverallChoppy,
		RSI:        latest.RSI,
	}
	if latest.Close > latest.SMA20 {
		out.ShortTerm = DirectionUp
	}
	if latest.Close > latest.SMA50 {
		out.MediumTerm = DirectionUp
	}
	if latest.MACD > latest.MACDSignal {
		out.MACD = MACDBullish
	}
	switch {
	case out.ShortTerm == DirectionUp && out.MediumTerm == DirectionUp:
		out.Overall = OverallStrongUp
	case out.ShortTerm == DirectionDown && out.MediumTerm == DirectionDown:
		out.Overall = OverallStrongDown
	}
	return out
}

// Levels 计算最近 lookback 根 K 线的关键价位；输入为空时返回零值。
func Levels(tbl indicator.Table, lookback int) LevelsJudgement {
	if len(tbl) == 0 {
		return LevelsJudgement{}
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	tail := tbl
	if len(tail) > lookback {
		tail = tail[len(tail)-lookback:]
	}
	high, low := math.Inf(-1), math.Inf(1)
	for _, r := range tail {
		high = math.Max(high, r.High)
		low = math.Min(low, r.Low)
	}
	latest := tbl[len(tbl)-1]
	price := latest.Close
	out := LevelsJudgement{
		StaticResistance:  high,
		StaticSupport:     low,
		DynamicResistance: latest.BBUpper,
		DynamicSupport:    latest.BBLower,
	}
	if price != 0 {
		out.PriceVsResistancePct = (high - price) / price * 100
	}
	if low != 0 {
		out.PriceVsSupportPct = (price - low) / low * 100
	}
	return out
}

// ErrNotEnoughCandles 表示 K 线不足以计算涨跌幅。
var ErrNotEnoughCandles = errors.New("summary: need at least 2 candles")

// Build 从 K 线计算指标并组装快照。指标计算失败只会降级（IndicatorsOK=false），不返回错误。
func Build(symbol, timeframe string, candles []market.Candle, lookback int) (Snapshot, error) {
	if len(candles) < 2 {
		return Snapshot{}, ErrNotEnoughCandles
	}
	tbl, err := indicator.Compute(candles)
	if err != nil {
		logger.Warnf("指标计算失败，使用部分结果: %v", err)
	}
	latest := tbl[len(tbl)-1]
	prev := candles[len(candles)-2]
	snap := Snapshot{
		Symbol:    symbol,
		Timeframe: timeframe,
		Price:     latest.Close,
		Timestamp: latest.OpenTime,
		High:      latest.High,
		Low:       latest.Low,
		Volume:    latest.Volume,
		Recent:    market.Candles(candles).Tail(recentWindow),
		Latest:    latest,
		Table:     tbl,
	}
	if prev.Close != 0 {
		snap.PriceChangePct = (latest.Close - prev.Close) / prev.Close * 100
	}
	snap.IndicatorsOK = err == nil && latest.Defined()
	snap.Trend = Trend(latest)
	snap.Levels = Levels(tbl, lookback)
	return snap, nil
}
