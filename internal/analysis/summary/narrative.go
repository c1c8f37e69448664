package summary

import (
	"fmt"
	"math"
	"strings"
)

// IndicatorsUnavailable 是指标缺失时的替代文本。
const IndicatorsUnavailable = "Technical indicators unavailable."

const (
	rsiOverbought = 70
	rsiOversold   = 30
	bbUpperZone   = 0.7
	bbLowerZone   = 0.3
)

// Narrative 渲染多段技术面文本：均线、趋势、动量、布林带位置、关键价位。
func Narrative(s Snapshot) string {
	if !s.IndicatorsOK {
		return IndicatorsUnavailable
	}
	r := s.Latest
	price := s.Price
	var sb strings.Builder

	sb.WriteString("## Technical indicators\n")
	sb.WriteString("Moving averages:\n")
	for _, ma := range []struct {
		label string
		value float64
	}{{"SMA5", r.SMA5}, {"SMA20", r.SMA20}, {"SMA50", r.SMA50}} {
		v := finite(ma.value)
		sb.WriteString(fmt.Sprintf("- %s: %.5f | price vs MA: %+.5f%%\n", ma.label, v, offsetPct(price, v)))
	}

	sb.WriteString("\nTrend:\n")
	sb.WriteString(fmt.Sprintf("- short term: %s\n", s.Trend.ShortTerm))
	sb.WriteString(fmt.Sprintf("- medium term: %s\n", s.Trend.MediumTerm))
	sb.WriteString(fmt.Sprintf("- overall: %s\n", s.Trend.Overall))
	sb.WriteString(fmt.Sprintf("- MACD direction: %s\n", s.Trend.MACD))

	rsi := finite(r.RSI)
	sb.WriteString("\nMomentum:\n")
	sb.WriteString(fmt.Sprintf("- RSI: %.5f (%s)\n", rsi, RSIBand(rsi)))
	sb.WriteString(fmt.Sprintf("- MACD: %.5f\n", finite(r.MACD)))
	sb.WriteString(fmt.Sprintf("- signal line: %.5f\n", finite(r.MACDSignal)))
	sb.WriteString(fmt.Sprintf("- histogram: %.5f\n", finite(r.MACDHistogram)))
	sb.WriteString(fmt.Sprintf("- volume ratio: %.2f\n", finite(r.VolumeRatio)))

	pos := finite(r.BBPosition)
	sb.WriteString(fmt.Sprintf("\nBollinger position: %.2f%% (%s)\n", pos*100, BollingerBand(pos)))

	lv := s.Levels
	sb.WriteString("\nKey levels:\n")
	sb.WriteString(fmt.Sprintf("- static resistance: %.5f (%+.2f%% from price)\n", lv.StaticResistance, lv.PriceVsResistancePct))
	sb.WriteString(fmt.Sprintf("- static support: %.5f (%+.2f%% from price)\n", lv.StaticSupport, lv.PriceVsSupportPct))
	sb.WriteString(fmt.Sprintf("- dynamic resistance (BB upper): %.5f (%+.2f%% from price)\n",
		finite(lv.DynamicResistance), distancePct(finite(lv.DynamicResistance), price)))
	sb.WriteString(fmt.Sprintf("- dynamic support (BB lower): %.5f (%+.2f%% from price)\n",
		finite(lv.DynamicSupport), distancePct(price, finite(lv.DynamicSupport))))
	return sb.String()
}

// RSIBand: >70 overbought, <30 oversold, 其余 neutral。
func RSIBand(rsi float64) string {
	switch {
	case rsi > rsiOverbought:
		return "overbought"
	case rsi < rsiOversold:
		return "oversold"
	default:
		return "neutral"
	}
}

// BollingerBand: >0.7 upper, <0.3 lower, 其余 middle。
func BollingerBand(pos float64) string {
	switch {
	case pos > bbUpperZone:
		return "upper"
	case pos < bbLowerZone:
		return "lower"
	default:
		return "middle"
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func offsetPct(price, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (price - ref) / ref * 100
}

// distancePct 返回 (hi - lo) / lo 的百分比，与静态价位的口径一致。
func distancePct(hi, lo float64) float64 {
	if lo == 0 {
		return 0
	}
	return (hi - lo) / lo * 100
}
