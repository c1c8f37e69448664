package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func undefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// masked 把 talib 输出中窗口未满的前导位置标记为 NaN。
func masked(src []float64, period int) []float64 {
	out := make([]float64, len(src))
	copy(out, src)
	for i := 0; i < period-1 && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}

// rollingMean 为完整窗口的简单均值；样本不足一个窗口时全部为 NaN。
func rollingMean(src []float64, period int) []float64 {
	if period <= 0 || len(src) < period {
		return nanSeries(len(src))
	}
	return masked(talib.Sma(src, period), period)
}

// expandingPrefixMean 为 min_periods=1 的均值：窗口未满时取已有样本的均值。
func expandingPrefixMean(src []float64, period int) []float64 {
	out := rollingMean(src, period)
	sum := 0.0
	for i := 0; i < period-1 && i < len(src); i++ {
		sum += src[i]
		out[i] = sum / float64(i+1)
	}
	return out
}

// rollingSampleStd 为样本标准差（ddof=1）。talib 给出总体标准差，这里换算。
func rollingSampleStd(src []float64, period int) []float64 {
	if period <= 1 || len(src) < period {
		return nanSeries(len(src))
	}
	pop := masked(talib.StdDev(src, period, 1), period)
	scale := math.Sqrt(float64(period) / float64(period-1))
	for i, v := range pop {
		if undefined(v) {
			continue
		}
		pop[i] = v * scale
	}
	return pop
}

func rollingMax(src []float64, period int) []float64 {
	if period <= 0 || len(src) < period {
		return nanSeries(len(src))
	}
	return masked(talib.Max(src, period), period)
}

func rollingMin(src []float64, period int) []float64 {
	if period <= 0 || len(src) < period {
		return nanSeries(len(src))
	}
	return masked(talib.Min(src, period), period)
}

// ewmAdjusted 计算 span 形式的调整型指数均值：
// y_t = Σ (1-α)^i·x_{t-i} / Σ (1-α)^i，α = 2/(span+1)，从第一根起即有值。
// talib 的 EMA 以 SMA 作种子且丢弃前导样本，与此加权方式不同。
func ewmAdjusted(src []float64, span int) []float64 {
	out := nanSeries(len(src))
	if span <= 0 {
		return out
	}
	decay := 1 - 2/(float64(span)+1)
	num, den := 0.0, 0.0
	for i, x := range src {
		if undefined(x) {
			if den > 0 {
				out[i] = num / den
			}
			num *= decay
			den *= decay
			continue
		}
		num = x + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}

// fillGaps 先用后一个有效值回填，再用前一个有效值前填。
// 整列都无有效值时保持 NaN。
func fillGaps(src []float64) []float64 {
	out := make([]float64, len(src))
	copy(out, src)
	next := math.NaN()
	for i := len(out) - 1; i >= 0; i-- {
		if undefined(out[i]) {
			out[i] = next
			continue
		}
		next = out[i]
	}
	prev := math.NaN()
	for i := range out {
		if undefined(out[i]) {
			out[i] = prev
			continue
		}
		prev = out[i]
	}
	return out
}
