package indicator

import (
	"fmt"
	"math"

	"trendpilot/internal/market"
)

// 固定的指标参数，改动会破坏与历史审计数据的可比性。
const (
	smaFastPeriod   = 5
	smaMidPeriod    = 20
	smaSlowPeriod   = 50
	emaFastSpan     = 12
	emaSlowSpan     = 26
	macdSignalSpan  = 9
	rsiPeriod       = 14
	bollingerPeriod = 20
	bollingerWidth  = 2
	volumePeriod    = 20
	levelPeriod     = 20
)

// 列名，与审计/接口输出保持一致。
const (
	ColSMA5          = "sma_5"
	ColSMA20         = "sma_20"
	ColSMA50         = "sma_50"
	ColEMA12         = "ema_12"
	ColEMA26         = "ema_26"
	ColMACD          = "macd"
	ColMACDSignal    = "macd_signal"
	ColMACDHistogram = "macd_histogram"
	ColRSI           = "rsi"
	ColBBMiddle      = "bb_middle"
	ColBBUpper       = "bb_upper"
	ColBBLower       = "bb_lower"
	ColBBPosition    = "bb_position"
	ColVolumeMA      = "volume_ma"
	ColVolumeRatio   = "volume_ratio"
	ColResistance    = "resistance"
	ColSupport       = "support"
)

// Columns 按列保存指标序列，长度与输入 K 线一致；未定义值为 NaN。
type Columns map[string][]float64

// Row 是单根 K 线及其指标值。
type Row struct {
	market.Candle
	SMA5          float64 `json:"sma_5"`
	SMA20         float64 `json:"sma_20"`
	SMA50         float64 `json:"sma_50"`
	EMA12         float64 `json:"ema_12"`
	EMA26         float64 `json:"ema_26"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	RSI           float64 `json:"rsi"`
	BBMiddle      float64 `json:"bb_middle"`
	BBUpper       float64 `json:"bb_upper"`
	BBLower       float64 `json:"bb_lower"`
	BBPosition    float64 `json:"bb_position"`
	VolumeMA      float64 `json:"volume_ma"`
	VolumeRatio   float64 `json:"volume_ratio"`
	Resistance    float64 `json:"resistance"`
	Support       float64 `json:"support"`
}

// Table 是按时间升序的指标表。
type Table []Row

// Latest 返回最后一行。
func (t Table) Latest() (Row, bool) {
	if len(t) == 0 {
		return Row{}, false
	}
	return t[len(t)-1], true
}

// Candles 还原原始 K 线序列。
func (t Table) Candles() market.Candles {
	out := make(market.Candles, len(t))
	for i, r := range t {
		out[i] = r.Candle
	}
	return out
}

// Defined 报告该行关键指标是否可用（整列无有效值时仍为 NaN）。
func (r Row) Defined() bool {
	for _, v := range []float64{r.SMA5, r.SMA20, r.SMA50, r.RSI, r.MACD, r.MACDSignal, r.BBPosition} {
		if undefined(v) {
			return false
		}
	}
	return true
}

// ComputeRaw 计算全部指标列，不做填充。
func ComputeRaw(candles []market.Candle) Columns {
	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	cols := make(Columns, 17)
	cols[ColSMA5] = expandingPrefixMean(closes, smaFastPeriod)
	cols[ColSMA20] = rollingMean(closes, smaMidPeriod)
	cols[ColSMA50] = rollingMean(closes, smaSlowPeriod)

	ema12 := ewmAdjusted(closes, emaFastSpan)
	ema26 := ewmAdjusted(closes, emaSlowSpan)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := ewmAdjusted(macd, macdSignalSpan)
	hist := make([]float64, n)
	for i := range hist {
		hist[i] = macd[i] - signal[i]
	}
	cols[ColEMA12] = ema12
	cols[ColEMA26] = ema26
	cols[ColMACD] = macd
	cols[ColMACDSignal] = signal
	cols[ColMACDHistogram] = hist

	cols[ColRSI] = rsi(closes, rsiPeriod)

	middle := rollingMean(closes, bollingerPeriod)
	std := rollingSampleStd(closes, bollingerPeriod)
	upper := nanSeries(n)
	lower := nanSeries(n)
	position := nanSeries(n)
	for i := 0; i < n; i++ {
		if undefined(middle[i]) || undefined(std[i]) {
			continue
		}
		upper[i] = middle[i] + bollingerWidth*std[i]
		lower[i] = middle[i] - bollingerWidth*std[i]
		if width := upper[i] - lower[i]; width != 0 {
			position[i] = (closes[i] - lower[i]) / width
		}
	}
	cols[ColBBMiddle] = middle
	cols[ColBBUpper] = upper
	cols[ColBBLower] = lower
	cols[ColBBPosition] = position

	volMA := rollingMean(volumes, volumePeriod)
	ratio := nanSeries(n)
	for i := range ratio {
		if undefined(volMA[i]) || volMA[i] == 0 {
			continue
		}
		ratio[i] = volumes[i] / volMA[i]
	}
	cols[ColVolumeMA] = volMA
	cols[ColVolumeRatio] = ratio

	cols[ColResistance] = rollingMax(highs, levelPeriod)
	cols[ColSupport] = rollingMin(lows, levelPeriod)
	return cols
}

// rsi 使用简单滚动均值（非 Wilder 平滑）。首个差分按 0 计入。
// 平均跌幅为 0 时：平均涨幅 > 0 视为饱和 100；二者皆 0 为未定义，交由填充处理。
func rsi(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else if delta < 0 {
			losses[i] = -delta
		}
	}
	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)
	out := nanSeries(n)
	for i := 0; i < n; i++ {
		g, l := avgGain[i], avgLoss[i]
		if undefined(g) || undefined(l) {
			continue
		}
		g, l = clampZero(g), clampZero(l)
		switch {
		case l > 0:
			out[i] = 100 - 100/(1+g/l)
		case g > 0:
			out[i] = 100
		}
	}
	return out
}

// zeroEpsilon 吸收 talib 滚动累加产生的浮点残差。
const zeroEpsilon = 1e-12

// clampZero 把 <= 0 或接近 0 的均值视为精确的 0；涨跌幅均值不可能为负。
func clampZero(v float64) float64 {
	if v <= zeroEpsilon {
		return 0
	}
	return v
}

// Fill 对每一列先回填后前填，返回新的列集合。
func (c Columns) Fill() Columns {
	out := make(Columns, len(c))
	for name, series := range c {
		out[name] = fillGaps(series)
	}
	return out
}

// Compute 计算指标并填充缺口，返回与 K 线一一对应的指标表。
// 计算中出现异常时返回尽力而为的部分结果与错误，调用方降级继续。
func Compute(candles []market.Candle) (tbl Table, err error) {
	tbl = make(Table, len(candles))
	for i, c := range candles {
		tbl[i] = blankRow(c)
	}
	if len(candles) < 2 {
		return tbl, fmt.Errorf("indicator: need at least 2 candles, got %d", len(candles))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("indicator: compute panic: %v", r)
		}
	}()
	cols := ComputeRaw(candles).Fill()
	for i := range tbl {
		tbl[i] = rowAt(candles[i], cols, i)
	}
	return tbl, nil
}

// fields 把列名映射到行内字段，供装配与置空共用。
func (r *Row) fields() map[string]*float64 {
	return map[string]*float64{
		ColSMA5:          &r.SMA5,
		ColSMA20:         &r.SMA20,
		ColSMA50:         &r.SMA50,
		ColEMA12:         &r.EMA12,
		ColEMA26:         &r.EMA26,
		ColMACD:          &r.MACD,
		ColMACDSignal:    &r.MACDSignal,
		ColMACDHistogram: &r.MACDHistogram,
		ColRSI:           &r.RSI,
		ColBBMiddle:      &r.BBMiddle,
		ColBBUpper:       &r.BBUpper,
		ColBBLower:       &r.BBLower,
		ColBBPosition:    &r.BBPosition,
		ColVolumeMA:      &r.VolumeMA,
		ColVolumeRatio:   &r.VolumeRatio,
		ColResistance:    &r.Resistance,
		ColSupport:       &r.Support,
	}
}

func blankRow(c market.Candle) Row {
	r := Row{Candle: c}
	for _, f := range r.fields() {
		*f = math.NaN()
	}
	return r
}

func rowAt(c market.Candle, cols Columns, i int) Row {
	r := blankRow(c)
	for name, f := range r.fields() {
		if series := cols[name]; i < len(series) {
			*f = series[i]
		}
	}
	return r
}

// Value 按列名读取指标值，未知列返回 NaN。
func (r Row) Value(name string) float64 {
	if f, ok := r.fields()[name]; ok {
		return *f
	}
	return math.NaN()
}
