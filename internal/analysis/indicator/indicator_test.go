package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpilot/internal/market"
)

func candlesFromCloses(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime: int64(i) * 900_000,
			Open:     c,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			Volume:   100 + float64(i),
		}
	}
	return out
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestComputeRaw_LeadingWindowsUndefined(t *testing.T) {
	cols := ComputeRaw(candlesFromCloses(linear(60, 100, 1)))

	for i := 0; i < 19; i++ {
		assert.True(t, math.IsNaN(cols[ColSMA20][i]), "sma_20[%d]", i)
		assert.True(t, math.IsNaN(cols[ColBBUpper][i]), "bb_upper[%d]", i)
		assert.True(t, math.IsNaN(cols[ColResistance][i]), "resistance[%d]", i)
	}
	for i := 0; i < 49; i++ {
		assert.True(t, math.IsNaN(cols[ColSMA50][i]), "sma_50[%d]", i)
	}
	for i := 0; i < 13; i++ {
		assert.True(t, math.IsNaN(cols[ColRSI][i]), "rsi[%d]", i)
	}
	assert.False(t, math.IsNaN(cols[ColSMA20][19]))
	assert.False(t, math.IsNaN(cols[ColSMA50][49]))
	assert.False(t, math.IsNaN(cols[ColRSI][13]))
}

func TestCompute_BackfillMatchesFirstValid(t *testing.T) {
	candles := candlesFromCloses(linear(60, 100, 1))
	raw := ComputeRaw(candles)
	tbl, err := Compute(candles)
	require.NoError(t, err)
	require.Len(t, tbl, 60)

	for i := 0; i < 19; i++ {
		assert.Equal(t, raw[ColSMA20][19], tbl[i].SMA20)
		assert.Equal(t, raw[ColSupport][19], tbl[i].Support)
	}
	for i := 0; i < 49; i++ {
		assert.Equal(t, raw[ColSMA50][49], tbl[i].SMA50)
	}
	for _, row := range tbl {
		assert.True(t, row.Defined())
	}
}

func TestCompute_SMAValues(t *testing.T) {
	tbl, err := Compute(candlesFromCloses(linear(25, 1, 1)))
	require.NoError(t, err)

	// min_periods=1 for the 5-period average
	assert.InDelta(t, 1.0, tbl[0].SMA5, 1e-12)
	assert.InDelta(t, 1.5, tbl[1].SMA5, 1e-12)
	assert.InDelta(t, 3.0, tbl[4].SMA5, 1e-12)
	assert.InDelta(t, 23.0, tbl[24].SMA5, 1e-9)
	// mean(1..20) = 10.5, mean(6..25) = 15.5
	assert.InDelta(t, 10.5, tbl[19].SMA20, 1e-9)
	assert.InDelta(t, 15.5, tbl[24].SMA20, 1e-9)
	assert.InDelta(t, 26.0, tbl[24].Resistance, 1e-9)
	assert.InDelta(t, 5.0, tbl[24].Support, 1e-9)
}

func TestCompute_AdjustedEMA(t *testing.T) {
	tbl, err := Compute(candlesFromCloses([]float64{1, 2, 3}))
	require.NoError(t, err)

	alpha := 2.0 / 13.0
	w := 1 - alpha
	assert.InDelta(t, 1.0, tbl[0].EMA12, 1e-12)
	assert.InDelta(t, (2+w*1)/(1+w), tbl[1].EMA12, 1e-12)
	assert.InDelta(t, (3+w*2+w*w*1)/(1+w+w*w), tbl[2].EMA12, 1e-12)
	assert.InDelta(t, tbl[2].MACD-tbl[2].MACDSignal, tbl[2].MACDHistogram, 1e-12)
}

func TestCompute_ConstantSeries(t *testing.T) {
	tbl, err := Compute(candlesFromCloses(linear(30, 5, 0)))
	require.NoError(t, err)

	last, ok := tbl.Latest()
	require.True(t, ok)
	assert.InDelta(t, 0, last.MACD, 1e-12)
	// 零带宽与零涨跌无法定义位置和 RSI，整列保持 NaN。
	assert.True(t, math.IsNaN(last.BBPosition))
	assert.True(t, math.IsNaN(last.RSI))
	assert.False(t, last.Defined())
}

func TestRSI_SaturatesWhenNoLosses(t *testing.T) {
	tbl, err := Compute(candlesFromCloses(linear(30, 10, 0.5)))
	require.NoError(t, err)
	for _, row := range tbl {
		assert.Equal(t, 100.0, row.RSI)
	}
}

func TestRSI_SimpleRollingMean(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10
		if i%2 == 1 {
			closes[i] = 11
		}
	}
	cols := ComputeRaw(candlesFromCloses(closes))
	// window at index 13 sees 7 gains and 6 losses of size 1
	assert.InDelta(t, 100-100/(1+7.0/6.0), cols[ColRSI][13], 1e-9)
	for _, v := range cols[ColRSI][13:] {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestRSI_BoundedAfterStraightDecline(t *testing.T) {
	closes := []float64{2.31, 2.35, 2.29, 2.41, 2.38, 2.44, 2.40, 2.47, 2.45, 2.52, 2.49, 2.55, 2.51, 2.58, 2.53, 2.60, 2.57}
	last := closes[len(closes)-1]
	for i := 0; i < 14; i++ {
		last -= 0.07
		closes = append(closes, last)
	}
	out := rsi(closes, 14)
	for _, v := range out[13:] {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	assert.Equal(t, 0.0, out[len(out)-1])
}

func TestClampZero(t *testing.T) {
	assert.Equal(t, 0.0, clampZero(-1.586e-17))
	assert.Equal(t, 0.0, clampZero(3e-15))
	assert.Equal(t, 0.25, clampZero(0.25))
}

func TestCompute_BollingerAndVolume(t *testing.T) {
	closes := linear(40, 100, 0)
	for i := range closes {
		closes[i] += math.Sin(float64(i))
	}
	candles := candlesFromCloses(closes)
	tbl, err := Compute(candles)
	require.NoError(t, err)

	last := tbl[len(tbl)-1]
	window := closes[len(closes)-20:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= 20
	ss := 0.0
	for _, v := range window {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / 19)
	assert.InDelta(t, mean, last.BBMiddle, 1e-6)
	assert.InDelta(t, mean+2*std, last.BBUpper, 1e-6)
	assert.InDelta(t, mean-2*std, last.BBLower, 1e-6)
	assert.InDelta(t, (last.Close-last.BBLower)/(last.BBUpper-last.BBLower), last.BBPosition, 1e-6)

	volSum := 0.0
	for _, c := range candles[len(candles)-20:] {
		volSum += c.Volume
	}
	assert.InDelta(t, last.Volume/(volSum/20), last.VolumeRatio, 1e-9)
}

func TestCompute_ShortInput(t *testing.T) {
	tbl, err := Compute(candlesFromCloses([]float64{1}))
	assert.Error(t, err)
	assert.Len(t, tbl, 1)

	tbl, err = Compute(candlesFromCloses([]float64{1, 2}))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, tbl[1].SMA5, 1e-12)
	assert.True(t, math.IsNaN(tbl[1].SMA20))
}

func TestFillGaps(t *testing.T) {
	nan := math.NaN()
	got := fillGaps([]float64{nan, nan, 3, nan, 5, nan})
	assert.Equal(t, []float64{3, 3, 3, 5, 5, 5}, got)

	all := fillGaps([]float64{nan, nan})
	assert.True(t, math.IsNaN(all[0]))
	assert.True(t, math.IsNaN(all[1]))
}
