package summary

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpilot/internal/analysis/indicator"
	"trendpilot/internal/market"
)

func rising(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := 100 + float64(i) + math.Sin(float64(i))
		out[i] = market.Candle{
			OpenTime: int64(i+1) * 900_000,
			Open:     c - 0.5,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			Volume:   1000,
		}
	}
	return out
}

func TestTrend(t *testing.T) {
	up := Trend(indicator.Row{Candle: market.Candle{Close: 10}, SMA20: 9, SMA50: 8, MACD: 1, MACDSignal: 0.5, RSI: 60})
	assert.Equal(t, DirectionUp, up.ShortTerm)
	assert.Equal(t, DirectionUp, up.MediumTerm)
	assert.Equal(t, MACDBullish, up.MACD)
	assert.Equal(t, OverallStrongUp, up.Overall)
	assert.Equal(t, 60.0, up.RSI)

	down := Trend(indicator.Row{Candle: market.Candle{Close: 7}, SMA20: 9, SMA50: 8, MACD: 0, MACDSignal: 0.5})
	assert.Equal(t, OverallStrongDown, down.Overall)
	assert.Equal(t, MACDBearish, down.MACD)

	mixed := Trend(indicator.Row{Candle: market.Candle{Close: 8.5}, SMA20: 9, SMA50: 8})
	assert.Equal(t, DirectionDown, mixed.ShortTerm)
	assert.Equal(t, DirectionUp, mixed.MediumTerm)
	assert.Equal(t, OverallChoppy, mixed.Overall)
}

func TestLevels(t *testing.T) {
	tbl := indicator.Table{
		{Candle: market.Candle{High: 200, Low: 1, Close: 50}},
		{Candle: market.Candle{High: 12, Low: 8, Close: 10}},
		{Candle: market.Candle{High: 11, Low: 9, Close: 10}, BBUpper: 10.5, BBLower: 9.5},
	}
	lv := Levels(tbl, 2)
	assert.Equal(t, 12.0, lv.StaticResistance)
	assert.Equal(t, 8.0, lv.StaticSupport)
	assert.Equal(t, 10.5, lv.DynamicResistance)
	assert.Equal(t, 9.5, lv.DynamicSupport)
	assert.InDelta(t, 20.0, lv.PriceVsResistancePct, 1e-9)
	assert.InDelta(t, 25.0, lv.PriceVsSupportPct, 1e-9)

	assert.Equal(t, LevelsJudgement{}, Levels(nil, 20))
}

func TestBuild(t *testing.T) {
	candles := rising(96)
	snap, err := Build("XRPUSDT", "15m", candles, DefaultLookback)
	require.NoError(t, err)

	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]
	assert.Equal(t, last.Close, snap.Price)
	assert.Equal(t, last.OpenTime, snap.Timestamp)
	assert.Len(t, snap.Recent, 10)
	assert.Len(t, snap.Table, 96)
	assert.InDelta(t, (last.Close-prev.Close)/prev.Close*100, snap.PriceChangePct, 1e-9)
	assert.True(t, snap.IndicatorsOK)
	assert.Equal(t, OverallStrongUp, snap.Trend.Overall)

	_, err = Build("XRPUSDT", "15m", candles[:1], DefaultLookback)
	assert.ErrorIs(t, err, ErrNotEnoughCandles)
}

func TestNarrative(t *testing.T) {
	snap, err := Build("XRPUSDT", "15m", rising(96), DefaultLookback)
	require.NoError(t, err)

	text := Narrative(snap)
	for _, want := range []string{"SMA5", "SMA20", "SMA50", "RSI", "MACD", "Bollinger position", "static resistance", "dynamic support", "strong_up"} {
		assert.Contains(t, text, want)
	}

	snap.IndicatorsOK = false
	assert.Equal(t, IndicatorsUnavailable, Narrative(snap))
}

func TestNarrative_ShortSeriesDegrades(t *testing.T) {
	snap, err := Build("XRPUSDT", "15m", rising(5), DefaultLookback)
	require.NoError(t, err)
	assert.False(t, snap.IndicatorsOK)
	assert.Equal(t, IndicatorsUnavailable, Narrative(snap))
}

func TestBands(t *testing.T) {
	assert.Equal(t, "overbought", RSIBand(70.1))
	assert.Equal(t, "neutral", RSIBand(70))
	assert.Equal(t, "oversold", RSIBand(29.9))
	assert.Equal(t, "upper", BollingerBand(0.71))
	assert.Equal(t, "middle", BollingerBand(0.3))
	assert.Equal(t, "lower", BollingerBand(-0.1))
}
