// Package chart 用 go-echarts 渲染 K 线 + 均线 + 成交量的 HTML 页面，供运维面板查看。
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	talib "github.com/markcheno/go-talib"

	"trendpilot/internal/decision"
	"trendpilot/internal/market"
)

var ErrNoCandles = errors.New("no candles to render")

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorSMAFast       = "#3b82f6"
	colorSMASlow       = "#fbbf24"
	colorVolume        = "#a78bfa"

	chartWidthPx   = 1200
	klineHeightPx  = 520
	volumeHeightPx = 180

	smaFast = 5
	smaSlow = 20
)

// Input 是渲染一个交易对所需的数据。
type Input struct {
	Symbol    string
	Timeframe string
	Candles   []market.Candle
	Last      *decision.Signal
}

// Render 返回完整 HTML 页面。
func Render(in Input) ([]byte, error) {
	if len(in.Candles) == 0 {
		return nil, ErrNoCandles
	}
	xAxis := buildXAxis(in.Candles)

	minPrice, maxPrice := priceBounds(in.Candles)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1e-4, math.Abs(maxPrice)*0.01)
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s", strings.ToUpper(in.Symbol), in.Timeframe),
			Subtitle:      subtitle(in),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			Min:       round(minPrice-padding, 5),
			Max:       round(maxPrice+padding, 5),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", buildKlineSeries(in.Candles))

	sma := buildSMALine(in.Candles)
	sma.SetXAxis(xAxis)
	kline.Overlap(sma)

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s %s", strings.ToUpper(in.Symbol), in.Timeframe)
	page.AddCharts(kline, buildVolumeChart(xAxis, in.Candles))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func subtitle(in Input) string {
	last := in.Candles[len(in.Candles)-1]
	s := fmt.Sprintf("收盘 %.5f | %d 根", last.Close, len(in.Candles))
	if in.Last != nil {
		s += " | 最近信号 " + in.Last.Reminder()
	}
	return s
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = time.UnixMilli(c.OpenTime).UTC().Format("01-02 15:04")
	}
	return x
}

func buildKlineSeries(candles []market.Candle) []opts.KlineData {
	data := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	return data
}

func buildSMALine(candles []market.Candle) *charts.Line {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	line := charts.NewLine()
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	line.AddSeries(fmt.Sprintf("SMA%d", smaFast), smaSeries(closes, smaFast), charts.WithLineStyleOpts(opts.LineStyle{Color: colorSMAFast, Width: 2}))
	line.AddSeries(fmt.Sprintf("SMA%d", smaSlow), smaSeries(closes, smaSlow), charts.WithLineStyleOpts(opts.LineStyle{Color: colorSMASlow, Width: 2}))
	return line
}

// smaSeries 预热期输出 "-"，echarts 会跳过该点。
func smaSeries(closes []float64, period int) []opts.LineData {
	out := make([]opts.LineData, len(closes))
	if len(closes) < period {
		for i := range out {
			out[i] = opts.LineData{Value: "-"}
		}
		return out
	}
	vals := talib.Sma(closes, period)
	for i, v := range vals {
		if i < period-1 || math.IsNaN(v) {
			out[i] = opts.LineData{Value: "-"}
			continue
		}
		out[i] = opts.LineData{Value: round(v, 6)}
	}
	return out
}

func buildVolumeChart(xAxis []string, candles []market.Candle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", volumeHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Volume", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	vols := make([]opts.BarData, len(candles))
	for i, c := range candles {
		color := colorBull
		if c.Close < c.Open {
			color = colorBear
		}
		vols[i] = opts.BarData{
			Value: c.Volume,
			ItemStyle: &opts.ItemStyle{
				Color:   color,
				Opacity: opts.Float(0.6),
			},
		}
	}
	bar.SetXAxis(xAxis).AddSeries("Volume", vols, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorVolume}))
	return bar
}

func priceBounds(candles []market.Candle) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
	}
	return lo, hi
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
