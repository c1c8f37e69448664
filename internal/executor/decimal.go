package executor

import (
	"math"

	"github.com/shopspring/decimal"
)

const defaultMarginBuffer = 0.8

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// RequiredMargin = price × amount / leverage；杠杆 <= 0 时按 1 倍计。
func RequiredMargin(price, amount float64, leverage int) float64 {
	if leverage <= 0 {
		leverage = 1
	}
	m := decFromFloat(price).Mul(decFromFloat(amount)).Div(decimal.NewFromInt(int64(leverage)))
	return decToFloat(m.Round(8))
}

// marginAllowed 判断 margin <= buffer × free。
func marginAllowed(margin, free, buffer float64) bool {
	if buffer <= 0 {
		buffer = defaultMarginBuffer
	}
	limit := decFromFloat(free).Mul(decFromFloat(buffer))
	return decFromFloat(margin).Cmp(limit) <= 0
}
