// Package convert 解析交易所 REST 返回的十进制字符串。
package convert

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Float 解析十进制字符串；空串或非法输入返回 0。
func Float(s string) float64 {
	f, _ := FloatE(s)
	return f
}

// FloatE 同 Float，但保留解析错误。空串视为 0。
func FloatE(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
