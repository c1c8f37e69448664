// Package symbol 在内部交易对写法（XRP/USDT、XRP/USDT:USDT）与交易所写法之间转换。
package symbol

import (
	"strings"
)

type Symbol struct {
	Base   string
	Quote  string
	Settle string
}

func (s Symbol) Valid() bool {
	return s.Base != "" && s.Quote != ""
}

// Internal 返回 BASE/QUOTE。
func (s Symbol) Internal() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Futures 返回永续合约写法 BASE/QUOTE:SETTLE，未指定结算币时按报价币结算。
func (s Symbol) Futures() string {
	if !s.Valid() {
		return ""
	}
	settle := s.Settle
	if settle == "" {
		settle = s.Quote
	}
	return s.Internal() + ":" + settle
}

func (s Symbol) Binance() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + s.Quote
}

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}

func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}

	var settle string
	if idx := strings.Index(s, ":"); idx >= 0 {
		settle = strings.TrimSpace(s[idx+1:])
		s = s[:idx]
	}

	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:   strings.TrimSpace(parts[0]),
			Quote:  strings.TrimSpace(parts[1]),
			Settle: settle,
		}
	}

	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:   s[:len(s)-len(quote)],
				Quote:  quote,
				Settle: settle,
			}
		}
	}

	return Symbol{}
}

func Normalize(s string) string {
	return Parse(s).Internal()
}

func IsValid(s string) bool {
	return Parse(s).Valid()
}

// Converter 在内部写法与某个交易所的原生写法之间互转。
type Converter interface {
	ToExchange(internal string) string
	FromExchange(raw string) string
}

type binanceFutures struct{}

func (binanceFutures) ToExchange(internal string) string { return Parse(internal).Binance() }

// FromExchange 把 XRPUSDT 还原为 XRP/USDT:USDT。
func (binanceFutures) FromExchange(raw string) string { return Parse(raw).Futures() }

// Binance 处理 U 本位永续合约符号。
var Binance Converter = binanceFutures{}
