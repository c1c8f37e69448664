package market

import (
	"fmt"
	"strings"
)

// Side 是持仓方向。
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position 是交易所持仓的单次快照；nil 表示空仓。
type Position struct {
	Side          Side    `json:"side"`
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Leverage      float64 `json:"leverage"`
	Symbol        string  `json:"symbol"`
}

// IsLong/IsShort 对 nil 安全。
func (p *Position) IsLong() bool  { return p != nil && p.Side == SideLong && p.Size > 0 }
func (p *Position) IsShort() bool { return p != nil && p.Side == SideShort && p.Size > 0 }

// Describe 渲染持仓描述文字；quote 为盈亏的计价币，为空时不带单位。
func (p *Position) Describe(quote string) string {
	if p == nil || p.Size <= 0 {
		return "no position"
	}
	pnl := fmt.Sprintf("%.4f", p.UnrealizedPnL)
	if quote = strings.TrimSpace(quote); quote != "" {
		pnl += " " + quote
	}
	return fmt.Sprintf("%s %.4f @ %.5f, unrealized PnL %s, leverage %.0fx",
		strings.ToUpper(string(p.Side)), p.Size, p.EntryPrice, pnl, p.Leverage)
}
