package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	s := Parse(" xrp/usdt:usdt ")
	assert.Equal(t, Symbol{Base: "XRP", Quote: "USDT", Settle: "USDT"}, s)
	assert.Equal(t, "XRP/USDT", s.Internal())
	assert.Equal(t, "XRPUSDT", s.Binance())
	assert.Equal(t, "XRP/USDT:USDT", s.Futures())

	assert.Equal(t, "ETH/USDT:USDT", Parse("ETHUSDT").Futures())
	assert.False(t, Parse("").Valid())
	assert.False(t, IsValid("USDT"))
}

func TestBinanceConverter(t *testing.T) {
	assert.Equal(t, "XRPUSDT", Binance.ToExchange("XRP/USDT:USDT"))
	assert.Equal(t, "BTC/USDT:USDT", Binance.FromExchange("BTCUSDT"))
	assert.Equal(t, "", Binance.ToExchange("???"))
}
