package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpilot/internal/market"
)

type fakeFutures struct {
	mu       sync.Mutex
	orders   []map[string]string
	cancels  int
	margin   string
	leverage string
}

func (f *fakeFutures) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/klines"):
			assert.Equal(t, "XRPUSDT", r.Form.Get("symbol"))
			_, _ = w.Write([]byte(`[
				[1700000000000,"0.5000","0.5100","0.4900","0.5050","1000.5",1700000899999,"500",10,"1","1","0"],
				[1700000900000,"0.5050","0.5200","0.5000","0.5150","2000",1700001799999,"1000",20,"1","1","0"]
			]`))
		case strings.HasSuffix(path, "/positionRisk"):
			_, _ = w.Write([]byte(`[
				{"symbol":"XRPUSDT","positionAmt":"-12.5","entryPrice":"0.6","unRealizedProfit":"1.25","leverage":"10","positionSide":"BOTH","marginType":"cross"}
			]`))
		case strings.HasSuffix(path, "/balance"):
			_, _ = w.Write([]byte(`[
				{"accountAlias":"x","asset":"USDT","balance":"120","availableBalance":"100.5"},
				{"accountAlias":"x","asset":"BNB","balance":"1","availableBalance":"0.5"}
			]`))
		case strings.HasSuffix(path, "/allOpenOrders"):
			f.cancels++
			_, _ = w.Write([]byte(`{"code":200,"msg":"ok"}`))
		case strings.HasSuffix(path, "/order"):
			order := map[string]string{}
			for k := range r.Form {
				order[k] = r.Form.Get(k)
			}
			f.orders = append(f.orders, order)
			_, _ = w.Write([]byte(`{"orderId":42,"symbol":"XRPUSDT","status":"NEW","executedQty":"0"}`))
		case strings.HasSuffix(path, "/marginType"):
			f.margin = r.Form.Get("marginType")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-4046,"msg":"No need to change margin type."}`))
		case strings.HasSuffix(path, "/leverage"):
			f.leverage = r.Form.Get("leverage")
			_, _ = w.Write([]byte(`{"leverage":10,"maxNotionalValue":"1000000","symbol":"XRPUSDT"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestExchange(t *testing.T) (*Exchange, *fakeFutures) {
	t.Helper()
	fake := &fakeFutures{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	ex := New(Config{APIKey: "k", SecretKey: "s", RESTBaseURL: srv.URL})
	return ex, fake
}

func TestFetchCandles(t *testing.T) {
	ex, _ := newTestExchange(t)
	candles, err := ex.FetchCandles(context.Background(), "XRP/USDT:USDT", "15m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1700000000000), candles[0].OpenTime)
	assert.InDelta(t, 0.505, candles[0].Close, 1e-12)
	assert.InDelta(t, 1000.5, candles[0].Volume, 1e-12)
	assert.InDelta(t, 0.52, candles[1].High, 1e-12)
}

func TestFetchPositionShortFromNegativeAmount(t *testing.T) {
	ex, _ := newTestExchange(t)
	pos, err := ex.FetchPosition(context.Background(), "XRP/USDT:USDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, market.SideShort, pos.Side)
	assert.InDelta(t, 12.5, pos.Size, 1e-12)
	assert.InDelta(t, 0.6, pos.EntryPrice, 1e-12)
	assert.InDelta(t, 10, pos.Leverage, 1e-12)
	assert.Equal(t, "XRP/USDT:USDT", pos.Symbol)
}

func TestFetchBalance(t *testing.T) {
	ex, _ := newTestExchange(t)
	bal, err := ex.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 100.5, bal["USDT"], 1e-12)
	assert.InDelta(t, 0.5, bal["BNB"], 1e-12)
}

func TestSubmitOpenAttachesTriggers(t *testing.T) {
	ex, fake := newTestExchange(t)
	res, err := ex.SubmitMarketOrder(context.Background(), market.OrderRequest{
		Symbol: "XRP/USDT:USDT", Side: market.OrderBuy, Size: 10, TakeProfit: 0.52, StopLoss: 0.49, Tag: "tp",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", res.OrderID)

	require.Len(t, fake.orders, 3)
	assert.Equal(t, "BUY", fake.orders[0]["side"])
	assert.Equal(t, "MARKET", fake.orders[0]["type"])
	assert.Equal(t, "10", fake.orders[0]["quantity"])
	assert.True(t, strings.HasPrefix(fake.orders[0]["newClientOrderId"], "tp-"))
	assert.Equal(t, "TAKE_PROFIT_MARKET", fake.orders[1]["type"])
	assert.Equal(t, "SELL", fake.orders[1]["side"])
	assert.Equal(t, "0.52", fake.orders[1]["stopPrice"])
	assert.Equal(t, "STOP_MARKET", fake.orders[2]["type"])
	assert.Equal(t, "0.49", fake.orders[2]["stopPrice"])
	assert.Zero(t, fake.cancels)
}

func TestSubmitReduceOnlyCancelsTriggers(t *testing.T) {
	ex, fake := newTestExchange(t)
	_, err := ex.SubmitMarketOrder(context.Background(), market.OrderRequest{
		Symbol: "XRP/USDT", Side: market.OrderSell, Size: 7, ReduceOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, fake.orders, 1)
	assert.Equal(t, "true", fake.orders[0]["reduceOnly"])
	assert.Equal(t, "SELL", fake.orders[0]["side"])
	assert.Equal(t, 1, fake.cancels)
}

func TestSetLeverageToleratesUnchangedMarginType(t *testing.T) {
	ex, fake := newTestExchange(t)
	require.NoError(t, ex.SetLeverage(context.Background(), "XRP/USDT:USDT", 10, "cross"))
	assert.Equal(t, "CROSSED", fake.margin)
	assert.Equal(t, "10", fake.leverage)
}

func TestInvalidSymbol(t *testing.T) {
	ex, _ := newTestExchange(t)
	_, err := ex.FetchPosition(context.Background(), "??")
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}

func TestClientOrderIDLength(t *testing.T) {
	assert.Len(t, clientOrderID(""), 32)
	assert.Len(t, clientOrderID(strings.Repeat("x", 40)), maxClientOrderIDLen)
	assert.True(t, strings.HasPrefix(clientOrderID("bot"), "bot-"))
}

func TestClientOrderIDLongTagKeepsRandomSuffix(t *testing.T) {
	tag := strings.Repeat("t", 40)
	a, b := clientOrderID(tag), clientOrderID(tag)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, maxClientOrderIDLen)
	prefix, suffix, ok := strings.Cut(a, "-")
	require.True(t, ok)
	assert.Equal(t, tag[:maxClientOrderIDLen-1-orderIDEntropy], prefix)
	assert.Len(t, suffix, orderIDEntropy)
}
