// Package binance 基于 go-binance SDK 实现 U 本位合约的 market.Exchange。
package binance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"trendpilot/internal/logger"
	"trendpilot/internal/market"
	"trendpilot/internal/pkg/convert"
	symbolpkg "trendpilot/internal/pkg/symbol"
)

const (
	maxKlineLimit = 1500
	// -4046: No need to change margin type.
	codeMarginTypeUnchanged = -4046
	maxClientOrderIDLen     = 36
	orderIDEntropy          = 16
)

var ErrInvalidSymbol = errors.New("invalid symbol")

type Exchange struct {
	cfg     Config
	client  *futures.Client
	limiter *rate.Limiter
}

var _ market.Exchange = (*Exchange)(nil)

func New(cfg Config) *Exchange {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.SecretKey)
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if final.RequestsPerSecond > 0 {
		burst := int(math.Ceil(final.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(final.RequestsPerSecond), burst)
	}
	return &Exchange{cfg: final, client: client, limiter: limiter}
}

func (e *Exchange) pairOf(sym string) (string, error) {
	pair := symbolpkg.Binance.ToExchange(sym)
	if pair == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, sym)
	}
	return pair, nil
}

func (e *Exchange) wait(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("binance rate limit wait: %w", err)
	}
	return nil
}

func (e *Exchange) FetchCandles(ctx context.Context, sym, timeframe string, limit int) ([]market.Candle, error) {
	pair, err := e.pairOf(sym)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	interval := strings.ToLower(strings.TrimSpace(timeframe))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	kls, err := e.client.NewKlinesService().Symbol(pair).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", pair, interval, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      convert.Float(kl.Open),
			High:      convert.Float(kl.High),
			Low:       convert.Float(kl.Low),
			Close:     convert.Float(kl.Close),
			Volume:    convert.Float(kl.Volume),
		})
	}
	return out, nil
}

// FetchPosition 返回该交易对的非零持仓；单向与双向持仓模式都取第一条非零记录。
func (e *Exchange) FetchPosition(ctx context.Context, sym string) (*market.Position, error) {
	pair, err := e.pairOf(sym)
	if err != nil {
		return nil, err
	}
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	risks, err := e.client.NewGetPositionRiskService().Symbol(pair).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch position %s: %w", pair, err)
	}
	for _, r := range risks {
		if r == nil || !strings.EqualFold(r.Symbol, pair) {
			continue
		}
		if pos := positionFromRisk(sym, r); pos != nil {
			return pos, nil
		}
	}
	return nil, nil
}

func positionFromRisk(sym string, r *futures.PositionRisk) *market.Position {
	amt := convert.Float(r.PositionAmt)
	if amt == 0 {
		return nil
	}
	side := market.SideLong
	switch {
	case strings.EqualFold(r.PositionSide, "SHORT"):
		side = market.SideShort
	case strings.EqualFold(r.PositionSide, "LONG"):
	case amt < 0:
		side = market.SideShort
	}
	return &market.Position{
		Side:          side,
		Size:          math.Abs(amt),
		EntryPrice:    convert.Float(r.EntryPrice),
		UnrealizedPnL: convert.Float(r.UnRealizedProfit),
		Leverage:      convert.Float(r.Leverage),
		Symbol:        symbolpkg.Parse(sym).Futures(),
	}
}

func (e *Exchange) FetchBalance(ctx context.Context) (map[string]float64, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	balances, err := e.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}
	out := make(map[string]float64, len(balances))
	for _, b := range balances {
		if b == nil {
			continue
		}
		out[strings.ToUpper(b.Asset)] = convert.Float(b.AvailableBalance)
	}
	return out, nil
}

// SubmitMarketOrder 提交市价单。reduceOnly 平仓成功后撤销残留的触发单；
// 携带 TakeProfit/StopLoss 时追加 closePosition 触发单，触发单失败只记录告警。
func (e *Exchange) SubmitMarketOrder(ctx context.Context, req market.OrderRequest) (market.OrderResult, error) {
	pair, err := e.pairOf(req.Symbol)
	if err != nil {
		return market.OrderResult{}, err
	}
	if req.Size <= 0 {
		return market.OrderResult{}, fmt.Errorf("order size must be > 0")
	}
	side := sideType(req.Side)
	if err := e.wait(ctx); err != nil {
		return market.OrderResult{}, err
	}
	svc := e.client.NewCreateOrderService().
		Symbol(pair).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(formatQty(req.Size)).
		NewClientOrderID(clientOrderID(req.Tag))
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return market.OrderResult{}, fmt.Errorf("create %s market order %s: %w", side, pair, err)
	}
	res := market.OrderResult{
		OrderID: strconv.FormatInt(resp.OrderID, 10),
		Status:  string(resp.Status),
		Filled:  convert.Float(resp.ExecutedQuantity),
	}
	logger.Infof("[binance] 市价单已提交 %s %s qty=%s reduce_only=%v id=%s", pair, side, formatQty(req.Size), req.ReduceOnly, res.OrderID)

	if req.ReduceOnly {
		e.cancelOpenOrders(ctx, pair)
	}
	exitSide := futures.SideTypeSell
	if side == futures.SideTypeSell {
		exitSide = futures.SideTypeBuy
	}
	if req.TakeProfit > 0 {
		e.placeTrigger(ctx, pair, exitSide, futures.OrderTypeTakeProfitMarket, req.TakeProfit, req.Tag)
	}
	if req.StopLoss > 0 {
		e.placeTrigger(ctx, pair, exitSide, futures.OrderTypeStopMarket, req.StopLoss, req.Tag)
	}
	return res, nil
}

func (e *Exchange) placeTrigger(ctx context.Context, pair string, side futures.SideType, typ futures.OrderType, price float64, tag string) {
	if err := e.wait(ctx); err != nil {
		logger.Warnf("[binance] 触发单 %s 限速等待失败: %v", typ, err)
		return
	}
	_, err := e.client.NewCreateOrderService().
		Symbol(pair).
		Side(side).
		Type(typ).
		StopPrice(formatPrice(price)).
		ClosePosition(true).
		WorkingType(futures.WorkingTypeMarkPrice).
		NewClientOrderID(clientOrderID(tag)).
		Do(ctx)
	if err != nil {
		logger.Warnf("[binance] 触发单 %s %s @ %s 提交失败: %v", pair, typ, formatPrice(price), err)
		return
	}
	logger.Infof("[binance] 触发单已挂出 %s %s @ %s", pair, typ, formatPrice(price))
}

func (e *Exchange) cancelOpenOrders(ctx context.Context, pair string) {
	if err := e.wait(ctx); err != nil {
		return
	}
	if err := e.client.NewCancelAllOpenOrdersService().Symbol(pair).Do(ctx); err != nil {
		logger.Warnf("[binance] 撤销 %s 挂单失败: %v", pair, err)
	}
}

// SetLeverage 设置杠杆与保证金模式，保证金模式未变化不算错误。
func (e *Exchange) SetLeverage(ctx context.Context, sym string, leverage int, marginMode string) error {
	pair, err := e.pairOf(sym)
	if err != nil {
		return err
	}
	if err := e.wait(ctx); err != nil {
		return err
	}
	marginType := futures.MarginTypeCrossed
	if strings.EqualFold(strings.TrimSpace(marginMode), "isolated") {
		marginType = futures.MarginTypeIsolated
	}
	if err := e.client.NewChangeMarginTypeService().Symbol(pair).MarginType(marginType).Do(ctx); err != nil {
		var apiErr *common.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != codeMarginTypeUnchanged {
			return fmt.Errorf("set margin type %s %s: %w", pair, marginType, err)
		}
	}
	if err := e.wait(ctx); err != nil {
		return err
	}
	res, err := e.client.NewChangeLeverageService().Symbol(pair).Leverage(leverage).Do(ctx)
	if err != nil {
		return fmt.Errorf("set leverage %s x%d: %w", pair, leverage, err)
	}
	logger.Infof("[binance] %s 杠杆=%d 保证金模式=%s", pair, res.Leverage, marginType)
	return nil
}

func sideType(s market.OrderSide) futures.SideType {
	if s == market.OrderSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func formatQty(v float64) string {
	return decimal.NewFromFloat(v).Round(8).String()
}

func formatPrice(v float64) string {
	return decimal.NewFromFloat(v).Round(8).String()
}

// clientOrderID = tag-随机串，最长 36 字符。tag 过长时裁剪 tag，随机串至少保留 orderIDEntropy 位。
func clientOrderID(tag string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return id[:maxClientOrderIDLen-4]
	}
	if limit := maxClientOrderIDLen - 1 - orderIDEntropy; len(tag) > limit {
		tag = tag[:limit]
	}
	out := tag + "-" + id
	if len(out) > maxClientOrderIDLen {
		out = out[:maxClientOrderIDLen]
	}
	return out
}
