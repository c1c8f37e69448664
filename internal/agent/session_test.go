package agent

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trendpilot/internal/config"
	"trendpilot/internal/decision"
	"trendpilot/internal/executor"
	"trendpilot/internal/market"
	"trendpilot/internal/prompt"
	"trendpilot/internal/scheduler"
	"trendpilot/internal/store"
)

type mockExchange struct {
	mock.Mock
}

func (m *mockExchange) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	args := m.Called(ctx, symbol, timeframe, limit)
	candles, _ := args.Get(0).([]market.Candle)
	return candles, args.Error(1)
}

func (m *mockExchange) FetchPosition(ctx context.Context, symbol string) (*market.Position, error) {
	args := m.Called(ctx, symbol)
	pos, _ := args.Get(0).(*market.Position)
	return pos, args.Error(1)
}

func (m *mockExchange) FetchBalance(ctx context.Context) (map[string]float64, error) {
	args := m.Called(ctx)
	bal, _ := args.Get(0).(map[string]float64)
	return bal, args.Error(1)
}

func (m *mockExchange) SubmitMarketOrder(ctx context.Context, req market.OrderRequest) (market.OrderResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(market.OrderResult), args.Error(1)
}

func (m *mockExchange) SetLeverage(ctx context.Context, symbol string, leverage int, marginMode string) error {
	return m.Called(ctx, symbol, leverage, marginMode).Error(0)
}

type mockReasoner struct {
	mock.Mock
}

func (m *mockReasoner) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	args := m.Called(ctx, system, user, temperature)
	return args.String(0), args.Error(1)
}

type memorySink struct {
	records []store.AuditRecord
}

func (s *memorySink) Record(_ context.Context, rec store.AuditRecord) error {
	s.records = append(s.records, rec)
	return nil
}

type memorySignals struct {
	saved []decision.Signal
	err   error
}

func (m *memorySignals) Append(_ context.Context, _ string, sig decision.Signal) error {
	m.saved = append(m.saved, sig)
	return nil
}

func (m *memorySignals) Load(_ context.Context, _ string, limit int) ([]decision.Signal, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.saved) > limit {
		return m.saved[len(m.saved)-limit:], nil
	}
	return m.saved, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Trade: config.TradeConfig{
			Symbol:        "XRP/USDT:USDT",
			Timeframe:     "15m",
			Amount:        4,
			Leverage:      5,
			DataPoints:    60,
			Lookback:      20,
			QuoteCurrency: "USDT",
			MarginMode:    "cross",
			MarginBuffer:  0.8,
		},
		AI: config.AIConfig{Temperature: 0.1, MaxRetries: 2, KlineCount: 5, HistorySize: 30},
	}
}

func testCandles() []market.Candle {
	out := make([]market.Candle, 60)
	for i := range out {
		c := 0.5 + float64(i)*0.001 + 0.002*math.Sin(float64(i))
		out[i] = market.Candle{OpenTime: int64(i+1) * 900_000, Open: c - 0.0005, High: c + 0.001, Low: c - 0.001, Close: c, Volume: 1000}
	}
	return out
}

type fixture struct {
	ex       *mockExchange
	reasoner *mockReasoner
	sink     *memorySink
	signals  *memorySignals
	session  *Session
}

func newFixture(cfg *config.Config) *fixture {
	f := &fixture{
		ex:       new(mockExchange),
		reasoner: new(mockReasoner),
		sink:     &memorySink{},
		signals:  &memorySignals{},
	}
	audit := store.NewRecorder(f.sink)
	reg := prompt.NewDefault()
	eng := decision.NewEngine(decision.Config{
		Symbol:        cfg.Trade.Symbol,
		Timeframe:     cfg.Trade.Timeframe,
		Amount:        cfg.Trade.Amount,
		Leverage:      cfg.Trade.Leverage,
		QuoteCurrency: cfg.Trade.QuoteCurrency,
		Temperature:   cfg.AI.Temperature,
		KlineCount:    cfg.AI.KlineCount,
		MaxRetries:    cfg.AI.MaxRetries,
	}, f.reasoner, reg, decision.NewParser(reg), decision.NewHistory(cfg.AI.HistorySize), audit)
	exec := executor.New(executor.ConfigFrom(cfg), f.ex, audit, nil)
	f.session = NewSession(SessionParams{
		Config:   cfg,
		Exchange: f.ex,
		Engine:   eng,
		Executor: exec,
		Signals:  f.signals,
	})
	return f
}

const buyResponse = `{"signal": "BUY", "reason": "trend up", "stop_loss": 0.54, "take_profit": 0.6, "confidence": "HIGH"}`

func TestRunCycleOpensLongFromFlat(t *testing.T) {
	f := newFixture(testConfig())
	long := &market.Position{Side: market.SideLong, Size: 4, EntryPrice: 0.56}

	f.ex.On("FetchCandles", mock.Anything, "XRP/USDT:USDT", "15m", 60).Return(testCandles(), nil)
	f.ex.On("FetchPosition", mock.Anything, "XRP/USDT:USDT").Return(nil, nil).Once()
	f.ex.On("FetchPosition", mock.Anything, "XRP/USDT:USDT").Return(long, nil)
	f.ex.On("FetchBalance", mock.Anything).Return(map[string]float64{"USDT": 50.0}, nil)
	f.ex.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(func(r market.OrderRequest) bool {
		return r.Side == market.OrderBuy && !r.ReduceOnly && r.TakeProfit == 0.6 && r.StopLoss == 0.54
	})).Return(market.OrderResult{OrderID: "1"}, nil).Once()
	f.reasoner.On("Complete", mock.Anything, mock.Anything, mock.Anything, 0.1).Return(buyResponse, nil).Once()

	res, err := f.session.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "open_long", res.Operation)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, long, res.Position)
	require.NotNil(t, res.Signal)
	assert.Equal(t, decision.ActionBuy, res.Signal.Action)
	assert.False(t, res.FinishedAt.IsZero())
	f.ex.AssertNumberOfCalls(t, "SubmitMarketOrder", 1)
	f.ex.AssertNumberOfCalls(t, "FetchPosition", 2)

	assert.Equal(t, 1, f.session.History().Len())
	assert.Len(t, f.signals.saved, 1)
	assert.Len(t, f.session.Candles().Recent(0), 60)

	ops := make([]store.OperationType, 0, len(f.sink.records))
	for _, r := range f.sink.records {
		ops = append(ops, r.OperationType)
	}
	assert.Equal(t, []store.OperationType{store.OpAnalysis, store.OpOpenLong, store.OpOpenLong}, ops)

	last, ok := f.session.LastCycle()
	require.True(t, ok)
	assert.Equal(t, res.ID, last.ID)
}

func TestRunCycleAbortsOnFetchFailure(t *testing.T) {
	f := newFixture(testConfig())
	f.ex.On("FetchCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	res, err := f.session.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrFetchCandles)
	assert.Nil(t, res.Signal)
	f.reasoner.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.ex.AssertNotCalled(t, "FetchPosition", mock.Anything, mock.Anything)
	assert.Empty(t, f.sink.records)

	last, ok := f.session.LastCycle()
	require.True(t, ok)
	assert.Contains(t, last.Error, "timeout")
}

func TestRunCycleAbortsOnPositionFailure(t *testing.T) {
	f := newFixture(testConfig())
	f.ex.On("FetchCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testCandles(), nil)
	f.ex.On("FetchPosition", mock.Anything, mock.Anything).Return(nil, errors.New("502"))

	_, err := f.session.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrPositionUnavailable)
	f.reasoner.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.ex.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything, mock.Anything)
}

func TestRunCycleFallbackSkipsTrading(t *testing.T) {
	cfg := testConfig()
	f := newFixture(cfg)
	f.ex.On("FetchCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testCandles(), nil)
	f.ex.On("FetchPosition", mock.Anything, mock.Anything).Return(nil, nil)
	f.reasoner.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("down"))

	res, err := f.session.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Signal)
	assert.True(t, res.Signal.IsFallback)
	assert.Equal(t, "skipped", res.Status)
	f.reasoner.AssertNumberOfCalls(t, "Complete", 2)
	f.ex.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything, mock.Anything)
	require.Len(t, f.signals.saved, 1)
	require.Equal(t, 1, f.session.History().Len())
	last, _ := f.session.History().Last()
	assert.Equal(t, f.signals.saved[0], last)
}

func TestSetupFailureIsFatal(t *testing.T) {
	f := newFixture(testConfig())
	f.ex.On("SetLeverage", mock.Anything, "XRP/USDT:USDT", 5, "cross").Return(errors.New("forbidden"))

	svc := NewService(f.session, scheduler.FixedPolicy{Interval: 1})
	err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrExchangeSetup)
	f.ex.AssertNotCalled(t, "FetchCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSetupLogsBalance(t *testing.T) {
	f := newFixture(testConfig())
	f.ex.On("SetLeverage", mock.Anything, "XRP/USDT:USDT", 5, "cross").Return(nil)
	f.ex.On("FetchBalance", mock.Anything).Return(map[string]float64{"USDT": 12.0}, nil)
	require.NoError(t, f.session.Setup(context.Background()))
	f.ex.AssertExpectations(t)
}

func TestRestoreHistory(t *testing.T) {
	f := newFixture(testConfig())
	for i := 0; i < 35; i++ {
		f.signals.saved = append(f.signals.saved, decision.Signal{Action: decision.ActionHold, Confidence: decision.ConfidenceLow, Timestamp: int64(i)})
	}
	f.session.Restore(context.Background())
	h := f.session.History()
	assert.Equal(t, 30, h.Len())
	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, int64(34), last.Timestamp)

	g := newFixture(testConfig())
	g.signals.err = errors.New("locked")
	g.session.Restore(context.Background())
	assert.Zero(t, g.session.History().Len())
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	f := newFixture(testConfig())
	f.ex.On("SetLeverage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.ex.On("FetchBalance", mock.Anything).Return(map[string]float64{"USDT": 12.0}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f.ex.On("FetchCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, errors.New("offline"))

	svc := NewService(f.session, scheduler.FixedPolicy{Interval: 1 << 40})
	assert.NoError(t, svc.Run(ctx))
	f.ex.AssertNumberOfCalls(t, "FetchCandles", 1)
}

func TestTickIgnoresShutdownMidCycle(t *testing.T) {
	f := newFixture(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var seen context.Context
	f.ex.On("FetchCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { seen = args.Get(0).(context.Context) }).
		Return(nil, errors.New("offline"))

	svc := NewService(f.session, scheduler.FixedPolicy{Interval: time.Minute})
	svc.tick(ctx)

	require.NotNil(t, seen)
	assert.NoError(t, seen.Err())
}
