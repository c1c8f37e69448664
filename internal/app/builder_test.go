package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brcfg "trendpilot/internal/config"
	"trendpilot/internal/gateway/notifier"
	"trendpilot/internal/market"
	"trendpilot/internal/store"
)

type stubExchange struct{}

func (stubExchange) FetchCandles(context.Context, string, string, int) ([]market.Candle, error) {
	return nil, errors.New("offline")
}
func (stubExchange) FetchPosition(context.Context, string) (*market.Position, error) { return nil, nil }
func (stubExchange) FetchBalance(context.Context) (map[string]float64, error) {
	return map[string]float64{"USDT": 100}, nil
}
func (stubExchange) SubmitMarketOrder(context.Context, market.OrderRequest) (market.OrderResult, error) {
	return market.OrderResult{}, errors.New("disabled")
}
func (stubExchange) SetLeverage(context.Context, string, int, string) error { return nil }

type stubReasoner struct{}

func (stubReasoner) Complete(context.Context, string, string, float64) (string, error) {
	return `{"signal":"HOLD","reason":"x","stop_loss":0,"take_profit":0,"confidence":"LOW"}`, nil
}

type memoryAudit struct {
	closed bool
}

func (m *memoryAudit) Record(context.Context, store.AuditRecord) error { return nil }
func (m *memoryAudit) Recent(context.Context, int) ([]store.AuditRecord, error) {
	return nil, nil
}
func (m *memoryAudit) Close() error {
	m.closed = true
	return nil
}

func testConfig(t *testing.T) *brcfg.Config {
	t.Helper()
	dir := t.TempDir()
	return &brcfg.Config{
		Trade: brcfg.TradeConfig{
			Symbol:        "XRP/USDT:USDT",
			Timeframe:     "15m",
			Amount:        10,
			Leverage:      10,
			TestMode:      true,
			DataPoints:    96,
			QuoteCurrency: "USDT",
			MarginMode:    "cross",
		},
		Schedule: brcfg.ScheduleConfig{Mode: "align", Period: "15m"},
		AI:       brcfg.AIConfig{Model: "test-model", MaxRetries: 2, HistorySize: 30},
		Store: brcfg.StoreConfig{
			Driver:      "sqlite",
			SQLitePath:  filepath.Join(dir, "trade_logs.db"),
			HistoryPath: filepath.Join(dir, "signal_history.db"),
		},
		HTTP: brcfg.HTTPConfig{Enabled: false, Addr: ":0"},
	}
}

func newTestBuilder(cfg *brcfg.Config, audit *memoryAudit) *AppBuilder {
	b := NewAppBuilder(cfg, WithExchange(stubExchange{}), WithReasoner(stubReasoner{}))
	b.auditStoreFn = func(context.Context, brcfg.StoreConfig) (store.AuditStore, error) { return audit, nil }
	return b
}

func TestBuildApp(t *testing.T) {
	cfg := testConfig(t)
	audit := &memoryAudit{}
	app, err := newTestBuilder(cfg, audit).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, app.Service())
	assert.Equal(t, "XRP/USDT:USDT", app.Service().Session().Symbol())
	assert.Nil(t, app.liveHTTP)
	assert.Len(t, app.closers, 2)

	var buf bytes.Buffer
	_, err = app.Summary.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "XRP/USDT:USDT")
	assert.Contains(t, buf.String(), "模拟")
	assert.Contains(t, buf.String(), "align")

	require.NoError(t, app.Close())
	assert.True(t, audit.closed)
}

func TestBuildAppWithHTTP(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Enabled = true
	cfg.Store.HistoryPath = ""
	app, err := newTestBuilder(cfg, &memoryAudit{}).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, app.liveHTTP)
	assert.Equal(t, ":0", app.liveHTTP.Addr())
	assert.Len(t, app.closers, 1)
}

func TestBuildAppRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule = brcfg.ScheduleConfig{Mode: "cron"}
	_, err := newTestBuilder(cfg, &memoryAudit{}).Build(context.Background())
	assert.Error(t, err)
}

func TestBuildAppClosesStoresOnFailure(t *testing.T) {
	cfg := testConfig(t)
	audit := &memoryAudit{}
	b := newTestBuilder(cfg, audit)
	b.signalStoreFn = func(brcfg.StoreConfig) (signalStore, error) { return nil, errors.New("disk full") }
	_, err := b.Build(context.Background())
	assert.Error(t, err)
	assert.True(t, audit.closed)
}

func TestBuildNotifierDisabled(t *testing.T) {
	n, err := buildNotifier(brcfg.NotifyConfig{})
	require.NoError(t, err)
	assert.IsType(t, notifier.Nop{}, n)
}

func TestBuildSignalStoreWithoutPath(t *testing.T) {
	st, err := buildSignalStore(brcfg.StoreConfig{})
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestRunWithoutService(t *testing.T) {
	assert.Error(t, (&App{}).Run(context.Background()))
}
