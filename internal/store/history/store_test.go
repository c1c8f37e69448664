package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpilot/internal/decision"
)

func openTemp(t *testing.T) *SignalStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "signals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndLoadKeepsOrder(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		sig := decision.Signal{
			Action:     decision.ActionBuy,
			Reason:     "r",
			StopLoss:   float64(i) - 0.1,
			TakeProfit: float64(i) + 0.1,
			Confidence: decision.ConfidenceHigh,
			Timestamp:  int64(i),
		}
		require.NoError(t, s.Append(ctx, "xrp/usdt:usdt", sig))
	}
	require.NoError(t, s.Append(ctx, "BTC/USDT:USDT", decision.Fallback(100, 99)))

	got, err := s.Load(ctx, "XRP/USDT:USDT", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{got[0].Timestamp, got[1].Timestamp, got[2].Timestamp})
	assert.Equal(t, decision.ActionBuy, got[2].Action)
	assert.InDelta(t, 5.1, got[2].TakeProfit, 1e-9)

	other, err := s.Load(ctx, "BTC/USDT:USDT", 0)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.True(t, other[0].IsFallback)
	assert.Equal(t, decision.ConfidenceLow, other[0].Confidence)
}

func TestClosedStoreErrors(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Close())
	assert.Error(t, s.Append(context.Background(), "X", decision.Signal{}))
	_, err := s.Load(context.Background(), "X", 1)
	assert.Error(t, err)
	assert.NoError(t, s.Close())
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
