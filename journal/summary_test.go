package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []TradeRecord{
		sampleTrade("1", at, 400),
		sampleTrade("2", at, -200),
		sampleTrade("3", at, 0),
		sampleTrade("4", at, 100),
	}
	trades[1].Reason = "stop_loss"

	s := Summarize(trades)

	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 0.5, s.WinRate, 1e-12)
	assert.InDelta(t, 300.0, s.NetPL, 1e-9)
	assert.InDelta(t, 75.0, s.AvgPL, 1e-9)
	assert.InDelta(t, 500.0, s.GrossProfit, 1e-9)
	assert.InDelta(t, 200.0, s.GrossLoss, 1e-9)
	assert.InDelta(t, 2.5, s.ProfitFactor, 1e-12)
	assert.Equal(t, 400.0, s.Best)
	assert.Equal(t, -200.0, s.Worst)
	assert.Equal(t, map[string]int{"take_profit": 3, "stop_loss": 1}, s.ByReason)
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil)
	assert.Zero(t, s.Trades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.Best)
	assert.Contains(t, s.String(), "Total trades: 0")
}

func TestSummaryString(t *testing.T) {
	t.Parallel()

	s := Summary{Trades: 4, Wins: 3, WinRate: 0.75, NetPL: 300, AvgPL: 75, ProfitFactor: 4}
	out := s.String()

	assert.Contains(t, out, "Total trades: 4")
	assert.Contains(t, out, "Winning trades: 3")
	assert.Contains(t, out, "Win rate: 75.00%")
	assert.Contains(t, out, "Total profit: 300.00")
	assert.Contains(t, out, "Average profit: 75.00")
	assert.Contains(t, out, "Profit factor: 4.00")
	assert.NotContains(t, out, "Period:")
}
