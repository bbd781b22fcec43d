package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/breakout/broker"
	"github.com/rustyeddy/breakout/broker/paper"
	"github.com/rustyeddy/breakout/indicators"
	"github.com/rustyeddy/breakout/market"
	"github.com/rustyeddy/breakout/risk"
	"github.com/rustyeddy/breakout/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

type stubExec struct {
	mu    sync.Mutex
	calls []broker.OrderRequest
	err   error
}

func (s *stubExec) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.err != nil {
		return broker.Fill{}, s.err
	}
	return broker.Fill{OrderID: "1", Symbol: req.Symbol, Side: req.Side, Size: req.Size, Price: req.RefPrice}, nil
}

func (s *stubExec) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubBalance struct {
	bal float64
	err error
}

func (s stubBalance) FetchBalance(ctx context.Context) (float64, error) {
	return s.bal, s.err
}

// testConfig uses short indicator periods and permissive thresholds so a
// small synthetic series produces signals.
func testConfig() Config {
	return Config{
		Symbol: "BTC/USDT",
		Pipeline: indicators.Pipeline{
			EMAPeriod: 5, DonchianPeriod: 5, ATRPeriod: 3,
			MACDFast: 2, MACDSlow: 4, MACDSignal: 2,
		},
		Strategy: strategy.Params{
			MomentumThreshold:       0,
			CandleTickThreshold:     1e9,
			BandDistanceMin:         0,
			VolatilitySpikeMultiple: 1.5,
			Mode:                    strategy.Both,
		},
		Risk: risk.Policy{
			MaxDailyTrades: 3,
			MaxDailyLoss:   1000,
			MaxDrawdown:    0.10,
			EmergencyStop:  0.15,
		},
		RiskPerTrade:      0.02,
		StopATRMultiple:   2,
		TargetATRMultiple: 4,
	}
}

func newTestEngine(cfg Config, exec broker.Executor, bal broker.BalanceProvider) *Engine {
	n := 0
	return New(cfg, exec, bal,
		WithClock(func() time.Time { return testNow }),
		WithIDs(func() string {
			n++
			return "T" + string(rune('0'+n))
		}),
	)
}

// risingBars accelerates upward so every trend, breakout and momentum
// condition for a long holds on the last bar.
func risingBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	start := testNow.Add(-time.Duration(n) * 15 * time.Minute)
	for i := range bars {
		c := 1000 + float64(i*i)
		bars[i] = market.Bar{
			Time:  start.Add(time.Duration(i) * 15 * time.Minute),
			Open:  c - 1,
			High:  c + 1,
			Low:   c - 2,
			Close: c,
		}
	}
	return bars
}

// flatBars ends with last, after n-1 quiet bars around 45000.
func flatBars(n int, last market.Bar) []market.Bar {
	bars := make([]market.Bar, n)
	start := testNow.Add(-time.Duration(n) * 15 * time.Minute)
	for i := range bars {
		bars[i] = market.Bar{
			Time: start.Add(time.Duration(i) * 15 * time.Minute),
			Open: 45000, High: 45050, Low: 44950, Close: 45000,
		}
	}
	last.Time = bars[n-1].Time
	bars[n-1] = last
	return bars
}

func longSnapshot() Snapshot {
	return Snapshot{
		Symbol: "BTC/USDT",
		Position: &Position{
			TradeID:    "L1",
			Symbol:     "BTC/USDT",
			Side:       market.Long,
			Size:       0.2,
			EntryPrice: 45000,
			StopLoss:   44000,
			TakeProfit: 47000,
			RiskAmount: 200,
			OpenedAt:   testNow.Add(-2 * time.Hour),
		},
		Risk:         risk.State{DailyTradeCount: 1, TradeCountResetDate: "2024-03-04", PeakBalance: 10000, SessionStartBalance: 10000},
		Balance:      10000,
		StartBalance: 10000,
	}
}

func TestEvaluateCycle_OpensLong(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pb := paper.New(10000, paper.WithClock(func() time.Time { return testNow }))
	e := newTestEngine(testConfig(), pb, pb)

	res := e.EvaluateCycle(ctx, risingBars(30))
	require.NoError(t, res.Err)
	require.Equal(t, ActionOpened, res.Action)
	require.NotNil(t, res.Position)
	require.NotNil(t, res.Bar)
	require.NotNil(t, res.Decision)

	assert.True(t, res.Signal.Long)
	assert.Equal(t, strategy.Up, res.Signal.Trend)
	assert.True(t, res.Decision.Allowed)

	p := res.Position
	bar := res.Bar
	assert.Equal(t, "T1", p.TradeID)
	assert.Equal(t, market.Long, p.Side)
	assert.Equal(t, bar.Close, p.EntryPrice)
	assert.InDelta(t, bar.Close-2*bar.ATR, p.StopLoss, 1e-9)
	assert.InDelta(t, bar.Close+4*bar.ATR, p.TakeProfit, 1e-9)
	assert.InDelta(t, 200/(2*bar.ATR), p.Size, 1e-9)
	assert.InDelta(t, 200.0, p.RiskAmount, 1e-9)
	assert.Equal(t, testNow, p.OpenedAt)

	qty, _ := pb.Position("BTC/USDT")
	assert.InDelta(t, p.Size, qty, 1e-12)

	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Risk.DailyTradeCount)
	assert.Equal(t, 10000.0, snap.Balance)
	assert.Equal(t, strategy.Up, snap.LastTrend)
}

func TestEvaluateCycle_ExposureCap(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxPositionSize = 0.05
	exec := &stubExec{}
	e := newTestEngine(cfg, exec, stubBalance{bal: 10000})

	res := e.EvaluateCycle(context.Background(), risingBars(30))
	require.Equal(t, ActionOpened, res.Action)
	assert.LessOrEqual(t, res.Position.Size*res.Position.EntryPrice, 10000*0.05+1e-9)
}

func TestEvaluateCycle_StopLossScenario(t *testing.T) {
	t.Parallel()

	exec := &stubExec{}
	e := newTestEngine(testConfig(), exec, stubBalance{bal: 9800})
	e.Restore(longSnapshot())

	bars := flatBars(30, market.Bar{Open: 45000, High: 45050, Low: 43900, Close: 44100})
	res := e.EvaluateCycle(context.Background(), bars)

	require.NoError(t, res.Err)
	require.Equal(t, ActionClosed, res.Action)
	require.NotNil(t, res.Trade)
	require.NotNil(t, res.Exit)
	assert.Nil(t, res.Position)
	assert.Nil(t, e.Position())

	assert.Equal(t, strategy.StopLoss, res.Exit.Reason)
	tr := res.Trade
	assert.Equal(t, "L1", tr.TradeID)
	assert.Equal(t, "stop_loss", tr.Reason)
	assert.Equal(t, 44000.0, tr.ExitPrice)
	assert.InDelta(t, (44000-45000)*0.2, tr.RealizedPL, 1e-9)
	assert.InDelta(t, 9800.0, tr.BalanceAfter, 1e-9)
	assert.Equal(t, 44000.0, tr.StopLoss)
	assert.Equal(t, 47000.0, tr.TakeProfit)

	require.Equal(t, 1, exec.count())
	assert.Equal(t, market.Sell, exec.calls[0].Side)
	assert.True(t, exec.calls[0].ReduceOnly)
	assert.Equal(t, 0.2, exec.calls[0].Size)

	// the slot is clear: the same bars produce no second trade
	again := e.EvaluateCycle(context.Background(), bars)
	assert.Equal(t, ActionNone, again.Action)
	assert.Nil(t, again.Trade)
	assert.Equal(t, 1, exec.count())
}

func TestEvaluateCycle_ShortTakeProfit(t *testing.T) {
	t.Parallel()

	snap := longSnapshot()
	snap.Position.Side = market.Short
	snap.Position.Size = 0.1
	snap.Position.StopLoss = 46000
	snap.Position.TakeProfit = 43000

	exec := &stubExec{}
	e := newTestEngine(testConfig(), exec, stubBalance{bal: 10000})
	e.Restore(snap)

	bars := flatBars(30, market.Bar{Open: 45000, High: 45050, Low: 42900, Close: 43500})
	res := e.EvaluateCycle(context.Background(), bars)

	require.Equal(t, ActionClosed, res.Action)
	assert.Equal(t, "take_profit", res.Trade.Reason)
	assert.Equal(t, 43000.0, res.Trade.ExitPrice)
	assert.InDelta(t, 200.0, res.Trade.RealizedPL, 1e-9)
	assert.Equal(t, market.Buy, exec.calls[0].Side)
}

func TestEvaluateCycle_BalanceIncludesFees(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	const fee = 0.001
	pb := paper.New(10000, paper.WithFee(fee), paper.WithClock(func() time.Time { return testNow }))
	e := newTestEngine(testConfig(), pb, pb)

	opened := e.EvaluateCycle(ctx, risingBars(30))
	require.NoError(t, opened.Err)
	require.Equal(t, ActionOpened, opened.Action)
	p := opened.Position

	bars := risingBars(30)
	bars[len(bars)-1].Low = p.StopLoss - 1
	res := e.EvaluateCycle(ctx, bars)
	require.NoError(t, res.Err)
	require.Equal(t, ActionClosed, res.Action)
	require.Equal(t, "stop_loss", res.Trade.Reason)

	fees := p.Size*p.EntryPrice*fee + p.Size*p.StopLoss*fee
	bal, err := pb.FetchBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10000+res.Trade.RealizedPL-fees, bal, 1e-6)
	assert.InDelta(t, bal, res.Trade.BalanceAfter, 1e-9)
	assert.InDelta(t, bal, e.Snapshot().Balance, 1e-9)
}

func TestEvaluateCycle_CloseFallsBackToProfit(t *testing.T) {
	t.Parallel()

	e := newTestEngine(testConfig(), &stubExec{}, stubBalance{err: errors.New("timeout")})
	e.Restore(longSnapshot())

	res := e.EvaluateCycle(context.Background(), flatBars(30, market.Bar{Open: 45000, High: 45050, Low: 43900, Close: 44100}))
	require.NoError(t, res.Err)
	require.Equal(t, ActionClosed, res.Action)
	assert.InDelta(t, 9800.0, res.Trade.BalanceAfter, 1e-9)
	assert.InDelta(t, 9800.0, e.Snapshot().Balance, 1e-9)
}

func TestEvaluateCycle_HaltedKeepsPosition(t *testing.T) {
	t.Parallel()

	exec := &stubExec{}
	e := newTestEngine(testConfig(), exec, stubBalance{bal: 10000})
	snap := longSnapshot()
	snap.Halted = true
	snap.HaltReason = "emergency_stop"
	e.Restore(snap)

	res := e.EvaluateCycle(context.Background(), flatBars(30, market.Bar{Open: 45000, High: 45050, Low: 43900, Close: 44100}))
	assert.ErrorIs(t, res.Err, ErrEmergencyStop)
	assert.Equal(t, ActionNone, res.Action)
	require.NotNil(t, res.Position)
	assert.Equal(t, "L1", res.Position.TradeID)
	assert.Zero(t, exec.count())
}

func TestEvaluateCycle_HoldsPosition(t *testing.T) {
	t.Parallel()

	exec := &stubExec{}
	e := newTestEngine(testConfig(), exec, stubBalance{bal: 10000})
	e.Restore(longSnapshot())

	res := e.EvaluateCycle(context.Background(), flatBars(30, market.Bar{Open: 45000, High: 45050, Low: 44950, Close: 45000}))
	require.NoError(t, res.Err)
	assert.Equal(t, ActionNone, res.Action)
	require.NotNil(t, res.Position)
	assert.Equal(t, "L1", res.Position.TradeID)
	assert.Zero(t, exec.count())
}

func TestEvaluateCycle_OpenFailureLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	exec := &stubExec{err: errors.New("exchange down")}
	e := newTestEngine(testConfig(), exec, stubBalance{bal: 10000})
	bars := risingBars(30)

	first := e.EvaluateCycle(context.Background(), bars)
	assert.ErrorIs(t, first.Err, ErrOrderExecution)
	assert.Equal(t, ActionNone, first.Action)
	assert.Nil(t, first.Position)
	assert.Nil(t, e.Position())
	assert.Zero(t, e.Snapshot().Risk.DailyTradeCount)

	// retried on the next cycle from the same state
	second := e.EvaluateCycle(context.Background(), bars)
	assert.ErrorIs(t, second.Err, ErrOrderExecution)
	assert.Equal(t, first.Action, second.Action)
	assert.Equal(t, first.Signal, second.Signal)
	assert.Equal(t, 2, exec.count())
	assert.Equal(t, exec.calls[0], exec.calls[1])
}

func TestEvaluateCycle_CloseFailureKeepsPosition(t *testing.T) {
	t.Parallel()

	exec := &stubExec{err: errors.New("rejected")}
	e := newTestEngine(testConfig(), exec, stubBalance{bal: 10000})
	e.Restore(longSnapshot())

	res := e.EvaluateCycle(context.Background(), flatBars(30, market.Bar{Open: 45000, High: 45050, Low: 43900, Close: 44100}))
	assert.ErrorIs(t, res.Err, ErrOrderExecution)
	assert.Equal(t, ActionNone, res.Action)
	assert.Nil(t, res.Trade)
	require.NotNil(t, e.Position())
	assert.Equal(t, "L1", e.Position().TradeID)
	assert.Equal(t, 10000.0, e.Snapshot().Balance)
}

func TestEvaluateCycle_Idempotent(t *testing.T) {
	t.Parallel()

	e := newTestEngine(testConfig(), &stubExec{}, stubBalance{bal: 10000})
	bars := flatBars(30, market.Bar{Open: 45000, High: 45050, Low: 44950, Close: 45000})

	first := e.EvaluateCycle(context.Background(), bars)
	second := e.EvaluateCycle(context.Background(), bars)

	require.NoError(t, first.Err)
	assert.Equal(t, first, second)
}

func TestEvaluateCycle_DailyLimitDenies(t *testing.T) {
	t.Parallel()

	exec := &stubExec{}
	e := newTestEngine(testConfig(), exec, stubBalance{bal: 10000})
	e.Restore(Snapshot{
		Risk:    risk.State{DailyTradeCount: 3, TradeCountResetDate: "2024-03-04", PeakBalance: 10000, SessionStartBalance: 10000},
		Balance: 10000,
	})

	res := e.EvaluateCycle(context.Background(), risingBars(30))
	require.NoError(t, res.Err)
	assert.True(t, res.Signal.Long)
	assert.True(t, res.Denied())
	assert.Equal(t, risk.ReasonDailyTrades, res.Decision.Reason())
	assert.Equal(t, ActionNone, res.Action)
	assert.Zero(t, exec.count())
}

func TestEvaluateCycle_EmergencyStopHalts(t *testing.T) {
	t.Parallel()

	exec := &stubExec{}
	e := newTestEngine(testConfig(), exec, stubBalance{bal: 8400})
	e.Restore(Snapshot{
		Risk:    risk.State{TradeCountResetDate: "2024-03-04", PeakBalance: 10000, SessionStartBalance: 8400},
		Balance: 8400,
	})

	res := e.EvaluateCycle(context.Background(), risingBars(30))
	assert.ErrorIs(t, res.Err, ErrEmergencyStop)
	assert.True(t, res.Decision.Emergency())
	assert.True(t, e.Halted())
	assert.Zero(t, exec.count())

	snap := e.Snapshot()
	assert.True(t, snap.Halted)
	assert.Contains(t, snap.HaltReason, "emergency_stop")

	again := e.EvaluateCycle(context.Background(), risingBars(30))
	assert.ErrorIs(t, again.Err, ErrEmergencyStop)
	assert.Nil(t, again.Bar)
}

func TestEvaluateCycle_ZeroBalanceSkips(t *testing.T) {
	t.Parallel()

	exec := &stubExec{}
	e := newTestEngine(testConfig(), exec, stubBalance{bal: 0})

	res := e.EvaluateCycle(context.Background(), risingBars(30))
	assert.NoError(t, res.Err)
	assert.Equal(t, ActionNone, res.Action)
	assert.Zero(t, exec.count())
}

func TestEvaluateCycle_ZeroSizeLogsInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := New(testConfig(), &stubExec{}, stubBalance{bal: 0},
		WithClock(func() time.Time { return testNow }),
		WithLogger(zerolog.New(&buf)),
	)

	res := e.EvaluateCycle(context.Background(), risingBars(30))
	require.NoError(t, res.Err)
	assert.Contains(t, buf.String(), `"level":"info"`)
	assert.Contains(t, buf.String(), `"message":"entry skipped"`)
	assert.NotContains(t, buf.String(), `"level":"warn"`)
}

func TestEvaluateCycle_BalanceError(t *testing.T) {
	t.Parallel()

	e := newTestEngine(testConfig(), &stubExec{}, stubBalance{err: errors.New("timeout")})

	res := e.EvaluateCycle(context.Background(), risingBars(30))
	assert.ErrorIs(t, res.Err, ErrDataFetch)
	assert.Equal(t, ActionNone, res.Action)
}

func TestEvaluateCycle_InsufficientData(t *testing.T) {
	t.Parallel()

	e := newTestEngine(testConfig(), &stubExec{}, stubBalance{bal: 10000})

	res := e.EvaluateCycle(context.Background(), risingBars(8))
	assert.ErrorIs(t, res.Err, ErrInsufficientData)
	assert.Equal(t, ActionNone, res.Action)
	assert.Nil(t, res.Bar)
}

func TestEvaluateCycle_TradingModeBlocksSide(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strategy.Mode = strategy.ShortOnly
	exec := &stubExec{}
	e := newTestEngine(cfg, exec, stubBalance{bal: 10000})

	res := e.EvaluateCycle(context.Background(), risingBars(30))
	assert.NoError(t, res.Err)
	assert.False(t, res.Signal.Long)
	assert.Nil(t, res.Decision)
	assert.Zero(t, exec.count())
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	e := newTestEngine(testConfig(), &stubExec{}, stubBalance{bal: 10000})
	in := longSnapshot()
	in.LastTrend = strategy.Down
	e.Restore(in)

	out := e.Snapshot()
	assert.Equal(t, in.Position, out.Position)
	assert.Equal(t, in.Risk, out.Risk)
	assert.Equal(t, in.Balance, out.Balance)
	assert.Equal(t, strategy.Down, out.LastTrend)
	assert.Equal(t, testNow, out.SavedAt)

	// the engine holds its own copy
	in.Position.Size = 99
	assert.Equal(t, 0.2, e.Position().Size)
}

func TestSnapshotClearHalt(t *testing.T) {
	t.Parallel()

	s := Snapshot{Halted: true, HaltReason: "emergency_stop", Balance: 8400, Risk: risk.State{PeakBalance: 10000}}
	s.ClearHalt()

	assert.False(t, s.Halted)
	assert.Empty(t, s.HaltReason)
	assert.Equal(t, 8400.0, s.Risk.PeakBalance)
}

func TestProfit(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, -200.0, Profit(market.Long, 45000, 44000, 0.2), 1e-9)
	assert.InDelta(t, 200.0, Profit(market.Short, 45000, 44000, 0.2), 1e-9)
}
