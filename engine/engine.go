// Package engine owns the position state machine. One Engine trades one
// symbol with at most one open position; cycles are serialized.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/breakout/broker"
	"github.com/rustyeddy/breakout/indicators"
	"github.com/rustyeddy/breakout/journal"
	"github.com/rustyeddy/breakout/market"
	"github.com/rustyeddy/breakout/pkg/id"
	"github.com/rustyeddy/breakout/risk"
	"github.com/rustyeddy/breakout/strategy"
)

type Config struct {
	Symbol   market.Symbol
	Pipeline indicators.Pipeline
	Strategy strategy.Params
	Risk     risk.Policy

	RiskPerTrade      float64 // fraction of balance risked per trade
	MaxPositionSize   float64 // exposure cap as a fraction of balance; zero disables
	StopATRMultiple   float64
	TargetATRMultiple float64
}

// DefaultConfig is BTC/USDT with the stock strategy and a 2% risk budget.
func DefaultConfig() Config {
	return Config{
		Symbol:   "BTC/USDT",
		Pipeline: indicators.DefaultPipeline(),
		Strategy: strategy.DefaultParams(),
		Risk: risk.Policy{
			MaxDailyTrades: 5,
			MaxDailyLoss:   100,
			MaxDrawdown:    0.10,
			EmergencyStop:  0.15,
		},
		RiskPerTrade:      0.02,
		MaxPositionSize:   0.10,
		StopATRMultiple:   2,
		TargetATRMultiple: 4,
	}
}

// Action is what a cycle did.
type Action string

const (
	ActionNone   Action = "none"
	ActionOpened Action = "opened"
	ActionClosed Action = "closed"
)

// CycleResult reports one evaluation. Position is the open position after
// the cycle, if any. Decision is set whenever the risk gate was consulted;
// a denial is not an error.
type CycleResult struct {
	Action   Action
	Position *Position
	Trade    *journal.TradeRecord
	Signal   strategy.EntrySignal
	Exit     *strategy.ExitSignal
	Decision *risk.Decision
	Bar      *indicators.EnrichedBar
	Err      error
}

// Denied reports whether the risk gate blocked an entry this cycle.
func (r CycleResult) Denied() bool {
	return r.Decision != nil && !r.Decision.Allowed
}

// State is the mutable engine state. Only the serialized cycle touches it.
type State struct {
	Position     *Position
	Balance      float64 // last observed balance
	StartBalance float64 // first observed balance
	LastTrend    strategy.Trend
	Halted       bool
	HaltReason   string
}

type Engine struct {
	cfg      Config
	eval     strategy.Evaluator
	exec     broker.Executor
	balances broker.BalanceProvider
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string

	mu    sync.Mutex
	gate  *risk.Gate
	state State
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs replaces the ULID generator used for trade IDs.
func WithIDs(next func() string) Option {
	return func(e *Engine) { e.newID = next }
}

func New(cfg Config, exec broker.Executor, balances broker.BalanceProvider, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		eval:     strategy.NewEvaluator(cfg.Strategy),
		exec:     exec,
		balances: balances,
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    id.New,
		gate:     risk.NewGate(cfg.Risk, risk.State{}),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Halted reports whether an emergency stop has latched.
func (e *Engine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Halted
}

// Position returns a copy of the open position, or nil when flat.
func (e *Engine) Position() *Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clonePosition(e.state.Position)
}

func clonePosition(p *Position) *Position {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// EvaluateCycle runs one evaluation over bars (oldest first). When flat it
// checks for an entry and, if the gate and sizer allow, opens a position.
// When in a position it checks for an exit and closes it. Order failures
// leave the state unchanged.
func (e *Engine) EvaluateCycle(ctx context.Context, bars []market.Bar) CycleResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Halted {
		return CycleResult{
			Action:   ActionNone,
			Position: clonePosition(e.state.Position),
			Err:      fmt.Errorf("%w: %s", ErrEmergencyStop, e.state.HaltReason),
		}
	}

	enriched := e.cfg.Pipeline.Enrich(bars)
	if len(enriched) < 2 {
		return CycleResult{
			Action:   ActionNone,
			Position: clonePosition(e.state.Position),
			Err:      fmt.Errorf("%w: %d bars, need %d", ErrInsufficientData, len(bars), e.cfg.Pipeline.Warmup()+1),
		}
	}
	prev, cur := enriched[len(enriched)-2], enriched[len(enriched)-1]

	if e.state.Position != nil {
		return e.checkExit(ctx, prev, cur)
	}
	return e.checkEntry(ctx, prev, cur)
}

func (e *Engine) checkExit(ctx context.Context, prev, cur indicators.EnrichedBar) CycleResult {
	pos := e.state.Position
	res := CycleResult{Action: ActionNone, Position: clonePosition(pos), Bar: &cur}

	sig, ok := e.eval.Exit(prev, cur, pos.Levels())
	if !ok {
		return res
	}
	res.Exit = &sig

	fill, err := e.exec.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:     e.cfg.Symbol,
		Side:       pos.Side.CloseSide(),
		Size:       pos.Size,
		RefPrice:   sig.Price,
		ReduceOnly: true,
	})
	if err != nil {
		e.log.Error().Err(err).Str("reason", string(sig.Reason)).Msg("close order failed")
		res.Err = fmt.Errorf("%w: close %s %s: %w", ErrOrderExecution, pos.Side, pos.TradeID, err)
		return res
	}

	exit := sig.Price
	if fill.Price > 0 {
		exit = fill.Price
	}
	closedAt := fill.Time
	if closedAt.IsZero() {
		closedAt = e.now().UTC()
	}

	profit := pos.Profit(exit)
	// the venue's balance includes fees; fall back to the computed P/L
	if b, err := e.balances.FetchBalance(ctx); err == nil {
		e.observeBalance(b)
	} else {
		e.log.Warn().Err(err).Msg("balance refresh after close failed")
		e.state.Balance += profit
	}

	trade := journal.TradeRecord{
		TradeID:      pos.TradeID,
		Symbol:       pos.Symbol,
		Side:         pos.Side,
		Size:         pos.Size,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    exit,
		StopLoss:     pos.StopLoss,
		TakeProfit:   pos.TakeProfit,
		RealizedPL:   profit,
		Reason:       string(sig.Reason),
		BalanceAfter: e.state.Balance,
		OpenTime:     pos.OpenedAt,
		CloseTime:    closedAt,
	}
	e.state.Position = nil

	e.log.Info().
		Str("trade_id", trade.TradeID).
		Str("side", string(trade.Side)).
		Str("reason", trade.Reason).
		Float64("exit", exit).
		Float64("profit", profit).
		Float64("balance", e.state.Balance).
		Msg("position closed")

	res.Action = ActionClosed
	res.Position = nil
	res.Trade = &trade
	return res
}

func (e *Engine) checkEntry(ctx context.Context, prev, cur indicators.EnrichedBar) CycleResult {
	sig := e.eval.Entry(prev, cur)
	e.state.LastTrend = sig.Trend
	res := CycleResult{Action: ActionNone, Signal: sig, Bar: &cur}

	side, ok := sig.Side()
	if !ok {
		return res
	}

	balance, err := e.balances.FetchBalance(ctx)
	if err != nil {
		res.Err = fmt.Errorf("%w: balance: %w", ErrDataFetch, err)
		return res
	}
	e.observeBalance(balance)

	now := e.now()
	d := e.gate.Check(now, balance)
	res.Decision = &d
	if !d.Allowed {
		if d.Emergency() {
			e.state.Halted = true
			e.state.HaltReason = d.String()
			e.log.Error().Str("reason", string(d.Reason())).Float64("drawdown", d.Drawdown).Msg("emergency stop")
			res.Err = fmt.Errorf("%w: %s", ErrEmergencyStop, d)
			return res
		}
		e.log.Info().Str("side", string(side)).Str("reason", string(d.Reason())).Msg("entry denied")
		return res
	}

	ref := cur.Close
	stop, target := StopLevels(side, ref, cur.ATR, e.cfg.StopATRMultiple, e.cfg.TargetATRMultiple)
	sz, err := risk.Calculate(risk.Inputs{
		Balance:      balance,
		RiskFraction: e.cfg.RiskPerTrade,
		EntryPrice:   ref,
		StopPrice:    stop,
		MaxExposure:  e.cfg.MaxPositionSize,
	})
	if err != nil {
		// ErrZeroSize: skip the entry, nothing is submitted
		e.log.Info().Err(err).Str("side", string(side)).Msg("entry skipped")
		return res
	}

	fill, err := e.exec.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:   e.cfg.Symbol,
		Side:     side.OrderSide(),
		Size:     sz.Size,
		RefPrice: ref,
	})
	if err != nil {
		e.log.Error().Err(err).Str("side", string(side)).Float64("size", sz.Size).Msg("open order failed")
		res.Err = fmt.Errorf("%w: open %s: %w", ErrOrderExecution, side, err)
		return res
	}

	entry := ref
	if fill.Price > 0 {
		entry = fill.Price
	}
	size := sz.Size
	if fill.Size > 0 {
		size = fill.Size
	}
	openedAt := fill.Time
	if openedAt.IsZero() {
		openedAt = now.UTC()
	}

	pos := &Position{
		TradeID:    e.newID(),
		Symbol:     e.cfg.Symbol,
		Side:       side,
		Size:       size,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
		RiskAmount: sz.RiskAmount,
		OpenedAt:   openedAt,
	}
	e.state.Position = pos
	e.gate.RecordEntry(now)

	e.log.Info().
		Str("trade_id", pos.TradeID).
		Str("side", string(side)).
		Float64("size", size).
		Float64("entry", entry).
		Float64("stop", stop).
		Float64("target", target).
		Bool("capped", sz.Capped).
		Msg("position opened")

	res.Action = ActionOpened
	res.Position = clonePosition(pos)
	return res
}

func (e *Engine) observeBalance(b float64) {
	e.state.Balance = b
	if e.state.StartBalance == 0 {
		e.state.StartBalance = b
	}
}

// SyncBalance records a balance observed outside a cycle, e.g. at startup.
func (e *Engine) SyncBalance(ctx context.Context) error {
	b, err := e.balances.FetchBalance(ctx)
	if err != nil {
		return errors.Join(ErrDataFetch, err)
	}
	e.mu.Lock()
	e.observeBalance(b)
	e.mu.Unlock()
	return nil
}
