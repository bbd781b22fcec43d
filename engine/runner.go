package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/breakout/broker"
	"github.com/rustyeddy/breakout/journal"
)

// Notifier delivers free-text messages. Implementations must not block.
type Notifier interface {
	Notify(text string)
}

// TradeRecorder takes closed trades. Implementations must not block.
type TradeRecorder interface {
	RecordTrade(journal.TradeRecord)
}

// StateStore persists snapshots between runs. Load returns ErrNoSnapshot
// when nothing was saved yet.
type StateStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

// Observer is told about every cycle and the status that follows it.
type Observer interface {
	ObserveCycle(res CycleResult, elapsed time.Duration)
	ObserveStatus(s Status)
}

// RunnerOptions controls the polling loop.
type RunnerOptions struct {
	Timeframe string
	BarLimit  int
	Interval  time.Duration

	// StatusEvery is the period of the status notification; zero disables it.
	StatusEvery time.Duration
}

// Runner drives an Engine on a fixed interval. Cycles never overlap: a
// cycle that overruns the interval is followed immediately by the next.
type Runner struct {
	Engine   *Engine
	Data     broker.MarketData
	Store    StateStore
	Notifier Notifier
	Ledger   TradeRecorder
	Observer Observer
	Log      zerolog.Logger
	Options  RunnerOptions

	mu         sync.Mutex
	mark       float64
	market     *MarketSummary
	lastStatus time.Time
}

func (r *Runner) validate() error {
	if r.Engine == nil {
		return fmt.Errorf("runner: Engine is required")
	}
	if r.Data == nil {
		return fmt.Errorf("runner: Data is required")
	}
	if r.Options.BarLimit <= 0 {
		return fmt.Errorf("runner: BarLimit must be positive")
	}
	return nil
}

// Restore loads the saved snapshot into the engine. A halted snapshot is
// restored but reported as ErrEmergencyStop.
func (r *Runner) Restore(ctx context.Context) error {
	if r.Store == nil {
		return nil
	}
	snap, err := r.Store.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		r.Log.Info().Msg("no saved state, starting flat")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	sym := string(r.Engine.Config().Symbol)
	if snap.Symbol != "" && snap.Symbol != sym {
		return fmt.Errorf("saved state is for %s, engine trades %s", snap.Symbol, sym)
	}
	r.Engine.Restore(snap)

	ev := r.Log.Info().Time("saved_at", snap.SavedAt).Float64("balance", snap.Balance)
	if snap.Position != nil {
		ev = ev.Str("position", string(snap.Position.Side)).Str("trade_id", snap.Position.TradeID)
	}
	ev.Msg("state restored")

	if snap.Halted {
		return fmt.Errorf("%w: %s", ErrEmergencyStop, snap.HaltReason)
	}
	return nil
}

// RunOnce fetches bars and evaluates one cycle.
func (r *Runner) RunOnce(ctx context.Context) CycleResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	sym := r.Engine.Config().Symbol

	var res CycleResult
	bars, err := r.Data.FetchBars(ctx, sym, r.Options.Timeframe, r.Options.BarLimit)
	if err != nil {
		res = CycleResult{
			Action:   ActionNone,
			Position: r.Engine.Position(),
			Err:      fmt.Errorf("%w: %w", ErrDataFetch, err),
		}
	} else {
		r.market = SummarizeMarket(bars)
		res = r.Engine.EvaluateCycle(ctx, bars)
	}
	if res.Bar != nil {
		r.mark = res.Bar.Close
	}

	r.report(res)
	r.save(ctx)
	if r.Observer != nil {
		r.Observer.ObserveCycle(res, time.Since(start))
		r.Observer.ObserveStatus(r.status())
	}
	return res
}

// Run polls until ctx is done or an emergency stop halts the engine.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}
	if r.Options.Interval <= 0 {
		return fmt.Errorf("runner: Interval must be positive")
	}
	if r.Engine.Halted() {
		return fmt.Errorf("%w: engine is halted", ErrEmergencyStop)
	}

	sym := r.Engine.Config().Symbol
	r.notify(fmt.Sprintf("Bot started: %s %s every %s", sym, r.Options.Timeframe, r.Options.Interval))
	r.Log.Info().Str("symbol", string(sym)).Str("timeframe", r.Options.Timeframe).Dur("interval", r.Options.Interval).Msg("runner started")
	r.lastStatus = time.Now()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.notify(fmt.Sprintf("Bot stopped: %s", sym))
			r.Log.Info().Msg("runner stopped")
			return nil
		case <-timer.C:
		}

		start := time.Now()
		res := r.RunOnce(ctx)
		if errors.Is(res.Err, ErrEmergencyStop) {
			return res.Err
		}
		r.maybeStatus()

		wait := r.Options.Interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

func (r *Runner) maybeStatus() {
	if r.Options.StatusEvery <= 0 || time.Since(r.lastStatus) < r.Options.StatusEvery {
		return
	}
	r.lastStatus = time.Now()
	r.notify(r.Status().String())
}

// Mark is the close of the last evaluated bar.
func (r *Runner) Mark() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mark
}

// Status is the engine status at the mark, with the market summary of the
// last fetched bars.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status()
}

func (r *Runner) status() Status {
	st := r.Engine.Status(r.mark)
	st.Market = r.market
	return st
}

func (r *Runner) report(res CycleResult) {
	ev := r.Log.Info().Str("action", string(res.Action))
	if res.Bar != nil {
		ev = ev.Float64("close", res.Bar.Close).Str("trend", string(res.Signal.Trend))
	}
	if res.Position != nil {
		ev = ev.Str("position", string(res.Position.Side)).Float64("entry", res.Position.EntryPrice)
	}
	if res.Denied() {
		ev = ev.Str("denied", string(res.Decision.Reason()))
	}
	ev.Msg("cycle")

	switch {
	case errors.Is(res.Err, ErrEmergencyStop):
		r.Log.Error().Err(res.Err).Msg("trading halted")
		r.notify(fmt.Sprintf("EMERGENCY STOP: %v\nTrading halted until the state is reset.", res.Err))
	case errors.Is(res.Err, ErrOrderExecution):
		r.Log.Error().Err(res.Err).Msg("cycle failed")
		r.notify(fmt.Sprintf("Order error: %v", res.Err))
	case errors.Is(res.Err, ErrInsufficientData):
		r.Log.Warn().Err(res.Err).Msg("cycle skipped")
	case res.Err != nil:
		r.Log.Error().Err(res.Err).Msg("cycle failed")
	}

	switch res.Action {
	case ActionOpened:
		p := res.Position
		r.notify(fmt.Sprintf("Opened %s %s\nSize: %.6f\nEntry: %.2f\nStop: %.2f\nTarget: %.2f",
			p.Side, p.Symbol, p.Size, p.EntryPrice, p.StopLoss, p.TakeProfit))
	case ActionClosed:
		t := *res.Trade
		if r.Ledger != nil {
			r.Ledger.RecordTrade(t)
		}
		r.notify(fmt.Sprintf("Closed %s %s (%s)\nEntry: %.2f\nExit: %.2f\nProfit: %.2f\nBalance: %.2f",
			t.Side, t.Symbol, t.Reason, t.EntryPrice, t.ExitPrice, t.RealizedPL, t.BalanceAfter))
	}
}

func (r *Runner) save(ctx context.Context) {
	if r.Store == nil {
		return
	}
	if err := r.Store.Save(ctx, r.Engine.Snapshot()); err != nil {
		r.Log.Error().Err(err).Msg("save state")
	}
}

func (r *Runner) notify(text string) {
	if r.Notifier != nil {
		r.Notifier.Notify(text)
	}
}
