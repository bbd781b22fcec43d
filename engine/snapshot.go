package engine

import (
	"time"

	"github.com/rustyeddy/breakout/risk"
	"github.com/rustyeddy/breakout/strategy"
)

// Snapshot is everything needed to resume after a crash.
type Snapshot struct {
	Symbol       string         `json:"symbol"`
	Position     *Position      `json:"position,omitempty"`
	Risk         risk.State     `json:"risk"`
	Balance      float64        `json:"balance"`
	StartBalance float64        `json:"start_balance"`
	LastTrend    strategy.Trend `json:"last_trend,omitempty"`
	Halted       bool           `json:"halted"`
	HaltReason   string         `json:"halt_reason,omitempty"`
	SavedAt      time.Time      `json:"saved_at"`
}

// ClearHalt is the manual intervention after an emergency stop: it unlatches
// the halt and restarts drawdown tracking from the current balance.
func (s *Snapshot) ClearHalt() {
	s.Halted = false
	s.HaltReason = ""
	if s.Balance > 0 {
		s.Risk.PeakBalance = s.Balance
	}
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Symbol:       string(e.cfg.Symbol),
		Position:     clonePosition(e.state.Position),
		Risk:         e.gate.State(),
		Balance:      e.state.Balance,
		StartBalance: e.state.StartBalance,
		LastTrend:    e.state.LastTrend,
		Halted:       e.state.Halted,
		HaltReason:   e.state.HaltReason,
		SavedAt:      e.now().UTC(),
	}
}

// Restore replaces the engine state with s.
func (e *Engine) Restore(s Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gate = risk.NewGate(e.cfg.Risk, s.Risk)
	e.state = State{
		Position:     clonePosition(s.Position),
		Balance:      s.Balance,
		StartBalance: s.StartBalance,
		LastTrend:    s.LastTrend,
		Halted:       s.Halted,
		HaltReason:   s.HaltReason,
	}
}
