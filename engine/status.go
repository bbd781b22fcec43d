package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/breakout/market"
	"github.com/rustyeddy/breakout/risk"
	"github.com/rustyeddy/breakout/strategy"
)

// Status is the periodic report on the engine and its position.
type Status struct {
	Time   time.Time     `json:"time"`
	Symbol market.Symbol `json:"symbol"`
	Halted bool          `json:"halted"`
	Reason string        `json:"halt_reason,omitempty"`

	Position *Position      `json:"position,omitempty"`
	Mark     float64        `json:"mark,omitempty"`
	Market   *MarketSummary `json:"market,omitempty"`

	// Percent distance from Mark to the stop and the target.
	StopDistancePct   float64 `json:"stop_distance_pct,omitempty"`
	TargetDistancePct float64 `json:"target_distance_pct,omitempty"`
	UnrealizedPL      float64 `json:"unrealized_pl,omitempty"`
	RMultiple         float64 `json:"r_multiple,omitempty"`

	Balance        float64        `json:"balance"`
	TotalPL        float64        `json:"total_pl"`
	PeakBalance    float64        `json:"peak_balance"`
	DailyTrades    int            `json:"daily_trades"`
	MaxDailyTrades int            `json:"max_daily_trades"`
	Trend          strategy.Trend `json:"trend,omitempty"`
}

// Status reports the engine at mark, the latest traded price. A zero mark
// skips the unrealized figures.
func (e *Engine) Status(mark float64) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs := e.gate.State()
	st := Status{
		Time:           e.now().UTC(),
		Symbol:         e.cfg.Symbol,
		Halted:         e.state.Halted,
		Reason:         e.state.HaltReason,
		Position:       clonePosition(e.state.Position),
		Mark:           mark,
		Balance:        e.state.Balance,
		PeakBalance:    rs.PeakBalance,
		DailyTrades:    rs.DailyTradeCount,
		MaxDailyTrades: e.cfg.Risk.MaxDailyTrades,
		Trend:          e.state.LastTrend,
	}
	if e.state.StartBalance > 0 {
		st.TotalPL = e.state.Balance - e.state.StartBalance
	}

	p := e.state.Position
	if p == nil || mark <= 0 {
		return st
	}
	if p.Side == market.Short {
		st.StopDistancePct = 100 * (p.StopLoss - mark) / mark
		st.TargetDistancePct = 100 * (mark - p.TakeProfit) / mark
	} else {
		st.StopDistancePct = 100 * (mark - p.StopLoss) / mark
		st.TargetDistancePct = 100 * (p.TakeProfit - mark) / mark
	}
	st.UnrealizedPL = p.Profit(mark)
	st.RMultiple = risk.RMultiple(st.UnrealizedPL, p.RiskAmount)
	return st
}

// String renders the status as the text of the periodic notification.
func (s Status) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s status %s\n", s.Symbol, s.Time.Format("2006-01-02 15:04 MST"))
	if s.Halted {
		fmt.Fprintf(&b, "HALTED: %s\n", s.Reason)
	}
	if m := s.Market; m != nil {
		fmt.Fprintf(&b, "Price: %.2f (1h %+.2f, %+.2f%%)\n", m.Close, m.HourChange, m.HourChangePct)
		fmt.Fprintf(&b, "24h: high %.2f low %.2f avg %.2f volume %.2f\n", m.High24h, m.Low24h, m.AvgClose24h, m.Volume24h)
	}

	if p := s.Position; p != nil {
		fmt.Fprintf(&b, "Position: %s %.6f @ %.2f\n", p.Side, p.Size, p.EntryPrice)
		if s.Mark > 0 {
			fmt.Fprintf(&b, "Mark: %.2f\n", s.Mark)
			fmt.Fprintf(&b, "Stop: %.2f (%.2f%%)\n", p.StopLoss, s.StopDistancePct)
			fmt.Fprintf(&b, "Target: %.2f (%.2f%%)\n", p.TakeProfit, s.TargetDistancePct)
			fmt.Fprintf(&b, "Unrealized: %.2f (%.2fR)\n", s.UnrealizedPL, s.RMultiple)
		} else {
			fmt.Fprintf(&b, "Stop: %.2f\nTarget: %.2f\n", p.StopLoss, p.TakeProfit)
		}
	} else {
		b.WriteString("Position: flat\n")
	}

	fmt.Fprintf(&b, "Balance: %.2f (total P/L %.2f)\n", s.Balance, s.TotalPL)
	fmt.Fprintf(&b, "Trades today: %d/%d\n", s.DailyTrades, s.MaxDailyTrades)
	if s.Trend != "" {
		fmt.Fprintf(&b, "Trend: %s\n", s.Trend)
	}
	return b.String()
}
