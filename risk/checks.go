package risk

import (
	"fmt"
	"time"
)

// Reason is a denial code.
type Reason string

const (
	ReasonEmergencyStop Reason = "emergency_stop"
	ReasonMaxDrawdown   Reason = "max_drawdown"
	ReasonDailyLoss     Reason = "max_daily_loss"
	ReasonDailyTrades   Reason = "max_daily_trades"
	ReasonTradingHours  Reason = "outside_trading_hours"
)

type Violation struct {
	Code Reason
	Msg  string
}

// Decision is the outcome of a Gate check. Violations are ordered from the
// most to the least severe.
type Decision struct {
	Allowed    bool
	Violations []Violation

	Balance  float64
	Peak     float64
	Drawdown float64
	DailyPnL float64
}

func (d *Decision) add(code Reason, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason returns the most severe violation code, or "" when allowed.
func (d Decision) Reason() Reason {
	if len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Code
}

// Has reports whether code is among the violations.
func (d Decision) Has(code Reason) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Emergency reports whether the emergency stop fired. The host must halt
// trading until someone intervenes.
func (d Decision) Emergency() bool {
	return d.Has(ReasonEmergencyStop)
}

// String renders the primary violation for logs and notifications.
func (d Decision) String() string {
	if d.Allowed {
		return "allowed"
	}
	return fmt.Sprintf("%s: %s", d.Violations[0].Code, d.Violations[0].Msg)
}

// Gate approves or blocks entries. It is not safe for concurrent use; the
// engine serializes access.
type Gate struct {
	policy Policy
	state  State
}

// NewGate returns a gate starting from s, usually a restored snapshot or the
// zero State.
func NewGate(p Policy, s State) *Gate {
	return &Gate{policy: p, state: s}
}

// Policy returns the gate's limits.
func (g *Gate) Policy() Policy {
	return g.policy
}

// State returns a copy of the current risk state.
func (g *Gate) State() State {
	return g.state
}

// Check evaluates every limit for an entry at now with the given balance.
// The peak balance is raised to balance whatever the outcome.
func (g *Gate) Check(now time.Time, balance float64) Decision {
	g.rollover(now, balance)
	if balance > g.state.PeakBalance {
		g.state.PeakBalance = balance
	}

	d := Decision{
		Allowed:  true,
		Balance:  balance,
		Peak:     g.state.PeakBalance,
		DailyPnL: balance - g.state.SessionStartBalance,
	}
	if g.state.PeakBalance > 0 {
		d.Drawdown = (g.state.PeakBalance - balance) / g.state.PeakBalance
	}

	p := g.policy
	if p.EmergencyStop > 0 && d.Drawdown >= p.EmergencyStop {
		d.add(ReasonEmergencyStop,
			fmt.Sprintf("drawdown %.2f%% >= emergency stop %.2f%%", 100*d.Drawdown, 100*p.EmergencyStop))
	}
	if p.MaxDrawdown > 0 && d.Drawdown >= p.MaxDrawdown {
		d.add(ReasonMaxDrawdown,
			fmt.Sprintf("drawdown %.2f%% >= max %.2f%%", 100*d.Drawdown, 100*p.MaxDrawdown))
	}
	if p.MaxDailyLoss > 0 && d.DailyPnL <= -p.MaxDailyLoss {
		d.add(ReasonDailyLoss,
			fmt.Sprintf("day pnl %.2f <= limit %.2f", d.DailyPnL, -p.MaxDailyLoss))
	}
	if g.state.DailyTradeCount >= p.MaxDailyTrades {
		d.add(ReasonDailyTrades,
			fmt.Sprintf("trades today %d >= max %d", g.state.DailyTradeCount, p.MaxDailyTrades))
	}
	if !p.TradingHours.Contains(now) {
		d.add(ReasonTradingHours,
			fmt.Sprintf("hour %d outside %02d-%02d %s", now.In(p.TradingHours.location()).Hour(),
				p.TradingHours.StartHour, p.TradingHours.EndHour, p.TradingHours.location()))
	}
	return d
}

// RecordEntry counts an opened position against today's trade limit.
func (g *Gate) RecordEntry(now time.Time) {
	g.rollover(now, g.state.SessionStartBalance)
	g.state.DailyTradeCount++
}

// rollover starts a new trading day once the date in the policy timezone
// moves past the last reset date.
func (g *Gate) rollover(now time.Time, balance float64) {
	day := now.In(g.policy.TradingHours.location()).Format(time.DateOnly)
	if day <= g.state.TradeCountResetDate {
		return
	}
	g.state.DailyTradeCount = 0
	g.state.TradeCountResetDate = day
	g.state.SessionStartBalance = balance
}
