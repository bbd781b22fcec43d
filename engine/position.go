package engine

import (
	"time"

	"github.com/rustyeddy/breakout/market"
	"github.com/rustyeddy/breakout/strategy"
)

// Position is the single open position. StopLoss and TakeProfit are fixed
// when it is opened.
type Position struct {
	TradeID    string        `json:"trade_id"`
	Symbol     market.Symbol `json:"symbol"`
	Side       market.Side   `json:"side"`
	Size       float64       `json:"size"`
	EntryPrice float64       `json:"entry_price"`
	StopLoss   float64       `json:"stop_loss"`
	TakeProfit float64       `json:"take_profit"`
	RiskAmount float64       `json:"risk_amount"`
	OpenedAt   time.Time     `json:"opened_at"`
}

func (p Position) Levels() strategy.Levels {
	return strategy.Levels{Side: p.Side, StopLoss: p.StopLoss, TakeProfit: p.TakeProfit}
}

// Profit is the P/L of closing the position at exit.
func (p Position) Profit(exit float64) float64 {
	return Profit(p.Side, p.EntryPrice, exit, p.Size)
}

// Profit is (exit-entry)*size for a long and (entry-exit)*size for a short.
func Profit(side market.Side, entry, exit, size float64) float64 {
	if side == market.Short {
		return (entry - exit) * size
	}
	return (exit - entry) * size
}

// StopLevels places the stop and target stopMult and targetMult ATRs from
// ref on the losing and winning side of a position.
func StopLevels(side market.Side, ref, atr, stopMult, targetMult float64) (stop, target float64) {
	if side == market.Short {
		return ref + stopMult*atr, ref - targetMult*atr
	}
	return ref - stopMult*atr, ref + targetMult*atr
}
