package journal

import (
	"errors"
	"time"

	"github.com/rustyeddy/breakout/market"
)

var ErrTradeNotFound = errors.New("trade not found")

// TradeRecord is the immutable fact emitted once per closed position.
type TradeRecord struct {
	TradeID      string        `json:"trade_id"`
	Symbol       market.Symbol `json:"symbol"`
	Side         market.Side   `json:"side"`
	Size         float64       `json:"size"`
	EntryPrice   float64       `json:"entry_price"`
	ExitPrice    float64       `json:"exit_price"`
	StopLoss     float64       `json:"stop_loss"`
	TakeProfit   float64       `json:"take_profit"`
	RealizedPL   float64       `json:"realized_pl"`
	Reason       string        `json:"exit_reason"`
	BalanceAfter float64       `json:"balance_after"`
	OpenTime     time.Time     `json:"opened_at"`
	CloseTime    time.Time     `json:"closed_at"`
}

type Journal interface {
	RecordTrade(TradeRecord) error
	Close() error
}

// Multi writes every record to each journal in order.
type Multi []Journal

func (m Multi) RecordTrade(t TradeRecord) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordTrade(t))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}
