package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/breakout/market"
)

var ErrInvalidOrder = errors.New("invalid order")

// MarketData supplies the last limit bars for a symbol, oldest first.
type MarketData interface {
	FetchBars(ctx context.Context, symbol market.Symbol, timeframe string, limit int) ([]market.Bar, error)
}

// Executor submits market orders.
type Executor interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (Fill, error)
}

// BalanceProvider reports the available quote balance.
type BalanceProvider interface {
	FetchBalance(ctx context.Context) (float64, error)
}

// Exchange is a venue that does all three.
type Exchange interface {
	MarketData
	Executor
	BalanceProvider
}

type OrderRequest struct {
	Symbol market.Symbol
	Side   market.OrderSide
	Size   float64

	// RefPrice is the price the strategy acted on. Simulated venues fill
	// at it; live venues ignore it.
	RefPrice float64

	// ReduceOnly marks an order that closes an existing position.
	ReduceOnly bool
}

// Validate rejects requests no venue would accept.
func (r OrderRequest) Validate() error {
	if err := r.Symbol.Validate(); err != nil {
		return errors.Join(ErrInvalidOrder, err)
	}
	if r.Side != market.Buy && r.Side != market.Sell {
		return errors.Join(ErrInvalidOrder, errors.New("side must be BUY or SELL"))
	}
	if !(r.Size > 0) {
		return errors.Join(ErrInvalidOrder, errors.New("size must be positive"))
	}
	return nil
}

type Fill struct {
	OrderID string
	Symbol  market.Symbol
	Side    market.OrderSide
	Size    float64
	Price   float64 // average fill price; zero when the venue did not report one
	Time    time.Time
}
