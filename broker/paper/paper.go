// Package paper is a simulated execution venue. It keeps a quote balance
// and one netted position per symbol and fills every market order at the
// caller's reference price.
package paper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rustyeddy/breakout/broker"
	"github.com/rustyeddy/breakout/market"
	"github.com/rustyeddy/breakout/pkg/id"
)

var ErrNoPrice = errors.New("no reference price")

type holding struct {
	qty   float64 // signed; negative is short
	entry float64 // average entry price
}

type Broker struct {
	mu       sync.Mutex
	balance  float64
	fee      float64
	holdings map[market.Symbol]*holding
	now      func() time.Time
}

// Option configures a Broker.
type Option func(*Broker)

// WithFee charges fee (a fraction of notional, e.g. 0.001) on every fill.
func WithFee(fee float64) Option {
	return func(b *Broker) { b.fee = fee }
}

// WithClock replaces time.Now for fill timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

func New(initialBalance float64, opts ...Option) *Broker {
	b := &Broker{
		balance:  initialBalance,
		holdings: make(map[market.Symbol]*holding),
		now:      time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Broker) FetchBalance(ctx context.Context) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance, nil
}

// Resume replaces the balance and the holding for symbol, e.g. with a saved
// snapshot after a restart. A zero qty leaves symbol flat.
func (b *Broker) Resume(balance float64, symbol market.Symbol, qty, entry float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance = balance
	delete(b.holdings, symbol)
	if qty != 0 {
		b.holdings[symbol] = &holding{qty: qty, entry: entry}
	}
}

// Position returns the signed quantity and average entry for symbol.
func (b *Broker) Position(symbol market.Symbol) (qty, entry float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.holdings[symbol]
	if !ok {
		return 0, 0
	}
	return h.qty, h.entry
}

func (b *Broker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.Fill, error) {
	if err := req.Validate(); err != nil {
		return broker.Fill{}, err
	}
	if !(req.RefPrice > 0) {
		return broker.Fill{}, fmt.Errorf("submit %s %s: %w", req.Side, req.Symbol, ErrNoPrice)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	delta := req.Size
	if req.Side == market.Sell {
		delta = -delta
	}

	h, ok := b.holdings[req.Symbol]
	if !ok {
		h = &holding{}
		b.holdings[req.Symbol] = h
	}
	if req.ReduceOnly && (h.qty == 0 || sameSign(h.qty, delta)) {
		return broker.Fill{}, fmt.Errorf("reduce-only %s on flat or same-side position: %w", req.Side, broker.ErrInvalidOrder)
	}

	price := req.RefPrice
	b.balance -= math.Abs(delta) * price * b.fee
	b.apply(h, delta, price)
	if h.qty == 0 {
		delete(b.holdings, req.Symbol)
	}

	return broker.Fill{
		OrderID: id.New(),
		Symbol:  req.Symbol,
		Side:    req.Side,
		Size:    req.Size,
		Price:   price,
		Time:    b.now().UTC(),
	}, nil
}

// apply nets delta into h, realizing P/L into the balance for the part of
// delta that reduces the existing position.
func (b *Broker) apply(h *holding, delta, price float64) {
	if h.qty == 0 || sameSign(h.qty, delta) {
		total := h.qty + delta
		h.entry = (h.entry*math.Abs(h.qty) + price*math.Abs(delta)) / math.Abs(total)
		h.qty = total
		return
	}

	closed := math.Min(math.Abs(delta), math.Abs(h.qty))
	if h.qty > 0 {
		b.balance += (price - h.entry) * closed
	} else {
		b.balance += (h.entry - price) * closed
	}

	remaining := h.qty + delta
	switch {
	case remaining == 0:
		h.qty, h.entry = 0, 0
	case sameSign(remaining, h.qty):
		h.qty = remaining
	default:
		// flipped through zero; the excess opens at price
		h.qty, h.entry = remaining, price
	}
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
