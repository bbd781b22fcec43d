package market

import (
	"fmt"
	"strings"
	"time"
)

// Bar is one OHLCV observation for a timeframe. Bars are values and are
// never mutated once produced.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Side is the direction of a position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// OrderSide returns the exchange order side that opens a position of s.
func (s Side) OrderSide() OrderSide {
	if s == Short {
		return Sell
	}
	return Buy
}

// CloseSide returns the exchange order side that closes a position of s.
func (s Side) CloseSide() OrderSide {
	if s == Short {
		return Buy
	}
	return Sell
}

// OrderSide is the side of an exchange order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Symbol is a trading pair written as BASE/QUOTE, e.g. "BTC/USDT".
type Symbol string

// Base returns the base asset ("BTC" for "BTC/USDT").
func (s Symbol) Base() string {
	base, _, _ := strings.Cut(string(s), "/")
	return base
}

// Quote returns the quote asset ("USDT" for "BTC/USDT").
func (s Symbol) Quote() string {
	_, quote, _ := strings.Cut(string(s), "/")
	return quote
}

// Compact returns the exchange form of the symbol ("BTCUSDT").
func (s Symbol) Compact() string {
	return strings.ReplaceAll(string(s), "/", "")
}

// Validate checks the BASE/QUOTE form.
func (s Symbol) Validate() error {
	base, quote, ok := strings.Cut(string(s), "/")
	if !ok || base == "" || quote == "" {
		return fmt.Errorf("symbol %q must be BASE/QUOTE", string(s))
	}
	return nil
}
