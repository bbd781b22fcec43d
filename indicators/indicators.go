// Package indicators provides the technical indicators behind the breakout
// strategy and the pipeline that turns raw bars into enriched bars.
package indicators

import "github.com/rustyeddy/breakout/market"

// Indicator computes a streaming value from bars.
// It is deterministic and safe to use in live evaluation and tests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(200)" or "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether the indicator value is meaningful.
	Ready() bool
}

// ValueF64 is implemented by single-valued indicators.
type ValueF64 interface {
	// Value returns the current value, or 0 if !Ready(). Callers should
	// always check Ready().
	Value() float64
}
