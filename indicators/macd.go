package indicators

import (
	"fmt"

	"github.com/rustyeddy/breakout/market"
)

// MACD is a streaming Moving Average Convergence Divergence oscillator.
// The MACD line is EMA(fast) - EMA(slow) of closes, the signal line is an
// EMA of the MACD line, and the histogram is their difference.
type MACD struct {
	fast, slow, signal int

	fastEMA   *ExponentialMA
	slowEMA   *ExponentialMA
	signalEMA *ExponentialMA

	line float64
}

// NewMACD creates a MACD with the given fast, slow and signal periods
// (12, 26, 9 in the classic form).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:      fast,
		slow:      slow,
		signal:    signal,
		fastEMA:   NewEMA(fast),
		slowEMA:   NewEMA(slow),
		signalEMA: NewEMA(signal),
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.fast, m.slow, m.signal)
}

func (m *MACD) Warmup() int {
	return m.slow + m.signal - 1
}

func (m *MACD) Reset() {
	m.fastEMA.Reset()
	m.slowEMA.Reset()
	m.signalEMA.Reset()
	m.line = 0
}

func (m *MACD) Update(b market.Bar) {
	m.fastEMA.Update(b)
	m.slowEMA.Update(b)
	if !m.fastEMA.Ready() || !m.slowEMA.Ready() {
		return
	}
	m.line = m.fastEMA.Value() - m.slowEMA.Value()
	m.signalEMA.Add(m.line)
}

func (m *MACD) Ready() bool {
	return m.signalEMA.Ready()
}

// Line returns the MACD line.
func (m *MACD) Line() float64 {
	if !m.Ready() {
		return 0
	}
	return m.line
}

// Signal returns the signal line.
func (m *MACD) Signal() float64 {
	return m.signalEMA.Value()
}

// Hist returns line - signal.
func (m *MACD) Hist() float64 {
	if !m.Ready() {
		return 0
	}
	return m.line - m.signalEMA.Value()
}
