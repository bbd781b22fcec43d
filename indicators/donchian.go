package indicators

import (
	"fmt"

	"github.com/rustyeddy/breakout/market"
)

// Donchian is a streaming Donchian channel: the rolling max(high) and
// min(low) over the last period bars, current bar included.
type Donchian struct {
	period int
	highs  []float64
	lows   []float64
}

// NewDonchian creates a new Donchian channel with the given period.
func NewDonchian(period int) *Donchian {
	return &Donchian{
		period: period,
		highs:  make([]float64, 0, period),
		lows:   make([]float64, 0, period),
	}
}

func (d *Donchian) Name() string {
	return fmt.Sprintf("Donchian(%d)", d.period)
}

func (d *Donchian) Warmup() int {
	return d.period
}

func (d *Donchian) Reset() {
	d.highs = d.highs[:0]
	d.lows = d.lows[:0]
}

func (d *Donchian) Update(b market.Bar) {
	d.highs = append(d.highs, b.High)
	d.lows = append(d.lows, b.Low)
	if len(d.highs) > d.period {
		d.highs = d.highs[1:]
		d.lows = d.lows[1:]
	}
}

func (d *Donchian) Ready() bool {
	return d.period > 0 && len(d.highs) >= d.period
}

// Upper returns the highest high in the window.
func (d *Donchian) Upper() float64 {
	if !d.Ready() {
		return 0
	}
	v := d.highs[0]
	for _, h := range d.highs[1:] {
		if h > v {
			v = h
		}
	}
	return v
}

// Lower returns the lowest low in the window.
func (d *Donchian) Lower() float64 {
	if !d.Ready() {
		return 0
	}
	v := d.lows[0]
	for _, l := range d.lows[1:] {
		if l < v {
			v = l
		}
	}
	return v
}

// Mid returns (upper+lower)/2.
func (d *Donchian) Mid() float64 {
	return (d.Upper() + d.Lower()) / 2
}
