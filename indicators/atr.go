package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/breakout/market"
)

// ATR calculates the Average True Range for the given period.
// Returns an error if there aren't enough bars for the period.
func ATR(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period+1 {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period+1, len(bars))
	}

	a := NewATR(period)
	for _, b := range bars {
		a.Update(b)
	}
	return a.Value(), nil
}

// AverageTrueRange is a streaming Average True Range using Wilder's
// smoothing. The first value is the simple average of the first period true
// ranges, which needs period+1 bars.
type AverageTrueRange struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prevClose float64
	hasPrev   bool
}

// NewATR creates a new Average True Range indicator with the given period.
func NewATR(period int) *AverageTrueRange {
	return &AverageTrueRange{period: period}
}

func (a *AverageTrueRange) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

func (a *AverageTrueRange) Warmup() int {
	// TR needs the previous close.
	return a.period + 1
}

func (a *AverageTrueRange) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.prevClose = 0
	a.hasPrev = false
}

func (a *AverageTrueRange) Update(b market.Bar) {
	if !a.hasPrev {
		a.prevClose = b.Close
		a.hasPrev = true
		return
	}

	tr := TrueRange(b, a.prevClose)
	a.prevClose = b.Close

	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
		return
	}
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
}

func (a *AverageTrueRange) Ready() bool {
	return a.count >= a.period
}

func (a *AverageTrueRange) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(b market.Bar, prevClose float64) float64 {
	highLow := b.High - b.Low
	highClose := math.Abs(b.High - prevClose)
	lowClose := math.Abs(b.Low - prevClose)
	return math.Max(highLow, math.Max(highClose, lowClose))
}
