package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/breakout/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendingBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		c := 100 + float64(i)*0.5 + 3*math.Sin(float64(i)/5)
		bars[i] = market.Bar{
			Time:   baseTime.Add(time.Duration(i) * 15 * time.Minute),
			Open:   c - 0.2,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 10,
		}
	}
	return bars
}

func TestPipelineWarmup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 226, DefaultPipeline().Warmup())

	small := Pipeline{EMAPeriod: 3, DonchianPeriod: 3, ATRPeriod: 2, MACDFast: 2, MACDSlow: 3, MACDSignal: 2}
	assert.Equal(t, 6, small.Warmup())

	// ATR can dominate when every other period is short.
	atrHeavy := Pipeline{EMAPeriod: 2, DonchianPeriod: 2, ATRPeriod: 30, MACDFast: 2, MACDSlow: 3, MACDSignal: 2}
	assert.Equal(t, 31, atrHeavy.Warmup())
}

func TestPipelineShortInputIsEmpty(t *testing.T) {
	t.Parallel()

	p := DefaultPipeline()
	for _, n := range []int{0, 1, 50, 200, p.Warmup() - 1} {
		assert.Empty(t, p.Enrich(trendingBars(n)), "n=%d", n)
	}
}

func TestPipelineDropsWarmupRows(t *testing.T) {
	t.Parallel()

	bars := trendingBars(250)
	out := DefaultPipeline().Enrich(bars)

	// EMA(200) is the last indicator to become defined, at index 199.
	require.Len(t, out, 51)
	assert.Equal(t, bars[199].Time, out[0].Time)
	assert.Equal(t, bars[249].Time, out[len(out)-1].Time)
}

func TestPipelineValues(t *testing.T) {
	t.Parallel()

	bars := trendingBars(250)
	out := DefaultPipeline().Enrich(bars)
	require.NotEmpty(t, out)
	last := out[len(out)-1]

	ema, err := EMA(bars, 200)
	require.NoError(t, err)
	assert.Equal(t, ema, last.EMATrend)

	atr, err := ATR(bars, 14)
	require.NoError(t, err)
	assert.Equal(t, atr, last.ATR)

	dc := NewDonchian(20)
	for _, b := range bars {
		dc.Update(b)
	}
	assert.Equal(t, dc.Upper(), last.DonchianUpper)
	assert.Equal(t, dc.Lower(), last.DonchianLower)
	assert.Equal(t, (dc.Upper()+dc.Lower())/2, last.DonchianMid)
	assert.Equal(t, last.DonchianUpper-last.DonchianLower, last.BandDistance)
	assert.InDelta(t, last.BandDistance/(last.ATR*4), last.BandDistanceRatio, 1e-12)
	assert.InDelta(t, last.MACD-last.MACDSignal, last.MACDHist, 1e-12)

	for i, row := range out {
		for _, v := range []float64{row.EMATrend, row.ATR, row.DonchianUpper, row.DonchianLower,
			row.BandDistanceRatio, row.MACD, row.MACDSignal, row.MACDHist} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "row %d has undefined value", i)
		}
	}
}

func TestPipelineDeterministic(t *testing.T) {
	t.Parallel()

	bars := trendingBars(300)
	p := DefaultPipeline()
	assert.Equal(t, p.Enrich(bars), p.Enrich(bars))
}

func TestPipelineSkipsZeroVolatilityRows(t *testing.T) {
	t.Parallel()

	flat := make([]market.Bar, 10)
	for i := range flat {
		flat[i] = market.Bar{Open: 5, High: 5, Low: 5, Close: 5}
	}
	small := Pipeline{EMAPeriod: 3, DonchianPeriod: 3, ATRPeriod: 2, MACDFast: 2, MACDSlow: 3, MACDSignal: 2}
	assert.Empty(t, small.Enrich(flat))
}
