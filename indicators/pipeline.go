package indicators

import (
	"math"

	"github.com/rustyeddy/breakout/market"
)

// EnrichedBar is a Bar plus the indicator values the strategy reads.
// Every field is defined; rows without full indicator history are never
// produced.
type EnrichedBar struct {
	market.Bar

	EMATrend          float64 `json:"ema_trend"`
	ATR               float64 `json:"atr"`
	DonchianUpper     float64 `json:"donchian_upper"`
	DonchianLower     float64 `json:"donchian_lower"`
	DonchianMid       float64 `json:"donchian_mid"`
	BandDistance      float64 `json:"band_distance"`
	BandDistanceRatio float64 `json:"band_distance_ratio"`
	MACD              float64 `json:"macd"`
	MACDSignal        float64 `json:"macd_signal"`
	MACDHist          float64 `json:"macd_hist"`
}

// Pipeline holds the indicator periods.
type Pipeline struct {
	EMAPeriod      int
	DonchianPeriod int
	ATRPeriod      int
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
}

// DefaultPipeline is EMA(200), Donchian(20), ATR(14), MACD(12,26,9).
func DefaultPipeline() Pipeline {
	return Pipeline{
		EMAPeriod:      200,
		DonchianPeriod: 20,
		ATRPeriod:      14,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
	}
}

// Warmup returns the minimum number of bars Enrich needs before it emits
// anything: max(ema, donchian) + macd slow, and never less than the longest
// individual indicator warmup.
func (p Pipeline) Warmup() int {
	w := max(p.EMAPeriod, p.DonchianPeriod) + p.MACDSlow
	return max(w, p.EMAPeriod, p.DonchianPeriod, p.ATRPeriod+1, p.MACDSlow+p.MACDSignal-1)
}

// Enrich computes, in order, the trend EMA, ATR, Donchian channel, band
// distance ratio and MACD for every bar, and returns only rows where all of
// them are defined. Input shorter than Warmup yields nil. Enrich has no side
// effects and is deterministic.
func (p Pipeline) Enrich(bars []market.Bar) []EnrichedBar {
	if len(bars) < p.Warmup() {
		return nil
	}

	trend := NewEMA(p.EMAPeriod)
	atr := NewATR(p.ATRPeriod)
	dc := NewDonchian(p.DonchianPeriod)
	macd := NewMACD(p.MACDFast, p.MACDSlow, p.MACDSignal)
	all := []Indicator{trend, atr, dc, macd}

	out := make([]EnrichedBar, 0, len(bars)-p.Warmup()+1)
	for _, b := range bars {
		ready := true
		for _, ind := range all {
			ind.Update(b)
			ready = ready && ind.Ready()
		}
		if !ready {
			continue
		}

		upper, lower := dc.Upper(), dc.Lower()
		dist := upper - lower
		ratio := dist / (atr.Value() * 4)
		if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
			continue
		}

		out = append(out, EnrichedBar{
			Bar:               b,
			EMATrend:          trend.Value(),
			ATR:               atr.Value(),
			DonchianUpper:     upper,
			DonchianLower:     lower,
			DonchianMid:       (upper + lower) / 2,
			BandDistance:      dist,
			BandDistanceRatio: ratio,
			MACD:              macd.Line(),
			MACDSignal:        macd.Signal(),
			MACDHist:          macd.Hist(),
		})
	}
	return out
}
