package engine

import (
	"time"

	"github.com/rustyeddy/breakout/market"
)

// MarketSummary is the recent price action carried in the status report.
type MarketSummary struct {
	Close         float64 `json:"close"`
	HourChange    float64 `json:"hour_change"`
	HourChangePct float64 `json:"hour_change_pct"`
	High24h       float64 `json:"high_24h"`
	Low24h        float64 `json:"low_24h"`
	AvgClose24h   float64 `json:"avg_close_24h"`
	Volume24h     float64 `json:"volume_24h"`
}

// SummarizeMarket reads the summary off bars (oldest first). The hour and
// day windows end at the last bar; when the bars do not reach back that far
// the window starts at the first bar. It returns nil for no bars.
func SummarizeMarket(bars []market.Bar) *MarketSummary {
	if len(bars) == 0 {
		return nil
	}
	last := bars[len(bars)-1]
	s := &MarketSummary{Close: last.Close, High24h: last.High, Low24h: last.Low}

	ref := bars[0]
	hourAgo := last.Time.Add(-time.Hour)
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Time.After(hourAgo) {
			ref = bars[i]
			break
		}
	}
	if ref.Close > 0 {
		s.HourChange = last.Close - ref.Close
		s.HourChangePct = 100 * s.HourChange / ref.Close
	}

	dayAgo := last.Time.Add(-24 * time.Hour)
	var sum float64
	n := 0
	for i := len(bars) - 1; i >= 0 && bars[i].Time.After(dayAgo); i-- {
		b := bars[i]
		s.High24h = max(s.High24h, b.High)
		s.Low24h = min(s.Low24h, b.Low)
		s.Volume24h += b.Volume
		sum += b.Close
		n++
	}
	s.AvgClose24h = sum / float64(n)
	return s
}
