// Package strategy evaluates the Donchian breakout rules: trend filter,
// channel breakout, candle quality, MACD momentum, band placement and band
// distance for entries; stop-loss, take-profit and volatility spikes for
// exits.
package strategy

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/breakout/indicators"
	"github.com/rustyeddy/breakout/market"
)

// TradingMode restricts which sides may be entered.
type TradingMode string

const (
	Both      TradingMode = "both"
	LongOnly  TradingMode = "long_only"
	ShortOnly TradingMode = "short_only"
)

// ParseTradingMode accepts "both", "long_only"/"long" and
// "short_only"/"short".
func ParseTradingMode(s string) (TradingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return Both, nil
	case "long_only", "long":
		return LongOnly, nil
	case "short_only", "short":
		return ShortOnly, nil
	default:
		return "", fmt.Errorf("unknown trading mode %q (supported: both, long_only, short_only)", s)
	}
}

// Trend is the market direction relative to the trend EMA.
type Trend string

const (
	Up   Trend = "up"
	Down Trend = "down"
)

// ExitReason says why a position was closed.
type ExitReason string

const (
	StopLoss        ExitReason = "stop_loss"
	TakeProfit      ExitReason = "take_profit"
	VolatilitySpike ExitReason = "volatility_spike"
)

// Params are the strategy thresholds.
type Params struct {
	// MomentumThreshold is the minimum |macd| for an entry.
	MomentumThreshold float64

	// CandleTickThreshold is the fallback wick limit for the candle-quality
	// filter, in raw price units.
	CandleTickThreshold float64

	// BandDistanceMin is the band_distance_ratio an entry must exceed.
	BandDistanceMin float64

	// VolatilitySpikeMultiple is the ATR growth factor that triggers a
	// volatility exit.
	VolatilitySpikeMultiple float64

	Mode TradingMode
}

// DefaultParams match the original BTC/USDT 15m settings.
func DefaultParams() Params {
	return Params{
		MomentumThreshold:       100,
		CandleTickThreshold:     3,
		BandDistanceMin:         1.0,
		VolatilitySpikeMultiple: 1.5,
		Mode:                    Both,
	}
}

// EntrySignal is the result of an entry check. Long and Short are never
// both true.
type EntrySignal struct {
	Long  bool  `json:"long"`
	Short bool  `json:"short"`
	Trend Trend `json:"trend"`
}

// Side returns the side to enter, if any.
func (s EntrySignal) Side() (market.Side, bool) {
	switch {
	case s.Long:
		return market.Long, true
	case s.Short:
		return market.Short, true
	}
	return "", false
}

// Levels are the parts of an open position the exit check reads.
type Levels struct {
	Side       market.Side
	StopLoss   float64
	TakeProfit float64
}

// ExitSignal is a decided exit and the price it happens at.
type ExitSignal struct {
	Reason ExitReason `json:"reason"`
	Price  float64    `json:"price"`
}

// Evaluator applies Params to enriched bars. It holds no state.
type Evaluator struct {
	Params
}

// NewEvaluator returns an Evaluator for p.
func NewEvaluator(p Params) Evaluator {
	return Evaluator{Params: p}
}

// Entry checks the entry rules on the current bar, using prev for the
// candle-quality filter.
func (e Evaluator) Entry(prev, cur indicators.EnrichedBar) EntrySignal {
	aboveTrend := cur.Close > cur.EMATrend && cur.Open > cur.EMATrend
	belowTrend := cur.Close < cur.EMATrend && cur.Open < cur.EMATrend

	breakoutLong := cur.High >= cur.DonchianUpper
	breakoutShort := cur.Low <= cur.DonchianLower

	upperWick := prev.High - prev.Close
	lowerWick := prev.Close - prev.Low
	candleLong := upperWick < (prev.Close-prev.Open)/2 || upperWick < e.CandleTickThreshold
	candleShort := lowerWick < (prev.Open-prev.Close)/2 || lowerWick < e.CandleTickThreshold

	momentumLong := cur.MACD > e.MomentumThreshold && cur.MACDHist > 0
	momentumShort := cur.MACD < -e.MomentumThreshold && cur.MACDHist < 0

	placementOK := true
	if aboveTrend && cur.DonchianUpper < cur.EMATrend {
		placementOK = false
	}
	if belowTrend && cur.DonchianLower > cur.EMATrend {
		placementOK = false
	}

	distanceOK := cur.BandDistanceRatio > e.BandDistanceMin

	sig := EntrySignal{
		Long:  aboveTrend && breakoutLong && candleLong && momentumLong && placementOK && distanceOK,
		Short: belowTrend && breakoutShort && candleShort && momentumShort && placementOK && distanceOK,
		Trend: Down,
	}
	if aboveTrend {
		sig.Trend = Up
	}

	switch e.Mode {
	case LongOnly:
		sig.Short = false
	case ShortOnly:
		sig.Long = false
	}
	return sig
}

// Exit checks the exit rules for an open position. Stop-loss wins over
// take-profit, which wins over a volatility spike. Stop and target exits
// happen at the level price; a volatility spike exits at the close.
func (e Evaluator) Exit(prev, cur indicators.EnrichedBar, pos Levels) (ExitSignal, bool) {
	spike := cur.ATR > prev.ATR*e.VolatilitySpikeMultiple

	switch pos.Side {
	case market.Long:
		if cur.Low <= pos.StopLoss {
			return ExitSignal{Reason: StopLoss, Price: pos.StopLoss}, true
		}
		if cur.High >= pos.TakeProfit {
			return ExitSignal{Reason: TakeProfit, Price: pos.TakeProfit}, true
		}
		if spike && cur.Close < prev.Close {
			return ExitSignal{Reason: VolatilitySpike, Price: cur.Close}, true
		}

	case market.Short:
		if cur.High >= pos.StopLoss {
			return ExitSignal{Reason: StopLoss, Price: pos.StopLoss}, true
		}
		if cur.Low <= pos.TakeProfit {
			return ExitSignal{Reason: TakeProfit, Price: pos.TakeProfit}, true
		}
		if spike && cur.Close > prev.Close {
			return ExitSignal{Reason: VolatilitySpike, Price: cur.Close}, true
		}
	}
	return ExitSignal{}, false
}
